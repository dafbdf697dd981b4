// Package envconfig reads the HDDS_* environment variables of spec.md §6
// into a Bootstrap struct the participant builder can apply as options,
// the external-interface environment loader spec.md calls out as distinct
// from the "no file-based config" Non-goal.
package envconfig

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hdds-io/hdds/pkg/herrors"
)

// DSCPConfig is the parsed form of HDDS_DSCP=<v>|<d>,<u>,<m>: either a
// single value applied to every traffic profile, or three comma-separated
// values for discovery/user-data/metatraffic respectively.
type DSCPConfig struct {
	Discovery int
	UserData  int
	Meta      int
}

// Bootstrap is everything the environment loader can populate; zero
// values mean "not set in the environment" so the builder can tell env
// config apart from an explicit caller override.
type Bootstrap struct {
	DomainID        *uint32
	DSCP            *DSCPConfig
	K8sService      string
	K8sNamespace    string
	K8sPort         string
	K8sPollInterval time.Duration
	PodIP           string
	PodName         string
}

const (
	envDomainID    = "HDDS_DOMAIN_ID"
	envDSCP        = "HDDS_DSCP"
	envK8sService  = "HDDS_K8S_SERVICE"
	envK8sNamespace = "HDDS_K8S_NAMESPACE"
	envK8sPort     = "HDDS_K8S_PORT"
	envK8sPoll     = "HDDS_K8S_POLL_INTERVAL_MS"
	envPodIP       = "HDDS_POD_IP"
	envPodName     = "HDDS_POD_NAME"
)

// Load reads the process environment into a Bootstrap. Unset variables
// leave the corresponding field nil/zero rather than erroring; only a
// present-but-malformed value returns an error.
func Load() (Bootstrap, error) {
	var b Bootstrap

	if v, ok := os.LookupEnv(envDomainID); ok {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return b, herrors.Wrap(herrors.KindConfig, "envconfig", "HDDS_DOMAIN_ID must be a non-negative integer", err)
		}
		domain := uint32(n)
		b.DomainID = &domain
	}

	if v, ok := os.LookupEnv(envDSCP); ok {
		dscp, err := parseDSCP(v)
		if err != nil {
			return b, err
		}
		b.DSCP = &dscp
	}

	b.K8sService = os.Getenv(envK8sService)
	b.K8sNamespace = os.Getenv(envK8sNamespace)
	b.K8sPort = os.Getenv(envK8sPort)
	b.PodIP = os.Getenv(envPodIP)
	b.PodName = os.Getenv(envPodName)

	if v, ok := os.LookupEnv(envK8sPoll); ok {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return b, herrors.Wrap(herrors.KindConfig, "envconfig", "HDDS_K8S_POLL_INTERVAL_MS must be an integer", err)
		}
		b.K8sPollInterval = time.Duration(ms) * time.Millisecond
	}

	return b, nil
}

// parseDSCP accepts either a single value ("v") applied to all three
// traffic profiles, or "discovery,userdata,meta".
func parseDSCP(raw string) (DSCPConfig, error) {
	parts := strings.Split(raw, ",")
	toInt := func(s string) (int, error) {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return 0, herrors.Wrap(herrors.KindConfig, "envconfig", "HDDS_DSCP value must be an integer", err)
		}
		return n, nil
	}

	switch len(parts) {
	case 1:
		v, err := toInt(parts[0])
		if err != nil {
			return DSCPConfig{}, err
		}
		return DSCPConfig{Discovery: v, UserData: v, Meta: v}, nil
	case 3:
		d, err := toInt(parts[0])
		if err != nil {
			return DSCPConfig{}, err
		}
		u, err := toInt(parts[1])
		if err != nil {
			return DSCPConfig{}, err
		}
		m, err := toInt(parts[2])
		if err != nil {
			return DSCPConfig{}, err
		}
		return DSCPConfig{Discovery: d, UserData: u, Meta: m}, nil
	default:
		return DSCPConfig{}, herrors.New(herrors.KindConfig, "envconfig", "HDDS_DSCP must be '<v>' or '<d>,<u>,<m>'")
	}
}
