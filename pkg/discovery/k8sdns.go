package discovery

import (
	"context"
	"time"

	"github.com/hdds-io/hdds/pkg/guid"
	"github.com/hdds-io/hdds/pkg/herrors"
	"github.com/hdds-io/hdds/pkg/logging"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

var k8sLog = logging.For("discovery.k8sdns")

// K8sDns resolves the RTPS seed peer list from a headless Service's
// endpoint subsets, re-polled at a configurable interval (spec.md §6
// discovery option K8sDns(service, namespace); SPEC_FULL §B). Grounded
// on linkerd2's controller/k8s package's client-go usage pattern
// (kubernetes.Interface, CoreV1().Endpoints), simplified to a poll
// rather than an informer since seed resolution only needs a point-in-
// time snapshot at participant startup and on lease-driven refresh.
type K8sDns struct {
	Client       kubernetes.Interface
	Service      string
	Namespace    string
	RtpsPort     uint32
	PollInterval time.Duration
}

func NewK8sDns(client kubernetes.Interface, service, namespace string, rtpsPort uint32, pollInterval time.Duration) *K8sDns {
	return &K8sDns{Client: client, Service: service, Namespace: namespace, RtpsPort: rtpsPort, PollInterval: pollInterval}
}

// Seeds resolves the current Endpoints object for Service/Namespace into
// UDPv4 locators, one per ready endpoint address.
func (k *K8sDns) Seeds(ctx context.Context) ([]guid.Locator, error) {
	eps, err := k.Client.CoreV1().Endpoints(k.Namespace).Get(ctx, k.Service, metav1.GetOptions{})
	if err != nil {
		return nil, herrors.Wrap(herrors.KindTransportError, "discovery.k8sdns", "get endpoints "+k.Namespace+"/"+k.Service, err)
	}
	return locatorsFromEndpoints(eps, k.RtpsPort), nil
}

func locatorsFromEndpoints(eps *corev1.Endpoints, rtpsPort uint32) []guid.Locator {
	var out []guid.Locator
	for _, subset := range eps.Subsets {
		for _, addr := range subset.Addresses {
			if loc, ok := parseIPv4Locator(addr.IP, rtpsPort); ok {
				out = append(out, loc)
			}
		}
	}
	return out
}

func parseIPv4Locator(ip string, port uint32) (guid.Locator, bool) {
	var a, b, c, d int
	n, err := parseDottedQuad(ip, &a, &b, &c, &d)
	if err != nil || n != 4 {
		return guid.Locator{}, false
	}
	return guid.NewUDPv4Locator(byte(a), byte(b), byte(c), byte(d), port), true
}

// parseDottedQuad parses an IPv4 dotted-quad string without pulling in
// net.ParseIP's IPv6 handling, which this locator conversion never needs.
func parseDottedQuad(s string, a, b, c, d *int) (int, error) {
	parts := [4]*int{a, b, c, d}
	idx := 0
	val := 0
	started := false
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == '.' {
			if !started || idx >= 4 {
				return idx, herrors.New(herrors.KindInvalidFormat, "discovery.k8sdns", "malformed IPv4 address")
			}
			*parts[idx] = val
			idx++
			val = 0
			started = false
			continue
		}
		ch := s[i]
		if ch < '0' || ch > '9' {
			return idx, herrors.New(herrors.KindInvalidFormat, "discovery.k8sdns", "malformed IPv4 address")
		}
		val = val*10 + int(ch-'0')
		started = true
	}
	return idx, nil
}

// Poll runs Seeds on PollInterval until ctx is canceled, delivering each
// resolution to onSeeds. Errors are logged and retried on the next tick
// rather than terminating the poll loop.
func (k *K8sDns) Poll(ctx context.Context, onSeeds func([]guid.Locator)) {
	interval := k.PollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			seeds, err := k.Seeds(ctx)
			if err != nil {
				k8sLog.WithError(err).Warn("seed resolution failed, retrying next tick")
				continue
			}
			onSeeds(seeds)
		}
	}
}
