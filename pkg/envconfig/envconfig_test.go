package envconfig

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDomainID(t *testing.T) {
	t.Setenv("HDDS_DOMAIN_ID", "3")
	b, err := Load()
	require.NoError(t, err)
	require.NotNil(t, b.DomainID)
	require.Equal(t, uint32(3), *b.DomainID)
}

func TestLoadDomainIDInvalid(t *testing.T) {
	t.Setenv("HDDS_DOMAIN_ID", "not-a-number")
	_, err := Load()
	require.Error(t, err)
}

func TestLoadDSCPSingleValue(t *testing.T) {
	t.Setenv("HDDS_DSCP", "46")
	b, err := Load()
	require.NoError(t, err)
	require.NotNil(t, b.DSCP)
	require.Equal(t, DSCPConfig{Discovery: 46, UserData: 46, Meta: 46}, *b.DSCP)
}

func TestLoadDSCPTriple(t *testing.T) {
	t.Setenv("HDDS_DSCP", "10,20,30")
	b, err := Load()
	require.NoError(t, err)
	require.Equal(t, DSCPConfig{Discovery: 10, UserData: 20, Meta: 30}, *b.DSCP)
}

func TestLoadDSCPMalformed(t *testing.T) {
	t.Setenv("HDDS_DSCP", "10,20")
	_, err := Load()
	require.Error(t, err)
}

func TestLoadK8sFields(t *testing.T) {
	t.Setenv("HDDS_K8S_SERVICE", "hdds-headless")
	t.Setenv("HDDS_K8S_NAMESPACE", "prod")
	t.Setenv("HDDS_K8S_PORT", "7400")
	t.Setenv("HDDS_K8S_POLL_INTERVAL_MS", "2000")
	t.Setenv("HDDS_POD_IP", "10.0.0.5")
	t.Setenv("HDDS_POD_NAME", "hdds-0")

	b, err := Load()
	require.NoError(t, err)
	require.Equal(t, "hdds-headless", b.K8sService)
	require.Equal(t, "prod", b.K8sNamespace)
	require.Equal(t, "7400", b.K8sPort)
	require.Equal(t, 2*time.Second, b.K8sPollInterval)
	require.Equal(t, "10.0.0.5", b.PodIP)
	require.Equal(t, "hdds-0", b.PodName)
}

func TestLoadNothingSetReturnsZeroBootstrap(t *testing.T) {
	b, err := Load()
	require.NoError(t, err)
	require.Nil(t, b.DomainID)
	require.Nil(t, b.DSCP)
}
