package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nodectl/internal/envfile"
	"nodectl/internal/service"
)

func TestEthnodeRefs(t *testing.T) {
	fleet := []*service.Instance{
		inst("ethnode1", service.KindEthnode, nil),
		inst("ethnode2", service.KindEthnode, nil),
		inst("monitoring", service.KindMonitoring, nil),
	}

	tests := []struct {
		name string
		keys map[string]string
		want []string
	}{
		{
			name: "derived from endpoint hosts",
			keys: map[string]string{
				service.KeyBeaconNodes: "http://ethnode1-consensus:5052,http://ethnode2-consensus:5052",
			},
			want: []string{"ethnode1", "ethnode2"},
		},
		{
			name: "explicit list wins over endpoints",
			keys: map[string]string{
				service.KeyBeaconNodes: "http://ethnode1-consensus:5052",
				service.KeyEthnodeRefs: "ethnode2",
			},
			want: []string{"ethnode2"},
		},
		{
			name: "unknown references are dropped",
			keys: map[string]string{
				service.KeyBeaconNodes: "http://ethnode1-consensus:5052,http://gone-consensus:5052",
			},
			want: []string{"ethnode1"},
		},
		{
			name: "host without separator maps to itself",
			keys: map[string]string{
				service.KeyBeaconNodes: "ethnode1:5052",
			},
			want: []string{"ethnode1"},
		},
		{
			name: "duplicates collapse",
			keys: map[string]string{
				service.KeyBeaconNodes: "http://ethnode1-consensus:5052,http://ethnode1-consensus:5053",
			},
			want: []string{"ethnode1"},
		},
		{
			name: "no endpoints no refs",
			keys: nil,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := inst("validator1", service.KindValidator, tt.keys)
			got := EthnodeRefs(v, fleet)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPruneEthnodeRef(t *testing.T) {
	cfg := envfile.New()
	cfg.Set(service.KeyBeaconNodes, "http://ethnode1-consensus:5052,http://ethnode2-consensus:5052")
	cfg.Set(service.KeyEthnodeRefs, "ethnode1,ethnode2")

	require.True(t, PruneEthnodeRef(cfg, "ethnode1"))

	endpoints, _ := cfg.Get(service.KeyBeaconNodes)
	assert.Equal(t, "http://ethnode2-consensus:5052", endpoints)
	refs, _ := cfg.Get(service.KeyEthnodeRefs)
	assert.Equal(t, "ethnode2", refs)

	assert.False(t, PruneEthnodeRef(cfg, "ethnode1"), "second prune is a no-op")
}

func TestPruneEthnodeRef_UntouchedConfig(t *testing.T) {
	cfg := envfile.New()
	cfg.Set(service.KeyBeaconNodes, "http://ethnode2-consensus:5052")

	assert.False(t, PruneEthnodeRef(cfg, "ethnode1"))
	endpoints, _ := cfg.Get(service.KeyBeaconNodes)
	assert.Equal(t, "http://ethnode2-consensus:5052", endpoints)
}

func TestEndpointHost(t *testing.T) {
	tests := []struct {
		endpoint string
		want     string
	}{
		{"http://ethnode1-consensus:5052", "ethnode1-consensus"},
		{"ethnode1-consensus:5052", "ethnode1-consensus"},
		{"ethnode1-consensus", "ethnode1-consensus"},
		{"https://ethnode1-consensus:5052/eth/v1", "ethnode1-consensus"},
		{" http://ethnode1-consensus:5052 ", "ethnode1-consensus"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, endpointHost(tt.endpoint), "endpoint %q", tt.endpoint)
	}
}
