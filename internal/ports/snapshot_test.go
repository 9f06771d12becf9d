package ports

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nodectl/internal/envfile"
	"nodectl/internal/service"
)

type mockObserver struct {
	listeningFunc func(ctx context.Context) ([]int, error)
	tokensFunc    func(ctx context.Context) ([]string, error)
}

func (m *mockObserver) ListeningPorts(ctx context.Context) ([]int, error) {
	if m.listeningFunc != nil {
		return m.listeningFunc(ctx)
	}
	return nil, nil
}

func (m *mockObserver) ContainerPortTokens(ctx context.Context) ([]string, error) {
	if m.tokensFunc != nil {
		return m.tokensFunc(ctx)
	}
	return nil, nil
}

type mockInstances struct {
	listFunc func() ([]*service.Instance, error)
}

func (m *mockInstances) List() ([]*service.Instance, error) {
	if m.listFunc != nil {
		return m.listFunc()
	}
	return nil, nil
}

func instanceWithConfig(name string, keys map[string]string) *service.Instance {
	cfg := envfile.New()
	for k, v := range keys {
		cfg.Set(k, v)
	}
	return &service.Instance{Name: name, Kind: service.KindEthnode, Config: cfg}
}

func TestSnapshot_UnionsAllSources(t *testing.T) {
	obs := &mockObserver{
		listeningFunc: func(context.Context) ([]int, error) { return []int{6060, 22}, nil },
		tokensFunc: func(context.Context) ([]string, error) {
			return []string{"8545", "30303-30305", "garbage"}, nil
		},
	}
	instances := &mockInstances{
		listFunc: func() ([]*service.Instance, error) {
			return []*service.Instance{
				instanceWithConfig("ethnode-1", map[string]string{
					"EL_RPC_PORT":  "8550",
					"CL_API_PORT":  "5052",
					"COMPOSE_FILE": "compose.yml",
					"BROKEN_PORT":  "not-a-number",
				}),
			}, nil
		},
	}

	used, err := Snapshot(context.Background(), obs, instances)
	require.NoError(t, err)

	assert.Equal(t, []int{22, 5052, 6060, 8545, 8550, 30303, 30304, 30305}, used.SortedValues())
	assert.False(t, used.Contains(0), "unparseable values contribute nothing")
}

func TestSnapshot_HostListenerErrorIsTolerated(t *testing.T) {
	obs := &mockObserver{
		listeningFunc: func(context.Context) ([]int, error) { return nil, errors.New("ss not found") },
		tokensFunc:    func(context.Context) ([]string, error) { return []string{"8545"}, nil },
	}

	used, err := Snapshot(context.Background(), obs, &mockInstances{})
	require.NoError(t, err)
	assert.Equal(t, []int{8545}, used.SortedValues())
}

func TestSnapshot_ContainerErrorFails(t *testing.T) {
	obs := &mockObserver{
		tokensFunc: func(context.Context) ([]string, error) { return nil, errors.New("docker daemon down") },
	}

	_, err := Snapshot(context.Background(), obs, &mockInstances{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "container port bindings")
}

func TestSnapshot_InstanceListErrorFails(t *testing.T) {
	instances := &mockInstances{
		listFunc: func() ([]*service.Instance, error) { return nil, errors.New("permission denied") },
	}

	_, err := Snapshot(context.Background(), &mockObserver{}, instances)
	require.Error(t, err)
}

func TestExpandPortToken(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		want    []int
		wantErr bool
	}{
		{name: "single port", token: "8545", want: []int{8545}},
		{name: "padded", token: " 8545 ", want: []int{8545}},
		{name: "range", token: "30303-30306", want: []int{30303, 30304, 30305, 30306}},
		{name: "single element range", token: "9000-9000", want: []int{9000}},
		{name: "empty", token: "", want: nil},
		{name: "inverted range", token: "9001-9000", wantErr: true},
		{name: "not a number", token: "http", wantErr: true},
		{name: "half range", token: "9000-", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandPortToken(tt.token)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
