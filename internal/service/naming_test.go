package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindForName(t *testing.T) {
	tests := []struct {
		name     string
		expected Kind
	}{
		{"ethnode", KindEthnode},
		{"ethnode2", KindEthnode},
		{"ethnode-goerli", KindEthnode},
		{"validator", KindValidator},
		{"validator3", KindValidator},
		{"web3signer", KindSigner},
		{"monitoring", KindMonitoring},
		{"ssv", KindPlugin},
		{"monitoring2", KindPlugin}, // singletons take the exact name only
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, err := KindForName(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, kind)
		})
	}
}

func TestKindForName_Malformed(t *testing.T) {
	for _, name := range []string{"", "Ethnode", "eth node", "node/one", "-node", "7up"} {
		t.Run("invalid_"+name, func(t *testing.T) {
			_, err := KindForName(name)
			require.Error(t, err)
			assert.True(t, IsConfigurationError(err), "malformed names are configuration errors")
		})
	}
}
