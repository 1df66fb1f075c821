package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWSBaseURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "ws://localhost:8000/rpc", want: "ws://localhost:8000"},
		{in: "ws://localhost:8000", want: "ws://localhost:8000"},
		{in: "wss://db.example.com/rpc/", want: "wss://db.example.com"},
		{in: "http://localhost:8000", want: "ws://localhost:8000"},
		{in: "https://db.example.com/rpc", want: "wss://db.example.com"},
		{in: "", wantErr: true},
		{in: "localhost:8000", wantErr: true},
		{in: "tcp://localhost:8000", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := wsBaseURL(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfigNormalize(t *testing.T) {
	cfg, err := Config{URL: "ws://localhost:8000/rpc"}.normalize()
	require.NoError(t, err)
	assert.Equal(t, DefaultNamespace, cfg.Namespace)
	assert.Equal(t, DefaultDatabase, cfg.Database)
	assert.Equal(t, AuthRoot, cfg.AuthLevel)
	assert.Equal(t, "ws://localhost:8000", cfg.URL)

	cfg, err = Config{URL: "ws://x", Namespace: "ns", Database: "d", AuthLevel: "Database"}.normalize()
	require.NoError(t, err)
	assert.Equal(t, "ns", cfg.Namespace)
	assert.Equal(t, AuthDatabase, cfg.AuthLevel)

	_, err = Config{URL: "ws://x", AuthLevel: "namespace"}.normalize()
	assert.ErrorContains(t, err, "auth level")
}
