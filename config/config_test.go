package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ruteri/collection-provisioning-backend/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const exampleConfig = `
creators:
  - 0x0123456789abcdef0123456789abcdef01234567
  - 89abcdef0123456789abcdef0123456789abcdef
storage:
  - file:///var/lib/collections
  - s3://bucket/collections?region=eu-west-1
issuer:
  kind: onchain
  rpc_addr: http://127.0.0.1:8545
  contract: 0x00000000000000000000000000000000000000c0
  private_key: 4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318
  chain_id: 1337
  poll_interval: 500ms
workers: 8
`

func TestLoadFromBytes(t *testing.T) {
	cfg, err := LoadFromBytes([]byte(exampleConfig))
	require.NoError(t, err)

	creators, err := cfg.CreatorAddresses()
	require.NoError(t, err)
	require.Len(t, creators, 2)
	assert.Equal(t, "0123456789abcdef0123456789abcdef01234567", creators[0].String())

	locs, err := cfg.StorageLocations()
	require.NoError(t, err)
	require.Len(t, locs, 2)
	assert.Equal(t, "s3", locs[1].Scheme)

	assert.Equal(t, IssuerOnchain, cfg.Issuer.Kind)
	assert.Equal(t, int64(1337), cfg.Issuer.ChainID)
	assert.Equal(t, 500*time.Millisecond, cfg.Issuer.PollInterval)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, DefaultQueueSize, cfg.QueueSize)
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`creators: []`))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, IssuerSimulated, cfg.Issuer.Kind)
	assert.Equal(t, DefaultWorkers, cfg.Workers)
	assert.Equal(t, []string{"memory://default"}, cfg.Storage)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad creator", "creators: [\"0x1234\"]"},
		{"bad storage", "storage: [\"ftp://host/path\"]"},
		{"unknown issuer", "issuer: {kind: carrier-pigeon}"},
		{"onchain without rpc", "issuer: {kind: onchain, contract: \"0x00000000000000000000000000000000000000c0\", private_key: aa}"},
		{"onchain bad contract", "issuer: {kind: onchain, rpc_addr: \"http://x\", contract: nope, private_key: aa}"},
		{"onchain without key", "issuer: {kind: onchain, rpc_addr: \"http://x\", contract: \"0x00000000000000000000000000000000000000c0\"}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromBytes([]byte(tt.yaml))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	_, err := LoadFromBytes([]byte("creators: {not: a list}"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("creators: [\"0x0123456789abcdef0123456789abcdef01234567\"]\nworkers: 2\n"), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Workers)

	creators, err := cfg.CreatorAddresses()
	require.NoError(t, err)
	assert.Equal(t, []interfaces.Address{{0x01, 0x23, 0x45, 0x67, 0x89, 0xab, 0xcd, 0xef, 0x01, 0x23, 0x45, 0x67, 0x89, 0xab, 0xcd, 0xef, 0x01, 0x23, 0x45, 0x67}}, creators)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
