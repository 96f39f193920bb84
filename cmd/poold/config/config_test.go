package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
log_level: debug
rpc:
  addr: ":18545"
  cors_origins: ["*"]
rest:
  addr: ":18080"
metrics:
  enabled: true
deployer:
  address: "0x00000000000000000000000000000000de9107e5"
  owner: "0x0000000000000000000000000000000000000a11"
  bar_fee: 1667
  bar_fee_to: "0x0000000000000000000000000000000000007ea5"
genesis:
  - token: "0x0000000000000000000000000000000000000001"
    owner: "0x00000000000000000000000000000000000a11ce"
    amount: "1000000000000000000000"
pools:
  - token_a: "0x0000000000000000000000000000000000000001"
    token_b: "0x0000000000000000000000000000000000000002"
    swap_fee_bps: 30
    twap_enabled: true
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Run("should load and default a valid file", func(t *testing.T) {
		cfg, err := LoadConfig(writeConfig(t, validYAML))
		require.NoError(t, err)

		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, ":18545", cfg.RPC.Addr)
		assert.Equal(t, "/ws", cfg.RPC.WebsocketRoute)
		assert.Equal(t, uint(DefaultStreamBuffer), cfg.RPC.StreamBuffer)
		assert.Equal(t, DefaultMetricsAddr, cfg.Metrics.Addr)
		assert.Equal(t, DefaultMetricsPath, cfg.Metrics.Path)
		assert.Equal(t, uint64(1667), cfg.Deployer.BarFee)
		require.Len(t, cfg.Pools, 1)
		assert.True(t, cfg.Pools[0].TwapEnabled)

		token, owner, amount, err := cfg.Genesis[0].Parse()
		require.NoError(t, err)
		assert.Equal(t, common.HexToAddress("0x01"), token)
		assert.Equal(t, common.HexToAddress("0xa11ce"), owner)
		assert.Equal(t, "1000000000000000000000", amount.Dec())

		data, err := cfg.Pools[0].DeployData()
		require.NoError(t, err)
		assert.NotEmpty(t, data)
	})

	t.Run("should apply environment overrides", func(t *testing.T) {
		t.Setenv("POOLD_LOG_LEVEL", "warn")
		t.Setenv("POOLD_RPC_ADDR", ":1")
		t.Setenv("POOLD_REST_ADDR", ":2")

		cfg, err := LoadConfig(writeConfig(t, validYAML))
		require.NoError(t, err)
		assert.Equal(t, "warn", cfg.LogLevel)
		assert.Equal(t, ":1", cfg.RPC.Addr)
		assert.Equal(t, ":2", cfg.REST.Addr)
	})

	t.Run("should fail on a missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})

	t.Run("should fail on malformed yaml", func(t *testing.T) {
		_, err := LoadConfig(writeConfig(t, "rpc: [unclosed"))
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Deployer: DeployerConfig{Address: "0x00000000000000000000000000000000de9107e5"},
		}
	}

	require.NoError(t, func() error { c := valid(); return c.Validate() }())

	testCases := []struct {
		name   string
		mutate func(c *Config)
	}{
		{name: "missing deployer address", mutate: func(c *Config) { c.Deployer.Address = "" }},
		{name: "malformed owner", mutate: func(c *Config) { c.Deployer.Owner = "0xnope" }},
		{name: "bar fee above 100%", mutate: func(c *Config) { c.Deployer.BarFee = 10001 }},
		{name: "websocket route without slash", mutate: func(c *Config) { c.RPC.WebsocketRoute = "ws" }},
		{name: "genesis amount not decimal", mutate: func(c *Config) {
			c.Genesis = []Balance{{Token: "0x0000000000000000000000000000000000000001", Owner: "0x0000000000000000000000000000000000000002", Amount: "ten"}}
		}},
		{name: "genesis without owner", mutate: func(c *Config) {
			c.Genesis = []Balance{{Token: "0x0000000000000000000000000000000000000001", Amount: "1"}}
		}},
		{name: "pool without token", mutate: func(c *Config) { c.Pools = []PoolConfig{{TokenB: "0x0000000000000000000000000000000000000002"}} }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
