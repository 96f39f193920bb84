// Package config loads the pool daemon configuration.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/defistate/cpamm-go/protocols/constantproduct"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"gopkg.in/yaml.v3"
)

const (
	DefaultRPCAddr        = ":8545"
	DefaultRESTAddr       = ":8080"
	DefaultMetricsAddr    = ":9090"
	DefaultMetricsPath    = "/metrics"
	DefaultStreamBuffer   = 64
	DefaultLogLevel       = "info"
	defaultWebsocketRoute = "/ws"
)

// Config is the complete configuration of the pool daemon.
type Config struct {
	LogLevel string         `yaml:"log_level"`
	RPC      RPCConfig      `yaml:"rpc"`
	REST     RESTConfig     `yaml:"rest"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Deployer DeployerConfig `yaml:"deployer"`
	Genesis  []Balance      `yaml:"genesis"`
	Pools    []PoolConfig   `yaml:"pools"`
}

// RPCConfig holds the JSON-RPC server configuration. The websocket endpoint
// carries the state stream.
type RPCConfig struct {
	Addr           string   `yaml:"addr"`
	WebsocketRoute string   `yaml:"websocket_route"`
	CORSOrigins    []string `yaml:"cors_origins"`
	StreamBuffer   uint     `yaml:"stream_buffer"`
}

// RESTConfig holds the quote API configuration. An empty address disables it.
type RESTConfig struct {
	Addr string `yaml:"addr"`
}

// MetricsConfig holds metrics server configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Path    string `yaml:"path"`
}

// DeployerConfig holds the deployer account and its protocol fee settings.
type DeployerConfig struct {
	Address  string `yaml:"address"`
	Owner    string `yaml:"owner"`
	BarFee   uint64 `yaml:"bar_fee"`
	BarFeeTo string `yaml:"bar_fee_to"`
}

// Balance is a genesis credit of Amount (base-10) of Token to Owner.
type Balance struct {
	Token  string `yaml:"token"`
	Owner  string `yaml:"owner"`
	Amount string `yaml:"amount"`
}

// PoolConfig is a pool deployed at startup.
type PoolConfig struct {
	TokenA      string `yaml:"token_a"`
	TokenB      string `yaml:"token_b"`
	SwapFeeBps  uint64 `yaml:"swap_fee_bps"`
	TwapEnabled bool   `yaml:"twap_enabled"`
}

// LoadConfig loads configuration from a YAML file, applies environment
// overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnvOverrides applies environment variable overrides
func (c *Config) applyEnvOverrides() {
	if level := os.Getenv("POOLD_LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
	if addr := os.Getenv("POOLD_RPC_ADDR"); addr != "" {
		c.RPC.Addr = addr
	}
	if addr := os.Getenv("POOLD_REST_ADDR"); addr != "" {
		c.REST.Addr = addr
	}
	if addr := os.Getenv("POOLD_METRICS_ADDR"); addr != "" {
		c.Metrics.Addr = addr
	}
}

// Validate checks the configuration and fills in defaults.
func (c *Config) Validate() error {
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.RPC.Addr == "" {
		c.RPC.Addr = DefaultRPCAddr
	}
	if c.RPC.WebsocketRoute == "" {
		c.RPC.WebsocketRoute = defaultWebsocketRoute
	}
	if !strings.HasPrefix(c.RPC.WebsocketRoute, "/") {
		return fmt.Errorf("rpc websocket_route %q must start with /", c.RPC.WebsocketRoute)
	}
	if c.RPC.StreamBuffer == 0 {
		c.RPC.StreamBuffer = DefaultStreamBuffer
	}
	if c.Metrics.Enabled {
		if c.Metrics.Addr == "" {
			c.Metrics.Addr = DefaultMetricsAddr
		}
		if c.Metrics.Path == "" {
			c.Metrics.Path = DefaultMetricsPath
		}
	}

	if err := validateAddress("deployer address", c.Deployer.Address, false); err != nil {
		return err
	}
	if err := validateAddress("deployer owner", c.Deployer.Owner, true); err != nil {
		return err
	}
	if err := validateAddress("deployer bar_fee_to", c.Deployer.BarFeeTo, true); err != nil {
		return err
	}
	if c.Deployer.BarFee > constantproduct.MaxFee {
		return fmt.Errorf("deployer bar_fee %d exceeds %d", c.Deployer.BarFee, constantproduct.MaxFee)
	}

	for i, b := range c.Genesis {
		if err := validateAddress(fmt.Sprintf("genesis[%d] token", i), b.Token, false); err != nil {
			return err
		}
		if err := validateAddress(fmt.Sprintf("genesis[%d] owner", i), b.Owner, false); err != nil {
			return err
		}
		if _, err := uint256.FromDecimal(b.Amount); err != nil {
			return fmt.Errorf("genesis[%d] amount %q: %w", i, b.Amount, err)
		}
	}

	// token and fee checks are left to the deployer so its errors surface unchanged
	for i, p := range c.Pools {
		if err := validateAddress(fmt.Sprintf("pools[%d] token_a", i), p.TokenA, false); err != nil {
			return err
		}
		if err := validateAddress(fmt.Sprintf("pools[%d] token_b", i), p.TokenB, false); err != nil {
			return err
		}
	}
	return nil
}

func validateAddress(field, value string, optional bool) error {
	if value == "" {
		if optional {
			return nil
		}
		return fmt.Errorf("%s is required", field)
	}
	if !common.IsHexAddress(value) {
		return fmt.Errorf("%s %q is not a hex address", field, value)
	}
	return nil
}

// DeployData encodes the pool as a deployer payload.
func (p PoolConfig) DeployData() ([]byte, error) {
	return constantproduct.EncodeDeployData(common.HexToAddress(p.TokenA), common.HexToAddress(p.TokenB), p.SwapFeeBps, p.TwapEnabled)
}

// Parse returns the typed balance. The config must have been validated.
func (b Balance) Parse() (token, owner common.Address, amount *uint256.Int, err error) {
	amount, err = uint256.FromDecimal(b.Amount)
	if err != nil {
		return common.Address{}, common.Address{}, nil, fmt.Errorf("invalid genesis amount %q: %w", b.Amount, err)
	}
	return common.HexToAddress(b.Token), common.HexToAddress(b.Owner), amount, nil
}
