package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// envPrefix is prepended to the env tags of fields that can be overridden
// from the environment.
const envPrefix = "WALLET_"

// Connector types supported by the ethereum provider.
const (
	ConnectorPrivateKey = "private_key"
	ConnectorKeystore   = "keystore"
)

// Config represents the wallet API configuration
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Ethereum     EthereumConfig     `yaml:"ethereum"`
	Contracts    ContractsConfig    `yaml:"contracts"`
	Connectors   []ConnectorConfig  `yaml:"connectors" validate:"required,min=1,unique=ID,dive"`
	Reader       ReaderConfig       `yaml:"reader"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	SBT          SBTConfig          `yaml:"sbt"`
	Auth         AuthConfig         `yaml:"auth"`
	Monitoring   MonitoringConfig   `yaml:"monitoring"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host            string        `yaml:"host" default:"0.0.0.0"`
	Port            int           `yaml:"port" default:"8080" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"30s"`
}

// DatabaseConfig contains database connection settings. When disabled the
// last-used connector is remembered in memory only.
type DatabaseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host" env:"DATABASE_HOST" default:"localhost" validate:"required_if=Enabled true"`
	Port     int    `yaml:"port" default:"5432"`
	User     string `yaml:"user" env:"DATABASE_USER" validate:"required_if=Enabled true"`
	Password string `yaml:"password" env:"DATABASE_PASSWORD"`
	Database string `yaml:"database" default:"wallet"`
	SSLMode  string `yaml:"ssl_mode" default:"disable" validate:"oneof=disable require verify-ca verify-full"`
}

// EthereumConfig contains node connection and transaction settings
type EthereumConfig struct {
	RPCURL          string        `yaml:"rpc_url" env:"ETHEREUM_RPC_URL" validate:"required,url"`
	WSURL           string        `yaml:"ws_url" env:"ETHEREUM_WS_URL" validate:"omitempty,url"`
	ChainID         int64         `yaml:"chain_id" default:"337" validate:"min=1"`
	GasLimit        uint64        `yaml:"gas_limit"`
	MaxGasPrice     string        `yaml:"max_gas_price" validate:"omitempty,numeric"`
	PollingInterval time.Duration `yaml:"polling_interval" default:"2s"`
	LookbackBlocks  uint64        `yaml:"lookback_blocks"`
	RequestTimeout  time.Duration `yaml:"request_timeout" default:"15s"`
}

// ContractsConfig contains the deployed contract addresses
type ContractsConfig struct {
	Faucet string `yaml:"faucet" env:"CONTRACTS_FAUCET" validate:"required,eth_addr"`
	SBT    string `yaml:"sbt" env:"CONTRACTS_SBT" validate:"omitempty,eth_addr"`
}

// ConnectorConfig describes one wallet connector. Keys are never stored in
// the file itself; private_key_env and passphrase_env name environment
// variables that hold them.
type ConnectorConfig struct {
	ID            string `yaml:"id" validate:"required"`
	Name          string `yaml:"name"`
	Type          string `yaml:"type" validate:"required,oneof=private_key keystore"`
	PrivateKeyEnv string `yaml:"private_key_env" validate:"required_if=Type private_key"`
	KeystorePath  string `yaml:"keystore_path" validate:"required_if=Type keystore"`
	PassphraseEnv string `yaml:"passphrase_env"`
}

// ReaderConfig contains contract state refresh settings
type ReaderConfig struct {
	RefreshInterval time.Duration `yaml:"refresh_interval" default:"30s"`
	FetchTimeout    time.Duration `yaml:"fetch_timeout" default:"10s"`
}

// OrchestratorConfig contains transaction confirmation settings
type OrchestratorConfig struct {
	PollInterval  time.Duration `yaml:"poll_interval" default:"2s"`
	MaxPolls      int           `yaml:"max_polls" default:"5" validate:"min=1"`
	SubmitTimeout time.Duration `yaml:"submit_timeout" default:"60s"`
}

// SBTConfig contains soul-bound token metadata defaults
type SBTConfig struct {
	NamePrefix   string `yaml:"name_prefix" default:"Mytestbct SBT"`
	Description  string `yaml:"description" default:"Soul-bound token"`
	DefaultImage string `yaml:"default_image"`
}

// AuthConfig contains JWKS configuration for JWT validation on mutating routes.
// An empty JWKSURL disables the guard.
type AuthConfig struct {
	JWKSURL string `yaml:"jwks_url" env:"AUTH_JWKS_URL" validate:"omitempty,url"`
	Issuer  string `yaml:"issuer"`
}

// MonitoringConfig contains monitoring and metrics settings
type MonitoringConfig struct {
	Enabled     *bool  `yaml:"enabled" default:"true"`
	MetricsPath string `yaml:"metrics_path" default:"/metrics"`
}

// MetricsEnabled reports whether the metrics endpoint is served.
func (m MonitoringConfig) MetricsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format     string `yaml:"format" default:"json" validate:"oneof=json console"`
	OutputPath string `yaml:"output_path" default:"stdout"`
}

// Load loads configuration from file, expanding ${VAR} references, then
// applies defaults, environment overrides and validation.
func Load(configPath string) (*Config, error) {
	raw, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(raw)
}

// Parse builds a Config from YAML bytes.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply config defaults: %w", err)
	}
	for i := range cfg.Connectors {
		if err := defaults.Set(&cfg.Connectors[i]); err != nil {
			return nil, fmt.Errorf("failed to apply connector defaults: %w", err)
		}
		if cfg.Connectors[i].Name == "" {
			cfg.Connectors[i].Name = cfg.Connectors[i].ID
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate runs struct validation on cfg.
func Validate(cfg *Config) error {
	return validator.New(validator.WithRequiredStructEnabled()).Struct(cfg)
}

// ConnectorByID returns the connector with the given id.
func (c *Config) ConnectorByID(id string) (ConnectorConfig, bool) {
	for _, conn := range c.Connectors {
		if conn.ID == id {
			return conn, true
		}
	}
	return ConnectorConfig{}, false
}
