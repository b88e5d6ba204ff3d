// Package config loads engine configuration from an optional YAML file with
// environment variable overrides. Every field has a usable default so the
// engine starts with no file at all: in-memory state, local settlement,
// simulated oracle.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full engine configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Engine EngineConfig `yaml:"engine"`
	Oracle OracleConfig `yaml:"oracle"`
	Store  StoreConfig  `yaml:"store"`
	Kafka  KafkaConfig  `yaml:"kafka"`
	Chain  ChainConfig  `yaml:"chain"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// EngineConfig configures matching, risk, and operator access.
type EngineConfig struct {
	// OperatorToken authorizes privileged endpoints. Empty disables them.
	OperatorToken string `yaml:"operator_token"`

	// SweepInterval is how often matching and liquidation sweeps run.
	SweepInterval time.Duration `yaml:"sweep_interval"`

	// DefaultOrderTTLSecs applies to orders submitted without a TTL.
	DefaultOrderTTLSecs int64 `yaml:"default_order_ttl_secs"`

	// MakerFeeBps and TakerFeeBps are the starting fee rates. Negative
	// means keep the built-in defaults.
	MakerFeeBps int64 `yaml:"maker_fee_bps"`
	TakerFeeBps int64 `yaml:"taker_fee_bps"`
}

// OracleConfig configures the mark price feed.
type OracleConfig struct {
	// StartPrice seeds the feed.
	StartPrice int64 `yaml:"start_price"`

	// Simulate runs the built-in drifting price simulator. Meant for
	// development; production pushes prices through the operator API.
	Simulate bool `yaml:"simulate"`
}

// StoreConfig selects the state backend. An empty PostgresURL means the
// in-memory store; RedisURL adds a read-through cache in front of Postgres.
type StoreConfig struct {
	PostgresURL string        `yaml:"postgres_url"`
	RedisURL    string        `yaml:"redis_url"`
	CacheTTL    time.Duration `yaml:"cache_ttl"`
}

// KafkaConfig configures the durable audit event sink. No brokers means
// events are kept in memory only.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// ChainConfig points at the authoritative settlement contract. All four
// fields must be set for the engine to propagate; otherwise it runs
// local-only with namespaced ids.
type ChainConfig struct {
	RPCURL          string `yaml:"rpc_url"`
	ContractAddress string `yaml:"contract_address"`
	PrivateKey      string `yaml:"private_key"`
	ChainID         int64  `yaml:"chain_id"`
}

// Default returns the configuration the engine runs with when nothing else
// is specified.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Engine: EngineConfig{
			SweepInterval:       500 * time.Millisecond,
			DefaultOrderTTLSecs: 86_400,
			MakerFeeBps:         -1,
			TakerFeeBps:         -1,
		},
		Oracle: OracleConfig{
			StartPrice: 100,
			Simulate:   true,
		},
		Store: StoreConfig{
			CacheTTL: 5 * time.Second,
		},
		Kafka: KafkaConfig{
			Topic: "zeroday.events",
		},
	}
}

// Load reads the YAML file at path (skipped when path is empty or missing)
// over the defaults, then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// No file is fine; defaults plus env carry it.
		case err != nil:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("OPERATOR_TOKEN"); v != "" {
		cfg.Engine.OperatorToken = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Store.PostgresURL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Store.RedisURL = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = splitCommas(v)
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		cfg.Kafka.Topic = v
	}
	if v := os.Getenv("ETH_RPC_URL"); v != "" {
		cfg.Chain.RPCURL = v
	}
	if v := os.Getenv("ETH_CONTRACT_ADDRESS"); v != "" {
		cfg.Chain.ContractAddress = v
	}
	if v := os.Getenv("ETH_PRIVATE_KEY"); v != "" {
		cfg.Chain.PrivateKey = v
	}
	if v := os.Getenv("ETH_CHAIN_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Chain.ChainID = id
		}
	}
}

func splitCommas(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c Config) validate() error {
	if c.Engine.SweepInterval <= 0 {
		return fmt.Errorf("config: sweep_interval must be positive, got %s", c.Engine.SweepInterval)
	}
	if c.Engine.DefaultOrderTTLSecs <= 0 {
		return fmt.Errorf("config: default_order_ttl_secs must be positive, got %d", c.Engine.DefaultOrderTTLSecs)
	}
	if c.Oracle.StartPrice <= 0 {
		return fmt.Errorf("config: oracle start_price must be positive, got %d", c.Oracle.StartPrice)
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return fmt.Errorf("config: kafka brokers set but topic empty")
	}
	return nil
}
