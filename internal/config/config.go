// Package config defines the exchange daemon configuration and loads it
// from a TOML file with EXCHANGE_* environment overrides.
package config

import (
	"fmt"
	"strings"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by EXCHANGE_* environment
// variables.
type Config struct {
	Pairs    []string       `toml:"pairs"` // "EUR/USD"
	LogLevel string         `toml:"log_level"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	Kafka    KafkaConfig    `toml:"kafka"`
	Engine   EngineConfig   `toml:"engine"`
}

// PostgresConfig holds ledger database connection parameters.
type PostgresConfig struct {
	DSN      string `toml:"dsn"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Database string `toml:"database"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	SSLMode  string `toml:"ssl_mode"`
}

// RedisConfig holds the optional settlement cache parameters. An empty Addr
// disables the cache.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// KafkaConfig holds event and command channel parameters.
type KafkaConfig struct {
	Brokers      []string `toml:"brokers"`
	TradeTopic   string   `toml:"trade_topic"`
	CommandTopic string   `toml:"command_topic"`
	GroupID      string   `toml:"group_id"`
}

// EngineConfig holds matching engine tunables.
type EngineConfig struct {
	RecentTradeCap int `toml:"recent_trade_cap"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Pairs:    []string{"EUR/USD"},
		LogLevel: "info",
		Postgres: PostgresConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "exchange",
			User:     "exchange",
			SSLMode:  "disable",
		},
		Kafka: KafkaConfig{
			Brokers:      []string{"localhost:9092"},
			TradeTopic:   "trades",
			CommandTopic: "trade-commands",
			GroupID:      "settlement",
		},
		Engine: EngineConfig{
			RecentTradeCap: 256,
		},
	}
}

// DSN builds a PostgreSQL connection string from the config, preferring an
// explicit DSN.
func (c PostgresConfig) BuildDSN() string {
	if strings.TrimSpace(c.DSN) != "" {
		return c.DSN
	}

	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	port := c.Port
	if port == 0 {
		port = 5432
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, port, c.Database, sslMode,
	)
}

// ParsePair splits a "BASE/QUOTE" pair into its currencies.
func ParsePair(pair string) (base, quote string, err error) {
	parts := strings.Split(pair, "/")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("config: malformed pair %q, want BASE/QUOTE", pair)
	}

	base = strings.TrimSpace(parts[0])
	quote = strings.TrimSpace(parts[1])
	if len(base) != 3 || len(quote) != 3 {
		return "", "", fmt.Errorf("config: pair %q currencies must be 3-letter codes", pair)
	}
	return strings.ToUpper(base), strings.ToUpper(quote), nil
}

// Validate checks the configuration for obvious mistakes.
func (c *Config) Validate() error {
	if len(c.Pairs) == 0 {
		return fmt.Errorf("config: at least one currency pair is required")
	}
	for _, pair := range c.Pairs {
		if _, _, err := ParsePair(pair); err != nil {
			return err
		}
	}
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("config: at least one kafka broker is required")
	}
	if c.Kafka.TradeTopic == "" || c.Kafka.CommandTopic == "" {
		return fmt.Errorf("config: kafka trade_topic and command_topic are required")
	}
	if c.Kafka.GroupID == "" {
		return fmt.Errorf("config: kafka group_id is required")
	}
	return nil
}
