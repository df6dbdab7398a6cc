package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads the configuration file at path, applying defaults first and
// EXCHANGE_* environment overrides last. An empty path skips the file and
// uses defaults plus environment only. A .env file in the working directory
// is loaded if present.
func Load(path string) (Config, error) {
	// Missing .env is not an error.
	_ = godotenv.Load()

	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv("EXCHANGE_PAIRS"); ok {
		c.Pairs = splitList(v)
	}
	setStr(&c.LogLevel, "EXCHANGE_LOG_LEVEL")

	setStr(&c.Postgres.DSN, "EXCHANGE_POSTGRES_DSN")
	setStr(&c.Postgres.Host, "EXCHANGE_POSTGRES_HOST")
	setInt(&c.Postgres.Port, "EXCHANGE_POSTGRES_PORT")
	setStr(&c.Postgres.Database, "EXCHANGE_POSTGRES_DATABASE")
	setStr(&c.Postgres.User, "EXCHANGE_POSTGRES_USER")
	setStr(&c.Postgres.Password, "EXCHANGE_POSTGRES_PASSWORD")
	setStr(&c.Postgres.SSLMode, "EXCHANGE_POSTGRES_SSL_MODE")

	setStr(&c.Redis.Addr, "EXCHANGE_REDIS_ADDR")
	setStr(&c.Redis.Password, "EXCHANGE_REDIS_PASSWORD")
	setInt(&c.Redis.DB, "EXCHANGE_REDIS_DB")

	if v, ok := os.LookupEnv("EXCHANGE_KAFKA_BROKERS"); ok {
		c.Kafka.Brokers = splitList(v)
	}
	setStr(&c.Kafka.TradeTopic, "EXCHANGE_KAFKA_TRADE_TOPIC")
	setStr(&c.Kafka.CommandTopic, "EXCHANGE_KAFKA_COMMAND_TOPIC")
	setStr(&c.Kafka.GroupID, "EXCHANGE_KAFKA_GROUP_ID")

	setInt(&c.Engine.RecentTradeCap, "EXCHANGE_ENGINE_RECENT_TRADE_CAP")
}

func setStr(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
