// Package config loads runtime settings from the environment, optionally
// layered over a config file named by CONFIG_FILE (any format viper reads).
// Environment variables win over the file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	DBPath string
	Port   int

	// JWTSecret signs audit-feed tokens. Empty disables the feed endpoint.
	JWTSecret string

	// AdminPrincipal is registered as platform admin at startup.
	AdminPrincipal string

	LogLevel slog.Level

	// RedisAddr enables the event stream forwarder when set.
	RedisAddr   string
	RedisStream string
}

// Load reads the configuration. It fails on values that cannot be parsed,
// never on absent ones.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("DB_PATH", "data/resumiro.db")
	v.SetDefault("PORT", 8080)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("REDIS_STREAM", "resumiro:events")

	if p := v.GetString("CONFIG_FILE"); p != "" {
		v.SetConfigFile(p)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", p, err)
		}
	}

	level, err := ParseLevel(v.GetString("LOG_LEVEL"))
	if err != nil {
		return nil, err
	}

	port := v.GetInt("PORT")
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("config: invalid PORT %q", v.GetString("PORT"))
	}

	return &Config{
		DBPath:         v.GetString("DB_PATH"),
		Port:           port,
		JWTSecret:      v.GetString("JWT_SECRET"),
		AdminPrincipal: strings.TrimSpace(v.GetString("ADMIN_PRINCIPAL")),
		LogLevel:       level,
		RedisAddr:      v.GetString("REDIS_ADDR"),
		RedisStream:    v.GetString("REDIS_STREAM"),
	}, nil
}

// ParseLevel accepts debug, info, warn or error in any case.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, errors.Join(fmt.Errorf("config: invalid LOG_LEVEL %q", s), err)
	}
	return level, nil
}
