package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Settings holds the runtime settings of the binaries.
type Settings struct {
	BaseURL     string `mapstructure:"base_url" validate:"required,url"`
	ClientKey   string `mapstructure:"client_key" validate:"required"`
	ListenAddr  string `mapstructure:"listen_addr" validate:"required"`
	ReturnURL   string `mapstructure:"return_url" validate:"required"`
	StateStore  string `mapstructure:"state_store" validate:"oneof=memory redis mongo"`
	RedisAddr   string `mapstructure:"redis_addr" validate:"required_if=StateStore redis"`
	MongoURI    string `mapstructure:"mongo_uri" validate:"required_if=StateStore mongo"`
	MongoDB     string `mapstructure:"mongo_db"`
	LogLevel    string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	Environment string `mapstructure:"environment" validate:"oneof=test live"`
}

// Load reads settings from an optional .env file, an optional YAML file named by
// CHECKOUT_CONFIG and CHECKOUT_* environment variables, in increasing precedence.
func Load() (*Settings, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("dotenv_load_failed", "error", err)
	}

	v := viper.New()
	v.SetEnvPrefix("checkout")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("base_url", "http://localhost"+SandboxAddr)
	v.SetDefault("client_key", "test_sandbox_client_key")
	v.SetDefault("listen_addr", SandboxAddr)
	v.SetDefault("return_url", "nimbus-checkout://return")
	v.SetDefault("state_store", "memory")
	v.SetDefault("redis_addr", "")
	v.SetDefault("mongo_uri", "")
	v.SetDefault("mongo_db", "checkout")
	v.SetDefault("log_level", "info")
	v.SetDefault("environment", "test")

	if path := os.Getenv("CHECKOUT_CONFIG"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := validator.New().Struct(s); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &s, nil
}

// SlogLevel maps LogLevel to a slog.Level.
func (s *Settings) SlogLevel() slog.Level {
	switch s.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
