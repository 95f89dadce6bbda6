package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration. Values come from platform.yaml in
// the working directory (optional) overridden by PLATFORM_* environment
// variables.
type Config struct {
	Addr                 string        `mapstructure:"addr"`
	DBPath               string        `mapstructure:"db_path"`
	DBBusyTimeout        time.Duration `mapstructure:"db_busy_timeout"`
	AuthToken            string        `mapstructure:"auth_token"`
	RequestTimeout       time.Duration `mapstructure:"request_timeout"`
	BulkTimeout          time.Duration `mapstructure:"bulk_timeout"`
	SweepInterval        time.Duration `mapstructure:"sweep_interval"`
	AuditRetentionMonths int           `mapstructure:"audit_retention_months"`
}

// Load reads configuration with sensible defaults. A missing config file is
// not an error; a malformed one is.
func Load() (Config, error) {
	v := viper.New()
	v.SetDefault("addr", ":8080")
	v.SetDefault("db_path", "platform.db")
	v.SetDefault("db_busy_timeout", 5*time.Second)
	// AutomaticEnv only resolves keys viper already knows about, so even
	// keys with no meaningful default need one registered.
	v.SetDefault("auth_token", "")
	v.SetDefault("request_timeout", 15*time.Second)
	v.SetDefault("bulk_timeout", 60*time.Second)
	v.SetDefault("sweep_interval", 5*time.Minute)
	v.SetDefault("audit_retention_months", 24)

	v.SetConfigName("platform")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("PLATFORM")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}
