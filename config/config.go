package config

import (
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	DBType           string `mapstructure:"DB_TYPE"` // sqlite, postgres, mysql
	DSN              string `mapstructure:"DSN"`
	SkipAutoMigrate  bool   `mapstructure:"SKIP_AUTO_MIGRATE"`
	LogLevel         string `mapstructure:"LOG_LEVEL"`
	Port             int    `mapstructure:"PORT"`
	StrategyCache    int    `mapstructure:"STRATEGY_CACHE_SIZE"`
	TelemetryEnabled bool   `mapstructure:"TELEMETRY_ENABLED"`
	AuditEnabled     bool   `mapstructure:"AUDIT_ENABLED"`
}

func LoadConfig() (*Config, error) {
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("PORT", 8080)
	viper.SetDefault("DB_TYPE", "sqlite")
	viper.SetDefault("DSN", "warden.db")
	viper.SetDefault("SKIP_AUTO_MIGRATE", false)
	viper.SetDefault("STRATEGY_CACHE_SIZE", 256)
	viper.SetDefault("TELEMETRY_ENABLED", true)
	viper.SetDefault("AUDIT_ENABLED", true)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
