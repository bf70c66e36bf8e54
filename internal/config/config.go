package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port              int           `mapstructure:"port"`
	DBPath            string        `mapstructure:"db_path"`
	EncryptionKey     string        `mapstructure:"encryption_key"`
	MonitorInterval   time.Duration `mapstructure:"monitor_interval"`
	SweepHour         int           `mapstructure:"sweep_hour"`
	WorkerLimit       int           `mapstructure:"worker_limit"`
	DisableMonitoring bool          `mapstructure:"disable_monitoring"`
}

var Default = Config{
	Port:            9200,
	DBPath:          "cronwatch.db",
	MonitorInterval: 5 * time.Minute,
	SweepHour:       2,
	WorkerLimit:     4,
}

func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home dir: %w", err)
	}

	configDir := filepath.Join(home, ".cronwatch")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config dir: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)

	viper.SetDefault("port", Default.Port)
	viper.SetDefault("db_path", Default.DBPath)
	viper.SetDefault("encryption_key", "")
	viper.SetDefault("monitor_interval", Default.MonitorInterval)
	viper.SetDefault("sweep_hour", Default.SweepHour)
	viper.SetDefault("worker_limit", Default.WorkerLimit)
	viper.SetDefault("disable_monitoring", false)

	viper.SetEnvPrefix("CRONWATCH")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if ok := errors.As(err, &notFoundErr); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// RequireEncryptionKey is the startup gate for any command that touches
// stored credentials. The process must not serve without a master key.
func (c *Config) RequireEncryptionKey() error {
	if c.EncryptionKey == "" {
		return fmt.Errorf("encryption key is not set (set CRONWATCH_ENCRYPTION_KEY or encryption_key in config)")
	}
	return nil
}
