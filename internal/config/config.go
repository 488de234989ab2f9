package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode        string `mapstructure:"mode"`
	Port        int    `mapstructure:"port"`
	Secret      string `mapstructure:"secret"`
	DatabaseDSN string `mapstructure:"database_dsn"`
	// RedisAddr empty means single-process mode: in-memory presence and
	// in-process broadcast only.
	RedisAddr string `mapstructure:"redis_addr"`

	ReadLimit int64 `mapstructure:"read_limit"`
	SendQueue int   `mapstructure:"send_queue"`

	HeartbeatInterval  time.Duration `mapstructure:"heartbeat_interval"`
	StalenessThreshold time.Duration `mapstructure:"staleness_threshold"`
	DisconnectGrace    time.Duration `mapstructure:"disconnect_grace"`
	JoinDebounce       time.Duration `mapstructure:"join_debounce"`
	PresenceTTL        time.Duration `mapstructure:"presence_ttl"`

	MaxMessageLen int           `mapstructure:"max_message_len"`
	TokenTTL      time.Duration `mapstructure:"token_ttl"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("database_dsn", "everspace.db")
	v.SetDefault("redis_addr", "")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("send_queue", 32)
	v.SetDefault("heartbeat_interval", "30s")
	v.SetDefault("staleness_threshold", "120s")
	v.SetDefault("disconnect_grace", "3s")
	v.SetDefault("join_debounce", "10s")
	v.SetDefault("presence_ttl", "1h")
	v.SetDefault("max_message_len", 1000)
	v.SetDefault("token_ttl", "24h")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("config file not found (%s), using defaults\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
