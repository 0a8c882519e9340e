package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type UserSeed struct {
	Handle string `mapstructure:"handle"`
	Status string `mapstructure:"status"`
}

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`

	GitHubAPI     string        `mapstructure:"github_api"`
	VerifyTimeout time.Duration `mapstructure:"verify_timeout"`

	PollWindow    time.Duration `mapstructure:"poll_window"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	SendLimit     int           `mapstructure:"send_limit"`
	SendWindow    time.Duration `mapstructure:"send_window"`

	STUNServers []string `mapstructure:"stun_servers"`

	// Static token seeds for running without the external user store.
	Tokens map[string]UserSeed `mapstructure:"tokens"`
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
	v.SetDefault("read_limit", 65536)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("github_api", "https://api.github.com")
	v.SetDefault("verify_timeout", "10s")
	v.SetDefault("poll_window", "90s")
	v.SetDefault("sweep_interval", "30s")
	v.SetDefault("send_limit", 120)
	v.SetDefault("send_window", "10s")
	v.SetDefault("stun_servers", []string{"stun:stun.l.google.com:19302"})

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
