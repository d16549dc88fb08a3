package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config is the process configuration, loaded from config.yaml with
// environment-variable overrides.
type Config struct {
	Server struct {
		ListenAddress string `mapstructure:"listen_address"`
	} `mapstructure:"server"`
	Database struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"database"`
	Auth struct {
		JWTSecret     string `mapstructure:"jwt_secret"`
		JWTExpiration int    `mapstructure:"jwt_expiration"` // minutes
	} `mapstructure:"auth"`
	Log struct {
		Level string `mapstructure:"level"`
		JSON  bool   `mapstructure:"json"`
	} `mapstructure:"log"`
	Alert struct {
		RulesFile string `mapstructure:"rules_file"`
	} `mapstructure:"alert"`
}

// Load reads config.yaml from the given directory. A missing file is not an
// error; defaults and environment variables still apply.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(path)
	v.SetEnvPrefix("HYDRO")
	v.AutomaticEnv()

	v.SetDefault("server.listen_address", ":8000")
	v.SetDefault("database.path", "data/hydro.sqlite")
	v.SetDefault("auth.jwt_expiration", 30)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Auth.JWTSecret == "" {
		return Config{}, fmt.Errorf("auth.jwt_secret must be set")
	}
	return cfg, nil
}
