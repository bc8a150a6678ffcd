package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App   AppConfig
	DB    DBConfig
	Redis RedisConfig
	Admin AdminConfig
	Sweep SweepConfig
}

type AppConfig struct {
	Port    string
	BaseURL string
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type RedisConfig struct {
	Host string
	Port string
}

// AdminConfig - учётные данные оператора; проверяются на каждом запросе,
// сессий нет
type AdminConfig struct {
	Username string
	Password string
}

type SweepConfig struct {
	Enabled       bool
	Interval      time.Duration
	MaxPendingAge time.Duration
}

func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	cfg.App.Port = viper.GetString("APP_PORT")
	cfg.App.BaseURL = viper.GetString("BASE_URL")
	if cfg.App.BaseURL == "" {
		cfg.App.BaseURL = "http://localhost:" + cfg.App.Port
	}
	cfg.DB.Host = viper.GetString("DB_HOST")
	cfg.DB.Port = viper.GetString("DB_PORT")
	cfg.DB.User = viper.GetString("DB_USER")
	cfg.DB.Password = viper.GetString("DB_PASSWORD")
	cfg.DB.Name = viper.GetString("DB_NAME")
	cfg.Redis.Host = viper.GetString("REDIS_HOST")
	cfg.Redis.Port = viper.GetString("REDIS_PORT")

	cfg.Admin.Username = viper.GetString("ADMIN_USER")
	cfg.Admin.Password = viper.GetString("ADMIN_PASSWORD")

	// Sweep config - фоновая пометка брошенных pending-визитов
	cfg.Sweep.Enabled = viper.GetBool("SWEEP_ENABLED")
	cfg.Sweep.Interval = viper.GetDuration("SWEEP_INTERVAL")
	if cfg.Sweep.Interval == 0 {
		cfg.Sweep.Interval = time.Hour
	}
	cfg.Sweep.MaxPendingAge = viper.GetDuration("SWEEP_MAX_PENDING_AGE")
	if cfg.Sweep.MaxPendingAge == 0 {
		cfg.Sweep.MaxPendingAge = 24 * time.Hour
	}

	return &cfg, nil
}
