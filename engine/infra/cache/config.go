package cache

import (
	"time"

	"github.com/compozy/graphsync/pkg/config"
)

type Config struct {
	URL         string
	Addr        string
	Password    string
	DB          int
	DialTimeout time.Duration
	PingTimeout time.Duration
}

func ConfigFromApp(cfg *config.RedisConfig) *Config {
	return &Config{
		URL:         cfg.URL,
		Addr:        cfg.Addr,
		Password:    cfg.Password.Value(),
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
		PingTimeout: cfg.DialTimeout,
	}
}
