// Package config содержит логику чтения конфигурации сервиса HelpMED.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации сервиса HelpMED.
type Config struct {
	RunAddress         string  `env:"RUN_ADDRESS"`
	DatabaseURI        string  `env:"DATABASE_URI"`
	NotifyAPIAddress   string  `env:"NOTIFY_API_ADDRESS"`
	AuthSecret         string  `env:"AUTH_SECRET"`
	AdminUsername      string  `env:"ADMIN_USERNAME" envDefault:"admin"`
	AdminPassword      string  `env:"ADMIN_PASSWORD"`
	PersistQueueSize   int     `env:"PERSIST_QUEUE_SIZE" envDefault:"256"`
	LoginRatePerSecond float64 `env:"LOGIN_RATE_PER_SECOND" envDefault:"5"`
	Timezone           string  `env:"TIMEZONE" envDefault:"America/Lima"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envNotifyAddress := cfg.NotifyAPIAddress
	envAuthSecret := cfg.AuthSecret

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.NotifyAPIAddress, "n", "", "notifications API address")
	flag.StringVar(&cfg.AuthSecret, "s", "", "auth cookie signing secret")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envNotifyAddress != "" {
		cfg.NotifyAPIAddress = envNotifyAddress
	}
	if envAuthSecret != "" {
		cfg.AuthSecret = envAuthSecret
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.PersistQueueSize <= 0 {
		return nil, fmt.Errorf("invalid PERSIST_QUEUE_SIZE %d", cfg.PersistQueueSize)
	}
	if cfg.LoginRatePerSecond <= 0 {
		return nil, fmt.Errorf("invalid LOGIN_RATE_PER_SECOND %v", cfg.LoginRatePerSecond)
	}

	return cfg, nil
}

// Location возвращает часовой пояс, в котором считаются периоды отчётов о доходах.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
