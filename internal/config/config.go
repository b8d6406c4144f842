// Package config содержит логику чтения конфигурации сервиса банка отходов.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

const (
	defaultRunAddress     = "localhost:8080"
	defaultWilayahAddress = "https://www.emsifa.com/api-wilayah-indonesia/api"
	defaultLogLevel       = "info"
)

// Config содержит параметры конфигурации сервиса банка отходов.
type Config struct {
	RunAddress     string `env:"RUN_ADDRESS"`
	DatabaseURI    string `env:"DATABASE_URI"`
	WilayahAddress string `env:"WILAYAH_API_ADDRESS"`
	RedisAddress   string `env:"REDIS_ADDRESS"`
	RedisPassword  string `env:"REDIS_PASSWORD"`
	AuthSecret     string `env:"AUTH_SECRET"`
	AdminSecretKey string `env:"ADMIN_SECRET_KEY"`
	GoogleClientID string `env:"GOOGLE_CLIENT_ID"`
	LogLevel       string `env:"LOG_LEVEL"`
	LogFile        string `env:"LOG_FILE"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	envCfg := Config{}
	if err := env.Parse(&envCfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg := &Config{}

	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI, in-memory storage when empty")
	flag.StringVar(&cfg.WilayahAddress, "w", defaultWilayahAddress, "administrative boundary API address")
	flag.StringVar(&cfg.RedisAddress, "r", "", "redis address for the deposit change feed")
	flag.StringVar(&cfg.AuthSecret, "s", "", "session signing secret")
	flag.StringVar(&cfg.AdminSecretKey, "k", "", "admin secret key required to create a waste bank")
	flag.StringVar(&cfg.GoogleClientID, "g", "", "google OAuth client id, federated sign-in disabled when empty")
	flag.StringVar(&cfg.LogLevel, "l", defaultLogLevel, "log level")
	flag.StringVar(&cfg.LogFile, "f", "", "log file path")

	flag.Parse()

	override(&cfg.RunAddress, envCfg.RunAddress)
	override(&cfg.DatabaseURI, envCfg.DatabaseURI)
	override(&cfg.WilayahAddress, envCfg.WilayahAddress)
	override(&cfg.RedisAddress, envCfg.RedisAddress)
	override(&cfg.RedisPassword, envCfg.RedisPassword)
	override(&cfg.AuthSecret, envCfg.AuthSecret)
	override(&cfg.AdminSecretKey, envCfg.AdminSecretKey)
	override(&cfg.GoogleClientID, envCfg.GoogleClientID)
	override(&cfg.LogLevel, envCfg.LogLevel)
	override(&cfg.LogFile, envCfg.LogFile)

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}
	if cfg.WilayahAddress == "" {
		cfg.WilayahAddress = defaultWilayahAddress
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}

	return cfg, nil
}

func override(dst *string, envValue string) {
	if envValue != "" {
		*dst = envValue
	}
}
