// Package config загружает конфигурацию сервиса из TOML файла и переменных окружения.
// Переменные окружения имеют приоритет над файлом
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	"latency-chart-service/internal/history"
	"latency-chart-service/internal/monitor"
	"latency-chart-service/internal/session"
)

// Бэкенды хранилища истории
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Duration длительность в виде строки "15s" в TOML
type Duration struct {
	time.Duration
}

// UnmarshalText разбирает длительность для TOML
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// Config содержит конфигурацию сервиса
type Config struct {
	ServerAddr string `toml:"server-addr"`

	StoreBackend      string   `toml:"store-backend"`
	RedisAddr         string   `toml:"redis-addr"`
	RedisPassword     string   `toml:"redis-password"`
	RedisDB           int      `toml:"redis-db"`
	PostgresDSN       string   `toml:"postgres-dsn"`
	HistoryRetention  Duration `toml:"history-retention"`
	HistoryMaxSamples int      `toml:"history-max-samples"`

	MaxSessions  int      `toml:"max-sessions"`
	FetchRate    float64  `toml:"fetch-rate"`
	FetchBurst   int      `toml:"fetch-burst"`
	FetchTimeout Duration `toml:"fetch-timeout"`
	// UpstreamURL внешний сервис истории. Пусто - обновление из локального хранилища
	UpstreamURL string `toml:"upstream-url"`

	// MonitorSchedule расписание cron для проверок целей, например "@every 1m"
	MonitorSchedule    string   `toml:"monitor-schedule"`
	MonitorConcurrency int      `toml:"monitor-concurrency"`
	CheckTimeout       Duration `toml:"check-timeout"`

	ReadTimeout     Duration `toml:"read-timeout"`
	WriteTimeout    Duration `toml:"write-timeout"`
	IdleTimeout     Duration `toml:"idle-timeout"`
	ShutdownTimeout Duration `toml:"shutdown-timeout"`
}

// Default возвращает конфигурацию по умолчанию
func Default() Config {
	return Config{
		ServerAddr:         ":8080",
		StoreBackend:       BackendMemory,
		RedisAddr:          "localhost:6379",
		HistoryRetention:   Duration{history.DefaultRetention},
		HistoryMaxSamples:  history.DefaultMaxSamples,
		MaxSessions:        session.DefaultMaxSessions,
		FetchRate:          20,
		FetchBurst:         5,
		FetchTimeout:       Duration{10 * time.Second},
		MonitorSchedule:    monitor.DefaultSchedule,
		MonitorConcurrency: 4,
		CheckTimeout:       Duration{monitor.DefaultTimeout},
		ReadTimeout:        Duration{15 * time.Second},
		WriteTimeout:       Duration{15 * time.Second},
		IdleTimeout:        Duration{60 * time.Second},
		ShutdownTimeout:    Duration{30 * time.Second},
	}
}

// Load читает файл path (если задан), затем переменные окружения
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.ServerAddr = getEnv("SERVER_ADDR", c.ServerAddr)

	c.StoreBackend = getEnv("STORE_BACKEND", c.StoreBackend)
	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = getEnvInt("REDIS_DB", c.RedisDB)
	c.PostgresDSN = getEnv("POSTGRES_DSN", c.PostgresDSN)
	c.HistoryRetention.Duration = getEnvDuration("HISTORY_RETENTION", c.HistoryRetention.Duration)
	c.HistoryMaxSamples = getEnvInt("HISTORY_MAX_SAMPLES", c.HistoryMaxSamples)

	c.MaxSessions = getEnvInt("MAX_SESSIONS", c.MaxSessions)
	c.FetchRate = getEnvFloat("FETCH_RATE", c.FetchRate)
	c.FetchBurst = getEnvInt("FETCH_BURST", c.FetchBurst)
	c.FetchTimeout.Duration = getEnvDuration("FETCH_TIMEOUT", c.FetchTimeout.Duration)
	c.UpstreamURL = getEnv("UPSTREAM_URL", c.UpstreamURL)

	c.MonitorSchedule = getEnv("MONITOR_SCHEDULE", c.MonitorSchedule)
	c.MonitorConcurrency = getEnvInt("MONITOR_CONCURRENCY", c.MonitorConcurrency)
	c.CheckTimeout.Duration = getEnvDuration("CHECK_TIMEOUT", c.CheckTimeout.Duration)

	c.ReadTimeout.Duration = getEnvDuration("READ_TIMEOUT", c.ReadTimeout.Duration)
	c.WriteTimeout.Duration = getEnvDuration("WRITE_TIMEOUT", c.WriteTimeout.Duration)
	c.IdleTimeout.Duration = getEnvDuration("IDLE_TIMEOUT", c.IdleTimeout.Duration)
	c.ShutdownTimeout.Duration = getEnvDuration("SHUTDOWN_TIMEOUT", c.ShutdownTimeout.Duration)
}

// Validate проверяет согласованность настроек
func (c Config) Validate() error {
	switch c.StoreBackend {
	case BackendMemory, BackendRedis:
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("postgres-dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.StoreBackend)
	}
	if c.ServerAddr == "" {
		return fmt.Errorf("server-addr is empty")
	}
	if c.MaxSessions <= 0 {
		return fmt.Errorf("max-sessions must be positive, got %d", c.MaxSessions)
	}
	if c.MonitorConcurrency <= 0 {
		return fmt.Errorf("monitor-concurrency must be positive, got %d", c.MonitorConcurrency)
	}
	if c.FetchBurst < 0 {
		return fmt.Errorf("fetch-burst must not be negative, got %d", c.FetchBurst)
	}
	return nil
}

// HistoryOptions ограничения хранения для хранилища истории
func (c Config) HistoryOptions() history.Options {
	return history.Options{
		Retention:  c.HistoryRetention.Duration,
		MaxSamples: c.HistoryMaxSamples,
	}
}

// getEnv получает переменную окружения с значением по умолчанию
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt получает целочисленную переменную окружения
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Config: ignoring %s=%q: %v", key, value, err)
		return defaultValue
	}
	return n
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		log.Printf("Config: ignoring %s=%q: %v", key, value, err)
		return defaultValue
	}
	return f
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Config: ignoring %s=%q: %v", key, value, err)
		return defaultValue
	}
	return d
}
