package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Booking  BookingConfig  `yaml:"booking"`
	Worker   WorkerConfig   `yaml:"worker"`
}

type HTTPConfig struct {
	Address string `yaml:"address"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers            []string `yaml:"brokers"`
	BookingTopic       string   `yaml:"booking_topic"`
	ResourceTopic      string   `yaml:"resource_topic"`
	NotificationsTopic string   `yaml:"notifications_topic"`
	GroupID            string   `yaml:"group_id"`
}

type BookingConfig struct {
	ResourcesCacheTTL  int `yaml:"resources_cache_ttl_seconds"`
	TxRetries          int `yaml:"tx_retries"`
	TxBackoffMillis    int `yaml:"tx_backoff_millis"`
	TransferLockTTLSec int `yaml:"transfer_lock_ttl_seconds"`
}

type WorkerConfig struct {
	DeadlineSweepMinutes int `yaml:"deadline_sweep_minutes"`
	StatusSweepMinutes   int `yaml:"status_sweep_minutes"`
	BatchSize            int `yaml:"batch_size"`
	Workers              int `yaml:"workers"`
	ItemRetries          int `yaml:"item_retries"`
	ItemBackoffMillis    int `yaml:"item_backoff_millis"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Secrets may come from the environment instead of the file.
	if pw := os.Getenv("DATABASE_PASSWORD"); pw != "" {
		cfg.Database.Password = pw
	}
	if pw := os.Getenv("REDIS_PASSWORD"); pw != "" {
		cfg.Redis.Password = pw
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Booking.TxRetries == 0 {
		cfg.Booking.TxRetries = 3
	}
	if cfg.Booking.TxBackoffMillis == 0 {
		cfg.Booking.TxBackoffMillis = 100
	}
	if cfg.Booking.TransferLockTTLSec == 0 {
		cfg.Booking.TransferLockTTLSec = 30
	}
	if cfg.Worker.DeadlineSweepMinutes == 0 {
		cfg.Worker.DeadlineSweepMinutes = 1
	}
	if cfg.Worker.StatusSweepMinutes == 0 {
		cfg.Worker.StatusSweepMinutes = 1
	}
	if cfg.Worker.BatchSize == 0 {
		cfg.Worker.BatchSize = 100
	}
	if cfg.Worker.Workers == 0 {
		cfg.Worker.Workers = 4
	}
	if cfg.Worker.ItemRetries == 0 {
		cfg.Worker.ItemRetries = 2
	}
	if cfg.Worker.ItemBackoffMillis == 0 {
		cfg.Worker.ItemBackoffMillis = 250
	}
}
