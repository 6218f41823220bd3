package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const (
	defaultListenAddr    = ":3000"
	defaultUploadDir     = "./uploads"
	defaultMaxChunkBytes = 64 << 20
	defaultLogLevel      = "info"
	defaultRetentionTTL  = "24h"
)

type Config struct {
	ListenAddr    string    `yaml:"listen_addr" json:"listen_addr"`
	UploadDir     string    `yaml:"upload_dir" json:"upload_dir"`
	MaxChunkBytes int64     `yaml:"max_chunk_bytes" json:"max_chunk_bytes"`
	LogLevel      string    `yaml:"log_level" json:"log_level"`
	Retention     Retention `yaml:"retention" json:"retention"`
}

// Retention управляет очисткой брошенных загрузок. Пустой Schedule отключает cron.
type Retention struct {
	Schedule string `yaml:"schedule" json:"schedule"`
	TTL      string `yaml:"ttl" json:"ttl"`
}

// TTLDuration разбирает TTL; некорректное значение отдаёт ошибку из Validate.
func (r Retention) TTLDuration() time.Duration {
	d, err := time.ParseDuration(r.TTL)
	if err != nil {
		return 0
	}
	return d
}

// Default возвращает конфигурацию, с которой сервис стартует без config.yaml.
func Default() *Config {
	return &Config{
		ListenAddr:    defaultListenAddr,
		UploadDir:     defaultUploadDir,
		MaxChunkBytes: defaultMaxChunkBytes,
		LogLevel:      defaultLogLevel,
		Retention:     Retention{TTL: defaultRetentionTTL},
	}
}

// Load читает YAML-конфигурацию, применяет ENV-переопределения и возвращает актуальную структуру.
func Load() (*Config, error) {
	c := Default()

	path := getenv("CONFIG_PATH", "./config.yaml")
	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// работаем на дефолтах
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	// ENV override
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("UPLOAD_DIR"); v != "" {
		c.UploadDir = v
	}
	if v := os.Getenv("MAX_CHUNK_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("MAX_CHUNK_BYTES: %w", err)
		}
		c.MaxChunkBytes = n
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("RETENTION_SCHEDULE"); v != "" {
		c.Retention.Schedule = v
	}
	if v := os.Getenv("RETENTION_TTL"); v != "" {
		c.Retention.TTL = v
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}

// Validate проверяет значения, без которых сервис не может работать.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.UploadDir) == "" {
		return fmt.Errorf("upload_dir is empty")
	}
	if c.MaxChunkBytes <= 0 {
		return fmt.Errorf("max_chunk_bytes must be > 0")
	}
	if c.Retention.TTLDuration() <= 0 {
		return fmt.Errorf("retention.ttl %q is not a positive duration", c.Retention.TTL)
	}
	if c.Retention.Schedule != "" {
		if _, err := cron.ParseStandard(c.Retention.Schedule); err != nil {
			return fmt.Errorf("retention.schedule: %w", err)
		}
	}

	return nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}

	return def
}
