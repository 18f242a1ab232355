package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type PortalConfig struct {
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
	Minio    MinioConfig    `yaml:"minio"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Auth     AuthConfig     `yaml:"auth"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Workers  WorkerConfig   `yaml:"workers"`
	Log      LogConfig      `yaml:"log"`
	Review   ReviewConfig   `yaml:"review"`
}

type ServerConfig struct {
	Port      string `yaml:"port"`
	// Shared secret of the payment callback.
	APIKey    string `yaml:"api_key"`
	BodyLimit int    `yaml:"body_limit"`
}

type StoreConfig struct {
	// postgres or memory
	Driver      string   `yaml:"driver"`
	DevAdminIDs []string `yaml:"dev_admin_ids"`
}

type PostgresConfig struct {
	DBname   string `yaml:"db"`
	Username string `yaml:"user"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the lib/pq connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.Username, c.Password, c.DBname, c.SSLMode)
}

type RedisConfig struct {
	// Empty host disables the catalog cache.
	Host     string        `yaml:"host"`
	Port     string        `yaml:"port"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	CacheTTL time.Duration `yaml:"catalog_cache_ttl"`
}

type MinioConfig struct {
	// Empty endpoint serves files from StaticBaseURL instead.
	Endpoint      string        `yaml:"endpoint"`
	AccessKey     string        `yaml:"access_key"`
	SecretKey     string        `yaml:"secret_key"`
	Location      string        `yaml:"location"`
	Secure        bool          `yaml:"secure"`
	Bucket        string        `yaml:"bucket"`
	URLTTL        time.Duration `yaml:"url_ttl"`
	StaticBaseURL string        `yaml:"static_base_url"`
}

type RabbitMQConfig struct {
	// Empty host disables publishing; events are only logged.
	Host     string `yaml:"host"`
	Username string `yaml:"user"`
	Password string `yaml:"password"`
	Port     string `yaml:"port"`
	Exchange string `yaml:"exchange"`
}

// URL returns the AMQP connection url.
func (c RabbitMQConfig) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/", c.Username, c.Password, c.Host, c.Port)
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	// Expected iss claim; empty accepts any issuer.
	Issuer    string `yaml:"issuer"`
}

type CatalogConfig struct {
	// YAML catalog used by the memory store.
	File string `yaml:"file"`
}

type WorkerConfig struct {
	Count     int `yaml:"count"`
	QueueSize int `yaml:"queue_size"`
}

type LogConfig struct {
	Mode string `yaml:"mode"`
}

type ReviewConfig struct {
	FileBatchConcurrency int `yaml:"file_batch_concurrency"`
	// Upload limits. An empty list falls back to the portal defaults.
	MaxFileSize      int64    `yaml:"max_file_size"`
	AllowedFileTypes []string `yaml:"allowed_file_types"`
}

func New() *PortalConfig {
	return &PortalConfig{
		Server: ServerConfig{
			Port:      getEnvOrDefault("PORT", "8080"),
			APIKey:    getEnvOrDefault("API_KEY", ""),
			BodyLimit: getEnvInt("BODY_LIMIT", 12*1024*1024),
		},
		Store: StoreConfig{
			Driver:      getEnvOrDefault("STORE_DRIVER", "postgres"),
			DevAdminIDs: getEnvList("DEV_ADMIN_IDS"),
		},
		Postgres: PostgresConfig{
			DBname:   getEnvOrDefault("POSTGRES_DB", "camper_portal"),
			Username: getEnvOrDefault("POSTGRES_USER", "postgres"),
			Password: getEnvOrDefault("POSTGRES_PASSWORD", "postgres"),
			Host:     getEnvOrDefault("POSTGRES_HOST", "localhost"),
			Port:     getEnvOrDefault("POSTGRES_PORT", "5432"),
			SSLMode:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnvOrDefault("REDIS_HOST", ""),
			Port:     getEnvOrDefault("REDIS_PORT", "6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			CacheTTL: getEnvDuration("CATALOG_CACHE_TTL", 5*time.Minute),
		},
		Minio: MinioConfig{
			Endpoint:      getEnvOrDefault("MINIO_ENDPOINT", ""),
			AccessKey:     getEnvOrDefault("MINIO_ACCESS_KEY", "minio"),
			SecretKey:     getEnvOrDefault("MINIO_SECRET_KEY", "minio123"),
			Location:      getEnvOrDefault("MINIO_LOCATION", "us-east-1"),
			Secure:        getEnvBool("MINIO_SECURE", false),
			Bucket:        getEnvOrDefault("MINIO_BUCKET", "application-files"),
			URLTTL:        getEnvDuration("FILE_URL_TTL", time.Hour),
			StaticBaseURL: getEnvOrDefault("FILE_STATIC_BASE_URL", "http://localhost:8080/static/"),
		},
		RabbitMQ: RabbitMQConfig{
			Host:     getEnvOrDefault("RABBITMQ_HOST", ""),
			Username: getEnvOrDefault("RABBITMQ_USER", "guest"),
			Password: getEnvOrDefault("RABBITMQ_PWD", "guest"),
			Port:     getEnvOrDefault("RABBITMQ_PORT", "5672"),
			Exchange: getEnvOrDefault("RABBITMQ_EXCHANGE", "camper_portal"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnvOrDefault("JWT_SECRET", ""),
			Issuer:    getEnvOrDefault("JWT_ISSUER", ""),
		},
		Catalog: CatalogConfig{
			File: getEnvOrDefault("CATALOG_FILE", "catalog.yaml"),
		},
		Workers: WorkerConfig{
			Count:     getEnvInt("WORKER_COUNT", 4),
			QueueSize: getEnvInt("WORKER_QUEUE_SIZE", 256),
		},
		Log: LogConfig{
			Mode: getEnvOrDefault("LOG_MODE", "prod"),
		},
		Review: ReviewConfig{
			FileBatchConcurrency: getEnvInt("FILE_BATCH_CONCURRENCY", 8),
			MaxFileSize:          int64(getEnvInt("MAX_FILE_SIZE", 10*1024*1024)),
			AllowedFileTypes:     getEnvList("ALLOWED_FILE_TYPES"),
		},
	}
}

// Load builds the config from the environment and overlays the YAML file at path.
// Keys missing from the file keep their environment value.
func Load(path string) (*PortalConfig, error) {
	cfg := New()
	if path == "" {
		return cfg, cfg.Validate()
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return cfg, cfg.Validate()
}

func (c *PortalConfig) Validate() error {
	switch c.Store.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Workers.Count < 1 || c.Workers.QueueSize < 1 {
		return fmt.Errorf("worker count and queue size must be positive")
	}
	if c.Server.BodyLimit > 0 && int64(c.Server.BodyLimit) < c.Review.MaxFileSize {
		return fmt.Errorf("BODY_LIMIT must be at least MAX_FILE_SIZE")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
