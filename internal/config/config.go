package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Cache    CacheConfig    `yaml:"cache"`
	Store    StoreConfig    `yaml:"store"`
	Auth     AuthConfig     `yaml:"auth"`
	Email    EmailConfig    `yaml:"email"`
	Payment  PaymentConfig  `yaml:"payment"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	// PublicBaseURL is used to build absolute links in emails. When empty the
	// request's scheme and host are used instead.
	PublicBaseURL  string   `yaml:"public_base_url"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	URL             string        `yaml:"url"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxConnections  int           `yaml:"max_connections"`
	MinConnections  int           `yaml:"min_connections"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
}

// ConnectionString returns the PostgreSQL connection string. An explicit URL
// wins over the individual fields.
func (c *PostgresConfig) ConnectionString() string {
	if c.URL != "" {
		return c.URL
	}
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, sslMode,
	)
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// KafkaConfig holds Kafka connection configuration
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	// GroupID is a prefix; each instance appends a unique suffix so that
	// every instance sees every event.
	GroupID      string        `yaml:"group_id"`
	Enabled      bool          `yaml:"enabled"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// CacheConfig controls the Redis read-through cache
type CacheConfig struct {
	Enabled         bool          `yaml:"enabled"`
	MatchListTTL    time.Duration `yaml:"match_list_ttl"`
	UserTTL         time.Duration `yaml:"user_ttl"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

// StoreConfig controls how match documents are written
type StoreConfig struct {
	MaxWriteAttempts int `yaml:"max_write_attempts"`
}

// AuthConfig holds token verification settings
type AuthConfig struct {
	JWTSecret   string `yaml:"jwt_secret"`
	TokenHeader string `yaml:"token_header"`
}

// EmailConfig holds the transactional email API settings
type EmailConfig struct {
	APIURL      string        `yaml:"api_url"`
	APIKey      string        `yaml:"api_key"`
	SenderName  string        `yaml:"sender_name"`
	SenderEmail string        `yaml:"sender_email"`
	Timeout     time.Duration `yaml:"timeout"`
}

// PaymentConfig holds UPI and QR settings
type PaymentConfig struct {
	FallbackVPA string `yaml:"fallback_vpa"`
	QREndpoint  string `yaml:"qr_endpoint"`
	QRSize      string `yaml:"qr_size"`
	NotePrefix  string `yaml:"note_prefix"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	// .env is optional; values already in the environment win.
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML configuration, expanding environment variables first.
func Parse(data []byte) (*Config, error) {
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnvOverrides()

	return &cfg, nil
}

// applyEnvOverrides lets secrets come from the environment even when the
// YAML file does not reference them.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DATABASE_URL"); v != "" && c.Postgres.URL == "" {
		c.Postgres.URL = v
	}
	if v := os.Getenv("BREVO_API_KEY"); v != "" && c.Email.APIKey == "" {
		c.Email.APIKey = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" && c.Auth.JWTSecret == "" {
		c.Auth.JWTSecret = v
	}
}

// applyDefaults sets default values for missing configuration
func (c *Config) applyDefaults() {
	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = 5000
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 5 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 15 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 120 * time.Second
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"*"}
	}

	// PostgreSQL defaults
	if c.Postgres.Host == "" {
		c.Postgres.Host = "localhost"
	}
	if c.Postgres.Port == 0 {
		c.Postgres.Port = 5432
	}
	if c.Postgres.Database == "" {
		c.Postgres.Database = "turfwar"
	}
	if c.Postgres.MaxConnections == 0 {
		c.Postgres.MaxConnections = 20
	}
	if c.Postgres.MinConnections == 0 {
		c.Postgres.MinConnections = 2
	}
	if c.Postgres.MaxConnLifetime == 0 {
		c.Postgres.MaxConnLifetime = 1 * time.Hour
	}
	if c.Postgres.MaxConnIdleTime == 0 {
		c.Postgres.MaxConnIdleTime = 30 * time.Minute
	}

	// Redis defaults
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 20
	}
	if c.Redis.MinIdleConns == 0 {
		c.Redis.MinIdleConns = 2
	}
	if c.Redis.DialTimeout == 0 {
		c.Redis.DialTimeout = 5 * time.Second
	}
	if c.Redis.ReadTimeout == 0 {
		c.Redis.ReadTimeout = 3 * time.Second
	}
	if c.Redis.WriteTimeout == 0 {
		c.Redis.WriteTimeout = 3 * time.Second
	}

	// Kafka defaults
	if len(c.Kafka.Brokers) == 0 {
		c.Kafka.Brokers = []string{"localhost:9092"}
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "turfwar-match-events"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "turfwar-live"
	}
	if c.Kafka.WriteTimeout == 0 {
		c.Kafka.WriteTimeout = 5 * time.Second
	}

	// Cache defaults
	if c.Cache.MatchListTTL == 0 {
		c.Cache.MatchListTTL = 5 * time.Minute
	}
	if c.Cache.UserTTL == 0 {
		c.Cache.UserTTL = 15 * time.Minute
	}
	if c.Cache.RefreshInterval == 0 {
		c.Cache.RefreshInterval = 1 * time.Minute
	}

	if c.Store.MaxWriteAttempts == 0 {
		c.Store.MaxWriteAttempts = 3
	}

	if c.Auth.TokenHeader == "" {
		c.Auth.TokenHeader = "x-auth-token"
	}

	// Email defaults
	if c.Email.APIURL == "" {
		c.Email.APIURL = "https://api.brevo.com/v3/smtp/email"
	}
	if c.Email.SenderName == "" {
		c.Email.SenderName = "TurfWar"
	}
	if c.Email.Timeout == 0 {
		c.Email.Timeout = 10 * time.Second
	}

	// Payment defaults
	if c.Payment.FallbackVPA == "" {
		c.Payment.FallbackVPA = "yashwantnagarkar@ibl"
	}
	if c.Payment.QREndpoint == "" {
		c.Payment.QREndpoint = "https://api.qrserver.com/v1/create-qr-code/"
	}
	if c.Payment.QRSize == "" {
		c.Payment.QRSize = "200x200"
	}
	if c.Payment.NotePrefix == "" {
		c.Payment.NotePrefix = "TurfWar"
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// DefaultConfig returns a configuration with all defaults
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnvOverrides()
	cfg.Cache.Enabled = true
	return cfg
}
