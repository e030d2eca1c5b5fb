package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Sweep    SweepConfig    `yaml:"sweep"`
	Game     GameConfig     `yaml:"game"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int           `yaml:"port"`
	PublicURL    string        `yaml:"public_url"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
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
	ViewTTL      time.Duration `yaml:"view_ttl"`
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
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

// ConnectionString returns the PostgreSQL connection string
func (c *PostgresConfig) ConnectionString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, sslMode,
	)
}

// KafkaConfig holds Kafka connection configuration for board-sync ingestion
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	GroupID string   `yaml:"group_id"`
	Enabled bool     `yaml:"enabled"`
}

// SweepConfig holds expiry sweep configuration
type SweepConfig struct {
	Interval      time.Duration `yaml:"interval"`
	DoneRetention time.Duration `yaml:"done_retention"`
	Enabled       bool          `yaml:"enabled"`
}

// GameConfig holds the fixed match parameters and timing profile.
// The one-minute match duration is the testing profile; a production
// profile lengthens it.
type GameConfig struct {
	Rows              int           `yaml:"rows"`
	Cols              int           `yaml:"cols"`
	ScrambleSwaps     int           `yaml:"scramble_swaps"`
	ImageURL          string        `yaml:"image_url"`
	MatchTTL          time.Duration `yaml:"match_ttl"`
	MatchDuration     time.Duration `yaml:"match_duration"`
	LeadIn            time.Duration `yaml:"lead_in"`
	MemorizeWindow    time.Duration `yaml:"memorize_window"`
	RateLimitInterval time.Duration `yaml:"rate_limit_interval"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults sets default values for missing configuration
func (c *Config) applyDefaults() {
	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.PublicURL == "" {
		c.Server.PublicURL = fmt.Sprintf("http://localhost:%d", c.Server.Port)
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 5 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 120 * time.Second
	}

	// Redis defaults
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 100
	}
	if c.Redis.MinIdleConns == 0 {
		c.Redis.MinIdleConns = 10
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
	if c.Redis.ViewTTL == 0 {
		c.Redis.ViewTTL = 5 * time.Second
	}

	// PostgreSQL defaults
	if c.Postgres.Host == "" {
		c.Postgres.Host = "localhost"
	}
	if c.Postgres.Port == 0 {
		c.Postgres.Port = 5432
	}
	if c.Postgres.MaxConnections == 0 {
		c.Postgres.MaxConnections = 50
	}
	if c.Postgres.MinConnections == 0 {
		c.Postgres.MinConnections = 5
	}
	if c.Postgres.MaxConnLifetime == 0 {
		c.Postgres.MaxConnLifetime = 1 * time.Hour
	}
	if c.Postgres.MaxConnIdleTime == 0 {
		c.Postgres.MaxConnIdleTime = 30 * time.Minute
	}

	// Kafka defaults
	if len(c.Kafka.Brokers) == 0 {
		c.Kafka.Brokers = []string{"localhost:9092"}
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "match-progress"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "match-sync-consumer"
	}

	// Sweep defaults
	if c.Sweep.Interval == 0 {
		c.Sweep.Interval = 60 * time.Second
	}
	if c.Sweep.DoneRetention == 0 {
		c.Sweep.DoneRetention = 120 * time.Second
	}

	// Game defaults
	if c.Game.Rows == 0 {
		c.Game.Rows = 5
	}
	if c.Game.Cols == 0 {
		c.Game.Cols = 5
	}
	if c.Game.ScrambleSwaps == 0 {
		c.Game.ScrambleSwaps = 512
	}
	if c.Game.ImageURL == "" {
		c.Game.ImageURL = "/images/nycimagesquare.jpeg"
	}
	if c.Game.MatchTTL == 0 {
		c.Game.MatchTTL = 20 * time.Minute
	}
	if c.Game.MatchDuration == 0 {
		c.Game.MatchDuration = 1 * time.Minute
	}
	if c.Game.LeadIn == 0 {
		c.Game.LeadIn = 3 * time.Second
	}
	if c.Game.MemorizeWindow == 0 {
		c.Game.MemorizeWindow = 20 * time.Second
	}
	if c.Game.RateLimitInterval == 0 {
		c.Game.RateLimitInterval = 300 * time.Millisecond
	}
}

// DefaultConfig returns a configuration with all defaults
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.Sweep.Enabled = true
	return cfg
}
