package config

import "time"

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	LogFormat         string        `mapstructure:"log_format" yaml:"log_format"`

	DatabaseDriver string `mapstructure:"database_driver" yaml:"database_driver"`
	DatabasePath   string `mapstructure:"database_path" yaml:"database_path"`
	DatabaseDSN    string `mapstructure:"database_dsn" yaml:"database_dsn"`

	JWTSecret   string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	JWTTTL      time.Duration `mapstructure:"jwt_ttl" yaml:"jwt_ttl"`

	MaxMessageBytes      int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	MaxMessageLength     int           `mapstructure:"max_message_length" yaml:"max_message_length"`
	MaxMessagesPerMinute int           `mapstructure:"max_messages_per_minute" yaml:"max_messages_per_minute"`
	EventBuffer          int           `mapstructure:"event_buffer" yaml:"event_buffer"`
	HistoryLimit         int           `mapstructure:"history_limit" yaml:"history_limit"`
	IdleTimeout          time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	SweepInterval        time.Duration `mapstructure:"sweep_interval" yaml:"sweep_interval"`

	Redis RedisConfig `mapstructure:"redis" yaml:"redis"`
}

// RedisConfig configures the optional presence mirror.
type RedisConfig struct {
	Enabled     bool          `mapstructure:"enabled" yaml:"enabled"`
	Addr        string        `mapstructure:"addr" yaml:"addr"`
	Password    string        `mapstructure:"password" yaml:"password"`
	DB          int           `mapstructure:"db" yaml:"db"`
	PresenceTTL time.Duration `mapstructure:"presence_ttl" yaml:"presence_ttl"`
	Channel     string        `mapstructure:"channel" yaml:"channel"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		LogFormat:         "console",

		DatabaseDriver: DriverSQLite,
		DatabasePath:   "chatroom.db",

		JWTSecret:   "change-me-in-production",
		JWTIssuer:   "chatroom-server",
		JWTAudience: "chatroom-clients",
		JWTTTL:      24 * time.Hour,

		MaxMessageBytes:      64 << 10,
		MaxMessageLength:     4000,
		MaxMessagesPerMinute: 120,
		EventBuffer:          64,
		HistoryLimit:         50,
		SweepInterval:        30 * time.Second,

		Redis: RedisConfig{
			Addr:        "localhost:6379",
			PresenceTTL: 5 * time.Minute,
			Channel:     "user_status",
		},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
// Only the fields exposed as command-line flags are considered.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.LogFormat != "" {
		c.LogFormat = other.LogFormat
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
}
