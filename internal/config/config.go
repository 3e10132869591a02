// Package config loads runtime settings from .env, an optional TOML file and the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

type ServerConfig struct {
	Port           string `toml:"port"`
	AllowedOrigins string `toml:"allowedOrigins"`
	UploadDir      string `toml:"uploadDir"`
}

type DBConfig struct {
	URL      string `toml:"url"`
	MaxConns int32  `toml:"maxConns"`
}

type AuthConfig struct {
	JWTSecret string `toml:"jwtSecret"`
	Issuer    string `toml:"issuer"` // optional; when set, tokens must carry it
}

type LogConfig struct {
	Level      string `toml:"level"`
	Encoding   string `toml:"encoding"` // json | console
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"maxSizeMB"`
	MaxBackups int    `toml:"maxBackups"`
	MaxAgeDays int    `toml:"maxAgeDays"`
}

type SMTPConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	From     string `toml:"from"`
}

type KafkaConfig struct {
	Brokers []string `toml:"brokers"`
	Topic   string   `toml:"topic"`
}

type NotifyConfig struct {
	Transport string `toml:"transport"` // smtp | kafka | log
}

type Config struct {
	Server ServerConfig `toml:"server"`
	DB     DBConfig     `toml:"db"`
	Auth   AuthConfig   `toml:"auth"`
	Log    LogConfig    `toml:"log"`
	SMTP   SMTPConfig   `toml:"smtp"`
	Kafka  KafkaConfig  `toml:"kafka"`
	Notify NotifyConfig `toml:"notify"`
}

// Load reads .env (if present), then the TOML file named by CONFIG_FILE (if set), then
// applies environment overrides and defaults. DATABASE_URL and JWT_SECRET are required.
func Load() (*Config, error) {
	_ = godotenv.Load()
	cfg, err := load(os.Getenv)
	if err != nil {
		return nil, err
	}
	if missing := cfg.missing(true); len(missing) > 0 {
		return nil, fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return cfg, nil
}

// LoadForCLI is Load without the JWT_SECRET requirement; the CLI never verifies tokens.
func LoadForCLI() (*Config, error) {
	_ = godotenv.Load()
	cfg, err := load(os.Getenv)
	if err != nil {
		return nil, err
	}
	if missing := cfg.missing(false); len(missing) > 0 {
		return nil, fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return cfg, nil
}

func load(getenv func(string) string) (*Config, error) {
	cfg := &Config{}
	if path := getenv("CONFIG_FILE"); path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("decode config file %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	setString := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(dst *int, key string) error {
		v := getenv(key)
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s must be an integer: %w", key, err)
		}
		*dst = n
		return nil
	}

	setString(&c.Server.Port, "SERVER_PORT")
	setString(&c.Server.AllowedOrigins, "ALLOWED_ORIGINS")
	setString(&c.Server.UploadDir, "UPLOAD_DIR")
	setString(&c.DB.URL, "DATABASE_URL")
	setString(&c.Auth.JWTSecret, "JWT_SECRET")
	setString(&c.Auth.Issuer, "JWT_ISSUER")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Encoding, "LOG_ENCODING")
	setString(&c.Log.File, "LOG_FILE")
	setString(&c.SMTP.Host, "SMTP_HOST")
	setString(&c.SMTP.Username, "SMTP_USERNAME")
	setString(&c.SMTP.Password, "SMTP_PASSWORD")
	setString(&c.SMTP.From, "SMTP_FROM")
	setString(&c.Kafka.Topic, "KAFKA_TOPIC")
	setString(&c.Notify.Transport, "NOTIFY_TRANSPORT")
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}

	if err := setInt(&c.SMTP.Port, "SMTP_PORT"); err != nil {
		return err
	}
	if err := setInt(&c.Log.MaxSizeMB, "LOG_MAX_SIZE_MB"); err != nil {
		return err
	}
	var maxConns int
	if err := setInt(&maxConns, "DB_MAX_CONNS"); err != nil {
		return err
	}
	if maxConns > 0 {
		c.DB.MaxConns = int32(maxConns)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.UploadDir == "" {
		c.Server.UploadDir = "uploads"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Encoding == "" {
		c.Log.Encoding = "json"
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 100
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = 5
	}
	if c.Log.MaxAgeDays == 0 {
		c.Log.MaxAgeDays = 28
	}
	if c.SMTP.Port == 0 {
		c.SMTP.Port = 587
	}
	if c.SMTP.From == "" {
		c.SMTP.From = "inventory-alerts@system.com"
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "email_notification"
	}
	if c.Notify.Transport == "" {
		c.Notify.Transport = "log"
	}
}

func (c *Config) missing(needAuth bool) []string {
	var missing []string
	if c.DB.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if needAuth && c.Auth.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	return missing
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
