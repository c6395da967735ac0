package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Postgres PostgresConfig `yaml:"postgres"`
	HTTP     HTTPConfig     `yaml:"http"`
	Sheets   SheetsConfig   `yaml:"sheets"`
	NATS     NATSConfig     `yaml:"nats"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	Channel  string `yaml:"channel"` // NOTIFY channel for log changes
}

// DSN renders the pool connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

type HTTPConfig struct {
	Addr        string `yaml:"addr"`
	AllowOrigin string `yaml:"allow_origin"`
}

type SheetsConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	SpreadsheetID   string `yaml:"spreadsheet_id"`
	Worksheet       string `yaml:"worksheet"`
	ClearRange      string `yaml:"clear_range"`
	AnchorCell      string `yaml:"anchor_cell"`
	DisplayTimezone string `yaml:"display_timezone"`
	Workers         int    `yaml:"workers"`
	QueueSize       int    `yaml:"queue_size"`
}

// Enabled reports whether a spreadsheet target is configured at all.
func (c SheetsConfig) Enabled() bool {
	return c.SpreadsheetID != ""
}

type NATSConfig struct {
	URL           string        `yaml:"url"` // empty disables the relay
	Subject       string        `yaml:"subject"`
	MaxReconnect  int           `yaml:"max_reconnect"`
	ReconnectWait time.Duration `yaml:"reconnect_wait"`
}

type AuthConfig struct {
	Secret      string        `yaml:"secret"`
	TokenTTL    time.Duration `yaml:"token_ttl"`
	MaxManagers int           `yaml:"max_managers"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Postgres.Port == 0 {
		c.Postgres.Port = 5432
	}
	if c.Postgres.Channel == "" {
		c.Postgres.Channel = "log_changes"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":5000"
	}
	if c.Sheets.ClearRange == "" {
		c.Sheets.ClearRange = "A2:D"
	}
	if c.Sheets.AnchorCell == "" {
		c.Sheets.AnchorCell = "A2"
	}
	if c.Sheets.DisplayTimezone == "" {
		c.Sheets.DisplayTimezone = "Europe/Rome"
	}
	if c.Sheets.Workers == 0 {
		c.Sheets.Workers = 2
	}
	if c.Sheets.QueueSize == 0 {
		c.Sheets.QueueSize = 8
	}
	if c.NATS.Subject == "" {
		c.NATS.Subject = "badgetrack.logs"
	}
	if c.NATS.ReconnectWait == 0 {
		c.NATS.ReconnectWait = 2 * time.Second
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = 24 * time.Hour
	}
	if c.Auth.MaxManagers == 0 {
		c.Auth.MaxManagers = 10
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}
