package store

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	SourceZerodha = "ZERODHA"
	SourceMock    = "MOCK"
	SourceSQL     = "SQL"
	SourceNATS    = "NATS"
)

type Config struct {
	Mode   string `yaml:"mode"`
	Listen struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"listen"`
	Schedule struct {
		IntervalMS     int  `yaml:"interval_ms"`
		MarketTicks    bool `yaml:"market_ticks"`
		TickGapMS      int  `yaml:"tick_gap_ms"`
		WriteTimeoutMS int  `yaml:"write_timeout_ms"`
	} `yaml:"schedule"`
	Account struct {
		Login  int64  `yaml:"login"`
		Server string `yaml:"server"`
	} `yaml:"account"`
	Source struct {
		Type    string `yaml:"type"`
		Zerodha struct {
			Instruments []uint32 `yaml:"instruments"`
			APIKeyEnv   string   `yaml:"api_key_env"`
			TokenEnv    string   `yaml:"token_env"`
		} `yaml:"zerodha"`
		SQL struct {
			Driver string `yaml:"driver"`
			DSNEnv string `yaml:"dsn_env"`
			Schema string `yaml:"schema"`
		} `yaml:"sql"`
		NATS struct {
			URLs   []string `yaml:"urls"`
			Bucket string   `yaml:"bucket"`
		} `yaml:"nats"`
		Mock struct {
			Seed      int64  `yaml:"seed"`
			Positions *int   `yaml:"positions"`
			Balance   string `yaml:"balance"`
		} `yaml:"mock"`
	} `yaml:"source"`
	Status struct {
		Addr string `yaml:"addr"`
	} `yaml:"status"`
}

// ListenAddr is the host:port the broadcaster binds.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.Listen.Host, strconv.Itoa(c.Listen.Port))
}

func (c *Config) Interval() time.Duration {
	return time.Duration(c.Schedule.IntervalMS) * time.Millisecond
}

// TickGap is the minimum spacing between cycles started by market ticks.
func (c *Config) TickGap() time.Duration {
	return time.Duration(c.Schedule.TickGapMS) * time.Millisecond
}

func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.Schedule.WriteTimeoutMS) * time.Millisecond
}

func (c *Config) Validate() error {
	if c.Mode != "DRY_RUN" && c.Mode != "LIVE" {
		return fmt.Errorf("invalid mode '%s': must be 'DRY_RUN' or 'LIVE'", c.Mode)
	}
	if c.Listen.Port < 1 || c.Listen.Port > 65535 {
		return fmt.Errorf("listen.port must be between 1-65535, got %d", c.Listen.Port)
	}
	if c.Schedule.IntervalMS <= 0 {
		return fmt.Errorf("schedule.interval_ms must be positive, got %d", c.Schedule.IntervalMS)
	}
	if c.Schedule.TickGapMS < 0 {
		return fmt.Errorf("schedule.tick_gap_ms cannot be negative, got %d", c.Schedule.TickGapMS)
	}
	if c.Schedule.WriteTimeoutMS < 0 {
		return fmt.Errorf("schedule.write_timeout_ms cannot be negative, got %d", c.Schedule.WriteTimeoutMS)
	}
	switch c.Source.Type {
	case SourceZerodha:
		if c.Mode == "DRY_RUN" {
			return errors.New("source.type ZERODHA requires mode LIVE")
		}
	case SourceMock:
		if n := c.Source.Mock.Positions; n != nil && *n < 0 {
			return fmt.Errorf("source.mock.positions cannot be negative, got %d", *n)
		}
	case SourceSQL:
		if c.Source.SQL.Driver == "" {
			return errors.New("source.sql.driver cannot be empty")
		}
	case SourceNATS:
		if len(c.Source.NATS.URLs) == 0 {
			return errors.New("source.nats.urls cannot be empty")
		}
	default:
		return fmt.Errorf("source.type must be 'ZERODHA', 'MOCK', 'SQL', or 'NATS', got '%s'", c.Source.Type)
	}
	if c.Schedule.MarketTicks && c.Source.Type != SourceZerodha {
		return errors.New("schedule.market_ticks is only supported with source.type ZERODHA")
	}
	return nil
}

// applyDefaults fills in everything left zero in the file.
func (c *Config) applyDefaults() {
	c.Mode = strings.ToUpper(c.Mode)
	if c.Mode == "" {
		c.Mode = "DRY_RUN"
	}
	if c.Listen.Host == "" {
		c.Listen.Host = "0.0.0.0"
	}
	if c.Listen.Port == 0 {
		c.Listen.Port = 8888
	}
	if c.Schedule.IntervalMS == 0 {
		c.Schedule.IntervalMS = 500
	}
	if c.Schedule.TickGapMS == 0 {
		c.Schedule.TickGapMS = 1000
	}

	c.Source.Type = strings.ToUpper(c.Source.Type)
	if c.Source.Type == "" {
		if c.Mode == "DRY_RUN" {
			c.Source.Type = SourceMock
		} else {
			c.Source.Type = SourceZerodha
		}
	}
	if c.Source.Zerodha.APIKeyEnv == "" {
		c.Source.Zerodha.APIKeyEnv = "KITE_API_KEY"
	}
	if c.Source.Zerodha.TokenEnv == "" {
		c.Source.Zerodha.TokenEnv = "KITE_ACCESS_TOKEN"
	}
	if c.Source.SQL.Driver == "" {
		c.Source.SQL.Driver = "postgres"
	}
	if c.Source.SQL.DSNEnv == "" {
		c.Source.SQL.DSNEnv = "BRIDGE_SQL_DSN"
	}
	if c.Source.NATS.Bucket == "" {
		c.Source.NATS.Bucket = "ACCOUNTS"
	}
	// an explicit 0 is a valid flat account
	if c.Source.Mock.Positions == nil {
		n := 2
		c.Source.Mock.Positions = &n
	}
	if c.Source.Mock.Balance == "" {
		c.Source.Mock.Balance = "10000.00"
	}
}

// Parse decodes, defaults and validates a YAML document.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &c, nil
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}
