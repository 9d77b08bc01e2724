// Package config loads client and server settings from SCORELOG_*
// environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/roach88/scorelog/internal/session"
)

// Client configures a syncing client.
type Client struct {
	ServerURL            string        `env:"SCORELOG_SERVER_URL"             envDefault:"http://localhost:8088"`
	CachePath            string        `env:"SCORELOG_CACHE_PATH"             envDefault:"scorelog-cache.db"`
	UserID               string        `env:"SCORELOG_USER_ID"`
	AuthToken            string        `env:"SCORELOG_AUTH_TOKEN"`
	HeartbeatInterval    time.Duration `env:"SCORELOG_HEARTBEAT_INTERVAL"     envDefault:"25s"`
	PongTimeout          time.Duration `env:"SCORELOG_PONG_TIMEOUT"           envDefault:"10s"`
	RequestTimeout       time.Duration `env:"SCORELOG_REQUEST_TIMEOUT"        envDefault:"10s"`
	ReconnectBase        time.Duration `env:"SCORELOG_RECONNECT_BASE"         envDefault:"1s"`
	MaxReconnectAttempts int           `env:"SCORELOG_RECONNECT_MAX_ATTEMPTS" envDefault:"10"`
	MaxBatch             int           `env:"SCORELOG_MAX_BATCH"              envDefault:"100"`
}

// Server configures the reference server.
type Server struct {
	Addr         string        `env:"SCORELOG_ADDR"          envDefault:":8088"`
	DBPath       string        `env:"SCORELOG_DB_PATH"       envDefault:"scorelog.db"`
	AuthToken    string        `env:"SCORELOG_AUTH_TOKEN"`
	RateLimit    float64       `env:"SCORELOG_RATE_LIMIT"    envDefault:"20"`
	RateBurst    int           `env:"SCORELOG_RATE_BURST"    envDefault:"40"`
	SchemaStrict bool          `env:"SCORELOG_SCHEMA_STRICT" envDefault:"false"`
	SchemaFile   string        `env:"SCORELOG_SCHEMA_FILE"`
	PingInterval time.Duration `env:"SCORELOG_PING_INTERVAL" envDefault:"30s"`
}

// ParseEnv loads configuration from environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadClient parses the client settings.
func LoadClient() (Client, error) {
	var c Client
	if err := ParseEnv(&c); err != nil {
		return Client{}, err
	}
	return c, c.validate()
}

// LoadServer parses the server settings.
func LoadServer() (Server, error) {
	var s Server
	if err := ParseEnv(&s); err != nil {
		return Server{}, err
	}
	if s.RateLimit <= 0 || s.RateBurst <= 0 {
		return Server{}, fmt.Errorf("rate limit and burst must be positive")
	}
	return s, nil
}

func (c Client) validate() error {
	switch {
	case c.ServerURL == "":
		return fmt.Errorf("SCORELOG_SERVER_URL is required")
	case c.MaxBatch <= 0:
		return fmt.Errorf("SCORELOG_MAX_BATCH must be positive")
	case c.MaxReconnectAttempts < 0:
		return fmt.Errorf("SCORELOG_RECONNECT_MAX_ATTEMPTS must not be negative")
	}
	return nil
}

// Session returns the session configuration these settings describe.
func (c Client) Session(clientVersion string) session.Config {
	cfg := session.DefaultConfig()
	cfg.HeartbeatInterval = c.HeartbeatInterval
	cfg.PongTimeout = c.PongTimeout
	cfg.RequestTimeout = c.RequestTimeout
	cfg.MaxReconnectAttempts = c.MaxReconnectAttempts
	cfg.MaxBatch = c.MaxBatch
	cfg.ClientVersion = clientVersion
	cfg.UserID = c.UserID
	if c.ReconnectBase > 0 {
		cfg.Reconnect.Base = c.ReconnectBase
	}
	return cfg
}
