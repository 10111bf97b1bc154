package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/ini.v1"
)

var (
	ErrConfigNotFound = errors.New("configuration file not found")
	ErrInvalidConfig  = errors.New("invalid configuration")
)

// Config holds every tunable of the chat server.
type Config struct {
	Server  ServerConfig
	Auth    AuthConfig
	Session SessionConfig
	Hub     HubConfig
	Log     LogConfig
	Ngrok   NgrokConfig
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
	ReadTimeout    time.Duration
	IdleTimeout    time.Duration
}

// AuthConfig holds the token secret. An empty secret admits everyone as
// anonymous.
type AuthConfig struct {
	JWTSecret string
}

// SessionConfig controls per-connection behaviour.
type SessionConfig struct {
	HeartbeatInterval time.Duration
	ClientTimeout     time.Duration
	WriteWait         time.Duration
	MaxMessageSize    int64
	MaxContentLength  int
	SendBuffer        int
}

// HubConfig controls the registry loop.
type HubConfig struct {
	QueueSize       int
	PruneEmptyRooms bool
}

// LogConfig selects log level and format.
type LogConfig struct {
	Level  string
	Pretty bool
}

// NgrokConfig controls the optional public tunnel.
type NgrokConfig struct {
	Enabled   bool
	AuthToken string
	Domain    string
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "localhost",
			Port:        8080,
			ReadTimeout: 15 * time.Second,
			IdleTimeout: 60 * time.Second,
		},
		Session: SessionConfig{
			HeartbeatInterval: 5 * time.Second,
			ClientTimeout:     10 * time.Second,
			WriteWait:         10 * time.Second,
			MaxMessageSize:    64 * 1024,
			MaxContentLength:  4096,
			SendBuffer:        256,
		},
		Hub: HubConfig{
			QueueSize:       1024,
			PruneEmptyRooms: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads an ini file on top of the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to stat config: %w", err)
	}

	file, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	cfg.apply(file)
	return cfg, nil
}

// apply overlays keys present in the file.
func (c *Config) apply(file *ini.File) {
	server := file.Section("server")
	c.Server.Host = server.Key("host").MustString(c.Server.Host)
	c.Server.Port = server.Key("port").MustInt(c.Server.Port)
	if server.HasKey("allowed_origins") {
		c.Server.AllowedOrigins = server.Key("allowed_origins").Strings(",")
	}
	c.Server.ReadTimeout = server.Key("read_timeout").MustDuration(c.Server.ReadTimeout)
	c.Server.IdleTimeout = server.Key("idle_timeout").MustDuration(c.Server.IdleTimeout)

	auth := file.Section("auth")
	c.Auth.JWTSecret = auth.Key("jwt_secret").MustString(c.Auth.JWTSecret)

	session := file.Section("session")
	c.Session.HeartbeatInterval = session.Key("heartbeat_interval").MustDuration(c.Session.HeartbeatInterval)
	c.Session.ClientTimeout = session.Key("client_timeout").MustDuration(c.Session.ClientTimeout)
	c.Session.WriteWait = session.Key("write_wait").MustDuration(c.Session.WriteWait)
	c.Session.MaxMessageSize = session.Key("max_message_size").MustInt64(c.Session.MaxMessageSize)
	c.Session.MaxContentLength = session.Key("max_content_length").MustInt(c.Session.MaxContentLength)
	c.Session.SendBuffer = session.Key("send_buffer").MustInt(c.Session.SendBuffer)

	hub := file.Section("hub")
	c.Hub.QueueSize = hub.Key("queue_size").MustInt(c.Hub.QueueSize)
	c.Hub.PruneEmptyRooms = hub.Key("prune_empty_rooms").MustBool(c.Hub.PruneEmptyRooms)

	log := file.Section("log")
	c.Log.Level = log.Key("level").MustString(c.Log.Level)
	c.Log.Pretty = log.Key("pretty").MustBool(c.Log.Pretty)

	ngrok := file.Section("ngrok")
	c.Ngrok.Enabled = ngrok.Key("enabled").MustBool(c.Ngrok.Enabled)
	c.Ngrok.AuthToken = ngrok.Key("auth_token").MustString(c.Ngrok.AuthToken)
	c.Ngrok.Domain = ngrok.Key("domain").MustString(c.Ngrok.Domain)
}

// Validate reports every problem found, joined.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...)))
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		add("server.port %d out of range", c.Server.Port)
	}
	if c.Session.HeartbeatInterval <= 0 {
		add("session.heartbeat_interval must be positive")
	}
	if c.Session.ClientTimeout < 2*c.Session.HeartbeatInterval {
		add("session.client_timeout %s must be at least twice heartbeat_interval %s",
			c.Session.ClientTimeout, c.Session.HeartbeatInterval)
	}
	if c.Session.WriteWait <= 0 {
		add("session.write_wait must be positive")
	}
	if c.Session.MaxMessageSize <= 0 {
		add("session.max_message_size must be positive")
	}
	if c.Session.SendBuffer <= 0 {
		add("session.send_buffer must be positive")
	}
	if c.Hub.QueueSize <= 0 {
		add("hub.queue_size must be positive")
	}
	if c.Ngrok.Enabled && c.Ngrok.AuthToken == "" {
		add("ngrok.enabled requires ngrok.auth_token")
	}

	return errors.Join(errs...)
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}
