// Command chathub runs the real-time chat server.
//
// It supports four commands:
//  1. "serve" (default): runs the HTTP server exposing the chat WebSocket, the admin REST API and an /mcp endpoint
//  2. "mcp": runs an MCP stdio server against a running chathub, or an internal one if none answers
//  3. "token": issues a signed token for a user
//  4. "check-config": loads and validates the configuration
//
// Configuration is layered: built-in defaults, an optional ini file, a .env
// file, then environment variables and flags.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/chathub/chat/auth"
	"github.com/wricardo/chathub/chat/config"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "chathub"
)

// main loads .env and runs the command line.
func main() {
	// Load .env file if it exists (ignore error if not found)
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: Error loading .env file: %v\n", err)
	}

	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", AppName, err)
		os.Exit(1)
	}
}

// newApp builds the command tree. Flags on the root are inherited by every
// subcommand.
func newApp() *cli.Command {
	return &cli.Command{
		Name:    AppName,
		Usage:   "Real-time chat server with rooms over WebSocket",
		Version: Version,
		Flags:   rootFlags(),
		Action:  serveAction,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP server with WebSocket chat, REST API and MCP endpoint",
				Action: serveAction,
			},
			{
				Name:  "mcp",
				Usage: "Run an MCP stdio server for administering a chathub server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "api-url",
						Usage:   "Base URL of a running chathub server",
						Value:   "http://localhost:8080",
						Sources: cli.EnvVars("CHATHUB_API_URL"),
					},
				},
				Action: mcpAction,
			},
			{
				Name:  "token",
				Usage: "Issue a signed token for a user",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "user",
						Usage:    "User ID carried by the token",
						Required: true,
					},
					&cli.DurationFlag{
						Name:  "ttl",
						Usage: "Token lifetime",
						Value: auth.DefaultTokenTTL,
					},
				},
				Action: tokenAction,
			},
			{
				Name:   "check-config",
				Usage:  "Load and validate the configuration, then print it",
				Action: checkConfigAction,
			},
		},
	}
}

func rootFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to an ini configuration file",
			Sources: cli.EnvVars("CHATHUB_CONFIG"),
		},
		&cli.StringFlag{
			Name:    "host",
			Usage:   "HTTP server host",
			Sources: cli.EnvVars("CHATHUB_HOST"),
		},
		&cli.IntFlag{
			Name:    "port",
			Usage:   "HTTP server port",
			Sources: cli.EnvVars("CHATHUB_PORT"),
		},
		&cli.StringFlag{
			Name:    "jwt-secret",
			Usage:   "HS256 secret for chat tokens; empty admits everyone as anonymous",
			Sources: cli.EnvVars("CHATHUB_JWT_SECRET", "JWT_SECRET"),
		},
		&cli.StringSliceFlag{
			Name:    "allowed-origins",
			Usage:   "Origins allowed to open WebSocket connections; empty allows all",
			Sources: cli.EnvVars("CHATHUB_ALLOWED_ORIGINS"),
		},
		&cli.DurationFlag{
			Name:    "heartbeat-interval",
			Usage:   "How often sessions are pinged and checked for liveness",
			Sources: cli.EnvVars("CHATHUB_HEARTBEAT_INTERVAL"),
		},
		&cli.DurationFlag{
			Name:    "client-timeout",
			Usage:   "Silence after which a session is disconnected",
			Sources: cli.EnvVars("CHATHUB_CLIENT_TIMEOUT"),
		},
		&cli.BoolFlag{
			Name:    "prune-empty-rooms",
			Usage:   "Forget rooms once their last member leaves",
			Sources: cli.EnvVars("CHATHUB_PRUNE_EMPTY_ROOMS"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Sources: cli.EnvVars("CHATHUB_LOG_LEVEL"),
		},
		&cli.BoolFlag{
			Name:    "log-pretty",
			Usage:   "Human-readable console logs instead of JSON",
			Sources: cli.EnvVars("CHATHUB_LOG_PRETTY"),
		},
		&cli.BoolFlag{
			Name:    "ngrok",
			Usage:   "Enable ngrok tunnel",
			Sources: cli.EnvVars("NGROK_ENABLED"),
		},
		&cli.StringFlag{
			Name:    "ngrok-auth",
			Usage:   "Ngrok auth token",
			Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN"),
		},
		&cli.StringFlag{
			Name:    "ngrok-domain",
			Usage:   "Custom ngrok domain (optional)",
			Sources: cli.EnvVars("NGROK_DOMAIN"),
		},
	}
}

// loadConfig layers flags and environment over the ini file and defaults.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}

	if cmd.IsSet("host") {
		cfg.Server.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Server.Port = int(cmd.Int("port"))
	}
	if cmd.IsSet("allowed-origins") {
		cfg.Server.AllowedOrigins = splitList(cmd.StringSlice("allowed-origins"))
	}
	if cmd.IsSet("jwt-secret") {
		cfg.Auth.JWTSecret = cmd.String("jwt-secret")
	}
	if cmd.IsSet("heartbeat-interval") {
		cfg.Session.HeartbeatInterval = cmd.Duration("heartbeat-interval")
	}
	if cmd.IsSet("client-timeout") {
		cfg.Session.ClientTimeout = cmd.Duration("client-timeout")
	}
	if cmd.IsSet("prune-empty-rooms") {
		cfg.Hub.PruneEmptyRooms = cmd.Bool("prune-empty-rooms")
	}
	if cmd.IsSet("log-level") {
		cfg.Log.Level = cmd.String("log-level")
	}
	if cmd.IsSet("log-pretty") {
		cfg.Log.Pretty = cmd.Bool("log-pretty")
	}
	if cmd.IsSet("ngrok") {
		cfg.Ngrok.Enabled = cmd.Bool("ngrok")
	}
	if cmd.IsSet("ngrok-auth") {
		cfg.Ngrok.AuthToken = cmd.String("ngrok-auth")
	}
	if cmd.IsSet("ngrok-domain") {
		cfg.Ngrok.Domain = cmd.String("ngrok-domain")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// splitList accepts both repeated flags and comma-separated values.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// newLogger builds the root logger. Logs always go to stderr so stdout stays
// free for the MCP stdio transport and the token command.
func newLogger(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Str("app", AppName).Logger()
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log)
	logger.Info().Str("version", Version).Str("addr", cfg.Addr()).Msg("starting chathub")

	return runServer(ctx, cfg, logger)
}

func mcpAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log)

	return runStdioMCP(ctx, cfg, cmd.String("api-url"), logger)
}

func tokenAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	verifier := auth.NewVerifier(cfg.Auth.JWTSecret, newLogger(cfg.Log))
	token, err := verifier.Issue(cmd.String("user"), cmd.Duration("ttl"))
	if err != nil {
		return fmt.Errorf("failed to issue token: %w", err)
	}

	fmt.Fprintln(cmd.Root().Writer, token)
	return nil
}

func checkConfigAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	w := cmd.Root().Writer
	secret := "(empty: all users anonymous)"
	if cfg.Auth.JWTSecret != "" {
		secret = "(set)"
	}
	origins := "(any)"
	if len(cfg.Server.AllowedOrigins) > 0 {
		origins = strings.Join(cfg.Server.AllowedOrigins, ", ")
	}

	fmt.Fprintf(w, "Configuration OK\n")
	fmt.Fprintf(w, "  listen:             %s\n", cfg.Addr())
	fmt.Fprintf(w, "  allowed origins:    %s\n", origins)
	fmt.Fprintf(w, "  jwt secret:         %s\n", secret)
	fmt.Fprintf(w, "  heartbeat interval: %s\n", cfg.Session.HeartbeatInterval)
	fmt.Fprintf(w, "  client timeout:     %s\n", cfg.Session.ClientTimeout)
	fmt.Fprintf(w, "  max content:        %d bytes\n", cfg.Session.MaxContentLength)
	fmt.Fprintf(w, "  prune empty rooms:  %t\n", cfg.Hub.PruneEmptyRooms)
	fmt.Fprintf(w, "  ngrok:              %t\n", cfg.Ngrok.Enabled)
	return nil
}
