package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/chathub/api"
	"github.com/wricardo/chathub/chat/auth"
	"github.com/wricardo/chathub/chat/config"
	"github.com/wricardo/chathub/chat/hub"
	"github.com/wricardo/chathub/chat/service"
	"github.com/wricardo/chathub/transport/mcp"
	"github.com/wricardo/chathub/transport/websocket"
)

// chatStack is everything behind the HTTP listener.
type chatStack struct {
	hub     *hub.Hub
	handler http.Handler
}

// newChatStack wires hub, auth, sessions, admin service, REST API and the
// /mcp endpoint. The hub is not started.
func newChatStack(cfg *config.Config, apiURL string, logger zerolog.Logger) *chatStack {
	h := hub.New(
		hub.WithLogger(logger),
		hub.WithQueueSize(cfg.Hub.QueueSize),
		hub.WithRoomPruning(cfg.Hub.PruneEmptyRooms),
	)

	if cfg.Auth.JWTSecret == "" {
		logger.Warn().Msg("no jwt secret configured, every connection is anonymous")
	}
	verifier := auth.NewVerifier(cfg.Auth.JWTSecret, logger)

	wsHandler := websocket.NewHandler(h, verifier,
		websocket.WithSettings(sessionSettings(cfg.Session)),
		websocket.WithAllowedOrigins(cfg.Server.AllowedOrigins),
		websocket.WithLogger(logger),
	)

	chatService := service.NewChatService(h,
		service.WithLogger(logger),
		service.WithMaxContentLength(cfg.Session.MaxContentLength),
	)

	apiServer := api.NewServer(chatService, wsHandler, logger)
	mcpClient := mcp.NewClient(apiURL)

	// Create main router that combines API and MCP
	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", apiServer)
	mainRouter.HandleFunc("/mcp", handleMCP(mcpClient.GetMCPServer(), logger))

	return &chatStack{hub: h, handler: mainRouter}
}

func sessionSettings(cfg config.SessionConfig) websocket.Settings {
	return websocket.Settings{
		HeartbeatInterval: cfg.HeartbeatInterval,
		ClientTimeout:     cfg.ClientTimeout,
		WriteWait:         cfg.WriteWait,
		MaxMessageSize:    cfg.MaxMessageSize,
		MaxContentLength:  cfg.MaxContentLength,
		SendBuffer:        cfg.SendBuffer,
	}
}

// handleMCP serves single JSON-RPC messages over HTTP POST.
func handleMCP(mcpServer *server.MCPServer, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := mcpServer.HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			logger.Error().Err(err).Msg("failed to marshal mcp response")
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	}
}

// loopbackURL is the address this process can reach its own API on.
func loopbackURL(cfg *config.Config) string {
	host := cfg.Server.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(cfg.Server.Port))
}

// runServer serves until ctx is cancelled or a signal arrives, then shuts
// down the listener, the tunnel and the hub in that order.
func runServer(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stack := newChatStack(cfg, loopbackURL(cfg), logger)

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go stack.hub.Run(hubCtx)

	httpServer := &http.Server{
		Addr:        cfg.Addr(),
		Handler:     stack.handler,
		ReadTimeout: cfg.Server.ReadTimeout,
		IdleTimeout: cfg.Server.IdleTimeout,
	}

	var wg sync.WaitGroup
	serveErr := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()

		logger.Info().
			Str("addr", cfg.Addr()).
			Str("websocket", fmt.Sprintf("ws://%s/ws/chat", cfg.Addr())).
			Str("api", fmt.Sprintf("http://%s/api", cfg.Addr())).
			Str("mcp", fmt.Sprintf("http://%s/mcp", cfg.Addr())).
			Msg("http server listening")

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("http server failed: %w", err)
		}
	}()

	if cfg.Ngrok.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := serveNgrok(ctx, cfg.Ngrok, stack.handler, logger); err != nil {
				logger.Error().Err(err).Msg("ngrok tunnel failed")
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	case runErr = <-serveErr:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown error")
	}

	stopHub()
	<-stack.hub.Done()

	stop()
	wg.Wait()
	logger.Info().Msg("server stopped")
	return runErr
}

// serveNgrok exposes handler through an ngrok tunnel until ctx ends.
func serveNgrok(ctx context.Context, cfg config.NgrokConfig, handler http.Handler, logger zerolog.Logger) error {
	var tunnel ngrokConfig.Tunnel
	if cfg.Domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(cfg.Domain))
		logger.Info().Str("domain", cfg.Domain).Msg("using custom ngrok domain")
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(cfg.AuthToken))
	if err != nil {
		return fmt.Errorf("failed to start ngrok tunnel: %w", err)
	}

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close ngrok tunnel")
		}
	}()

	publicURL := tun.URL()
	logger.Info().
		Str("url", publicURL).
		Str("websocket", "wss://"+strings.TrimPrefix(publicURL, "https://")+"/ws/chat").
		Str("mcp", publicURL+"/mcp").
		Msg("ngrok tunnel established")

	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		return fmt.Errorf("ngrok server error: %w", err)
	}
	logger.Info().Msg("ngrok tunnel closed")
	return nil
}

// runStdioMCP runs an MCP stdio server. It reuses the API at apiURL when it
// answers, otherwise it starts an internal chat server on a loopback port.
func runStdioMCP(ctx context.Context, cfg *config.Config, apiURL string, logger zerolog.Logger) error {
	baseURL := apiURL

	if !apiReachable(apiURL) {
		logger.Info().Str("api_url", apiURL).Msg("no chathub server found, starting internal one")

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}
		baseURL = "http://" + listener.Addr().String()

		stack := newChatStack(cfg, baseURL, logger)
		hubCtx, stopHub := context.WithCancel(ctx)
		defer stopHub()
		go stack.hub.Run(hubCtx)

		httpServer := &http.Server{Handler: stack.handler}
		defer httpServer.Close()
		go func() {
			if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("internal http server error")
			}
		}()
	}

	mcpClient := mcp.NewClient(baseURL)
	logger.Info().Str("api_url", baseURL).Msg("mcp stdio server ready")

	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("mcp stdio server error: %w", err)
	}
	return nil
}

func apiReachable(apiURL string) bool {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(apiURL + "/api/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
