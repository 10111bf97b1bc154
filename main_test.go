package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/wricardo/chathub/chat/auth"
	"github.com/wricardo/chathub/chat/config"
	"github.com/wricardo/chathub/chat/protocol"
	"github.com/wricardo/chathub/transport/mcp"
)

// runApp runs the command line with args and returns what it printed.
func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(context.Background(), append([]string{AppName}, args...))
	return out.String(), err
}

func TestConstants(t *testing.T) {
	if Version == "" {
		t.Error("Version should not be empty")
	}
	if AppName != "chathub" {
		t.Errorf("Expected app name chathub, got %s", AppName)
	}
}

func TestCheckConfigDefaults(t *testing.T) {
	out, err := runApp(t, "check-config")
	if err != nil {
		t.Fatalf("check-config failed: %v", err)
	}
	if !strings.Contains(out, "Configuration OK") || !strings.Contains(out, "localhost:8080") {
		t.Errorf("Unexpected output: %s", out)
	}
}

func TestCheckConfigFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chathub.ini")
	content := "[server]\nport = 9000\n\n[hub]\nprune_empty_rooms = false\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	out, err := runApp(t, "--config", path, "--port", "9191", "check-config")
	if err != nil {
		t.Fatalf("check-config failed: %v", err)
	}
	if !strings.Contains(out, "localhost:9191") {
		t.Errorf("Flag should override file port, got: %s", out)
	}
	if !strings.Contains(out, "prune empty rooms:  false") {
		t.Errorf("File should override default pruning, got: %s", out)
	}
}

func TestCheckConfigEnvironment(t *testing.T) {
	t.Setenv("CHATHUB_HOST", "0.0.0.0")
	t.Setenv("CHATHUB_ALLOWED_ORIGINS", "https://a.example.com,https://b.example.com")

	out, err := runApp(t, "check-config")
	if err != nil {
		t.Fatalf("check-config failed: %v", err)
	}
	if !strings.Contains(out, "0.0.0.0:8080") {
		t.Errorf("Expected host from environment, got: %s", out)
	}
	if !strings.Contains(out, "https://a.example.com, https://b.example.com") {
		t.Errorf("Expected origins from environment, got: %s", out)
	}
}

func TestCheckConfigInvalid(t *testing.T) {
	_, err := runApp(t, "--heartbeat-interval", "5s", "--client-timeout", "6s", "check-config")
	if !errors.Is(err, config.ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
}

func TestCheckConfigMissingFile(t *testing.T) {
	_, err := runApp(t, "--config", filepath.Join(t.TempDir(), "nope.ini"), "check-config")
	if !errors.Is(err, config.ErrConfigNotFound) {
		t.Errorf("Expected ErrConfigNotFound, got %v", err)
	}
}

func TestTokenCommand(t *testing.T) {
	out, err := runApp(t, "--jwt-secret", "s3cret", "token", "--user", "alice", "--ttl", "1h")
	if err != nil {
		t.Fatalf("token failed: %v", err)
	}

	verifier := auth.NewVerifier("s3cret", zerolog.Nop())
	userID, err := verifier.Verify(strings.TrimSpace(out))
	if err != nil {
		t.Fatalf("Issued token does not verify: %v", err)
	}
	if userID != "alice" {
		t.Errorf("Expected alice, got %s", userID)
	}
}

func TestTokenCommandWithoutSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("CHATHUB_JWT_SECRET", "")

	_, err := runApp(t, "token", "--user", "alice")
	if !errors.Is(err, auth.ErrNoSecret) {
		t.Errorf("Expected ErrNoSecret, got %v", err)
	}
}

func TestSplitList(t *testing.T) {
	got := splitList([]string{"a, b", "", "c"})
	want := []string{"a", "b", "c"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("splitList() = %v, want %v", got, want)
	}
}

func TestLoopbackURL(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{"localhost", "http://localhost:8080"},
		{"0.0.0.0", "http://127.0.0.1:8080"},
		{"", "http://127.0.0.1:8080"},
	}

	for _, tt := range tests {
		cfg := config.Default()
		cfg.Server.Host = tt.host
		if got := loopbackURL(cfg); got != tt.want {
			t.Errorf("loopbackURL(%q) = %s, want %s", tt.host, got, tt.want)
		}
	}
}

func TestNewLogger(t *testing.T) {
	if got := newLogger(config.LogConfig{Level: "debug"}).GetLevel(); got != zerolog.DebugLevel {
		t.Errorf("Expected debug level, got %s", got)
	}
	if got := newLogger(config.LogConfig{Level: "bogus"}).GetLevel(); got != zerolog.InfoLevel {
		t.Errorf("Expected fallback to info, got %s", got)
	}
}

func TestHandleMCP(t *testing.T) {
	handler := handleMCP(mcp.NewClient("http://127.0.0.1:0").GetMCPServer(), zerolog.Nop())

	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest("GET", "/mcp", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405 for GET, got %d", w.Code)
	}

	body := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"test","version":"1.0"}}}`
	w = httptest.NewRecorder()
	handler(w, httptest.NewRequest("POST", "/mcp", strings.NewReader(body)))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), AppName) {
		t.Errorf("Expected server info in response, got: %s", w.Body.String())
	}
}

// TestChatStack exercises the wired server: health, WebSocket chat and the
// admin API against the same hub.
func TestChatStack(t *testing.T) {
	cfg := config.Default()
	cfg.Auth.JWTSecret = "s3cret"

	stack := newChatStack(cfg, "http://127.0.0.1:0", zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		<-stack.hub.Done()
	}()
	go stack.hub.Run(ctx)

	ts := httptest.NewServer(stack.handler)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("Health request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 from health, got %d", resp.StatusCode)
	}

	token, err := auth.NewVerifier("s3cret", zerolog.Nop()).Issue("alice", time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/chat/token?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}
	defer conn.Close()

	read := func() protocol.Frame {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("Failed to read WebSocket message: %v", err)
		}
		frame, err := protocol.DecodeFrame(data)
		if err != nil {
			t.Fatalf("Failed to decode frame: %v", err)
		}
		return frame
	}

	if frame := read(); frame.Type != protocol.EventConnected || frame.UserID != "alice" {
		t.Fatalf("Expected connected as alice, got %+v", frame)
	}

	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"join","room_id":"lobby"}`))
	if frame := read(); frame.Type != protocol.EventJoined {
		t.Fatalf("Expected joined, got %+v", frame)
	}

	announce := strings.NewReader(`{"content":"welcome"}`)
	resp, err = http.Post(ts.URL+"/api/rooms/lobby/announce", "application/json", announce)
	if err != nil {
		t.Fatalf("Announce request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 from announce, got %d", resp.StatusCode)
	}

	frame := read()
	if frame.Type != protocol.EventMessage || frame.SenderID != "system" || frame.Content != "welcome" {
		t.Errorf("Expected system announcement, got %+v", frame)
	}
}
