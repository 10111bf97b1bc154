package websocket

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Authenticator resolves the user behind a connection request. It never
// rejects; unknown callers get an anonymous identity.
type Authenticator interface {
	UserID(r *http.Request) string
}

// AnonymousAuth treats every caller as the given user ID.
type AnonymousAuth string

// UserID implements Authenticator.
func (a AnonymousAuth) UserID(*http.Request) string { return string(a) }

// Handler upgrades HTTP requests and starts a Session per connection.
type Handler struct {
	hub      Hub
	auth     Authenticator
	settings Settings
	upgrader websocket.Upgrader
	log      zerolog.Logger

	// Called with each started session; used by tests and metrics.
	onSession func(*Session)
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithSettings sets the per-session settings.
func WithSettings(settings Settings) HandlerOption {
	return func(h *Handler) {
		h.settings = settings
	}
}

// WithAllowedOrigins restricts the Origin header. An empty list allows any
// origin.
func WithAllowedOrigins(origins []string) HandlerOption {
	return func(h *Handler) {
		h.upgrader.CheckOrigin = checkOrigin(origins)
	}
}

// WithLogger sets the handler logger; sessions derive theirs from it.
func WithLogger(logger zerolog.Logger) HandlerOption {
	return func(h *Handler) {
		h.log = logger
	}
}

// WithSessionHook registers a callback invoked for every started session.
func WithSessionHook(fn func(*Session)) HandlerOption {
	return func(h *Handler) {
		h.onSession = fn
	}
}

// NewHandler creates a WebSocket handler bound to a hub.
func NewHandler(h Hub, auth Authenticator, opts ...HandlerOption) *Handler {
	handler := &Handler{
		hub:      h,
		auth:     auth,
		settings: DefaultSettings(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(nil),
		},
		log: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(handler)
	}
	return handler
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.ServeWS(w, r)
}

// ServeWS upgrades the request and starts a session for it.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := h.auth.UserID(r)
	h.log.Info().Str("user_id", userID).Str("remote_addr", r.RemoteAddr).Msg("websocket connection request")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error response.
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	session := NewSession(conn, userID, h.hub, h.settings, h.log)
	session.Start()

	if h.onSession != nil {
		h.onSession(session)
	}
}

func checkOrigin(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}

	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		set[strings.ToLower(strings.TrimRight(origin, "/"))] = struct{}{}
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		_, ok := set[strings.ToLower(u.Scheme+"://"+u.Host)]
		return ok
	}
}
