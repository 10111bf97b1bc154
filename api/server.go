package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/wricardo/chathub/chat/hub"
	"github.com/wricardo/chathub/chat/protocol"
	"github.com/wricardo/chathub/chat/service"
)

// Server represents the REST API server
type Server struct {
	service service.ChatService
	ws      http.Handler
	router  *mux.Router
	log     zerolog.Logger
}

// NewServer creates a new API server. ws serves the chat WebSocket endpoints
// and may be nil.
func NewServer(chatService service.ChatService, ws http.Handler, logger zerolog.Logger) *Server {
	s := &Server{
		service: chatService,
		ws:      ws,
		router:  mux.NewRouter(),
		log:     logger.With().Str("component", "api").Logger(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes. Routes live on the root router so
// a method mismatch answers 405; subrouters report it as 404.
func (s *Server) setupRoutes() {
	s.handle("/api/health", s.handleHealth, "GET")
	s.handle("/api/stats", s.handleStats, "GET")

	// Rooms
	s.handle("/api/rooms", s.handleListRooms, "GET")
	s.handle("/api/rooms/{id}", s.handleGetRoom, "GET")
	s.handle("/api/rooms/{id}/announce", s.handleAnnounce, "POST")

	// Sessions
	s.handle("/api/sessions", s.handleListSessions, "GET")
	s.handle("/api/sessions/{id}", s.handleKickSession, "DELETE")

	// WebSocket; both paths accept header or query credentials. Not wrapped
	// by logRequests, whose recorder cannot be hijacked.
	if s.ws != nil {
		s.router.Handle("/ws/chat", s.ws).Methods("GET")
		s.router.Handle("/ws/chat/token", s.ws).Methods("GET")
	}
}

// handle registers an API route with request logging.
func (s *Server) handle(path string, fn http.HandlerFunc, method string) {
	s.router.Handle(path, s.logRequests(fn)).Methods(method)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps service errors to HTTP status codes.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrRoomNotFound), errors.Is(err, service.ErrSessionNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrEmptyContent),
		errors.Is(err, protocol.ErrEmptyRoomID),
		errors.Is(err, protocol.ErrRoomIDTooLong),
		errors.Is(err, protocol.ErrContentTooLong):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, hub.ErrStopped):
		respondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

// statusRecorder captures the response status for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", time.Since(start)).
			Msg("api request")
	})
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.Stats(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, stats)
}

// Room Handlers

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.service.ListRooms(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(rooms),
		"rooms": rooms,
	})
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	roomID := vars["id"]

	room, err := s.service.GetRoom(r.Context(), roomID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, room)
}

func (s *Server) handleAnnounce(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	roomID := vars["id"]

	var req struct {
		Content string `json:"content"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := s.service.Announce(r.Context(), roomID, req.Content)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// Session Handlers

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.service.ListSessions(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	query := r.URL.Query()
	total := len(sessions)

	if user := query.Get("user"); user != "" {
		filtered := sessions[:0]
		for _, session := range sessions {
			if session.UserID == user {
				filtered = append(filtered, session)
			}
		}
		sessions = filtered
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l < len(sessions) {
			sessions = sessions[:l]
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(sessions),
		"total":    total,
		"sessions": sessions,
	})
}

func (s *Server) handleKickSession(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	sessionID := vars["id"]

	if err := s.service.Kick(r.Context(), sessionID); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Session %s disconnected", sessionID),
	})
}
