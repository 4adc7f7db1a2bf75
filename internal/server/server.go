// Package server exposes the platform's HTTP API. Handlers stay thin:
// decode, invoke the app layer, map errors to statuses.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"edunexus/internal/app"
	"edunexus/internal/util"
	"edunexus/pkg/auth"
	"edunexus/pkg/domain"
	"edunexus/pkg/store"
)

// Limiter throttles brute-forceable endpoints by caller key.
type Limiter interface {
	Allow(key string) bool
}

// Config wires required dependencies for the HTTP server.
type Config struct {
	App *app.App
	// AuthLimiter throttles login/register per client IP; nil disables.
	AuthLimiter Limiter
	// Poll intervals published to clients through /api/settings.
	SettingsPollSeconds int
	MessagePollSeconds  int
}

// Server exposes HTTP endpoints for the platform API.
type Server struct {
	app         *app.App
	authLimiter Limiter
	poll        pollConfig
	mux         *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		app:         cfg.App,
		authLimiter: cfg.AuthLimiter,
		poll: pollConfig{
			SettingsSeconds: cfg.SettingsPollSeconds,
			MessagesSeconds: cfg.MessagePollSeconds,
		},
		mux: http.NewServeMux(),
	}
	if s.poll.SettingsSeconds <= 0 {
		s.poll.SettingsSeconds = 10
	}
	if s.poll.MessagesSeconds <= 0 {
		s.poll.MessagesSeconds = 3
	}
	s.routes()
	return s
}

// Router returns the configured handler with the standard middleware
// chain applied.
func (s *Server) Router() http.Handler {
	var h http.Handler = s.mux
	h = util.WithSecurityHeaders(h)
	h = util.WithCORS(h)
	h = util.WithRequestLog(h)
	h = util.WithRequestID(h)
	return h
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// settings are public: clients need the maintenance flag and the
	// announcement before anyone signs in.
	s.mux.HandleFunc("/api/settings", s.handleSettings)

	// auth
	s.mux.HandleFunc("/api/auth/register", s.rateLimited(s.handleRegister))
	s.mux.HandleFunc("/api/auth/login", s.rateLimited(s.handleLogin))
	s.mux.HandleFunc("/api/auth/guest", s.rateLimited(s.handleGuestLogin))
	s.mux.HandleFunc("/api/auth/logout", s.handleLogout)

	// account
	s.mux.Handle("/api/users/me", s.authenticated(s.handleMe))
	s.mux.Handle("/api/users/me/subscription", s.authenticated(s.handleSubscription))

	// groups and chat
	s.mux.Handle("/api/groups", s.authenticated(s.handleGroups))
	s.mux.Handle("/api/groups/join", s.authenticated(s.handleJoinByCode))
	s.mux.Handle("/api/groups/", s.authenticated(s.handleGroupByID))
	s.mux.Handle("/api/chat", s.authenticated(s.handleAILab))
	s.mux.Handle("/api/extract", s.authenticated(s.handleExtract))

	// support
	s.mux.Handle("/api/tickets", s.authenticated(s.handleTickets))

	// admin
	s.mux.Handle("/api/admin/settings", s.adminOnly(s.handleAdminSettings))
	s.mux.Handle("/api/admin/users", s.adminOnly(s.handleAdminUsers))
	s.mux.Handle("/api/admin/users/", s.adminOnly(s.handleAdminUserByID))
	s.mux.Handle("/api/admin/tickets", s.adminOnly(s.handleAdminTickets))
	s.mux.Handle("/api/admin/tickets/", s.adminOnly(s.handleAdminTicketByID))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// auth wrappers
type authHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.authorize(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, user)
	})
}

func (s *Server) adminOnly(next authHandler) http.Handler {
	return s.authenticated(func(w http.ResponseWriter, r *http.Request, user domain.User) {
		if !user.Role.CanAdminister() {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next(w, r, user)
	})
}

func (s *Server) rateLimited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.authLimiter != nil && !s.authLimiter.Allow(util.ClientIP(r)) {
			writeError(w, http.StatusTooManyRequests, "too many attempts, slow down")
			return
		}
		next(w, r)
	}
}

func (s *Server) authorize(r *http.Request) (domain.User, bool) {
	token, ok := bearerToken(r)
	if !ok {
		return domain.User{}, false
	}
	user, ok, err := s.app.UserFromToken(token)
	if err != nil {
		slog.Error("session lookup failed", "error", err, "request_id", util.RequestIDFromRequest(r))
		return domain.User{}, false
	}
	return user, ok
}

// settings

// pollConfig tells clients how often to re-read settings and group
// messages.
type pollConfig struct {
	SettingsSeconds int `json:"settingsSeconds"`
	MessagesSeconds int `json:"messagesSeconds"`
}

type settingsResponse struct {
	domain.SystemSettings
	Poll pollConfig `json:"poll"`
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	settings, err := s.app.Settings()
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settingsResponse{SystemSettings: settings, Poll: s.poll})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

// decodeJSON bounds the request body; attachments ride inline as base64
// so the cap is generous.
func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(io.LimitReader(r.Body, 8<<20)).Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeAppError maps app-layer sentinels to HTTP statuses. Unknown
// errors are logged and masked.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, app.ErrUserNotFound), errors.Is(err, app.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, app.ErrMaintenanceMode), errors.Is(err, app.ErrRegistrationClosed):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, app.ErrAccountBlocked),
		errors.Is(err, app.ErrForbidden),
		errors.Is(err, app.ErrFounderProtected),
		errors.Is(err, app.ErrNotGroupMember),
		errors.Is(err, app.ErrChatDisabled),
		errors.Is(err, app.ErrUploadsDisabled),
		errors.Is(err, app.ErrPaymentsDisabled):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, app.ErrGroupNotFound),
		errors.Is(err, app.ErrTicketNotFound),
		errors.Is(err, app.ErrAttachmentNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrUsernameTaken),
		errors.Is(err, store.ErrVersionConflict),
		errors.Is(err, app.ErrTicketResolved):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, app.ErrUsernameRequired),
		errors.Is(err, app.ErrInvalidInput),
		errors.Is(err, app.ErrInvalidInviteCode),
		errors.Is(err, auth.ErrWeakPassword):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("request failed", "error", err, "path", r.URL.Path, "request_id", util.RequestIDFromRequest(r))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
