package app

import (
	"errors"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	gorilla "github.com/gorilla/websocket"
	"github.com/google/uuid"
	"github.com/on-the-ground/effect_ive_runtime/backends/ws"
	"github.com/on-the-ground/effect_ive_runtime/effects"
	"github.com/on-the-ground/effect_ive_runtime/effects/auth"
	"go.uber.org/zap"
)

// RouterConfig tunes the HTTP surface.
type RouterConfig struct {
	ChatTopic      string
	RelayIdle      time.Duration
	AllowAnyOrigin bool
}

// Router serves the reference Programs over HTTP. Every request runs one
// Program on rt.
func Router(rt *Runtime, cfg RouterConfig) http.Handler {
	h := &handlers{rt: rt, cfg: cfg, upgrader: &gorilla.Upgrader{}}
	if cfg.AllowAnyOrigin {
		h.upgrader.CheckOrigin = func(*http.Request) bool { return true }
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /signup", h.signup)
	mux.HandleFunc("POST /login", h.login)
	mux.HandleFunc("GET /profiles/{id}", h.profile)
	mux.HandleFunc("GET /chat", h.chat)
	return mux
}

type handlers struct {
	rt       *Runtime
	cfg      RouterConfig
	upgrader *gorilla.Upgrader
}

type credentials struct {
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	Password string `json:"password"`
}

type tokenResponse struct {
	UserID       uuid.UUID `json:"user_id"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func (h *handlers) signup(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email and password are required"})
		return
	}

	res := Run(r.Context(), h.rt, nil, Signup(req.Email, req.Name, req.Password))
	outcome, ok := unwrap(h.rt.logger, w, res)
	if !ok {
		return
	}
	switch o := outcome.(type) {
	case SignedUp:
		writeJSON(w, http.StatusCreated, tokenResponse{
			UserID:       o.User.ID,
			AccessToken:  o.Token.AccessToken,
			RefreshToken: o.Token.RefreshToken,
			ExpiresAt:    o.Token.ExpiresAt,
		})
	case EmailTaken:
		writeJSON(w, http.StatusConflict, map[string]string{"error": "email already registered"})
	}
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request"})
		return
	}

	res := Run(r.Context(), h.rt, nil, Login(req.Email, req.Password))
	outcome, ok := unwrap(h.rt.logger, w, res)
	if !ok {
		return
	}
	switch o := outcome.(type) {
	case LoggedIn:
		writeJSON(w, http.StatusOK, tokenResponse{
			UserID:       o.UserID,
			AccessToken:  o.Token.AccessToken,
			RefreshToken: o.Token.RefreshToken,
			ExpiresAt:    o.Token.ExpiresAt,
		})
	case InvalidCredentials:
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
	}
}

func (h *handlers) profile(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid user id"})
		return
	}

	profile, ok := unwrap(h.rt.logger, w, Run(r.Context(), h.rt, nil, GetProfile(id)))
	if !ok {
		return
	}
	if !profile.Found {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "user not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id": profile.Data.UserID,
		"name":    profile.Data.Name,
		"email":   profile.Data.Email,
		"cached":  profile.Cached,
	})
}

// chat upgrades to a websocket after authenticating the bearer token and
// runs a RelayMessages session on it.
func (h *handlers) chat(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	validation, ok := unwrap(h.rt.logger, w, Run(r.Context(), h.rt, nil, Authenticate(token)))
	if !ok {
		return
	}
	valid, ok := validation.(auth.TokenValid)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
		return
	}

	conn, err := ws.Upgrade(w, r, h.upgrader)
	if err != nil {
		h.rt.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close(r.Context(), gorilla.CloseNormalClosure, "") }()

	res := Run(r.Context(), h.rt, conn, RelayMessages(RelayConfig{
		UserID:       valid.UserID,
		Topic:        h.cfg.ChatTopic,
		Subscription: "chat-" + valid.UserID.String(),
		IdleTimeout:  h.cfg.RelayIdle,
	}))
	if ierr, failed := res.Err(); failed {
		h.rt.logger.Warn("chat session failed", zap.Error(ierr), zap.Bool("retryable", ierr.Retryable()))
		return
	}
	relayed, _ := res.Value()
	h.rt.logger.Debug("chat session ended", zap.Int("relayed", relayed))
}

// unwrap returns the Program's value, or writes the error response for a
// failed Program and reports false.
func unwrap[T any](logger *zap.Logger, w http.ResponseWriter, res effects.Result[T, effects.InterpreterError]) (T, bool) {
	ierr, failed := res.Err()
	if !failed {
		v, _ := res.Value()
		return v, true
	}

	var zero T
	status := http.StatusInternalServerError
	if ierr.Retryable() {
		status = http.StatusServiceUnavailable
		w.Header().Set("Retry-After", "1")
	}
	var authErr *effects.AuthError
	if errors.As(ierr, &authErr) && !ierr.Retryable() {
		status = http.StatusUnauthorized
	}
	logger.Warn("program failed",
		zap.String("effect", effects.TagOf(ierr.Effect())),
		zap.Bool("retryable", ierr.Retryable()),
		zap.Error(ierr))
	writeJSON(w, status, map[string]string{"error": http.StatusText(status)})
	return zero, false
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
