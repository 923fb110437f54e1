package handlers

import (
	"encoding/json"
	"net/http"

	"league-backend/internal/auth"
	"league-backend/internal/league"
	"league-backend/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type Handler struct {
	store store.Store
	svc   *league.Service
	auth  *auth.Authenticator
	log   *zap.Logger
}

func New(st store.Store, svc *league.Service, au *auth.Authenticator, log *zap.Logger) *Handler {
	return &Handler{store: st, svc: svc, auth: au, log: log}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.Healthz)
	r.Post("/api/auth/anonymous", h.AnonymousSignIn)
	r.Post("/api/auth/token", h.TokenSignIn)
	r.Get("/api/registry", h.GetRegistry)
	r.Get("/api/tournaments/{id}", h.GetTournament)
	r.Get("/ws", h.Session)
	return r
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type signInResponse struct {
	UID   string `json:"uid"`
	Token string `json:"token"`
}

func (h *Handler) AnonymousSignIn(w http.ResponseWriter, r *http.Request) {
	uid, token, err := h.auth.SignInAnonymously()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, signInResponse{UID: uid, Token: token})
}

type tokenSignInRequest struct {
	Token string `json:"token"`
}

// TokenSignIn validates a previously issued token. An invalid or expired
// token falls back to a fresh anonymous identity rather than failing the
// sign-in outright; only a failure of the fallback itself is fatal.
func (h *Handler) TokenSignIn(w http.ResponseWriter, r *http.Request) {
	var req tokenSignInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	uid, err := h.auth.SignInWithToken(req.Token)
	if err != nil {
		h.log.Warn("token sign-in failed, falling back to anonymous", zap.Error(err))
		anonUID, anonToken, fbErr := h.auth.SignInAnonymously()
		if fbErr != nil {
			writeError(w, http.StatusInternalServerError, fbErr.Error())
			return
		}
		writeJSON(w, http.StatusOK, signInResponse{UID: anonUID, Token: anonToken})
		return
	}
	writeJSON(w, http.StatusOK, signInResponse{UID: uid, Token: req.Token})
}

func (h *Handler) GetRegistry(w http.ResponseWriter, r *http.Request) {
	reg, err := h.svc.GetRegistry(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

func (h *Handler) GetTournament(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	state, err := h.svc.GetTournament(r.Context(), id)
	if err != nil {
		if err == store.ErrNotFound {
			writeError(w, http.StatusNotFound, "tournament not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
