// Package server is the collaborator daemon behind the viewer: the session
// token endpoint, the agent-config document store and the room relay.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"brdge/internal/domain"
	"brdge/internal/httputil"
	"brdge/internal/token"
)

type Config struct {
	JWTSecret string
	TokenTTL  time.Duration
	Store     *DocumentStore
}

// Server routes the collaborator endpoints.
type Server struct {
	router chi.Router
	store  *DocumentStore
	relay  *Relay
	secret string
	ttl    time.Duration
}

func New(cfg Config) *Server {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 2 * time.Hour
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(slogMiddleware)

	s := &Server{
		router: r,
		store:  cfg.Store,
		relay:  NewRelay(cfg.JWTSecret),
		secret: cfg.JWTSecret,
		ttl:    cfg.TokenTTL,
	}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Post("/token", s.handleMintToken)
	s.router.Route("/sessions/{sessionID}/agent-config", func(r chi.Router) {
		r.Get("/", s.handleGetConfig)
		r.Put("/", s.handlePutConfig)
	})
	s.router.Get("/ws", s.relay.HandleWS)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type mintTokenRequest struct {
	SessionID         string `json:"sessionId"`
	UserID            string `json:"userId"`
	PersonalizationID string `json:"personalizationId"`
}

type mintTokenResponse struct {
	Identity    string `json:"identity"`
	AccessToken string `json:"accessToken"`
}

func (s *Server) handleMintToken(w http.ResponseWriter, r *http.Request) {
	var req mintTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.SessionID == "" {
		httputil.WriteError(w, http.StatusBadRequest, "sessionId is required")
		return
	}

	identity := token.BuildIdentity(req.SessionID, req.UserID, req.PersonalizationID)
	accessToken, err := GenerateRoomToken(s.secret, identity, req.SessionID, s.ttl)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to mint token")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, mintTokenResponse{
		Identity:    identity,
		AccessToken: accessToken,
	})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	httputil.WriteJSON(w, http.StatusOK, s.store.Get(sessionID))
}

func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var cfg domain.AgentConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.store.Put(sessionID, cfg); err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to persist config")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}
