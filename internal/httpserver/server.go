package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/apogee-systems/passops/internal/auth"
	"github.com/apogee-systems/passops/internal/conflict"
	"github.com/apogee-systems/passops/internal/models"
	"github.com/apogee-systems/passops/internal/passfeed"
	"github.com/apogee-systems/passops/internal/workspace"
)

// Pinger is the health-check subset of the remote store.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	registry *workspace.Registry
	feed     *passfeed.Client
	verifier *auth.Verifier
	pinger   Pinger
}

// New builds the operator-facing HTTP surface. feed, verifier, and pinger may
// each be nil: without a feed the open endpoint expects inline candidates;
// without a verifier the mutating routes are unguarded (dev mode).
func New(registry *workspace.Registry, feed *passfeed.Client, verifier *auth.Verifier, pinger Pinger) *Server {
	return &Server{registry: registry, feed: feed, verifier: verifier, pinger: pinger}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", s.handleHealth)

	r.Route("/opportunities/{opportunityID}/workspace", func(r chi.Router) {
		if s.verifier != nil {
			r.Use(s.verifier.Middleware)
		}
		r.Post("/", s.handleOpen)
		r.Get("/", s.handleState)
		r.Delete("/", s.handleClose)
		r.Post("/allocate", s.handleAllocate)
		r.Post("/adjust", s.handleAdjust)
		r.Post("/override", s.handleOverride)
		r.Post("/remove", s.handleRemove)
		r.Post("/auto-allocate", s.handleAutoAllocate)
		r.Post("/undo", s.handleUndo)
		r.Post("/redo", s.handleRedo)
		r.Post("/resolve", s.handleResolve)
		r.Post("/commit", s.handleCommit)
		r.Post("/rollback", s.handleRollback)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	status := map[string]interface{}{
		"ok":   true,
		"time": time.Now().UTC(),
	}
	if s.pinger != nil {
		if err := s.pinger.Ping(ctx); err != nil {
			status["ok"] = false
			status["store"] = err.Error()
			respondJSON(w, http.StatusServiceUnavailable, status)
			return
		}
	}
	respondJSON(w, http.StatusOK, status)
}

type openRequest struct {
	Opportunity models.CollectionOpportunity `json:"opportunity"`
	Candidates  []models.AvailablePass       `json:"candidates"`
	Sites       []models.Site                `json:"sites"`
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	opportunityID := chi.URLParam(r, "opportunityID")

	var opp models.CollectionOpportunity
	var candidates []models.AvailablePass
	var sites []models.Site

	if s.feed != nil {
		var err error
		opp, candidates, sites, err = s.feed.Fetch(r.Context(), opportunityID)
		if err != nil {
			respondError(w, http.StatusBadGateway, err.Error())
			return
		}
	} else {
		var req openRequest
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		opp, candidates, sites = req.Opportunity, req.Candidates, req.Sites
	}
	if opp.ID == "" {
		opp.ID = opportunityID
	}
	if opp.ID != opportunityID {
		respondError(w, http.StatusBadRequest, "opportunity id mismatch")
		return
	}

	ws, err := s.registry.Open(opp, candidates, sites)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, stateView(ws))
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.lookup(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, stateView(ws))
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	opportunityID := chi.URLParam(r, "opportunityID")
	s.registry.Close(r.Context(), opportunityID)
	w.WriteHeader(http.StatusNoContent)
}

type allocateRequest struct {
	SiteID string `json:"siteId"`
	Count  int    `json:"count"`
}

func (s *Server) handleAllocate(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req allocateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := ws.Allocate(r.Context(), req.SiteID, req.Count); err != nil {
		writeEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stateView(ws))
}

type adjustRequest struct {
	SiteID string `json:"siteId"`
	Delta  int    `json:"delta"`
}

func (s *Server) handleAdjust(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req adjustRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	_, changed, err := ws.Adjust(r.Context(), req.SiteID, req.Delta)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	view := stateView(ws)
	view["changed"] = changed
	respondJSON(w, http.StatusOK, view)
}

type overrideRequest struct {
	SiteID string `json:"siteId"`
	Reason string `json:"reason"`
}

func (s *Server) handleOverride(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req overrideRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := ws.SetOverrideReason(r.Context(), req.SiteID, req.Reason); err != nil {
		writeEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stateView(ws))
}

type removeRequest struct {
	SiteID string `json:"siteId"`
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req removeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := ws.Remove(r.Context(), req.SiteID); err != nil {
		writeEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stateView(ws))
}

func (s *Server) handleAutoAllocate(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if _, err := ws.AutoAllocate(r.Context()); err != nil {
		writeEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stateView(ws))
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.lookup(w, r)
	if !ok {
		return
	}
	_, applied := ws.Undo(r.Context())
	view := stateView(ws)
	view["applied"] = applied
	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleRedo(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.lookup(w, r)
	if !ok {
		return
	}
	_, applied := ws.Redo(r.Context())
	view := stateView(ws)
	view["applied"] = applied
	respondJSON(w, http.StatusOK, view)
}

type resolveRequest struct {
	Conflict      models.Conflict           `json:"conflict"`
	Options       []models.ResolutionOption `json:"options"`
	Decision      string                    `json:"decision"`
	SelectedID    string                    `json:"selectedId,omitempty"`
	Justification string                    `json:"justification,omitempty"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req resolveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	outcome, err := ws.Resolve(r.Context(), conflict.Request{
		Conflict:      req.Conflict,
		Options:       req.Options,
		Decision:      conflict.Decision(req.Decision),
		SelectedID:    req.SelectedID,
		Justification: req.Justification,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.lookup(w, r)
	if !ok {
		return
	}
	batch, err := ws.Commit(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, batch)
}

func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if _, err := ws.Rollback(r.Context()); err != nil {
		writeEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stateView(ws))
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*workspace.Workspace, bool) {
	opportunityID := chi.URLParam(r, "opportunityID")
	ws, ok := s.registry.Get(opportunityID)
	if !ok {
		respondError(w, http.StatusNotFound, "no open workspace for opportunity "+opportunityID)
		return nil, false
	}
	return ws, true
}

func stateView(ws *workspace.Workspace) map[string]interface{} {
	snap := ws.Snapshot()
	return map[string]interface{}{
		"opportunity":          ws.Opportunity(),
		"allocations":          snap.Records(),
		"totalAllocatedPasses": snap.TotalAllocatedPasses(),
		"canUndo":              ws.CanUndo(),
		"canRedo":              ws.CanRedo(),
		"pendingChanges":       len(ws.Pending()),
	}
}

func writeEngineError(w http.ResponseWriter, err error) {
	var ve *models.ValidationError
	var ee *models.EscalationRequiredError
	var cf *models.CommitFailure
	switch {
	case errors.As(err, &ve):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &ee):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, models.ErrCommitInFlight):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrNothingToCommit):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrWorkspaceClosed):
		respondError(w, http.StatusGone, err.Error())
	case errors.As(err, &cf):
		respondError(w, http.StatusBadGateway, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
