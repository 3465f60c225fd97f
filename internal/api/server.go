// ABOUTME: HTTP API handlers for kill requests and execution listings
// ABOUTME: Bridges authenticated callers to the kill orchestrator and registries

package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/2389/coven-execd/internal/auth"
	"github.com/2389/coven-execd/internal/convo"
	"github.com/2389/coven-execd/internal/kill"
	"github.com/2389/coven-execd/internal/lifecycle"
	"github.com/2389/coven-execd/internal/store"
	"github.com/2389/coven-execd/internal/tasks"
)

// Killer executes kill requests.
type Killer interface {
	Kill(ctx context.Context, req kill.Request) *kill.Result
}

// AuditReader reads back recorded kill attempts.
type AuditReader interface {
	ListKillAudits(ctx context.Context, filter store.KillAuditFilter) ([]*store.KillAudit, error)
}

// Server holds the HTTP API's collaborators.
type Server struct {
	killer        Killer
	registry      *lifecycle.Registry
	conversations *convo.Store
	taskTable     *tasks.Table
	audits        AuditReader // optional
	verifier      auth.TokenVerifier
	logger        *slog.Logger
}

// Params collects the server's collaborators.
type Params struct {
	Killer        Killer
	Registry      *lifecycle.Registry
	Conversations *convo.Store
	TaskTable     *tasks.Table
	Audits        AuditReader
	Verifier      auth.TokenVerifier
	Logger        *slog.Logger
}

// NewServer creates the HTTP API server.
func NewServer(p Params) *Server {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		killer:        p.Killer,
		registry:      p.Registry,
		conversations: p.Conversations,
		taskTable:     p.TaskTable,
		audits:        p.Audits,
		verifier:      p.Verifier,
		logger:        logger.With("component", "api"),
	}
}

// Routes builds the handler tree. Everything under /api requires a
// verified bearer token; /healthz does not.
func (s *Server) Routes() http.Handler {
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("/api/kill", s.handleKill)
	apiMux.HandleFunc("/api/kills", s.handleListKillAudits)
	apiMux.HandleFunc("/api/conversations", s.handleConversations)
	apiMux.HandleFunc("/api/executions", s.handleExecutions)
	apiMux.HandleFunc("/api/executions/complete", s.handleCompleteExecution)
	apiMux.HandleFunc("/api/delegations", s.handleDelegations)
	apiMux.HandleFunc("/api/tasks", s.handleTasks)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/api/", auth.HTTPMiddleware(s.verifier)(apiMux))
	return mux
}

// KillRequest is the JSON request body for POST /api/kill.
type KillRequest struct {
	Target string `json:"target"`
	Reason string `json:"reason,omitempty"`
}

// KillAuditResponse is one entry in the GET /api/kills response.
type KillAuditResponse struct {
	ID                string `json:"id"`
	Actor             string `json:"actor"`
	Target            string `json:"target"`
	TargetType        string `json:"target_type"`
	Reason            string `json:"reason,omitempty"`
	Success           bool   `json:"success"`
	Message           string `json:"message"`
	CascadeAbortCount int    `json:"cascade_abort_count,omitempty"`
	CreatedAt         string `json:"created_at"`
}

// handleKill handles POST /api/kill requests. The caller's identity comes
// from the verified token; the body only names the target and reason.
func (s *Server) handleKill(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req KillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Target == "" {
		s.sendJSONError(w, http.StatusBadRequest, "target is required")
		return
	}

	id := auth.FromContext(r.Context())
	if id == nil {
		// Middleware guarantees an identity; reaching here means the
		// handler was mounted without it.
		s.sendJSONError(w, http.StatusUnauthorized, "no identity")
		return
	}

	result := s.killer.Kill(r.Context(), kill.Request{
		Target:          req.Target,
		Reason:          req.Reason,
		Actor:           id.PrincipalID,
		CallerProjectID: id.ProjectID,
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// handleListExecutions handles GET /api/executions requests. The listing
// is scoped to the caller's project; a caller without project context
// sees nothing.
func (s *Server) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	response := make([]lifecycle.ExecutionInfo, 0)
	if id != nil && id.ProjectID != "" {
		for _, info := range s.registry.Snapshot() {
			if info.ProjectID == id.ProjectID {
				response = append(response, info)
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleListTasks handles GET /api/tasks requests, scoped like executions.
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	response := make([]*tasks.Info, 0)
	if id != nil && id.ProjectID != "" {
		for _, info := range s.taskTable.All() {
			if info.ProjectID == id.ProjectID {
				response = append(response, info)
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleListKillAudits handles GET /api/kills requests. Supports optional
// ?limit=N and ?since=RFC3339 query parameters.
func (s *Server) handleListKillAudits(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.audits == nil {
		s.sendJSONError(w, http.StatusNotFound, "audit log not configured")
		return
	}

	var filter store.KillAuditFilter
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			s.sendJSONError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = parsed
	}
	if sinceStr := r.URL.Query().Get("since"); sinceStr != "" {
		since, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			s.sendJSONError(w, http.StatusBadRequest, "since must be an RFC3339 timestamp")
			return
		}
		filter.Since = &since
	}

	entries, err := s.audits.ListKillAudits(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list kill audits", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	response := make([]KillAuditResponse, len(entries))
	for i, e := range entries {
		response[i] = KillAuditResponse{
			ID:                e.ID,
			Actor:             e.Actor,
			Target:            e.Target,
			TargetType:        e.TargetType,
			Reason:            e.Reason,
			Success:           e.Success,
			Message:           e.Message,
			CascadeAbortCount: e.CascadeAbortCount,
			CreatedAt:         e.CreatedAt.Format(time.RFC3339),
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleHealth handles GET /healthz requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// sendJSONError writes a JSON error response.
func (s *Server) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
