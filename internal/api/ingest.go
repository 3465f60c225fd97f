// ABOUTME: Ingest handlers feeding the live registries from agent runtimes
// ABOUTME: Conversations, executions, delegation fan-outs, and background tasks

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/2389/coven-execd/internal/convo"
	"github.com/2389/coven-execd/internal/lifecycle"
	"github.com/2389/coven-execd/internal/tasks"
)

// CreateConversationRequest is the JSON request body for POST /api/conversations.
type CreateConversationRequest struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
}

// StartExecutionRequest is the JSON request body for POST /api/executions.
type StartExecutionRequest struct {
	AgentPubkey    string `json:"agent_pubkey"`
	ConversationID string `json:"conversation_id"`
}

// StartExecutionResponse reports the allocated execution. Killed true means
// a pre-emptive kill already landed on the pair: the execution is recorded
// as aborted and the runtime must not run it.
type StartExecutionResponse struct {
	RALNumber int  `json:"ral_number"`
	Killed    bool `json:"killed"`
}

// CompleteExecutionRequest is the JSON request body for POST /api/executions/complete.
type CompleteExecutionRequest struct {
	AgentPubkey    string `json:"agent_pubkey"`
	ConversationID string `json:"conversation_id"`
	RALNumber      int    `json:"ral_number"`
}

// DelegationRecord is one fan-out target in a MergeDelegationsRequest.
type DelegationRecord struct {
	DelegationConversationID string `json:"delegation_conversation_id"`
	RecipientPubkey          string `json:"recipient_pubkey"`
	SenderPubkey             string `json:"sender_pubkey"`
	Prompt                   string `json:"prompt,omitempty"`
}

// MergeDelegationsRequest is the JSON request body for POST /api/delegations.
type MergeDelegationsRequest struct {
	AgentPubkey    string             `json:"agent_pubkey"`
	ConversationID string             `json:"conversation_id"`
	RALNumber      int                `json:"ral_number"`
	Delegations    []DelegationRecord `json:"delegations"`
}

// RegisterTaskRequest is the JSON request body for POST /api/tasks.
type RegisterTaskRequest struct {
	ID          string `json:"id"`
	ProjectID   string `json:"project_id"`
	PID         int    `json:"pid"`
	Command     string `json:"command"`
	Description string `json:"description,omitempty"`
	OutputFile  string `json:"output_file,omitempty"`
}

// handleConversations routes conversation requests by HTTP method.
func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ID == "" || req.ProjectID == "" {
		s.sendJSONError(w, http.StatusBadRequest, "id and project_id are required")
		return
	}

	if _, err := s.conversations.Create(req.ID, req.ProjectID); err != nil {
		if errors.Is(err, convo.ErrInvalidConversationID) {
			s.sendJSONError(w, http.StatusBadRequest, "conversation id must be 64 lowercase hex characters")
			return
		}
		if errors.Is(err, convo.ErrDuplicateConversation) {
			s.sendJSONError(w, http.StatusConflict, "conversation already exists")
			return
		}
		s.logger.Error("failed to register conversation", "error", err, "conversation", req.ID)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusCreated)
}

// handleExecutions routes execution requests by HTTP method: POST starts
// one, GET lists the caller's project.
func (s *Server) handleExecutions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListExecutions(w, r)
	case http.MethodPost:
		s.handleStartExecution(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleStartExecution records that an agent began executing in a
// conversation. The project is derived from the conversation record, which
// must already be registered.
func (s *Server) handleStartExecution(w http.ResponseWriter, r *http.Request) {
	var req StartExecutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.AgentPubkey == "" || req.ConversationID == "" {
		s.sendJSONError(w, http.StatusBadRequest, "agent_pubkey and conversation_id are required")
		return
	}

	conv, ok := s.conversations.Get(req.ConversationID)
	if !ok {
		s.sendJSONError(w, http.StatusNotFound, "conversation not registered")
		return
	}

	ralNumber, killed := s.registry.Create(req.AgentPubkey, req.ConversationID, conv.ProjectID())
	if !killed {
		s.conversations.MarkActive(req.ConversationID, req.AgentPubkey, ralNumber)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(StartExecutionResponse{RALNumber: ralNumber, Killed: killed})
}

// handleCompleteExecution handles POST /api/executions/complete.
func (s *Server) handleCompleteExecution(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req CompleteExecutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.registry.Complete(req.AgentPubkey, req.ConversationID, req.RALNumber); err != nil {
		if errors.Is(err, lifecycle.ErrNoSuchRAL) {
			s.sendJSONError(w, http.StatusNotFound, "execution not found")
			return
		}
		s.logger.Error("failed to complete execution", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.conversations.MarkInactive(req.ConversationID, req.AgentPubkey, req.RALNumber)

	w.WriteHeader(http.StatusNoContent)
}

// handleDelegations handles POST /api/delegations: the delegation producer
// reports fan-out targets before the recipients' executions exist.
func (s *Server) handleDelegations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req MergeDelegationsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Delegations) == 0 {
		s.sendJSONError(w, http.StatusBadRequest, "delegations must not be empty")
		return
	}

	delegations := make([]lifecycle.PendingDelegation, len(req.Delegations))
	for i, d := range req.Delegations {
		delegations[i] = lifecycle.PendingDelegation{
			DelegationConversationID: d.DelegationConversationID,
			RecipientPubkey:          d.RecipientPubkey,
			SenderPubkey:             d.SenderPubkey,
			Prompt:                   d.Prompt,
		}
	}

	err := s.registry.MergePendingDelegations(req.AgentPubkey, req.ConversationID, req.RALNumber, delegations)
	if err != nil {
		if errors.Is(err, lifecycle.ErrNoSuchRAL) {
			s.sendJSONError(w, http.StatusNotFound, "execution not found")
			return
		}
		s.logger.Error("failed to merge delegations", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleTasks routes task requests by HTTP method: POST registers a
// background task, GET lists the caller's project.
func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListTasks(w, r)
	case http.MethodPost:
		s.handleRegisterTask(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleRegisterTask records a running background shell task.
func (s *Server) handleRegisterTask(w http.ResponseWriter, r *http.Request) {
	var req RegisterTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ID == "" || req.PID == 0 {
		s.sendJSONError(w, http.StatusBadRequest, "id and pid are required")
		return
	}

	err := s.taskTable.Register(&tasks.Info{
		ID:          req.ID,
		ProjectID:   req.ProjectID,
		PID:         req.PID,
		Command:     req.Command,
		Description: req.Description,
		OutputFile:  req.OutputFile,
		StartTime:   time.Now(),
	})
	if err != nil {
		if errors.Is(err, tasks.ErrDuplicateTask) {
			s.sendJSONError(w, http.StatusConflict, "task already registered")
			return
		}
		s.logger.Error("failed to register task", "error", err, "task_id", req.ID)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusCreated)
}
