package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/Harikeshav-R/Penny/internal/agent"
	"github.com/Harikeshav-R/Penny/internal/api/middleware"
	"github.com/Harikeshav-R/Penny/internal/domain"
	"github.com/Harikeshav-R/Penny/internal/ledger"
	"github.com/Harikeshav-R/Penny/internal/logger"
	"github.com/Harikeshav-R/Penny/internal/tools"
)

// maxChatBody bounds the JSON body of a chat request.
const maxChatBody = 1 << 20

// ChatAgent answers one chat message. *agent.Orchestrator implements it.
type ChatAgent interface {
	Run(ctx context.Context, tools agent.Toolbox, req agent.Request) *agent.Reply
}

// ChatHandler serves the assistant. A tool registry is built per request
// for the authenticated owner.
type ChatHandler struct {
	agent ChatAgent
	store ledger.Store
	now   func() time.Time
}

// NewChatHandler creates a chat handler. A nil now uses time.Now.
func NewChatHandler(a ChatAgent, store ledger.Store, now func() time.Time) *ChatHandler {
	return &ChatHandler{agent: a, store: store, now: now}
}

type chatRequest struct {
	Message string                    `json:"message"`
	History []domain.ConversationTurn `json:"history"`
}

type chatResponse struct {
	Response  string                    `json:"response"`
	History   []domain.ConversationTurn `json:"history"`
	ToolCalls []domain.ToolInvocation   `json:"tool_calls"`
}

// Chat handles POST /api/chat
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	owner, ok := middleware.OwnerFromContext(ctx)
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Missing owner")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBody)).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		middleware.WriteError(w, http.StatusBadRequest, "message is required")
		return
	}

	registry := tools.NewRegistry(h.store, owner, h.now)
	reply := h.agent.Run(ctx, registry, agent.Request{Message: req.Message, History: req.History})

	log.Info().
		Int("iterations", reply.Iterations).
		Int("tool_calls", len(reply.ToolCalls)).
		Str("state", string(reply.State)).
		Msg("Chat turn completed")

	resp := chatResponse{
		Response:  reply.Text,
		History:   reply.History,
		ToolCalls: reply.ToolCalls,
	}
	if resp.History == nil {
		resp.History = []domain.ConversationTurn{}
	}
	if resp.ToolCalls == nil {
		resp.ToolCalls = []domain.ToolInvocation{}
	}

	middleware.WriteJSON(w, http.StatusOK, resp)
}
