// Package agent runs the chat assistant: a plan, act, observe loop between
// the model and the tool registry.
package agent

import (
	"context"
	"time"

	"github.com/Harikeshav-R/Penny/internal/domain"
	"github.com/Harikeshav-R/Penny/internal/llm"
	"github.com/Harikeshav-R/Penny/internal/logger"
	"golang.org/x/sync/errgroup"
	"google.golang.org/genai"
)

// DefaultMaxIterations caps planning calls per request.
const DefaultMaxIterations = 10

// State is the position of one request in the loop.
type State string

const (
	StateAwaitingPlan  State = "AWAITING_PLAN"
	StateExecutingTool State = "EXECUTING_TOOL"
	StateDone          State = "DONE"
)

// Planner is the model side of the loop.
type Planner interface {
	Ready() error
	Plan(ctx context.Context, req llm.PlanRequest) (*llm.PlanResponse, error)
}

// Toolbox runs tools for one owner. tools.Registry implements it.
type Toolbox interface {
	Invoke(ctx context.Context, name string, args map[string]any) string
	Declarations() []*genai.FunctionDeclaration
}

// Request is one user message with the history that preceded it.
type Request struct {
	Message string
	History []domain.ConversationTurn
}

// Reply is the outcome of one request. It is always populated; failures are
// reported through Text.
type Reply struct {
	Text       string
	ToolCalls  []domain.ToolInvocation
	History    []domain.ConversationTurn
	Iterations int
	State      State
}

// Orchestrator drives the loop. It keeps no per-request state and may be
// shared between goroutines.
type Orchestrator struct {
	planner       Planner
	maxIterations int
	system        string
	toolLimit     int
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

func WithMaxIterations(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxIterations = n
		}
	}
}

func WithSystemPrompt(prompt string) Option {
	return func(o *Orchestrator) { o.system = prompt }
}

// WithToolConcurrency bounds the tool calls run at once within one step.
// Zero or less means unbounded.
func WithToolConcurrency(n int) Option {
	return func(o *Orchestrator) { o.toolLimit = n }
}

// NewOrchestrator creates an orchestrator on top of planner.
func NewOrchestrator(planner Planner, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		planner:       planner,
		maxIterations: DefaultMaxIterations,
		system:        SystemPrompt,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run answers one message. It never fails: a missing credential, a model
// error and an exhausted iteration budget each produce a fixed reply.
func (o *Orchestrator) Run(ctx context.Context, tools Toolbox, req Request) *Reply {
	log := logger.Component(logger.FromContext(ctx), "agent")
	start := time.Now()

	reply := &Reply{
		History: append(append([]domain.ConversationTurn(nil), req.History...),
			domain.ConversationTurn{Role: domain.RoleUser, Content: req.Message}),
		State: StateAwaitingPlan,
	}

	if err := o.planner.Ready(); err != nil {
		log.Warn().Err(err).Msg("assistant disabled")
		reply.Text = ReplyDisabled
		reply.State = StateDone
		return reply
	}

	messages := append(toMessages(req.History), llm.Message{Role: llm.MessageUser, Text: req.Message})
	decls := tools.Declarations()

	for reply.Iterations < o.maxIterations {
		reply.Iterations++
		reply.State = StateAwaitingPlan

		resp, err := o.planner.Plan(ctx, llm.PlanRequest{
			System:   o.system,
			Messages: messages,
			Tools:    decls,
		})
		if err != nil {
			log.Error().Err(err).Int("iteration", reply.Iterations).Msg("planner failed")
			reply.Text = ReplyError
			if domain.IsConfiguration(err) {
				reply.Text = ReplyDisabled
			}
			reply.State = StateDone
			return reply
		}

		if len(resp.Calls) == 0 {
			reply.Text = resp.Text
			reply.State = StateDone
			reply.History = append(reply.History, domain.ConversationTurn{Role: domain.RoleAssistant, Content: resp.Text})
			log.Info().
				Int("iterations", reply.Iterations).
				Int("tool_calls", len(reply.ToolCalls)).
				Dur("duration", time.Since(start)).
				Msg("chat completed")
			return reply
		}

		reply.State = StateExecutingTool
		results := o.execute(ctx, tools, resp.Calls)
		for i, call := range resp.Calls {
			reply.ToolCalls = append(reply.ToolCalls, domain.ToolInvocation{
				ID:        call.ID,
				Name:      call.Name,
				Arguments: call.Args,
				Result:    results[i].Output,
			})
		}
		messages = append(messages,
			llm.Message{Role: llm.MessageAssistant, Text: resp.Text, Calls: resp.Calls},
			llm.Message{Role: llm.MessageTool, Results: results},
		)
	}

	log.Warn().Int("max_iterations", o.maxIterations).Msg("iteration budget exhausted")
	reply.Text = ReplyError
	reply.State = StateDone
	return reply
}

// execute runs the calls of one step concurrently. Result i belongs to call i.
func (o *Orchestrator) execute(ctx context.Context, tools Toolbox, calls []llm.FunctionCall) []llm.FunctionResult {
	results := make([]llm.FunctionResult, len(calls))

	var g errgroup.Group
	if o.toolLimit > 0 {
		g.SetLimit(o.toolLimit)
	}
	for i, call := range calls {
		g.Go(func() error {
			results[i] = llm.FunctionResult{
				ID:     call.ID,
				Name:   call.Name,
				Output: tools.Invoke(ctx, call.Name, call.Args),
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// toMessages keeps user and assistant turns and drops any other role.
func toMessages(history []domain.ConversationTurn) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+1)
	for _, turn := range history {
		switch turn.Role {
		case domain.RoleUser:
			messages = append(messages, llm.Message{Role: llm.MessageUser, Text: turn.Content})
		case domain.RoleAssistant:
			messages = append(messages, llm.Message{Role: llm.MessageAssistant, Text: turn.Content})
		}
	}
	return messages
}
