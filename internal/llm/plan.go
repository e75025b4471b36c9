package llm

import (
	"context"
	"strings"

	"github.com/Harikeshav-R/Penny/internal/domain"
	"google.golang.org/genai"
)

// MessageRole is the author of a planning message.
type MessageRole string

const (
	MessageUser      MessageRole = "user"
	MessageAssistant MessageRole = "assistant"
	MessageTool      MessageRole = "tool"
)

// FunctionCall is a tool call requested by the model. ID is empty when the
// backend does not assign call ids; results are then matched by position.
type FunctionCall struct {
	ID   string
	Name string
	Args map[string]any
}

// FunctionResult is the observation returned to the model for one call.
type FunctionResult struct {
	ID     string
	Name   string
	Output string
}

// Message is one entry of the planning transcript. Assistant messages may
// carry calls; tool messages carry results.
type Message struct {
	Role    MessageRole
	Text    string
	Calls   []FunctionCall
	Results []FunctionResult
}

// PlanRequest is one planning step.
type PlanRequest struct {
	System   string
	Messages []Message
	Tools    []*genai.FunctionDeclaration
}

// PlanResponse is either a final answer (Text) or a list of calls.
type PlanResponse struct {
	Text  string
	Calls []FunctionCall
}

// Plan sends the transcript and tool catalog to the model and returns its
// next step.
func (c *Client) Plan(ctx context.Context, req PlanRequest) (*PlanResponse, error) {
	client, err := c.genai(ctx)
	if err != nil {
		return nil, err
	}

	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	if len(req.Tools) > 0 {
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: req.Tools}}
	}

	resp, err := client.Models.GenerateContent(ctx, c.cfg.Model, toContents(req.Messages), cfg)
	if err != nil {
		return nil, domain.NewTransientModelError("Plan: generate content", err)
	}

	return fromResponse(resp)
}

func fromResponse(resp *genai.GenerateContentResponse) (*PlanResponse, error) {
	if resp == nil {
		return nil, domain.NewTransientModelError("Plan: empty response from model", nil)
	}

	if calls := resp.FunctionCalls(); len(calls) > 0 {
		out := &PlanResponse{Calls: make([]FunctionCall, 0, len(calls))}
		for _, fc := range calls {
			out.Calls = append(out.Calls, FunctionCall{ID: fc.ID, Name: fc.Name, Args: fc.Args})
		}
		return out, nil
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, domain.NewTransientModelError("Plan: model returned neither text nor tool calls", nil)
	}
	return &PlanResponse{Text: text}, nil
}

// toContents maps the transcript onto genai roles: assistant turns become
// "model" content and tool results are sent back as user function responses.
func toContents(messages []Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case MessageAssistant:
			parts := make([]*genai.Part, 0, len(m.Calls)+1)
			if m.Text != "" {
				parts = append(parts, &genai.Part{Text: m.Text})
			}
			for _, call := range m.Calls {
				parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{
					ID:   call.ID,
					Name: call.Name,
					Args: call.Args,
				}})
			}
			if len(parts) > 0 {
				contents = append(contents, &genai.Content{Role: "model", Parts: parts})
			}
		case MessageTool:
			parts := make([]*genai.Part, 0, len(m.Results))
			for _, res := range m.Results {
				parts = append(parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
					ID:       res.ID,
					Name:     res.Name,
					Response: map[string]any{"output": res.Output},
				}})
			}
			if len(parts) > 0 {
				contents = append(contents, &genai.Content{Role: "user", Parts: parts})
			}
		default:
			contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{{Text: m.Text}}})
		}
	}
	return contents
}
