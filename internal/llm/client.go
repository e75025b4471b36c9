// Package llm is the Gemini-backed model caller: structured JSON generation
// for the extraction pipelines and function-calling turns for the agent.
package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/Harikeshav-R/Penny/internal/domain"
	"google.golang.org/genai"
)

// DefaultModelName is the default Gemini model.
const DefaultModelName = "gemini-2.5-flash"

// Backends accepted by Config.Backend.
const (
	BackendGemini = "gemini"
	BackendVertex = "vertex"
)

// Config selects the backend and carries its credential.
type Config struct {
	Backend  string
	APIKey   string
	Project  string
	Location string
	Model    string
}

// Client lazily creates the genai client on first use, so a process without
// credentials can still start with AI features disabled.
type Client struct {
	cfg Config

	once    sync.Once
	client  *genai.Client
	initErr error
}

// NewClient returns a client for cfg. No network calls are made.
func NewClient(cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModelName
	}
	if cfg.Backend == "" {
		cfg.Backend = BackendGemini
	}
	return &Client{cfg: cfg}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.cfg.Model
}

// Ready reports a configuration error when the credential for the selected
// backend is absent.
func (c *Client) Ready() error {
	switch c.cfg.Backend {
	case BackendVertex:
		if c.cfg.Project == "" {
			return domain.NewConfigurationError("GOOGLE_CLOUD_PROJECT is not set")
		}
	default:
		if c.cfg.APIKey == "" {
			return domain.NewConfigurationError("GEMINI_API_KEY is not set")
		}
	}
	return nil
}

func (c *Client) genai(ctx context.Context) (*genai.Client, error) {
	if err := c.Ready(); err != nil {
		return nil, err
	}

	c.once.Do(func() {
		cc := &genai.ClientConfig{
			Backend: genai.BackendGeminiAPI,
			APIKey:  c.cfg.APIKey,
		}
		if c.cfg.Backend == BackendVertex {
			cc = &genai.ClientConfig{
				Backend:     genai.BackendVertexAI,
				Project:     c.cfg.Project,
				Location:    c.cfg.Location,
				HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
			}
		}
		c.client, c.initErr = genai.NewClient(ctx, cc)
	})
	if c.initErr != nil {
		return nil, domain.NewConfigurationError(fmt.Sprintf("create genai client: %v", c.initErr))
	}
	return c.client, nil
}
