package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/engramlabs/engram/pkg/model"
	"github.com/engramlabs/engram/pkg/utils/backoff"
)

// Agent is the interface to the external conversational agent service. The
// engine only ever reads agent-side state; Send delivers a prompt and returns
// the reply without mutating anything this engine owns.
type Agent interface {
	CreateAgent(ctx context.Context, input *CreateAgentInput) (*model.AgentConfig, error)
	GetMemoryBlocks(ctx context.Context, agentID string) ([]*model.MemoryBlock, error)
	GetMessages(ctx context.Context, agentID string, limit int) ([]*model.AgentMessage, error)
	Send(ctx context.Context, agentID, prompt string) (string, error)
}

// CreateAgentInput describes the agent created by the setup command.
type CreateAgentInput struct {
	Name   string
	Blocks []*model.MemoryBlock
}

type agentClient struct {
	baseURL string
	token   string
	client  *http.Client
	policy  *backoff.Policy
}

type AgentOption func(*agentClient)

func WithAgentHTTPClient(c *http.Client) AgentOption {
	return func(a *agentClient) {
		a.client = c
	}
}

func WithAgentRetryPolicy(p *backoff.Policy) AgentOption {
	return func(a *agentClient) {
		a.policy = p
	}
}

// NewAgent creates an HTTP client for the agent service API.
func NewAgent(baseURL, token string, opts ...AgentOption) Agent {
	a := &agentClient{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 60 * time.Second},
		policy:  backoff.Default(),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Wire types. Fields required by the engine are validated after decoding so a
// malformed response surfaces as ErrMalformedResponse instead of leaking
// half-empty values inward.
type agentCreateRequest struct {
	Name   string           `json:"name"`
	Blocks []agentWireBlock `json:"memory_blocks"`
}

type agentCreateResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type agentWireBlock struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

type agentBlocksResponse struct {
	Blocks []agentWireBlock `json:"blocks"`
}

type agentWireMessage struct {
	ID         string    `json:"id"`
	Role       string    `json:"role"`
	Text       string    `json:"text"`
	ToolCallID string    `json:"tool_call_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type agentMessagesResponse struct {
	Messages []agentWireMessage `json:"messages"`
}

type agentSendRequest struct {
	Messages []agentWireMessage `json:"messages"`
}

func (a *agentClient) CreateAgent(ctx context.Context, input *CreateAgentInput) (*model.AgentConfig, error) {
	req := &agentCreateRequest{Name: input.Name}
	for _, block := range input.Blocks {
		req.Blocks = append(req.Blocks, agentWireBlock{Label: block.Label, Value: block.Value})
	}

	// Agent creation is not idempotent, so it gets a single attempt
	var resp agentCreateResponse
	if err := a.do(ctx, http.MethodPost, "/v1/agents", req, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, goerr.Wrap(model.ErrMalformedResponse, "agent creation returned no id")
	}

	return &model.AgentConfig{AgentID: resp.ID, AgentName: resp.Name}, nil
}

func (a *agentClient) GetMemoryBlocks(ctx context.Context, agentID string) ([]*model.MemoryBlock, error) {
	path := fmt.Sprintf("/v1/agents/%s/memory/blocks", agentID)

	resp, err := backoff.Do(ctx, a.policy, func() (*agentBlocksResponse, error) {
		var resp agentBlocksResponse
		if err := a.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
			return nil, err
		}
		return &resp, nil
	})
	if err != nil {
		return nil, err
	}

	blocks := make([]*model.MemoryBlock, 0, len(resp.Blocks))
	for _, block := range resp.Blocks {
		blocks = append(blocks, &model.MemoryBlock{Label: block.Label, Value: block.Value})
	}
	return blocks, nil
}

func (a *agentClient) GetMessages(ctx context.Context, agentID string, limit int) ([]*model.AgentMessage, error) {
	path := fmt.Sprintf("/v1/agents/%s/messages?limit=%d", agentID, limit)

	resp, err := backoff.Do(ctx, a.policy, func() (*agentMessagesResponse, error) {
		var resp agentMessagesResponse
		if err := a.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
			return nil, err
		}
		return &resp, nil
	})
	if err != nil {
		return nil, err
	}

	messages := make([]*model.AgentMessage, 0, len(resp.Messages))
	for _, msg := range resp.Messages {
		messages = append(messages, &model.AgentMessage{
			ID:         msg.ID,
			Role:       msg.Role,
			Text:       msg.Text,
			ToolCallID: msg.ToolCallID,
			CreatedAt:  msg.CreatedAt,
		})
	}
	return messages, nil
}

func (a *agentClient) Send(ctx context.Context, agentID, prompt string) (string, error) {
	path := fmt.Sprintf("/v1/agents/%s/messages", agentID)
	req := &agentSendRequest{
		Messages: []agentWireMessage{{Role: "user", Text: prompt}},
	}

	// A retried send could deliver the prompt twice, so no retry here either
	var resp agentMessagesResponse
	if err := a.do(ctx, http.MethodPost, path, req, &resp); err != nil {
		return "", err
	}

	var reply string
	for _, msg := range resp.Messages {
		if msg.Role == "assistant" && msg.Text != "" {
			if reply != "" {
				reply += " "
			}
			reply += msg.Text
		}
	}
	if reply == "" {
		return "", goerr.Wrap(model.ErrMalformedResponse, "agent reply contains no assistant text")
	}

	return reply, nil
}

func (a *agentClient) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return goerr.Wrap(err, "failed to encode agent request")
		}
		reqBody = bytes.NewBuffer(data)
	} else {
		reqBody = &bytes.Buffer{}
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reqBody)
	if err != nil {
		return goerr.Wrap(err, "failed to build agent request", goerr.V("path", path))
	}
	req.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	httpResp, err := a.client.Do(req)
	if err != nil {
		return goerr.Wrap(model.ErrAgentUnreachable, "agent request failed",
			goerr.V("path", path), goerr.V("cause", err.Error()))
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 400 {
		wrapped := goerr.Wrap(model.ErrAgentUnreachable, "agent returned error status",
			goerr.V("path", path), goerr.V("status", httpResp.StatusCode))
		if httpResp.StatusCode < 500 && httpResp.StatusCode != http.StatusTooManyRequests {
			return backoff.Permanent(wrapped)
		}
		return wrapped
	}

	if out != nil {
		if err := json.NewDecoder(httpResp.Body).Decode(out); err != nil {
			return backoff.Permanent(goerr.Wrap(model.ErrMalformedResponse, "failed to decode agent response",
				goerr.V("path", path), goerr.V("cause", err.Error())))
		}
	}

	return nil
}
