package model

import (
	"encoding/json"
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// AgentConfig identifies the external agent whose memory state is
// synchronized into the store. It is produced once by the setup command and
// read back by the sync coordinator.
type AgentConfig struct {
	AgentID   string `json:"agent_id"`
	AgentName string `json:"agent_name,omitempty"`
	AgentType string `json:"agent_type,omitempty"`
}

// LoadAgentConfig reads an agent configuration file written by Save.
func LoadAgentConfig(path string) (*AgentConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read agent config", goerr.V("path", path))
	}

	var cfg AgentConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, goerr.Wrap(err, "failed to parse agent config", goerr.V("path", path))
	}
	if cfg.AgentID == "" {
		return nil, goerr.Wrap(ErrInvalidInput, "agent config has no agent_id", goerr.V("path", path))
	}

	return &cfg, nil
}

// Save writes the agent configuration to path.
func (c *AgentConfig) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return goerr.Wrap(err, "failed to encode agent config")
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return goerr.Wrap(err, "failed to write agent config", goerr.V("path", path))
	}
	return nil
}

// MemoryBlock is a labeled block of the agent's core memory state.
type MemoryBlock struct {
	Label string
	Value string
}

// AgentMessage is one entry of the agent's message history. ToolCallID is
// non-empty when the message is part of a tool usage trace.
type AgentMessage struct {
	ID         string
	Role       string
	Text       string
	ToolCallID string
	CreatedAt  time.Time
}
