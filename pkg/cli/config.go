package cli

import (
	"context"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/engramlabs/engram/pkg/adapter"
	"github.com/engramlabs/engram/pkg/repository"
	"github.com/engramlabs/engram/pkg/utils/logging"
)

// config holds configuration values
type config struct {
	// Repository
	project  string
	database string
	local    bool

	// Logging
	logLevel string

	// Embedding
	geminiProject      string
	geminiLocation     string
	embeddingDimension int64

	// Agent service
	agentBaseURL    string
	agentToken      string
	agentConfigPath string

	// Web search
	tavilyAPIKey string
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "project",
			Aliases:     []string{"p"},
			Usage:       "Google Cloud project ID",
			Sources:     cli.EnvVars("GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.project,
		},
		&cli.StringFlag{
			Name:        "database",
			Aliases:     []string{"d"},
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("FIRESTORE_DATABASE_ID"),
			Destination: &cfg.database,
		},
		&cli.BoolFlag{
			Name:        "local",
			Usage:       "Use the in-process memory store instead of Firestore",
			Sources:     cli.EnvVars("ENGRAM_LOCAL"),
			Destination: &cfg.local,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("ENGRAM_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
	}
}

// embeddingFlags returns flags for the embedding provider with destination config
func embeddingFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.IntFlag{
			Name:        "embedding-dimension",
			Usage:       "Embedding vector dimension",
			Value:       1536,
			Sources:     cli.EnvVars("ENGRAM_EMBEDDING_DIMENSION"),
			Destination: &cfg.embeddingDimension,
		},
	}
}

// agentFlags returns flags for the agent service with destination config
func agentFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "agent-url",
			Usage:       "Base URL of the agent service API",
			Sources:     cli.EnvVars("ENGRAM_AGENT_URL"),
			Destination: &cfg.agentBaseURL,
		},
		&cli.StringFlag{
			Name:        "agent-token",
			Usage:       "API token for the agent service",
			Sources:     cli.EnvVars("ENGRAM_AGENT_TOKEN"),
			Destination: &cfg.agentToken,
		},
		&cli.StringFlag{
			Name:        "agent-config",
			Usage:       "Path to agent_config.json",
			Value:       "agent_config.json",
			Sources:     cli.EnvVars("ENGRAM_AGENT_CONFIG"),
			Destination: &cfg.agentConfigPath,
		},
	}
}

// websearchFlags returns flags for the web search collaborator
func websearchFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "tavily-api-key",
			Usage:       "Tavily API key for web search",
			Sources:     cli.EnvVars("TAVILY_API_KEY"),
			Destination: &cfg.tavilyAPIKey,
		},
	}
}

// withLogger builds the command logger from config and attaches it to ctx
func (cfg *config) withLogger(ctx context.Context) context.Context {
	logger := logging.New(cfg.logLevel, os.Stderr)
	logging.SetDefault(logger)
	return logging.With(ctx, logger)
}

// newRepository creates a new repository instance
func (cfg *config) newRepository(ctx context.Context) (repository.Repository, func() error, error) {
	if cfg.local {
		return repository.NewMemory(), func() error { return nil }, nil
	}

	if cfg.project == "" {
		return nil, nil, goerr.New("project is required")
	}
	if cfg.database == "" {
		return nil, nil, goerr.New("database is required")
	}

	repo, err := repository.New(ctx, cfg.project, cfg.database)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to create repository")
	}
	return repo, repo.Close, nil
}

// newEmbedder creates a new embedding provider instance
func (cfg *config) newEmbedder(ctx context.Context) (adapter.Embedder, error) {
	if cfg.geminiProject == "" {
		return nil, goerr.New("gemini-project is required")
	}
	if cfg.geminiLocation == "" {
		return nil, goerr.New("gemini-location is required")
	}

	embedder, err := adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation,
		adapter.WithEmbeddingDimension(int(cfg.embeddingDimension)))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create embedding client")
	}
	return embedder, nil
}

// newAgent creates a new agent service client
func (cfg *config) newAgent() (adapter.Agent, error) {
	if cfg.agentBaseURL == "" {
		return nil, goerr.New("agent-url is required")
	}
	return adapter.NewAgent(cfg.agentBaseURL, cfg.agentToken), nil
}

// newWebSearch creates a Tavily client, or nil when no API key is configured
func (cfg *config) newWebSearch() adapter.WebSearch {
	if cfg.tavilyAPIKey == "" {
		return nil
	}
	return adapter.NewTavily(cfg.tavilyAPIKey)
}
