// Package syncer pulls an agent's core memory blocks and chat history into the
// memory store. Syncs are idempotent: every item carries a content fingerprint
// and the per-agent cursor records which fingerprints are already stored.
package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/errgroup"

	"github.com/engramlabs/engram/pkg/adapter"
	"github.com/engramlabs/engram/pkg/model"
	"github.com/engramlabs/engram/pkg/repository"
	"github.com/engramlabs/engram/pkg/usecase/memory"
	"github.com/engramlabs/engram/pkg/utils/logging"
)

// State is the coordinator lifecycle phase, observable while a sync runs.
type State string

const (
	StateIdle     State = "idle"
	StateFetching State = "fetching_agent_state"
	StateStoring  State = "embedding_and_storing"
	StateDone     State = "done"
	StateFailed   State = "failed"
)

const (
	defaultMessageLimit = 100
	defaultWorkers      = 4
)

// ItemError records a single item that failed during a sync without aborting
// the rest of the batch.
type ItemError struct {
	Fingerprint string
	Text        string
	Err         error
}

// Report summarizes one sync run.
type Report struct {
	ItemsSynced  int
	ItemsSkipped int
	Errors       []*ItemError
	Duration     time.Duration
}

// Coordinator drives the fetch-embed-store pipeline for one agent.
type Coordinator struct {
	agent   adapter.Agent
	engine  *memory.UseCase
	repo    repository.Repository
	agentID string

	messageLimit int
	workers      int

	mu    sync.Mutex
	state State
}

type Option func(*Coordinator)

func WithMessageLimit(limit int) Option {
	return func(c *Coordinator) {
		c.messageLimit = limit
	}
}

func WithWorkers(n int) Option {
	return func(c *Coordinator) {
		c.workers = n
	}
}

// New creates a new sync coordinator
func New(agent adapter.Agent, engine *memory.UseCase, repo repository.Repository, agentID string, opts ...Option) *Coordinator {
	c := &Coordinator{
		agent:        agent,
		engine:       engine,
		repo:         repo,
		agentID:      agentID,
		messageLimit: defaultMessageLimit,
		workers:      defaultWorkers,
		state:        StateIdle,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// State returns the current lifecycle phase.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

type syncItem struct {
	fingerprint string
	text        string
	metadata    map[string]string
}

// Sync fetches the agent's memory blocks and recent messages, then embeds and
// stores every item not yet recorded in the cursor. A failed item is reported
// in the Report and never aborts the remaining items; a failed fetch aborts
// the whole run.
func (c *Coordinator) Sync(ctx context.Context) (*Report, error) {
	start := time.Now()
	logger := logging.From(ctx)

	c.setState(StateFetching)

	blocks, err := c.agent.GetMemoryBlocks(ctx, c.agentID)
	if err != nil {
		c.setState(StateFailed)
		return nil, goerr.Wrap(err, "failed to fetch agent memory blocks", goerr.V("agent_id", c.agentID))
	}

	messages, err := c.agent.GetMessages(ctx, c.agentID, c.messageLimit)
	if err != nil {
		c.setState(StateFailed)
		return nil, goerr.Wrap(err, "failed to fetch agent messages", goerr.V("agent_id", c.agentID))
	}

	items := c.buildItems(blocks, messages)

	cursor, err := c.repo.GetCursor(ctx, c.agentID)
	if err != nil {
		c.setState(StateFailed)
		return nil, err
	}
	seen := cursor.Set()

	c.setState(StateStoring)

	report := &Report{}
	var mu sync.Mutex

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(c.workers)

	for _, item := range items {
		if _, ok := seen[item.fingerprint]; ok {
			report.ItemsSkipped++
			continue
		}

		eg.Go(func() error {
			// Insert before cursor update: a crash between the two may
			// duplicate an item on the next run, but never lose one.
			_, err := c.engine.Insert(ctx, item.text, item.metadata)
			if err != nil {
				mu.Lock()
				report.Errors = append(report.Errors, &ItemError{
					Fingerprint: item.fingerprint,
					Text:        item.text,
					Err:         err,
				})
				mu.Unlock()
				return nil
			}

			mu.Lock()
			report.ItemsSynced++
			mu.Unlock()

			if err := c.repo.MarkSynced(ctx, c.agentID, item.fingerprint); err != nil {
				// The record itself is durable; only the dedup marker is lost
				mu.Lock()
				report.Errors = append(report.Errors, &ItemError{
					Fingerprint: item.fingerprint,
					Text:        item.text,
					Err:         err,
				})
				mu.Unlock()
			}
			return nil
		})
	}

	// Workers report per-item errors through the report, never through eg
	_ = eg.Wait()

	report.Duration = time.Since(start)
	c.setState(StateDone)

	logger.Info("sync completed",
		"agent_id", c.agentID,
		"synced", report.ItemsSynced,
		"skipped", report.ItemsSkipped,
		"errors", len(report.Errors),
		"duration", report.Duration,
	)

	return report, nil
}

// buildItems converts agent state into sync items, dropping empty texts and
// deduplicating identical fingerprints within the batch.
func (c *Coordinator) buildItems(blocks []*model.MemoryBlock, messages []*model.AgentMessage) []*syncItem {
	var items []*syncItem
	batch := make(map[string]struct{})

	add := func(item *syncItem) {
		if _, ok := batch[item.fingerprint]; ok {
			return
		}
		batch[item.fingerprint] = struct{}{}
		items = append(items, item)
	}

	for _, block := range blocks {
		if block.Value == "" {
			continue
		}
		add(&syncItem{
			fingerprint: model.Fingerprint("block", block.Label, block.Value),
			text:        block.Value,
			metadata: map[string]string{
				model.MetaSource:  model.SourceCoreMemory,
				model.MetaType:    block.Label,
				model.MetaAgentID: c.agentID,
			},
		})
	}

	for _, msg := range messages {
		if msg.Text == "" {
			continue
		}
		metadata := map[string]string{
			model.MetaSource:    model.SourceChatHistory,
			model.MetaRole:      msg.Role,
			model.MetaAgentID:   c.agentID,
			model.MetaMessageID: msg.ID,
		}
		if !msg.CreatedAt.IsZero() {
			metadata[model.MetaTimestamp] = msg.CreatedAt.UTC().Format(time.RFC3339)
		}
		if msg.ToolCallID != "" {
			metadata[model.MetaType] = model.TypeToolUsage
		}
		add(&syncItem{
			fingerprint: model.Fingerprint("message", msg.Role, msg.Text),
			text:        msg.Text,
			metadata:    metadata,
		})
	}

	return items
}
