package syncer_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"

	"github.com/engramlabs/engram/pkg/adapter/mock"
	"github.com/engramlabs/engram/pkg/model"
	"github.com/engramlabs/engram/pkg/repository"
	"github.com/engramlabs/engram/pkg/usecase/memory"
	"github.com/engramlabs/engram/pkg/usecase/syncer"
)

const testAgentID = "agent-test"

func newAgent() *mock.Agent {
	return &mock.Agent{
		Blocks: []*model.MemoryBlock{
			{Label: "persona", Value: "I am a helpful research assistant"},
			{Label: "human", Value: "The user works on quantum finance models"},
		},
		Messages: []*model.AgentMessage{
			{ID: "m1", Role: "user", Text: "what did we discuss yesterday", CreatedAt: time.Now()},
			{ID: "m2", Role: "assistant", Text: "we reviewed the portfolio risk model", CreatedAt: time.Now()},
			{ID: "m3", Role: "assistant", Text: "searched the web for rates", ToolCallID: "tc-1", CreatedAt: time.Now()},
		},
	}
}

func setup(t *testing.T, agent *mock.Agent) (*syncer.Coordinator, *repository.Memory) {
	repo := repository.NewMemory()
	engine := memory.New(repo, mock.NewEmbedder(64))
	c := syncer.New(agent, engine, repo, testAgentID, syncer.WithWorkers(2))
	return c, repo
}

func TestSync(t *testing.T) {
	ctx := context.Background()
	c, repo := setup(t, newAgent())

	gt.Equal(t, c.State(), syncer.StateIdle)

	report, err := c.Sync(ctx)
	gt.NoError(t, err)
	gt.Equal(t, c.State(), syncer.StateDone)
	gt.Equal(t, report.ItemsSynced, 5)
	gt.Equal(t, report.ItemsSkipped, 0)
	gt.A(t, report.Errors).Length(0)

	counts, err := repo.CountBySource(ctx)
	gt.NoError(t, err)
	gt.Equal(t, counts[model.SourceCoreMemory], 2)
	gt.Equal(t, counts[model.SourceChatHistory], 3)
}

func TestSyncIdempotent(t *testing.T) {
	ctx := context.Background()
	c, repo := setup(t, newAgent())

	first, err := c.Sync(ctx)
	gt.NoError(t, err)
	gt.Equal(t, first.ItemsSynced, 5)

	second, err := c.Sync(ctx)
	gt.NoError(t, err)
	gt.Equal(t, second.ItemsSynced, 0)
	gt.Equal(t, second.ItemsSkipped, 5)

	records, err := repo.ListRecent(ctx, 100)
	gt.NoError(t, err)
	gt.A(t, records).Length(5)
}

func TestSyncDuplicateItems(t *testing.T) {
	ctx := context.Background()
	agent := newAgent()
	// Two messages with identical role and text share a fingerprint
	agent.Messages = []*model.AgentMessage{
		{ID: "m1", Role: "user", Text: "hello"},
		{ID: "m2", Role: "user", Text: "hello"},
	}
	c, repo := setup(t, agent)

	report, err := c.Sync(ctx)
	gt.NoError(t, err)
	gt.Equal(t, report.ItemsSynced, 3)

	records, err := repo.ListRecent(ctx, 100)
	gt.NoError(t, err)
	gt.A(t, records).Length(3)
}

func TestSyncPartialFailure(t *testing.T) {
	ctx := context.Background()
	agent := newAgent()
	repo := repository.NewMemory()
	embedder := mock.NewEmbedder(64)
	embedder.FailOn = "portfolio risk"
	engine := memory.New(repo, embedder)
	c := syncer.New(agent, engine, repo, testAgentID)

	report, err := c.Sync(ctx)
	gt.NoError(t, err)
	gt.Equal(t, c.State(), syncer.StateDone)
	gt.Equal(t, report.ItemsSynced, 4)
	gt.A(t, report.Errors).Length(1)
	gt.S(t, report.Errors[0].Text).Contains("portfolio risk")

	records, err := repo.ListRecent(ctx, 100)
	gt.NoError(t, err)
	gt.A(t, records).Length(4)

	// The failed item is retried on the next run because its fingerprint
	// never reached the cursor
	embedder.FailOn = ""
	retry, err := c.Sync(ctx)
	gt.NoError(t, err)
	gt.Equal(t, retry.ItemsSynced, 1)
	gt.Equal(t, retry.ItemsSkipped, 4)
}

func TestSyncFetchFailure(t *testing.T) {
	ctx := context.Background()
	agent := newAgent()
	agent.FetchErr = goerr.Wrap(model.ErrAgentUnreachable, "connection refused")
	c, repo := setup(t, agent)

	_, err := c.Sync(ctx)
	gt.Error(t, err)
	gt.Equal(t, c.State(), syncer.StateFailed)

	records, err := repo.ListRecent(ctx, 100)
	gt.NoError(t, err)
	gt.A(t, records).Length(0)
}

func TestSyncMetadata(t *testing.T) {
	ctx := context.Background()
	c, repo := setup(t, newAgent())

	_, err := c.Sync(ctx)
	gt.NoError(t, err)

	records, err := repo.ListRecent(ctx, 100)
	gt.NoError(t, err)

	var toolTagged, blockTagged int
	for _, r := range records {
		gt.Equal(t, r.Metadata[model.MetaAgentID], testAgentID)
		switch r.Metadata[model.MetaSource] {
		case model.SourceCoreMemory:
			blockTagged++
			gt.V(t, r.Metadata[model.MetaType]).NotEqual("")
		case model.SourceChatHistory:
			gt.V(t, r.Metadata[model.MetaRole]).NotEqual("")
			gt.V(t, r.Metadata[model.MetaMessageID]).NotEqual("")
			if r.Metadata[model.MetaType] == model.TypeToolUsage {
				toolTagged++
			}
		}
	}
	gt.Equal(t, blockTagged, 2)
	gt.Equal(t, toolTagged, 1)
}

func TestSyncSkipsEmptyText(t *testing.T) {
	ctx := context.Background()
	agent := newAgent()
	agent.Blocks = append(agent.Blocks, &model.MemoryBlock{Label: "scratch", Value: ""})
	agent.Messages = append(agent.Messages, &model.AgentMessage{ID: "m4", Role: "system", Text: ""})
	c, _ := setup(t, agent)

	report, err := c.Sync(ctx)
	gt.NoError(t, err)
	gt.Equal(t, report.ItemsSynced, 5)
	gt.A(t, report.Errors).Length(0)
}
