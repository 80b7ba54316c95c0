package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/chzyer/readline"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/engramlabs/engram/pkg/adapter"
	"github.com/engramlabs/engram/pkg/model"
	"github.com/engramlabs/engram/pkg/usecase/memory"
	"github.com/engramlabs/engram/pkg/usecase/syncer"
)

// Trigger words that route a query to web search. The second set applies only
// when memory retrieval came back empty, lowering the threshold.
var (
	webTriggerWords      = []string{"latest", "recent", "current", "today", "news", "2024", "2025"}
	webTriggerWordsNoHit = []string{"what is", "how to", "when", "where", "who"}
)

func needsWebSearch(query string, memoryHits int) bool {
	lower := strings.ToLower(query)
	for _, w := range webTriggerWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	if memoryHits == 0 {
		for _, w := range webTriggerWordsNoHit {
			if strings.Contains(lower, w) {
				return true
			}
		}
	}
	return false
}

type chatSession struct {
	engine    *memory.UseCase
	agent     adapter.Agent
	websearch adapter.WebSearch
	sync      *syncer.Coordinator
	agentID   string
	out       io.Writer

	queries     int
	memoryHits  int
	webSearches int
	startedAt   time.Time
}

func chatCommand() *cli.Command {
	var cfg config

	flags := globalFlags(&cfg)
	flags = append(flags, embeddingFlags(&cfg)...)
	flags = append(flags, agentFlags(&cfg)...)
	flags = append(flags, websearchFlags(&cfg)...)

	return &cli.Command{
		Name:  "chat",
		Usage: "Interactive chat with memory retrieval and web search",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.withLogger(ctx)

			agentCfg, err := model.LoadAgentConfig(cfg.agentConfigPath)
			if err != nil {
				return goerr.Wrap(err, "failed to load agent config, run 'engram setup' first")
			}

			repo, closeRepo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer closeRepo()

			embedder, err := cfg.newEmbedder(ctx)
			if err != nil {
				return err
			}

			agent, err := cfg.newAgent()
			if err != nil {
				return err
			}

			engine := memory.New(repo, embedder)
			session := &chatSession{
				engine:    engine,
				agent:     agent,
				websearch: cfg.newWebSearch(),
				sync:      syncer.New(agent, engine, repo, agentCfg.AgentID),
				agentID:   agentCfg.AgentID,
				out:       c.Root().Writer,
				startedAt: time.Now(),
			}

			return session.run(ctx)
		},
	}
}

func (s *chatSession) run(ctx context.Context) error {
	rl, err := readline.New("> ")
	if err != nil {
		return goerr.Wrap(err, "failed to initialize readline")
	}
	defer rl.Close()

	fmt.Fprintf(s.out, "Chat session started. Type 'help' for commands, 'exit' to quit.\n")

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			if errors.Is(err, io.EOF) {
				break
			}
			return goerr.Wrap(err, "failed to read input")
		}

		input := strings.TrimSpace(line)
		switch input {
		case "":
			continue
		case "exit", "quit":
			s.printSummary()
			return nil
		case "help":
			s.printHelp()
			continue
		case "stats":
			s.printStats(ctx)
			continue
		case "sync":
			s.runSync(ctx)
			continue
		}

		reply, err := s.process(ctx, input)
		if err != nil {
			fmt.Fprintf(s.out, "error: %s\n", err.Error())
			continue
		}
		fmt.Fprintf(s.out, "%s\n", reply)
	}

	s.printSummary()
	return nil
}

// process answers one query: retrieve memories, optionally search the web,
// send the augmented prompt to the agent, and write the exchange back to
// memory for future retrieval.
func (s *chatSession) process(ctx context.Context, query string) (string, error) {
	s.queries++

	sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	sp.Suffix = " searching memory..."
	sp.Start()
	searchOut, err := s.engine.Search(ctx, query, 5)
	sp.Stop()
	if err != nil {
		return "", err
	}

	if len(searchOut.Results) > 0 {
		s.memoryHits++
		fmt.Fprintf(s.out, "found %d relevant memories", len(searchOut.Results))
		if searchOut.Fallback {
			fmt.Fprintf(s.out, " (text fallback)")
		}
		fmt.Fprintf(s.out, "\n")
	}

	webContext := s.searchWebIfNeeded(ctx, query, len(searchOut.Results))

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "User query: %s\n\n", query)
	if block := memory.FormatForPrompt(searchOut.Results); block != "" {
		prompt.WriteString(block)
		prompt.WriteString("\n")
	}
	if webContext != "" {
		fmt.Fprintf(&prompt, "Current web information:\n%s\n\n", webContext)
	}
	prompt.WriteString("Please provide a comprehensive response using the available context.")

	sp.Suffix = " waiting for agent..."
	sp.Start()
	reply, err := s.agent.Send(ctx, s.agentID, prompt.String())
	sp.Stop()
	if err != nil {
		return "", err
	}

	// Write the exchange back so future sessions can retrieve it
	interaction := fmt.Sprintf("Q: %s\nA: %s", query, reply)
	if _, err := s.engine.Insert(ctx, interaction, map[string]string{
		model.MetaSource:  model.SourceChat,
		model.MetaAgentID: s.agentID,
		model.MetaQuery:   query,
	}); err != nil {
		fmt.Fprintf(s.out, "warning: failed to store interaction: %s\n", err.Error())
	}

	return reply, nil
}

// searchWebIfNeeded runs a web search for recency-flavored queries and stores
// the result. A failed search degrades to no web context, never to an error.
func (s *chatSession) searchWebIfNeeded(ctx context.Context, query string, memoryHits int) string {
	if s.websearch == nil || !needsWebSearch(query, memoryHits) {
		return ""
	}

	sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	sp.Suffix = " searching the web..."
	sp.Start()
	result, err := s.websearch.Search(ctx, query)
	sp.Stop()
	if err != nil {
		fmt.Fprintf(s.out, "warning: web search failed: %s\n", err.Error())
		return ""
	}
	s.webSearches++

	var sb strings.Builder
	if result.Answer != "" {
		sb.WriteString(result.Answer)
		sb.WriteString("\n")
	}
	for _, hit := range result.Results {
		fmt.Fprintf(&sb, "- %s (%s): %s\n", hit.Title, hit.URL, hit.Snippet)
	}
	webText := sb.String()

	summary := fmt.Sprintf("Web search results for '%s': %s", query, webText)
	if _, err := s.engine.Insert(ctx, summary, map[string]string{
		model.MetaSource: model.SourceWebSearch,
		model.MetaQuery:  query,
	}); err != nil {
		fmt.Fprintf(s.out, "warning: failed to store web search result: %s\n", err.Error())
	}

	return webText
}

func (s *chatSession) runSync(ctx context.Context) {
	sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	sp.Suffix = " syncing agent memory..."
	sp.Start()
	report, err := s.sync.Sync(ctx)
	sp.Stop()
	if err != nil {
		fmt.Fprintf(s.out, "sync failed: %s\n", err.Error())
		return
	}
	printReport(s.out, report)
}

func (s *chatSession) printHelp() {
	fmt.Fprintf(s.out, "commands:\n")
	fmt.Fprintf(s.out, "  help   show this help\n")
	fmt.Fprintf(s.out, "  stats  show session and memory statistics\n")
	fmt.Fprintf(s.out, "  sync   pull agent memory into the store\n")
	fmt.Fprintf(s.out, "  exit   end the session\n")
}

func (s *chatSession) printStats(ctx context.Context) {
	fmt.Fprintf(s.out, "session: %s, %s, web searches: %d\n",
		time.Since(s.startedAt).Round(time.Second),
		memory.Summarize(s.queries, s.memoryHits),
		s.webSearches,
	)

	stats, err := s.engine.Stats(ctx)
	if err != nil {
		fmt.Fprintf(s.out, "failed to load memory stats: %s\n", err.Error())
		return
	}
	printStats(s.out, stats)
}

func (s *chatSession) printSummary() {
	fmt.Fprintf(s.out, "\nSession ended: %s\n", memory.Summarize(s.queries, s.memoryHits))
}
