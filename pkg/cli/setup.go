package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/engramlabs/engram/pkg/adapter"
	"github.com/engramlabs/engram/pkg/model"
)

const (
	defaultPersona = "You are a highly proficient research assistant with advanced memory " +
		"capabilities. Your goal is to provide accurate, comprehensive, and well-sourced " +
		"information. You excel at understanding complex queries, breaking them down into " +
		"searchable components, and maintaining long-term context about previous research sessions."

	defaultHuman = "The user is seeking research assistance on various topics. They value " +
		"accuracy, comprehensive analysis, and well-sourced information. They prefer systematic " +
		"approaches to complex problems and appreciate when information is organized logically."
)

func setupCommand() *cli.Command {
	var (
		cfg       config
		agentName string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "name",
			Aliases:     []string{"n"},
			Usage:       "Name of the agent to create",
			Value:       "Research Memory Agent",
			Sources:     cli.EnvVars("ENGRAM_AGENT_NAME"),
			Destination: &agentName,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, agentFlags(&cfg)...)

	return &cli.Command{
		Name:  "setup",
		Usage: "Create an agent on the agent service and write agent_config.json",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.withLogger(ctx)

			agent, err := cfg.newAgent()
			if err != nil {
				return err
			}

			agentCfg, err := agent.CreateAgent(ctx, &adapter.CreateAgentInput{
				Name: agentName,
				Blocks: []*model.MemoryBlock{
					{Label: "persona", Value: defaultPersona},
					{Label: "human", Value: defaultHuman},
				},
			})
			if err != nil {
				return goerr.Wrap(err, "failed to create agent")
			}

			if err := agentCfg.Save(cfg.agentConfigPath); err != nil {
				return goerr.Wrap(err, "failed to write agent config",
					goerr.V("path", cfg.agentConfigPath))
			}

			fmt.Fprintf(c.Root().Writer, "Agent created: %s (%s)\n", agentCfg.AgentName, agentCfg.AgentID)
			fmt.Fprintf(c.Root().Writer, "Config written to %s\n", cfg.agentConfigPath)
			return nil
		},
	}
}
