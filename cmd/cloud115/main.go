package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/urfave/cli/v2"

	"github.com/go115/cloud115/internal/config"
	"github.com/go115/cloud115/internal/logger"
	"github.com/go115/cloud115/pkg/cloud115"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	app := &cli.App{
		Name:  "cloud115",
		Usage: "Manage files and offline tasks of a 115 account",
		Description: "Credentials are read from CLOUD115_UID, CLOUD115_CID, CLOUD115_SEID and CLOUD115_KID,\n" +
			"a .env file in the working directory or ~/.config/cloud115.yaml.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "log level (debug, info, warn, error)",
				EnvVars: []string{config.KeyLogLevel},
			},
		},
		Before: func(c *cli.Context) error {
			if lvl := c.String("log-level"); lvl != "" {
				logger.SetLevel(lvl)
			}
			return nil
		},
		Commands: []*cli.Command{
			whoamiCommand(),
			tasksCommand(),
			addURLCommand(),
			taskRemoveCommand(),
			taskClearCommand(),
			listCommand(),
			makeDirCommand(),
			moveCommand(),
			renameCommand(),
			removeCommand(),
			spaceCommand(),
			downloadCommand(),
			uploadCommand(),
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		logger.Log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// withAgent logs in before running action.
func withAgent(action func(c *cli.Context, agent *cloud115.Agent) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		agent, err := cloud115.NewFromConfig(c.Context, cfg)
		if err != nil {
			return err
		}
		if lvl := c.String("log-level"); lvl != "" {
			logger.SetLevel(lvl)
		}
		return action(c, agent)
	}
}

func whoamiCommand() *cli.Command {
	return &cli.Command{
		Name:  "whoami",
		Usage: "Show the logged in account",
		Action: withAgent(func(c *cli.Context, agent *cloud115.Agent) error {
			user := agent.User()
			printKV(c, "user id", user.ID)
			printKV(c, "user name", user.Name)
			return nil
		}),
	}
}
