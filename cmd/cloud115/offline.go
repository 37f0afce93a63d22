package main

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/go115/cloud115/pkg/cloud115"
)

var clearFlags = map[string]cloud115.ClearFlag{
	"done":        cloud115.ClearDone,
	"all":         cloud115.ClearAll,
	"failed":      cloud115.ClearFailed,
	"running":     cloud115.ClearRunning,
	"done-delete": cloud115.ClearDoneAndDelete,
	"all-delete":  cloud115.ClearAllAndDelete,
}

func tasksCommand() *cli.Command {
	return &cli.Command{
		Name:  "tasks",
		Usage: "List offline download tasks",
		Action: withAgent(func(c *cli.Context, agent *cloud115.Agent) error {
			it := agent.Offline().List(c.Context)
			for it.Next() {
				printTask(c, it.Item())
			}
			return it.Err()
		}),
	}
}

func addURLCommand() *cli.Command {
	return &cli.Command{
		Name:      "add-url",
		Usage:     "Create offline download tasks",
		ArgsUsage: "URL...",
		Action: withAgent(func(c *cli.Context, agent *cloud115.Agent) error {
			if c.NArg() == 0 {
				return cli.Exit("at least one URL is required", 2)
			}
			tasks, err := agent.Offline().AddURL(c.Context, c.Args().Slice()...)
			if err != nil {
				return err
			}
			for _, t := range tasks {
				if t.Status == cloud115.TaskFailed {
					fmt.Fprintf(c.App.Writer, "%s %s\n", failColor.Sprint("rejected"), t.URL)
					continue
				}
				printTask(c, t)
			}
			return nil
		}),
	}
}

func taskRemoveCommand() *cli.Command {
	return &cli.Command{
		Name:      "task-rm",
		Usage:     "Delete offline tasks by info hash",
		ArgsUsage: "INFOHASH...",
		Action: withAgent(func(c *cli.Context, agent *cloud115.Agent) error {
			return agent.Offline().Delete(c.Context, c.Args().Slice()...)
		}),
	}
}

func taskClearCommand() *cli.Command {
	names := make([]string, 0, len(clearFlags))
	for name := range clearFlags {
		names = append(names, name)
	}
	return &cli.Command{
		Name:  "task-clear",
		Usage: "Clear offline tasks by state",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "which",
				Usage: "tasks to clear: " + strings.Join(sortedKeys(names), ", "),
				Value: "done",
			},
		},
		Action: withAgent(func(c *cli.Context, agent *cloud115.Agent) error {
			flag, ok := clearFlags[c.String("which")]
			if !ok {
				return cli.Exit(fmt.Sprintf("unknown task selection %q", c.String("which")), 2)
			}
			return agent.Offline().Clear(c.Context, flag)
		}),
	}
}
