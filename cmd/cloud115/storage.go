package main

import (
	"fmt"
	"sort"

	"github.com/urfave/cli/v2"

	"github.com/go115/cloud115/pkg/cloud115"
)

const rootDirID = "0"

func listCommand() *cli.Command {
	return &cli.Command{
		Name:      "ls",
		Usage:     "List a directory",
		ArgsUsage: "[DIR_ID]",
		Action: withAgent(func(c *cli.Context, agent *cloud115.Agent) error {
			dirID := rootDirID
			if c.NArg() > 0 {
				dirID = c.Args().First()
			}
			it := agent.Storage().List(c.Context, dirID)
			for it.Next() {
				printFile(c, it.Item())
			}
			return it.Err()
		}),
	}
}

func makeDirCommand() *cli.Command {
	return &cli.Command{
		Name:      "mkdir",
		Usage:     "Create a directory",
		ArgsUsage: "PARENT_ID NAME",
		Action: withAgent(func(c *cli.Context, agent *cloud115.Agent) error {
			if c.NArg() != 2 {
				return cli.Exit("mkdir takes a parent id and a name", 2)
			}
			dir, err := agent.Storage().MakeDir(c.Context, c.Args().Get(0), c.Args().Get(1))
			if err != nil {
				return err
			}
			printFile(c, *dir)
			return nil
		}),
	}
}

func moveCommand() *cli.Command {
	return &cli.Command{
		Name:      "mv",
		Usage:     "Move files into a directory",
		ArgsUsage: "TARGET_DIR_ID FILE_ID...",
		Action: withAgent(func(c *cli.Context, agent *cloud115.Agent) error {
			if c.NArg() < 2 {
				return cli.Exit("mv takes a target directory and at least one file id", 2)
			}
			args := c.Args().Slice()
			return agent.Storage().Move(c.Context, args[0], args[1:]...)
		}),
	}
}

func renameCommand() *cli.Command {
	return &cli.Command{
		Name:      "rename",
		Usage:     "Rename a file or directory",
		ArgsUsage: "FILE_ID NAME",
		Action: withAgent(func(c *cli.Context, agent *cloud115.Agent) error {
			if c.NArg() != 2 {
				return cli.Exit("rename takes a file id and a name", 2)
			}
			return agent.Storage().Rename(c.Context, c.Args().Get(0), c.Args().Get(1))
		}),
	}
}

func removeCommand() *cli.Command {
	return &cli.Command{
		Name:      "rm",
		Usage:     "Delete files or directories",
		ArgsUsage: "FILE_ID...",
		Action: withAgent(func(c *cli.Context, agent *cloud115.Agent) error {
			return agent.Storage().Delete(c.Context, c.Args().Slice()...)
		}),
	}
}

func spaceCommand() *cli.Command {
	return &cli.Command{
		Name:  "space",
		Usage: "Show quota usage",
		Action: withAgent(func(c *cli.Context, agent *cloud115.Agent) error {
			total, used, err := agent.Storage().Space(c.Context)
			if err != nil {
				return err
			}
			printKV(c, "total", humanSize(total))
			printKV(c, "used", humanSize(used))
			printKV(c, "free", humanSize(total-used))
			if total > 0 {
				printKV(c, "usage", fmt.Sprintf("%.1f%%", float64(used)*100/float64(total)))
			}
			return nil
		}),
	}
}

func sortedKeys(keys []string) []string {
	sort.Strings(keys)
	return keys
}
