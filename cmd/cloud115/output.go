package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/go115/cloud115/pkg/cloud115"
)

var (
	dirColor     = color.New(color.FgBlue, color.Bold)
	labelColor   = color.New(color.Faint)
	okColor      = color.New(color.FgGreen)
	warnColor    = color.New(color.FgYellow)
	failColor    = color.New(color.FgRed)
	timeLayout   = "2006-01-02 15:04"
	sizeSuffixes = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}
)

func printKV(c *cli.Context, key, value string) {
	fmt.Fprintf(c.App.Writer, "%s %s\n", labelColor.Sprintf("%-10s", key+":"), value)
}

func printFile(c *cli.Context, f cloud115.File) {
	if f.IsDir {
		fmt.Fprintf(c.App.Writer, "%-20s %10s  %s  %s\n", f.ID, "-", formatTime(f.ModifyTime), dirColor.Sprint(f.Name+"/"))
		return
	}
	fmt.Fprintf(c.App.Writer, "%-20s %10s  %s  %s  %s\n", f.ID, humanSize(f.Size), formatTime(f.ModifyTime), f.Name, labelColor.Sprint(f.PickCode))
}

func printTask(c *cli.Context, t cloud115.Task) {
	fmt.Fprintf(c.App.Writer, "%s  %s  %6.1f%%  %10s  %s\n", t.InfoHash, statusLabel(t.Status), t.Percent, humanSize(t.Size), t.Name)
}

func statusLabel(s cloud115.TaskStatus) string {
	label := fmt.Sprintf("%-8s", s)
	switch s {
	case cloud115.TaskComplete:
		return okColor.Sprint(label)
	case cloud115.TaskFailed:
		return failColor.Sprint(label)
	case cloud115.TaskRunning:
		return warnColor.Sprint(label)
	default:
		return label
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return fmt.Sprintf("%-16s", "-")
	}
	return t.Local().Format(timeLayout)
}

func humanSize(n int64) string {
	if n < 1024 {
		return fmt.Sprintf("%d B", n)
	}
	value := float64(n)
	unit := 0
	for value >= 1024 && unit < len(sizeSuffixes)-1 {
		value /= 1024
		unit++
	}
	return fmt.Sprintf("%.1f %s", value, sizeSuffixes[unit])
}
