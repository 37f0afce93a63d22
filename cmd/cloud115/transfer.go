package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/go115/cloud115/internal/config"
	"github.com/go115/cloud115/internal/logger"
	"github.com/go115/cloud115/pkg/cloud115"
	"github.com/go115/cloud115/pkg/ossupload"
	"github.com/go115/cloud115/pkg/retry"
)

func downloadCommand() *cli.Command {
	return &cli.Command{
		Name:      "download",
		Usage:     "Download a file by pick code",
		ArgsUsage: "PICKCODE",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output path, defaults to the remote file name"},
			&cli.DurationFlag{Name: "timeout", Usage: "give up when the download stalls this long (default: the configured request timeout)"},
		},
		Action: withAgent(func(c *cli.Context, agent *cloud115.Agent) error {
			if c.NArg() != 1 {
				return cli.Exit("download takes exactly one pick code", 2)
			}
			ticket, err := retry.Value(c.Context, retry.DefaultPolicy, func(ctx context.Context) (*cloud115.DownloadTicket, error) {
				return agent.Storage().RequestDownload(ctx, c.Args().First())
			})
			if err != nil {
				return err
			}
			if ticket == nil {
				return cli.Exit("pick code does not name a downloadable file", 1)
			}
			out := c.String("out")
			if out == "" {
				out = filepath.Base(ticket.FileName)
			}
			timeout := c.Duration("timeout")
			if timeout <= 0 {
				timeout = downloadTimeout()
			}
			n, err := fetch(c.Context, ticket, out, timeout)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "%s %s (%s)\n", okColor.Sprint("saved"), out, humanSize(n))
			return nil
		}),
	}
}

// fetch saves the ticket's URL to out. Connecting, the TLS handshake and
// the response headers are each bounded by timeout, and the transfer is
// aborted when no body bytes arrive for timeout.
func fetch(ctx context.Context, ticket *cloud115.DownloadTicket, out string, timeout time.Duration) (int64, error) {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ticket.URL, nil)
	if err != nil {
		return 0, err
	}
	req.Header = ticket.Headers.Clone()
	resp, err := newDownloadClient(timeout).Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("download %s: unexpected status %s", ticket.FileName, resp.Status)
	}

	f, err := os.Create(out)
	if err != nil {
		return 0, err
	}
	guard := time.AfterFunc(timeout, func() { cancel(errStalled) })
	defer guard.Stop()
	n, err := io.Copy(f, io.TeeReader(resp.Body, stallGuard{timer: guard, timeout: timeout}))
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if cause := context.Cause(ctx); err != nil && errors.Is(cause, errStalled) {
		return n, fmt.Errorf("download %s: %w", ticket.FileName, cause)
	}
	return n, err
}

var errStalled = errors.New("no data received before timeout")

func newDownloadClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: timeout}).DialContext,
			TLSHandshakeTimeout:   timeout,
			ResponseHeaderTimeout: timeout,
		},
	}
}

// stallGuard pushes back the stall deadline whenever bytes arrive.
type stallGuard struct {
	timer   *time.Timer
	timeout time.Duration
}

func (g stallGuard) Write(p []byte) (int, error) {
	if len(p) > 0 {
		g.timer.Reset(g.timeout)
	}
	return len(p), nil
}

func uploadCommand() *cli.Command {
	return &cli.Command{
		Name:      "upload",
		Usage:     "Upload local files into a directory",
		ArgsUsage: "FILE...",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dir", Usage: "target directory id", Value: rootDirID},
			&cli.IntFlag{Name: "jobs", Aliases: []string{"j"}, Usage: "files uploaded in parallel", Value: 2},
		},
		Action: withAgent(func(c *cli.Context, agent *cloud115.Agent) error {
			if c.NArg() == 0 {
				return cli.Exit("at least one file is required", 2)
			}
			uploader := ossupload.New(ossupload.WithLogger(logger.Log))

			g, ctx := errgroup.WithContext(c.Context)
			g.SetLimit(max(1, c.Int("jobs")))
			for _, path := range c.Args().Slice() {
				g.Go(func() error {
					return uploadFile(ctx, c, agent, uploader, c.String("dir"), path)
				})
			}
			return g.Wait()
		}),
	}
}

func uploadFile(ctx context.Context, c *cli.Context, agent *cloud115.Agent, uploader *ossupload.Uploader, dirID, path string) error {
	ticket, err := retry.Value(ctx, retry.DefaultPolicy, func(ctx context.Context) (*cloud115.UploadTicket, error) {
		return agent.Storage().RequestUpload(ctx, dirID, path)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if !ticket.NeedsTransfer() {
		fmt.Fprintf(c.App.Writer, "%s %s\n", okColor.Sprint("stored"), path)
		return nil
	}

	policy := retry.DefaultPolicy
	policy.RetryIf = func(err error) bool {
		return !errors.Is(err, ossupload.ErrExpired) && !errors.Is(err, ossupload.ErrNoCredential) &&
			!errors.Is(err, context.Canceled)
	}
	err = retry.Do(ctx, policy, func(ctx context.Context) error {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		return uploader.Transfer(ctx, ticket, f)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	fmt.Fprintf(c.App.Writer, "%s %s (%s)\n", okColor.Sprint("uploaded"), path, humanSize(ticket.Size))
	return nil
}

// downloadTimeout reuses the session's request timeout.
func downloadTimeout() time.Duration {
	if cfg, err := config.Load(); err == nil && cfg.Timeout > 0 {
		return cfg.Timeout
	}
	return httpTimeoutFallback
}

const httpTimeoutFallback = 30 * time.Second
