package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/go115/cloud115/internal/config"
	"github.com/go115/cloud115/internal/fakeremote"
	"github.com/go115/cloud115/internal/logger"
)

type failConfig struct {
	rate float64
	code int
}

func main() {
	app := &cli.App{
		Name:  "cloud115-sandbox",
		Usage: "Serve an in-memory 115 account for local development",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "listen address", Value: ":8115"},
			&cli.StringFlag{Name: "seed", Usage: "path to a JSON seed of directories, files and tasks"},
			&cli.DurationFlag{Name: "latency", Usage: "artificial latency to inject per request"},
			&cli.StringFlag{Name: "fail", Usage: "failure injection (rate=<float>,code=<httpStatus>)"},
			&cli.IntFlag{Name: "page-size", Usage: "maximum entries per directory listing", Value: 1150},
			&cli.BoolFlag{Name: "sign-check", Usage: "ask for a range hash before instant uploads"},
			&cli.BoolFlag{Name: "rotate-cookies", Usage: "issue a fresh SEID cookie on every request"},
			&cli.StringFlag{Name: "log-level", Usage: "log level", Value: "info", EnvVars: []string{config.KeyLogLevel}},
		},
		Action: serve,
	}
	if err := app.Run(os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg("sandbox failed")
	}
}

func serve(c *cli.Context) error {
	logger.SetLevel(c.String("log-level"))

	failCfg, err := parseFailConfig(c.String("fail"))
	if err != nil {
		return fmt.Errorf("parse fail flag: %w", err)
	}

	opts := []fakeremote.Option{
		fakeremote.WithLogger(logger.Log),
		fakeremote.WithFilePageSize(c.Int("page-size")),
		fakeremote.WithLatency(c.Duration("latency")),
		fakeremote.WithFailures(failCfg.rate, failCfg.code),
	}
	if c.Bool("sign-check") {
		opts = append(opts, fakeremote.WithSignCheck())
	}
	if c.Bool("rotate-cookies") {
		opts = append(opts, fakeremote.WithCookieRotation())
	}
	remote := fakeremote.New(opts...)

	if path := c.String("seed"); path != "" {
		seed, err := fakeremote.LoadSeed(path)
		if err != nil {
			return fmt.Errorf("load seed: %w", err)
		}
		if err := remote.Apply(seed); err != nil {
			return fmt.Errorf("apply seed: %w", err)
		}
	}

	addr := c.String("addr")
	server := &http.Server{
		Addr:              addr,
		Handler:           remote,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Log.Info().Str("addr", addr).Msg("cloud115-sandbox listening")
	host := addr
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}
	w := c.App.Writer
	fmt.Fprintln(w)
	fmt.Fprintf(w, "export %s=http://%s\n", config.KeyBaseURL, host)
	fmt.Fprintf(w, "export %s=%s\n", config.KeyUID, fakeremote.DefaultUID)
	fmt.Fprintf(w, "export %s=%s\n", config.KeyCID, fakeremote.DefaultCID)
	fmt.Fprintf(w, "export %s=%s\n", config.KeySEID, fakeremote.DefaultSEID)
	fmt.Fprintf(w, "export %s=sandbox\n", config.KeyKID)
	fmt.Fprintln(w)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

func parseFailConfig(raw string) (failConfig, error) {
	if strings.TrimSpace(raw) == "" {
		return failConfig{}, nil
	}
	cfg := failConfig{code: http.StatusInternalServerError}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		keyVal := strings.SplitN(part, "=", 2)
		if len(keyVal) != 2 {
			return failConfig{}, fmt.Errorf("invalid fail segment %q", part)
		}
		switch strings.TrimSpace(keyVal[0]) {
		case "rate":
			val, err := strconv.ParseFloat(strings.TrimSpace(keyVal[1]), 64)
			if err != nil {
				return failConfig{}, err
			}
			if val < 0 || val > 1 {
				return failConfig{}, fmt.Errorf("fail rate %v outside [0, 1]", val)
			}
			cfg.rate = val
		case "code":
			val, err := strconv.Atoi(strings.TrimSpace(keyVal[1]))
			if err != nil {
				return failConfig{}, err
			}
			cfg.code = val
		default:
			return failConfig{}, fmt.Errorf("unknown fail key %q", keyVal[0])
		}
	}
	return cfg, nil
}
