package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/kalutskii/etil-sterahstib/pkg/log"
)

const clientMetadataKey = "client"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout).RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:     "btsclient",
		Usage:    "query a BitShares node over its websocket api",
		Writer:   out,
		Metadata: map[string]any{},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config-dir",
				Aliases: []string{"c"},
				EnvVars: []string{configDirPathEnv},
				Value:   defaultConfigDirPath,
				Usage:   "directory holding .env and assets.yaml",
			},
			&cli.StringSliceFlag{
				Name:    "endpoint",
				Aliases: []string{"e"},
				Usage:   "node websocket url, repeat for failover (overrides BTS_ENDPOINTS)",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "per call timeout (overrides BTS_CALL_TIMEOUT)",
			},
			&cli.DurationFlag{
				Name:  "connect-timeout",
				Usage: "give up connecting after this long, 0 waits for the reconnect policy (overrides BTS_CONNECT_TIMEOUT)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error (overrides LOG_LEVEL)",
			},
		},
		Before: setup,
		After: func(c *cli.Context) error {
			if cl := clientFrom(c); cl != nil && !cl.interactive {
				cl.close()
				delete(c.App.Metadata, clientMetadataKey)
			}
			return nil
		},
		Commands: []*cli.Command{
			chainIDCommand(),
			accountCommand(),
			existsCommand(),
			balanceCommand(),
			historyCommand(),
			feesCommand(),
			memoCommand(),
			watchCommand(),
			shellCommand(),
		},
	}
}

// setup builds the client once; shell commands reuse it.
func setup(c *cli.Context) error {
	if clientFrom(c) != nil {
		return nil
	}

	cfg, err := LoadConfig(c.String("config-dir"))
	if err != nil {
		return err
	}
	if endpoints := c.StringSlice("endpoint"); len(endpoints) > 0 {
		cfg.rpc.Endpoints = endpoints
	}
	if c.IsSet("timeout") {
		cfg.rpc.CallTimeout = c.Duration("timeout")
	}
	if c.IsSet("connect-timeout") {
		cfg.connectTimeout = c.Duration("connect-timeout")
	}
	if c.IsSet("log-level") {
		cfg.log.Level = log.Level(c.String("log-level"))
	}

	logger := log.NewZapLogger(cfg.log).WithName("btsclient")
	for _, w := range cfg.warnings {
		logger.Debug(w)
	}

	c.App.Metadata[clientMetadataKey] = newClient(cfg, logger, c.App.Writer)
	return nil
}

func clientFrom(c *cli.Context) *client {
	cl, _ := c.App.Metadata[clientMetadataKey].(*client)
	return cl
}

// connected returns the client with its session open.
func connected(c *cli.Context) (*client, error) {
	cl := clientFrom(c)
	if cl == nil {
		return nil, fmt.Errorf("client is not initialized")
	}
	if err := cl.connect(c.Context); err != nil {
		return nil, err
	}
	return cl, nil
}
