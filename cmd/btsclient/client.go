package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/kalutskii/etil-sterahstib/pkg/bitshares"
	"github.com/kalutskii/etil-sterahstib/pkg/log"
	"github.com/kalutskii/etil-sterahstib/pkg/rpc"
	"github.com/kalutskii/etil-sterahstib/pkg/store"
)

// client owns the node session and the lazily opened history database. One
// client serves a single command, or every command of a shell.
type client struct {
	cfg    *Config
	logger log.Logger
	out    io.Writer

	registry    *prometheus.Registry
	stopMetrics func()

	session *rpc.Session
	db      *bitshares.DatabaseAPI
	history *bitshares.HistoryAPI
	assets  *bitshares.AssetResolver
	store   *store.HistoryStore
	closeDB func() error

	interactive bool
}

func newClient(cfg *Config, logger log.Logger, out io.Writer) *client {
	c := &client{
		cfg:    cfg,
		logger: logger,
		out:    out,
	}

	if cfg.metricsAddr != "" {
		c.registry = prometheus.NewRegistry()
		c.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		c.stopMetrics = startMetricsServer(cfg.metricsAddr, c.registry, logger.WithName("metrics"))
	}

	return c
}

// connect opens the session on first use.
func (c *client) connect(ctx context.Context) error {
	if c.session != nil {
		return nil
	}

	opts := []rpc.Option{rpc.WithLogger(c.logger)}
	if c.registry != nil {
		opts = append(opts, rpc.WithMetrics(rpc.NewMetricsWithRegistry(c.registry)))
	}

	session, err := rpc.NewSession(c.cfg.rpc, opts...)
	if err != nil {
		return err
	}

	if c.cfg.connectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.connectTimeout)
		defer cancel()
	}

	c.logger.Debug("connecting", "endpoints", strings.Join(c.cfg.rpc.Endpoints, ","))
	if err := session.Connect(ctx); err != nil {
		_ = session.Close()
		return fmt.Errorf("failed to connect to %s: %w", strings.Join(c.cfg.rpc.Endpoints, ", "), err)
	}

	resolver, err := bitshares.NewAssetResolver(session, c.cfg.assets, 0)
	if err != nil {
		_ = session.Close()
		return err
	}

	c.session = session
	c.db = bitshares.NewDatabaseAPI(session)
	c.history = bitshares.NewHistoryAPI(session)
	c.assets = resolver
	return nil
}

// historyStore opens the history database on first use.
func (c *client) historyStore() (*store.HistoryStore, error) {
	if c.store != nil {
		return c.store, nil
	}

	db, err := store.ConnectToDB(c.cfg.dbConf, c.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	c.store = store.NewHistoryStore(db)
	c.closeDB = sqlDB.Close
	return c.store, nil
}

func (c *client) close() {
	if c.session != nil {
		if err := c.session.Close(); err != nil {
			c.logger.Warn("failed to close session", "error", err)
		}
		c.session = nil
	}
	if c.closeDB != nil {
		if err := c.closeDB(); err != nil {
			c.logger.Warn("failed to close history database", "error", err)
		}
		c.closeDB = nil
		c.store = nil
	}
	if c.stopMetrics != nil {
		c.stopMetrics()
		c.stopMetrics = nil
	}
}
