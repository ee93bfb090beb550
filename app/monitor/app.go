// Package monitor wires the full validator monitor: the sync daemon, the
// registry refresher and the query API, sharing one store and one node
// client.
package monitor

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/parsec-labs/sidewatch/app/query"
	querytypes "github.com/parsec-labs/sidewatch/app/query/types"
	"github.com/parsec-labs/sidewatch/pkg/attribution"
	"github.com/parsec-labs/sidewatch/pkg/db"
	"github.com/parsec-labs/sidewatch/pkg/db/memory"
	"github.com/parsec-labs/sidewatch/pkg/logging"
	"github.com/parsec-labs/sidewatch/pkg/refresh"
	"github.com/parsec-labs/sidewatch/pkg/retry"
	"github.com/parsec-labs/sidewatch/pkg/rpc"
	"github.com/parsec-labs/sidewatch/pkg/syncer"
	"github.com/parsec-labs/sidewatch/pkg/timing"
	"github.com/parsec-labs/sidewatch/pkg/utils"
)

type App struct {
	Logger    *zap.Logger
	Store     db.Store
	Node      rpc.Node
	Engine    *attribution.Engine
	Daemon    *syncer.Daemon
	Refresher *refresh.Refresher
	Query     *querytypes.App
}

// Initialize builds the application from the environment.
func Initialize(ctx context.Context) *App {
	logger, err := logging.New()
	if err != nil {
		// nothing else to do here, we'll just log to stderr
		panic(err)
	}

	preset, err := timing.ByName(utils.Env("NETWORK", "testnet"))
	if err != nil {
		logger.Fatal("Unable to resolve network preset", zap.Error(err))
	}

	store, err := newStore(ctx, logger)
	if err != nil {
		logger.Fatal("Unable to initialize store", zap.Error(err))
	}

	node := rpc.NewHTTPWithOpts(rpc.Opts{
		Endpoints: strings.Split(utils.Env("NODE_RPC_URL", "http://localhost:9933"), ","),
		Timeout:   utils.EnvDuration("NODE_RPC_TIMEOUT", 15*time.Second),
		RPS:       utils.EnvInt("NODE_RPC_RPS", 20),
	})

	engine := attribution.NewEngine(logger, preset, &attribution.NodeResolver{Node: node}, store)

	daemon := syncer.New(logger, node, store, engine, syncer.Config{
		StartHeight:  utils.EnvUint64("SYNC_START_HEIGHT", 1),
		BatchSize:    utils.EnvInt("SYNC_BATCH_SIZE", 64),
		Workers:      utils.EnvInt("SYNC_WORKERS", 8),
		PollInterval: utils.EnvDuration("SYNC_POLL_INTERVAL", preset.BlockTime),
		Retry:        retry.DefaultConfig(),
	})

	keystore, err := refresh.LoadKeystore(utils.Env("KEYSTORE_PATH", ""))
	if err != nil {
		logger.Fatal("Unable to load keystore", zap.Error(err))
	}
	refresher := refresh.New(logger, node, store, engine, keystore)

	queryApp := &querytypes.App{
		Store:  store,
		Node:   node,
		Daemon: daemon,
		Preset: preset,
		Logger: logger,
	}
	if err := query.NewServer(queryApp); err != nil {
		logger.Fatal("Unable to initialize query server", zap.Error(err))
	}

	return &App{
		Logger:    logger,
		Store:     store,
		Node:      node,
		Engine:    engine,
		Daemon:    daemon,
		Refresher: refresher,
		Query:     queryApp,
	}
}

func newStore(ctx context.Context, logger *zap.Logger) (db.Store, error) {
	if utils.Env("STORE", "clickhouse") == "memory" {
		logger.Warn("using in-memory store; nothing survives a restart")
		return memory.New(), nil
	}
	store, err := db.NewStore(ctx, logger, utils.Env("CLICKHOUSE_DB", "sidewatch"))
	if err != nil {
		return nil, err
	}
	return store, nil
}

// Start runs all components until ctx is cancelled, then shuts them down in
// dependency order.
func (a *App) Start(ctx context.Context) {
	// Immediate registry pass so attribution has identities before the
	// first block is processed; sync still starts if the node is slow.
	if err := a.Refresher.RefreshOnce(ctx); err != nil {
		a.Logger.Warn("initial registry refresh failed", zap.Error(err))
	}
	if err := a.Refresher.SetupScheduler(ctx, cron.DefaultLogger, utils.Env("REFRESH_CRON", "0 */10 * * * *")); err != nil {
		a.Logger.Fatal("Unable to schedule registry refresh", zap.Error(err))
	}
	a.Refresher.StartCron()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := a.Daemon.Run(ctx); err != nil {
			a.Logger.Error("sync daemon stopped with error", zap.Error(err))
		}
	}()
	go func() {
		defer wg.Done()
		a.Query.Start(ctx)
	}()

	<-ctx.Done()
	wg.Wait()

	a.Refresher.StopCron()
	if err := a.Store.Close(); err != nil {
		a.Logger.Error("Failed to close database connection", zap.Error(err))
	}
	a.Logger.Info("monitor stopped")
}
