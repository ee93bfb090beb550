package types

import (
	"context"
	"net/http"
	"time"

	"github.com/parsec-labs/sidewatch/pkg/db"
	"github.com/parsec-labs/sidewatch/pkg/rpc"
	"github.com/parsec-labs/sidewatch/pkg/syncer"
	"github.com/parsec-labs/sidewatch/pkg/timing"
	"go.uber.org/zap"
)

// App is the read surface over the monitor's state: the block history, the
// validator registry and the live sync/epoch status.
type App struct {
	Store  db.Store
	Node   rpc.Node
	Daemon *syncer.Daemon
	Preset timing.Preset
	// Zap Logger
	Logger *zap.Logger
	// Server represents the HTTP server instance used to handle incoming client requests and manage HTTP routes.
	Server *http.Server
}

// Start starts the HTTP server and blocks until ctx is cancelled.
func (a *App) Start(ctx context.Context) {
	go func() { _ = a.Server.ListenAndServe() }()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = a.Server.Shutdown(shutdownCtx)
	a.Logger.Info("query server stopped")
}
