// Package refresh keeps the validator registry current: it pulls candidate
// registrations from the node, marks the operator's own keys via the local
// keystore, and feeds the merged set to the attribution engine.
package refresh

import (
	"context"
	"fmt"
	"time"

	"github.com/parsec-labs/sidewatch/pkg/attribution"
	"github.com/parsec-labs/sidewatch/pkg/db"
	"github.com/parsec-labs/sidewatch/pkg/db/models"
	"github.com/parsec-labs/sidewatch/pkg/rpc"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type Refresher struct {
	Logger   *zap.Logger
	Node     rpc.Node
	Store    db.Store
	Engine   *attribution.Engine
	Keystore *Keystore
	Cron     *cron.Cron
}

func New(logger *zap.Logger, node rpc.Node, store db.Store, engine *attribution.Engine, keystore *Keystore) *Refresher {
	return &Refresher{
		Logger:   logger.Named("refresh"),
		Node:     node,
		Store:    store,
		Engine:   engine,
		Keystore: keystore,
	}
}

// RefreshOnce pulls the registry, merges it into the store and reloads the
// attribution engine's identity mapping. The is_ours flag merges
// monotonically in the store; the engine always sees the merged view.
func (r *Refresher) RefreshOnce(ctx context.Context) error {
	regs, err := r.Node.Registrations(ctx)
	if err != nil {
		return fmt.Errorf("fetch registrations: %w", err)
	}

	validators := make([]models.Validator, 0, len(regs))
	ours := 0
	for _, reg := range regs {
		if !reg.IsValid {
			continue
		}
		v := models.Validator{
			SidechainKey: reg.SidechainPubKey,
			AuraKey:      reg.AuraPubKey,
			MainchainKey: reg.MainchainPubKey,
			IsOurs:       r.Keystore.HasAuraKey(reg.AuraPubKey),
		}
		if v.IsOurs {
			ours++
		}
		validators = append(validators, v)
	}

	if err := r.Store.UpsertValidators(ctx, validators); err != nil {
		return fmt.Errorf("upsert validators: %w", err)
	}

	merged, err := r.Store.ListValidators(ctx)
	if err != nil {
		return fmt.Errorf("list validators: %w", err)
	}
	r.Engine.SetValidators(merged)

	r.Logger.Info("validator registry refreshed",
		zap.Int("registered", len(validators)),
		zap.Int("ours", ours),
		zap.Int("known", len(merged)))
	return nil
}

// SetupScheduler registers the periodic refresh on a cron spec.
func (r *Refresher) SetupScheduler(ctx context.Context, logger cron.Logger, cronSpec string) error {
	r.Cron = cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(logger)))

	_, err := r.Cron.AddFunc(cronSpec, func() {
		// keep each run bounded
		rctx, cancel := context.WithTimeout(ctx, 25*time.Second)
		defer cancel()
		if err := r.RefreshOnce(rctx); err != nil {
			logger.Info("registry refresh error", "error", err)
		}
	})
	return err
}

// StartCron starts the refresh scheduler.
func (r *Refresher) StartCron() {
	r.Cron.Start()
}

// StopCron stops the refresh scheduler and waits for an in-flight run.
func (r *Refresher) StopCron() {
	if r.Cron != nil {
		<-r.Cron.Stop().Done()
	}
}
