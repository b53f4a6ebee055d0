package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pawdiary/pawdiary/internal/bus"
	"github.com/pawdiary/pawdiary/internal/config"
	"github.com/pawdiary/pawdiary/internal/event"
	"github.com/pawdiary/pawdiary/internal/format"
	"github.com/pawdiary/pawdiary/internal/gateway"
	"github.com/pawdiary/pawdiary/internal/intake"
	"github.com/pawdiary/pawdiary/internal/journal"
	"github.com/pawdiary/pawdiary/internal/provider"
	"github.com/pawdiary/pawdiary/internal/quota"
	"github.com/pawdiary/pawdiary/internal/registry"
	"github.com/pawdiary/pawdiary/internal/router"
)

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Run the diary engine: intake, quota gate, generation, journal",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGateway()
	},
}

func runGateway() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	printHeader("🐾 PawDiary Gateway")

	catalog := event.NewCatalog(cfg.CategoryUniverse())
	claimed := event.NewClaimedSet(cfg.ClaimedPairs())

	if err := config.EnsureDir(cfg.Paths.Home); err != nil {
		return fmt.Errorf("ensure home dir: %w", err)
	}
	if err := config.EnsureDir(filepath.Dir(cfg.Paths.JournalDB)); err != nil {
		return fmt.Errorf("ensure journal dir: %w", err)
	}
	store, err := journal.Open(cfg.Paths.JournalDB)
	if err != nil {
		return err
	}
	defer store.Close()

	// No providers at all is the one unrecoverable configuration error:
	// abort startup instead of routing events that can never generate.
	pool, err := provider.NewPool(cfg.Providers)
	if err != nil {
		return fmt.Errorf("provider pool: %w", err)
	}
	if cfg.DefaultProvider != "" && !pool.SetDefault(cfg.DefaultProvider) {
		slog.Warn("Default provider not found in pool", "name", cfg.DefaultProvider)
	}

	sched := quota.New(cfg.Quota, catalog.Categories())
	gate := quota.NewGate(sched, claimed)

	reg := registry.New(cfg.Dispatch)
	for _, spec := range cfg.Categories {
		reg.Register(spec.Category, registry.NewPromptHandler(spec))
	}

	b := bus.New()
	eventRouter := router.New(catalog, gate, reg, pool, format.New())

	// Finished entries fan out to the journal.
	b.SubscribeEntries(func(entry *format.Entry) {
		if err := store.SaveEntry(entry); err != nil {
			slog.Error("Failed to persist entry", "entry", entry.EntryID, "error", err)
			return
		}
		slog.Info("Entry persisted",
			"entry", entry.EntryID, "category", entry.Category, "title", entry.Title)
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return sched.Run(ctx) })
	g.Go(func() error { return b.DispatchEntries(ctx) })

	for i := 0; i < cfg.Engine.Workers; i++ {
		g.Go(func() error { return routeWorker(ctx, b, eventRouter, store) })
	}

	if cfg.Intake.Enabled {
		pump := intake.NewPump(intake.NewKafkaSource(cfg.Intake), b)
		g.Go(func() error { return pump.Run(ctx) })
	}

	if cfg.Gateway.Enabled {
		srv := gateway.New(cfg.Gateway, sched, reg, store, b, catalog)
		g.Go(func() error { return srv.Run(ctx) })
	}

	slog.Info("PawDiary gateway running",
		"workers", cfg.Engine.Workers,
		"categories", len(cfg.Categories),
		"providers", pool.Providers(),
		"intake", cfg.Intake.Enabled)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("PawDiary gateway stopped")
	return nil
}

// routeWorker pulls events off the bus and routes them. Every outcome is
// recorded in the route log; generated entries go back onto the bus for
// the journal subscriber.
func routeWorker(ctx context.Context, b *bus.EventBus, r *router.EventRouter, store *journal.Store) error {
	for {
		ev, err := b.ConsumeEvent(ctx)
		if err != nil {
			return err
		}
		res := r.Route(ctx, ev)
		if err := store.LogRoute(ev.ID, ev.Category, res.Status, res.Reason, res.Detail); err != nil {
			slog.Warn("Route log write failed", "event", ev.ID, "error", err)
		}
		if res.Status == router.StatusGenerated && res.Entry != nil {
			b.PublishEntry(res.Entry)
		}
	}
}
