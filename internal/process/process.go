// Package process boots a Live View service: config, telemetry,
// Redis, Postgres and the provider registry, wired the same way in
// every entry point so the cmd mains stay thin.
package process

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/liveview/liveview/internal/bus"
	"github.com/liveview/liveview/internal/config"
	"github.com/liveview/liveview/internal/model"
	"github.com/liveview/liveview/internal/provider"
	"github.com/liveview/liveview/internal/provider/espn"
	"github.com/liveview/liveview/internal/provider/footballdata"
	"github.com/liveview/liveview/internal/provider/sportradar"
	"github.com/liveview/liveview/internal/provider/thesportsdb"
	"github.com/liveview/liveview/internal/registry"
	"github.com/liveview/liveview/internal/store"
	"github.com/liveview/liveview/internal/store/postgres"
	"github.com/liveview/liveview/internal/telemetry"
)

const (
	connectAttempts = 10
	connectBackoff  = 2 * time.Second
)

// Deps carries the shared infrastructure a service may need. Store,
// DB and Registry are nil unless the ServiceConfig asked for them.
type Deps struct {
	Cfg      *config.Config
	Bus      *bus.Bus
	Store    *store.Store
	DB       *sqlx.DB
	Registry *registry.Registry
	Scorer   *registry.HealthScorer
}

// Runner is a long-running service loop. It returns when ctx is
// cancelled or the loop fails fatally.
type Runner func(ctx context.Context) error

// ServiceConfig captures the service-specific pieces that differ
// between the scheduler, ingest, builder, verifier and gateway
// entry points.
type ServiceConfig struct {
	Name           string
	NeedsStore     bool
	NeedsProviders bool

	// Build wires the service itself and returns its loops. The
	// optional closer runs after the loops stop.
	Build func(deps *Deps) ([]Runner, func(), error)

	// Summary renders the shutdown metrics line for this service.
	Summary func() string
}

// Run boots a service process and blocks until SIGINT/SIGTERM.
func Run(spc ServiceConfig) {
	cfg := config.Load()
	telemetry.Init(telemetry.ParseLogLevel(cfg.LogLevel))
	telemetry.Infof("Starting %s process", spc.Name)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps := &Deps{Cfg: cfg}

	// ── Redis ──────────────────────────────────────────────────
	b, err := connectBus(ctx, cfg)
	if err != nil {
		telemetry.Errorf("Redis: %v", err)
		os.Exit(1)
	}
	deps.Bus = b

	// ── Postgres ───────────────────────────────────────────────
	if spc.NeedsStore {
		db, err := connectStore(ctx, cfg)
		if err != nil {
			telemetry.Errorf("Postgres: %v", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			telemetry.Errorf("Postgres migrate: %v", err)
			os.Exit(1)
		}
		deps.DB = db
		deps.Store = postgres.New(db)
	}

	// ── Providers ──────────────────────────────────────────────
	if spc.NeedsProviders {
		deps.Scorer = registry.NewHealthScorer(b, cfg.ProviderHealthWindow)
		deps.Registry = BuildRegistry(cfg, b, deps.Scorer)
	}

	// ── Service ────────────────────────────────────────────────
	runners, closer, err := spc.Build(deps)
	if err != nil {
		telemetry.Errorf("%s init: %v", spc.Name, err)
		os.Exit(1)
	}

	errCh := make(chan error, len(runners))
	for _, r := range runners {
		go func(r Runner) { errCh <- r(ctx) }(r)
	}

	// ── Shutdown ───────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		telemetry.Infof("Shutting down %s...", spc.Name)
	case err := <-errCh:
		if err != nil && ctx.Err() == nil {
			telemetry.Errorf("%s: %v", spc.Name, err)
		}
	}
	cancel()

	// give loops a moment to drain before the final report
	drain := time.After(5 * time.Second)
	for range runners {
		select {
		case <-errCh:
		case <-drain:
		}
	}
	if closer != nil {
		closer()
	}

	if spc.Summary != nil {
		telemetry.Infof("%s shutdown complete  %s", spc.Name, spc.Summary())
	} else {
		telemetry.Infof("%s shutdown complete", spc.Name)
	}
}

// BuildRegistry constructs the provider cascade from config. Every
// connector is registered; the cascade order decides who is asked
// first per sport.
func BuildRegistry(cfg *config.Config, b *bus.Bus, scorer *registry.HealthScorer) *registry.Registry {
	order := make([]model.Provider, 0, len(cfg.ProviderOrder))
	for _, name := range cfg.ProviderOrder {
		order = append(order, model.Provider(name))
	}
	reg := registry.New(b, scorer, order, cfg.ProviderHealthThreshold, cfg.ProviderFlapTTL,
		func(p model.Provider) int { return cfg.RPMLimit(string(p)) })

	timeout := cfg.ProviderRequestTimeout
	reg.Register(espn.New(provider.NewHTTPClient(timeout, nil)))
	reg.Register(sportradar.New(provider.NewHTTPClient(timeout, nil), cfg.SportradarAPIKey))
	reg.Register(thesportsdb.New(provider.NewHTTPClient(timeout, nil), cfg.TheSportsDBAPIKey))
	reg.Register(footballdata.New(provider.NewHTTPClient(timeout, map[string]string{
		"X-Auth-Token": cfg.FootballDataToken,
	})))
	return reg
}

func connectBus(ctx context.Context, cfg *config.Config) (*bus.Bus, error) {
	var lastErr error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		b, err := bus.Connect(ctx, cfg.RedisURL)
		if err == nil {
			return b, nil
		}
		lastErr = err
		telemetry.Warnf("Redis connect attempt %d/%d: %v", attempt, connectAttempts, err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(connectBackoff):
		}
	}
	return nil, fmt.Errorf("after %d attempts: %w", connectAttempts, lastErr)
}

func connectStore(ctx context.Context, cfg *config.Config) (*sqlx.DB, error) {
	var lastErr error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		db, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns)
		if err == nil {
			return db, nil
		}
		lastErr = err
		telemetry.Warnf("Postgres connect attempt %d/%d: %v", attempt, connectAttempts, err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(connectBackoff):
		}
	}
	return nil, fmt.Errorf("after %d attempts: %w", connectAttempts, lastErr)
}
