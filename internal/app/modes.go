package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Mardiprk/Mini-MetaDAO/internal/server"
	"github.com/Mardiprk/Mini-MetaDAO/internal/server/handler"
	"github.com/Mardiprk/Mini-MetaDAO/internal/server/ws"
	"github.com/Mardiprk/Mini-MetaDAO/internal/service"
)

// services groups the three application services built over one dependency
// set.
type services struct {
	governance *service.GovernanceService
	markets    *service.MarketService
	redemption *service.RedemptionService
}

func (a *App) buildServices(deps *Dependencies) services {
	return services{
		governance: service.NewGovernanceService(
			deps.DaoStore,
			deps.ProposalStore,
			deps.MarketStore,
			deps.Ledger,
			deps.Vault,
			deps.AuditStore,
			deps.SignalBus,
			deps.Notifier,
			deps.Clock,
			a.logger,
		),
		markets: service.NewMarketService(
			deps.MarketStore,
			deps.PriceCache,
			deps.LockManager,
			deps.SignalBus,
			deps.AuditStore,
			deps.Notifier,
			deps.Clock,
			a.logger,
		),
		redemption: service.NewRedemptionService(
			deps.MarketStore,
			deps.PositionStore,
			deps.AuditStore,
			deps.SignalBus,
			a.logger,
		),
	}
}

// ServeMode runs the HTTP + WebSocket API server.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

// MonitorMode runs the background watchers only: the expiry reporter and,
// when S3 is enabled, the settlement archiver.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startWatchers(ctx, g, deps)
	return g.Wait()
}

// FullMode runs the API server and the background watchers together.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	a.startWatchers(ctx, g, deps)
	return g.Wait()
}

// startHTTPServer adds the API server and WebSocket hub goroutines to the
// errgroup. The server shuts down gracefully when the context is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	svcs := a.buildServices(deps)

	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: time.Now().UTC(),
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		Limiter:     deps.RateLimiter,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, server.Handlers{
		Health:    handler.NewHealthHandler(deps.HealthChecks, a.logger),
		Dao:       handler.NewDaoHandler(svcs.governance, a.logger),
		Proposals: handler.NewProposalHandler(svcs.governance, a.logger),
		Markets:   handler.NewMarketHandler(svcs.markets, deps.Clock, a.logger),
		Positions: handler.NewPositionHandler(svcs.redemption, a.logger),
	}, hub, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// startWatchers adds the expiry reporter and the settlement archiver to the
// errgroup.
func (a *App) startWatchers(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	svcs := a.buildServices(deps)

	g.Go(func() error {
		return a.watchExpiredMarkets(ctx, svcs.markets)
	})

	if deps.Archiver != nil {
		g.Go(func() error {
			return a.runArchiver(ctx, deps)
		})
	}
}

// watchExpiredMarkets periodically reports markets whose betting window has
// closed but which nobody resolved yet. Resolution itself stays a deliberate
// operator action through the API.
func (a *App) watchExpiredMarkets(ctx context.Context, markets *service.MarketService) error {
	interval := a.cfg.Monitor.PollInterval.Duration
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			expired, err := markets.ListExpiredUnresolved(ctx)
			if err != nil {
				a.logger.WarnContext(ctx, "monitor: list expired markets failed",
					slog.String("error", err.Error()),
				)
				continue
			}
			if len(expired) == 0 {
				continue
			}

			ids := make([]string, len(expired))
			for i, m := range expired {
				ids[i] = m.ID
			}
			a.logger.InfoContext(ctx, "monitor: markets awaiting resolution",
				slog.Int("count", len(expired)),
				slog.Any("market_ids", ids),
			)
		}
	}
}

// archiveInterval paces settlement archive runs; one export per day is
// enough at monthly JSONL granularity.
const archiveInterval = 24 * time.Hour

// runArchiver exports resolved markets older than the configured retention
// window to object storage, once at startup and then daily.
func (a *App) runArchiver(ctx context.Context, deps *Dependencies) error {
	retention := time.Duration(a.cfg.Monitor.ArchiveAfterDays) * 24 * time.Hour

	archive := func() {
		before := deps.Clock.Now().Add(-retention)
		n, err := deps.Archiver.ArchiveSettlements(ctx, before)
		if err != nil {
			a.logger.WarnContext(ctx, "monitor: settlement archive failed",
				slog.String("error", err.Error()),
			)
			return
		}
		if n > 0 {
			a.logger.InfoContext(ctx, "monitor: settlements archived",
				slog.Int64("markets", n),
				slog.Time("before", before),
			)
		}
	}

	archive()

	ticker := time.NewTicker(archiveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("monitor: archiver stopped: %w", ctx.Err())
		case <-ticker.C:
			archive()
		}
	}
}
