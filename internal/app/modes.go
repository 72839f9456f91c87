package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/wagerhouse/bookd/internal/auth"
	"github.com/wagerhouse/bookd/internal/domain"
	"github.com/wagerhouse/bookd/internal/server/handler"
	"github.com/wagerhouse/bookd/internal/server/middleware"
	"github.com/wagerhouse/bookd/internal/server/ws"
	"github.com/wagerhouse/bookd/internal/service"
)

// bookServices bundles the accounting services built once in serve mode.
type bookServices struct {
	registry   *service.Registry
	markets    *service.MarketService
	odds       *service.OddsService
	bets       *service.BetService
	risk       *service.RiskService
	settlement *service.SettlementService
	treasury   *service.TreasuryService
}

// buildServices constructs the service layer over the wired dependencies.
func (a *App) buildServices(deps *Dependencies) *bookServices {
	registry := service.NewRegistry()

	defaults := service.EngineDefaults{
		PushPolicy: domain.PushPolicy(a.cfg.Engine.PushPolicy),
		MaxStake:   a.cfg.Engine.MaxStake,
		GlobalMax:  a.cfg.Engine.DefaultGlobalMax,
		SlotMax:    a.cfg.Engine.DefaultSlotMax,
	}

	// The report sink stays a nil interface when S3 is not wired.
	var reports service.ReportSink
	if deps.Reports != nil {
		reports = deps.Reports
	}

	return &bookServices{
		registry: registry,
		markets: service.NewMarketService(
			registry, deps.MarketStore, deps.LimitStore, deps.PositionStore,
			deps.AuditStore, deps.SignalBus, deps.Vault, deps.Metrics,
			defaults, a.logger,
		),
		odds: service.NewOddsService(
			registry, deps.MarketStore, deps.OddsCache, deps.SignalBus,
			deps.AuditStore, deps.Metrics, a.logger,
		),
		bets: service.NewBetService(
			registry, deps.PositionStore, deps.LimitStore, deps.SignalBus,
			deps.Notifier, deps.Metrics, a.cfg.Notify.LargeBetThreshold, a.logger,
		),
		risk: service.NewRiskService(
			registry, deps.LimitStore, deps.AuditStore, deps.SignalBus,
			deps.Notifier, deps.Vault, deps.Metrics, a.logger,
		),
		settlement: service.NewSettlementService(
			registry, deps.MarketStore, deps.PositionStore, deps.LimitStore,
			deps.LockManager, deps.OddsCache, deps.SignalBus, deps.AuditStore,
			deps.Notifier, reports, deps.Metrics, a.logger,
		),
		treasury: service.NewTreasuryService(
			deps.Vault, deps.AuditStore, deps.Metrics, a.logger,
		),
	}
}

// ServeMode rehydrates the book from storage and runs the HTTP API, the
// WebSocket hub, and the metrics endpoint until the context is cancelled.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	svcs := a.buildServices(deps)

	// Rebuild every non-terminal market before accepting traffic so no
	// request observes a half-restored book.
	restored, err := svcs.markets.Rehydrate(ctx)
	if err != nil {
		return fmt.Errorf("serve mode: rehydrate: %w", err)
	}
	a.logger.InfoContext(ctx, "book rehydrated",
		slog.Int("markets", restored),
	)

	g, ctx := errgroup.WithContext(ctx)

	a.startHTTPServer(ctx, g, deps, svcs)

	return g.Wait()
}

// ArchiveMode runs one archival sweep: resolved markets and audit entries
// older than the retention window are exported to object storage and
// pruned from the primary store. It exits when the sweep completes.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	retention := a.cfg.Archive.RetentionDays
	if retention <= 0 {
		return fmt.Errorf("archive mode: retention_days must be positive, got %d", retention)
	}
	if deps.Archiver == nil {
		return fmt.Errorf("archive mode: no archiver wired")
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -retention)
	a.logger.InfoContext(ctx, "starting archive sweep",
		slog.Int("retention_days", retention),
		slog.Time("cutoff", cutoff),
	)

	markets, err := deps.Archiver.ArchiveMarkets(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archive mode: markets: %w", err)
	}
	audits, err := deps.Archiver.ArchiveAuditLog(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archive mode: audit log: %w", err)
	}

	a.logger.InfoContext(ctx, "archive sweep complete",
		slog.Int64("markets_archived", markets),
		slog.Int64("audit_entries_archived", audits),
	)
	return nil
}

// startHTTPServer adds the HTTP server and WebSocket hub goroutines to the
// given errgroup. The server is shut down gracefully when the context is
// cancelled.
func (a *App) startHTTPServer(
	ctx context.Context,
	g *errgroup.Group,
	deps *Dependencies,
	svcs *bookServices,
) {
	addr := fmt.Sprintf(":%d", a.cfg.Server.Port)
	startedAt := time.Now().UTC()

	mux := http.NewServeMux()

	// Role gates. The admin key is accepted on every gated surface.
	admin := middleware.RequireRole(deps.Keyring, auth.RoleAdmin, a.logger)
	oddsRole := middleware.RequireRole(deps.Keyring, auth.RoleOdds, a.logger)
	results := middleware.RequireRole(deps.Keyring, auth.RoleResults, a.logger)

	// Health and status, always available.
	health := handler.NewHealthHandler(a.logger)
	mux.HandleFunc("GET /api/health", health.HealthCheck)

	statusH := handler.NewStatusHandler(a.cfg.Mode, startedAt,
		svcs.registry.ActiveCount, deps.Vault.Pool)
	mux.HandleFunc("GET /api/status", statusH.GetStatus)

	// Prometheus metrics.
	mux.Handle("GET /metrics", promhttp.HandlerFor(
		deps.Metrics.Registry(), promhttp.HandlerOpts{},
	))

	// WebSocket hub re-broadcasts bus events to subscribed clients.
	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: startedAt,
	})
	mux.HandleFunc("GET /ws", hub.HandleWS)

	g.Go(func() error {
		return hub.Run(ctx)
	})

	// Markets.
	mh := handler.NewMarketHandler(svcs.markets, a.logger)
	mux.Handle("POST /api/markets", admin(http.HandlerFunc(mh.CreateMarket)))
	mux.HandleFunc("GET /api/markets", mh.ListMarkets)
	mux.HandleFunc("GET /api/markets/{id}", mh.GetMarket)

	// Odds.
	oh := handler.NewOddsHandler(svcs.odds, a.logger)
	mux.HandleFunc("GET /api/markets/{id}/odds", oh.GetOdds)
	mux.Handle("PUT /api/markets/{id}/odds", oddsRole(http.HandlerFunc(oh.SetOdds)))

	// Bets. Placement runs behind the per-bettor throttle when configured.
	bh := handler.NewBetHandler(svcs.bets, a.logger)
	placeBet := http.Handler(http.HandlerFunc(bh.PlaceBet))
	if a.cfg.Server.BetRateLimit > 0 {
		placeBet = middleware.BetThrottle(
			deps.RateLimiter,
			a.cfg.Server.BetRateLimit,
			a.cfg.Server.BetRateWindow.Duration,
		)(placeBet)
	}
	mux.Handle("POST /api/markets/{id}/bets", placeBet)
	mux.HandleFunc("GET /api/markets/{id}/bets", bh.ListMarketBets)
	mux.HandleFunc("GET /api/markets/{id}/bets/{betID}", bh.GetBet)
	mux.HandleFunc("GET /api/bettors/{addr}/bets", bh.ListBettorBets)

	// Risk.
	rh := handler.NewRiskHandler(svcs.risk, a.logger)
	mux.HandleFunc("GET /api/markets/{id}/exposure", rh.Exposure)
	mux.Handle("PUT /api/markets/{id}/limits", admin(http.HandlerFunc(rh.SetLimits)))
	mux.Handle("POST /api/markets/{id}/funding", admin(http.HandlerFunc(rh.Fund)))

	// Lifecycle.
	lh := handler.NewLifecycleHandler(svcs.settlement, a.logger)
	mux.Handle("POST /api/markets/{id}/start", results(http.HandlerFunc(lh.Start)))
	mux.Handle("POST /api/markets/{id}/settle", results(http.HandlerFunc(lh.Settle)))
	mux.Handle("POST /api/markets/{id}/cancel", admin(http.HandlerFunc(lh.Cancel)))

	// Treasury.
	th := handler.NewTreasuryHandler(svcs.treasury, a.logger)
	mux.Handle("POST /api/bettors/{addr}/deposit", admin(http.HandlerFunc(th.Deposit)))
	mux.HandleFunc("GET /api/bettors/{addr}/balance", th.BettorBalance)
	mux.HandleFunc("GET /api/treasury", th.Treasury)

	// Audit trail.
	ah := handler.NewAuditHandler(deps.AuditStore, a.logger)
	mux.Handle("GET /api/audit", admin(http.HandlerFunc(ah.ListAudit)))

	// Settlement reports out of object storage, when S3 is wired.
	if deps.BlobReader != nil {
		reportsH := handler.NewReportsHandler(deps.BlobReader, a.logger)
		mux.Handle("GET /api/reports", admin(http.HandlerFunc(reportsH.ListReports)))
		mux.Handle("GET /api/reports/{path...}", admin(http.HandlerFunc(reportsH.GetReport)))
	}

	// Middleware chain: CORS then logging.
	var h http.Handler = mux
	if len(a.cfg.Server.CORSOrigins) > 0 {
		h = middleware.CORS(a.cfg.Server.CORSOrigins)(h)
	}
	h = middleware.Logging(a.logger)(h)

	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g.Go(func() error {
		port := a.cfg.Server.Port
		a.logger.InfoContext(ctx, "HTTP server listening",
			slog.String("addr", addr),
			slog.Int("port", port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", port)))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.logger.InfoContext(ctx, "HTTP server shutting down")
		return srv.Shutdown(shutCtx)
	})
}
