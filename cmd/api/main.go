package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/triage-service/internal/api/http"
	"github.com/spec-kit/triage-service/internal/api/http/handlers"
	"github.com/spec-kit/triage-service/internal/auth"
	"github.com/spec-kit/triage-service/internal/config"
	"github.com/spec-kit/triage-service/internal/events"
	"github.com/spec-kit/triage-service/internal/observability"
	"github.com/spec-kit/triage-service/internal/persistence"
	"github.com/spec-kit/triage-service/internal/repository"
	"github.com/spec-kit/triage-service/internal/repository/memstore"
	"github.com/spec-kit/triage-service/internal/service"
	"github.com/spec-kit/triage-service/internal/suggest"
	"github.com/spec-kit/triage-service/internal/triage"
	"github.com/spec-kit/triage-service/internal/worker"
)

const shutdownTimeout = 10 * time.Second

// stores groups the repositories behind one backend.
type stores struct {
	tickets     repository.TicketRepository
	agents      repository.AgentRepository
	history     repository.TicketHistoryRepository
	responses   repository.TicketResponseRepository
	assignments repository.AssignmentCommitter
	statuses    repository.StatusCommitter
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App.Name)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if pg.Enabled() && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}
	repos := openStores(pg)

	var (
		cacheClient redis.UniversalClient
		redisPinger handlers.Pinger
	)
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	if cfg.Redis.Enabled {
		rdb := persistence.NewRedis(ctx, cfg.Redis, logger)
		defer rdb.Close()
		cacheClient = rdb.Client
		redisPinger = rdb
		rdb.Relay(logger).Attach(dispatcher)
	}

	mode := triage.Permissive
	if cfg.Triage.StrictLifecycle {
		mode = triage.Strict
	}
	lifecycle := triage.NewLifecycle(mode, nil)

	suggester := suggest.Suggester(suggest.NewTemplateSuggester())
	if path := cfg.Triage.SuggestionTemplatesPath; path != "" {
		loaded, err := suggest.LoadTemplates(path)
		if err != nil {
			logger.Fatal("failed to load suggestion templates", zap.String("path", path), zap.Error(err))
		}
		suggester = loaded
	}

	routingService := service.NewRoutingService(service.RoutingDependencies{
		TicketRepo:         repos.tickets,
		AgentRepo:          repos.agents,
		Assignments:        repos.assignments,
		HistoryRepo:        repos.history,
		Dispatcher:         dispatcher,
		Lifecycle:          lifecycle,
		Metrics:            metrics,
		Logger:             logger.Named("routing"),
		RerouteConcurrency: cfg.Triage.RerouteConcurrency,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:         repos.tickets,
		Statuses:           repos.statuses,
		ResponseRepo:       repos.responses,
		HistoryRepo:        repos.history,
		Dispatcher:         dispatcher,
		Routing:            routingService,
		Suggester:          suggester,
		Lifecycle:          lifecycle,
		Logger:             logger.Named("tickets"),
		ExtendedHeuristics: cfg.Triage.ExtendedHeuristicsOnCreate,
		AutoRoute:          cfg.Triage.AutoRoute,
	})
	agentService := service.NewAgentService(service.AgentDependencies{
		AgentRepo:  repos.agents,
		TicketRepo: repos.tickets,
	})
	analyticsService := service.NewAnalyticsService(service.AnalyticsDependencies{
		TicketRepo: repos.tickets,
		Cache:      cacheClient,
		CacheTTL:   cfg.Triage.MetricsCacheTTL(),
		Logger:     logger,
	})
	notificationService := service.NewNotificationService(logger.Named("notify"), cfg.Notification)

	notifications := worker.NewNotificationWorker(notificationService, logger, worker.DefaultNotificationBuffer)
	notifications.Register(dispatcher)
	notifications.Start(ctx)

	reroute, err := worker.NewRerouteWorker(routingService, cfg.Triage.RerouteSchedule, logger.Named("reroute"))
	if err != nil {
		logger.Fatal("failed to schedule reroute sweep", zap.Error(err))
	}
	reroute.Start(ctx)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name, DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redisPinger),
		Tickets:        handlers.NewTicketsHandler(ticketService, routingService),
		Agents:         handlers.NewAgentsHandler(agentService),
		Triage:         handlers.NewTriageHandler(suggester, cfg.Triage.ExtendedHeuristicsOnCreate),
		Analytics:      handlers.NewAnalyticsHandler(analyticsService, routingService, metrics),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
	})

	go func() {
		logger.Info("listening",
			zap.String("addr", cfg.App.Addr()),
			zap.Bool("postgres", pg.Enabled()),
			zap.String("lifecycle", mode.String()),
		)
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	reroute.Stop()
	notifications.Stop()
}

func openStores(pg *persistence.Postgres) stores {
	if !pg.Enabled() {
		mem := memstore.New()
		return stores{
			tickets:     mem.Tickets(),
			agents:      mem.Agents(),
			history:     mem.History(),
			responses:   mem.Responses(),
			assignments: mem.Assignments(),
			statuses:    mem.Statuses(),
		}
	}
	pool := pg.PoolHandle()
	return stores{
		tickets:     repository.NewTicketRepository(pool),
		agents:      repository.NewAgentRepository(pool),
		history:     repository.NewTicketHistoryRepository(pool),
		responses:   repository.NewTicketResponseRepository(pool),
		assignments: repository.NewAssignmentCommitter(pool),
		statuses:    repository.NewStatusCommitter(pool),
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
