package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"ppewatch/internal/domain/audit"
	"ppewatch/internal/domain/monitor"
	"ppewatch/internal/domain/notifications"
	"ppewatch/internal/domain/reprimand"
	"ppewatch/internal/platform/config"
	"ppewatch/internal/platform/db"
	"ppewatch/internal/platform/email"
	"ppewatch/internal/platform/events"
	"ppewatch/internal/platform/jobs"
	"ppewatch/internal/platform/metrics"
	"ppewatch/internal/platform/realtime"
	audithandler "ppewatch/internal/transport/http/handlers/audit"
	compliancehandler "ppewatch/internal/transport/http/handlers/compliance"
	employeeshandler "ppewatch/internal/transport/http/handlers/employees"
	notificationshandler "ppewatch/internal/transport/http/handlers/notifications"
	reprimandshandler "ppewatch/internal/transport/http/handlers/reprimands"
	"ppewatch/internal/transport/http/middleware"
)

type App struct {
	Config     config.Config
	DB         *db.Pool
	Redis      *redis.Client
	Source     realtime.Source
	Feed       realtime.Publisher
	Monitor    *monitor.Monitor
	Reprimands *reprimand.Service
	Jobs       *jobs.Service
	Metrics    *metrics.Collector
	Router     http.Handler

	publisher *events.Publisher
	cancel    context.CancelFunc
}

// New wires stores, the live monitor and the HTTP router for cfg. The
// returned App owns every connection it opened and releases them on Close.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	app := &App{Config: cfg, cancel: cancel}
	if cfg.MetricsEnabled {
		app.Metrics = metrics.New()
	}

	var (
		reprimandStore reprimand.StoreAPI
		auditStore     audit.StoreAPI
		settingsStore  notifications.StoreAPI
		runStore       jobs.RunStore
	)
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pool, err := db.Connect(ctx, cfg)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("db connect: %w", err)
		}
		app.DB = pool
		if cfg.RunMigrations {
			if err := db.Migrate(ctx, pool, cfg.MigrationsDir); err != nil {
				app.Close()
				return nil, fmt.Errorf("migrations: %w", err)
			}
		}
		reprimandStore = reprimand.NewStore(pool)
		auditStore = audit.NewStore(pool)
		settingsStore = notifications.NewStore(pool)
		runStore = jobs.NewPGRunStore(pool)
	default:
		reprimandStore = reprimand.NewMemoryStore()
		auditStore = audit.NewMemoryStore()
		settingsStore = notifications.NewMemoryStore()
		runStore = jobs.NewMemoryRunStore()
	}

	var source realtime.Source
	switch cfg.RealtimeDriver {
	case config.DriverRedis:
		client, err := realtime.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("redis connect: %w", err)
		}
		app.Redis = client
		redisSource := realtime.NewRedisSource(client, cfg.RealtimePrefix)
		source, app.Feed = redisSource, redisSource
	default:
		memorySource := realtime.NewMemorySource()
		source, app.Feed = memorySource, memorySource
	}
	app.Source = source

	publisher, err := events.NewPublisher(events.Config{
		Enabled: len(cfg.KafkaBrokers) > 0,
		Topic:   cfg.KafkaAuditTopic,
		Brokers: cfg.KafkaBrokers,
	}, slog.Default())
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("event publisher: %w", err)
	}
	app.publisher = publisher

	auditSvc := audit.New(auditStore, publisher)
	app.Reprimands = reprimand.NewService(reprimandStore,
		reprimand.WithAuditor(auditSvc),
		reprimand.WithMetrics(app.Metrics),
	)

	var mon *monitor.Monitor
	notifySvc := notifications.New(settingsStore, email.New(cfg), func(ctx context.Context) (notifications.DigestData, error) {
		view := mon.View()
		return notifications.DigestData{
			Summary:    view.Summary,
			HighRisk:   view.HighRisk(0),
			Reprimands: reprimand.ComputeStats(view.Reprimands),
			Connected:  view.Status.Connected,
		}, nil
	})
	notifySvc.DefaultFrom = cfg.EmailFrom
	notifySvc.Metrics = app.Metrics
	app.Jobs = jobs.New(runStore, notifySvc)

	mon = monitor.New(source, app.Reprimands, monitor.Config{
		Path:         cfg.EventsPath,
		Retention:    cfg.EventRetention,
		Threshold:    cfg.HighRiskThreshold,
		AutoEscalate: cfg.AutoEscalate,
	}, monitor.WithMetrics(app.Metrics), monitor.WithViolationHook(app.Jobs.NotifyChange))
	app.Monitor = mon
	if err := mon.Start(runCtx); err != nil {
		app.Close()
		return nil, fmt.Errorf("monitor start: %w", err)
	}
	app.Jobs.Start(runCtx)

	idem := middleware.NewIdempotencyStore(cfg.IdempotencyTTL)
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(app.Metrics))
	router.Use(middleware.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute))
	router.Use(middleware.SensitiveMutationRateLimit(cfg.RateLimitPerMinute, time.Minute))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := app.Reprimands.Ping(ctx); err != nil {
			http.Error(w, "store not ready", http.StatusServiceUnavailable)
			return
		}
		if hc, ok := app.Source.(realtime.HealthChecker); ok {
			if err := hc.Health(ctx); err != nil {
				http.Error(w, "realtime source not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if app.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", app.Metrics.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		compliancehandler.NewHandler(mon).RegisterRoutes(r)
		employeeshandler.NewHandler(mon).RegisterRoutes(r)
		reprimandshandler.NewHandler(app.Reprimands, idem).RegisterRoutes(r)
		notificationshandler.NewHandler(notifySvc, app.Jobs).RegisterRoutes(r)
		audithandler.NewHandler(auditSvc).RegisterRoutes(r)
	})

	if cfg.FrontendDir != "" {
		router.Mount("/", spaHandler{staticPath: cfg.FrontendDir, indexPath: "index.html"})
	}

	app.Router = router
	return app, nil
}

// Close stops background work and releases every connection.
func (a *App) Close() {
	if a.Monitor != nil {
		a.Monitor.Close()
	}
	if a.cancel != nil {
		a.cancel()
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			slog.Warn("event publisher close failed", "err", err)
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			slog.Warn("redis close failed", "err", err)
		}
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

// Run serves until SIGINT or SIGTERM.
func Run() error {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("ppewatch server listening", "addr", cfg.Addr, "store", cfg.StoreDriver, "realtime", cfg.RealtimeDriver)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	slog.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

type spaHandler struct {
	staticPath string
	indexPath  string
}

func (h spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	path := filepath.Join(h.staticPath, filepath.Clean("/"+r.URL.Path))
	_, err := os.Stat(path)
	if err == nil {
		http.FileServer(http.Dir(h.staticPath)).ServeHTTP(w, r)
		return
	}

	if os.IsNotExist(err) {
		http.ServeFile(w, r, filepath.Join(h.staticPath, h.indexPath))
		return
	}

	http.NotFound(w, r)
}
