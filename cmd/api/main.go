package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"salonbook/internal/api"
	"salonbook/internal/availability"
	"salonbook/internal/config"
	"salonbook/internal/database"
	"salonbook/internal/events"
	"salonbook/internal/export"
	"salonbook/internal/logging"
	"salonbook/internal/metrics"
	"salonbook/internal/notify"
	"salonbook/internal/service"
	"salonbook/internal/sweeper"
	"salonbook/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, base, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}
	logger := logging.Component(base, "api-main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := initDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if !cfg.API.Enabled {
		logger.Warn().Msg("API is disabled in config, but starting API application. Check your config.")
	}

	redisClient := initRedis(ctx, cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}
	index := initIndex(cfg, redisClient, logger)

	bus := events.NewEventBus()
	busLogger := logging.Component(base, "events")
	bus.OnError(func(ev *events.Event, err error) {
		busLogger.Error().Err(err).Str("event", ev.Type).Msg("event handler failed")
	})

	syncWorker := worker.NewSyncWorker(
		db,
		availability.NewSyncer(index, logging.Component(base, "index-sync")),
		redisClient,
		cfg.Booking.Sync,
		logging.Component(base, "sync-worker"),
	)

	holds := service.NewHoldService(db, index, syncWorker, bus, cfg.Booking, logging.Component(base, "holds"))
	appointments := service.NewAppointmentService(db, db, syncWorker, bus, logging.Component(base, "appointments"))
	schedule := service.NewScheduleService(db, index, cfg.Booking.SlotStepMinutes, logging.Component(base, "schedule"))
	catalog := service.NewCatalogService(db, logging.Component(base, "catalog"))

	expirySweeper := sweeper.NewSweeper(db, index, syncWorker, bus, cfg.Booking, logging.Component(base, "sweeper"))
	attendance, err := sweeper.NewAttendanceSweeper(db, db, cfg.Booking, logging.Component(base, "attendance"))
	if err != nil {
		return fmt.Errorf("init attendance sweeper: %w", err)
	}
	resyncer := availability.NewResyncer(db, index, cfg.Booking.ResyncBatchSize, logging.Component(base, "resync")).
		WithGate(syncWorker)

	if err := initNotifications(ctx, cfg, bus, base); err != nil {
		return err
	}

	svc := api.Services{
		Holds:        holds,
		Appointments: appointments,
		Schedule:     schedule,
		Catalog:      catalog,
		Sweeper:      expirySweeper,
		Attendance:   attendance,
		Resyncer:     resyncer,
		ReadyChecks:  readyChecks(db, redisClient),
	}
	if sheets := initGoogleSheets(ctx, cfg, logger); sheets != nil {
		svc.Sheets = sheets
	}

	grpcServer, err := api.NewGRPCServer(cfg.API, base)
	if err != nil {
		logger.Error().Err(err).Msg("create grpc server")
		return err
	}
	httpServer := api.NewHTTPServer(cfg.API, svc, logging.Component(base, "http"))
	go grpcServer.WatchReadiness(ctx, svc.ReadyChecks, 15*time.Second)

	startMetrics(ctx, cfg, logger)
	startBackground(ctx, cfg, db, syncWorker, expirySweeper, attendance, base)

	return startServers(ctx, grpcServer, httpServer, cfg, logger)
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}

	return cfg, baseLogger, closer, nil
}

func initDatabase(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*database.DB, error) {
	db, err := database.NewDB(cfg.Database.Path, logger, database.WithBusyTimeout(cfg.Database.BusyTimeout))
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, err
	}

	// Настройки из конфига пишутся только при первом запуске
	if err := db.SeedSettings(ctx, cfg.Business.BusinessHours(), cfg.Business.Closures, cfg.Business.SpecialHours); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("seed settings: %w", err)
	}
	if err := db.SeedServices(ctx, cfg.Services); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("seed services: %w", err)
	}
	return db, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := availability.NewRedisClient(cfg.Redis)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := availability.Ping(pingCtx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing with in-memory availability index")
		_ = redisClient.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

func initIndex(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) availability.Index {
	if redisClient == nil {
		logger.Info().Msg("using in-memory availability index")
		return availability.NewMemoryIndex()
	}
	return availability.NewRedisIndex(redisClient, cfg.Redis.KeyPrefix, cfg.Booking.IndexLookback)
}

func initNotifications(ctx context.Context, cfg *config.Config, bus *events.EventBus, base *zerolog.Logger) error {
	logger := logging.Component(base, "notify")

	var sender notify.Notifier = notify.NoopNotifier{}
	bot, err := notify.NewTelegramBot(cfg.Telegram, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, notifications disabled")
	} else if bot != nil && cfg.Telegram.AdminChatID != 0 {
		sender = notify.NewTelegramNotifier(bot, cfg.Telegram.AdminChatID)
	}

	loc, err := cfg.Business.BusinessHours().Location()
	if err != nil {
		return fmt.Errorf("business time zone: %w", err)
	}
	dispatcher := notify.NewDispatcher(sender, loc, logger)
	dispatcher.Subscribe(bus)
	go dispatcher.Start(ctx)
	return nil
}

func initGoogleSheets(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *export.SheetsPublisher {
	if cfg.Google.CredentialsFile == "" || cfg.Google.SpreadsheetID == "" {
		return nil
	}

	loc, err := cfg.Business.BusinessHours().Location()
	if err != nil {
		loc = time.UTC
	}
	publisher, err := export.NewSheetsPublisher(ctx, cfg.Google.CredentialsFile, cfg.Google.SpreadsheetID, cfg.Google.SheetName, loc)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return nil
	}

	logger.Info().Msg("google sheets connected")
	return publisher
}

func readyChecks(db *database.DB, redisClient *redis.Client) []api.ReadyCheck {
	checks := []api.ReadyCheck{{Name: "sqlite", Check: db.PingContext}}
	if redisClient != nil {
		checks = append(checks, api.ReadyCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return availability.Ping(ctx, redisClient) },
		})
	}
	return checks
}

func startBackground(
	ctx context.Context,
	cfg *config.Config,
	db *database.DB,
	syncWorker *worker.SyncWorker,
	expirySweeper *sweeper.Sweeper,
	attendance *sweeper.AttendanceSweeper,
	base *zerolog.Logger,
) {
	go syncWorker.Start(ctx)
	go expirySweeper.Start(ctx)
	go attendance.Start(ctx)

	if cfg.Backup.Enabled {
		backup := database.NewBackupService(db, cfg.Backup, logging.Component(base, "backup"))
		go backup.Start(ctx)
	}
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	go func() {
		if !cfg.API.GRPC.Enabled {
			return
		}
		if err := grpcServer.Serve(); err != nil {
			logger.Error().Err(err).Msg("grpc server stopped")
		}
	}()

	go func() {
		if !cfg.API.HTTP.Enabled {
			return
		}
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Str("grpc_addr", grpcServer.Addr()).Int("http_port", cfg.API.HTTP.Port).Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	grpcServer.Shutdown(shutdownCtx)
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
