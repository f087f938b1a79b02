package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"classroom-roster/internal/api/handlers"
	"classroom-roster/internal/api/router"
	"classroom-roster/internal/config"
	"classroom-roster/internal/domain/roster"
	"classroom-roster/internal/infrastructure/cache"
	"classroom-roster/internal/infrastructure/database"
	"classroom-roster/internal/infrastructure/events"
	"classroom-roster/internal/infrastructure/metrics"
	"classroom-roster/internal/infrastructure/repository"
	interfaces "classroom-roster/internal/interfaces/infrastructure"
	"classroom-roster/internal/service"
	"classroom-roster/pkg/logger"

	"github.com/spf13/cobra"
)

var (
	port          string
	migrationsDir string
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the HTTP server",
	Long: `Start the roster HTTP API.
The data store loads everything from the database on startup. If the
database cannot be reached, the last snapshot is loaded instead and writes
keep going to the snapshot store until the database recovers.`,
	Run: func(cmd *cobra.Command, args []string) {
		startServer()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().StringVarP(&port, "port", "p", "", "Port for the server to listen on (overrides server.port)")
	serverCmd.Flags().StringVar(&migrationsDir, "migrations", "migrations", "Directory of SQL migrations applied on startup")
}

type backends struct {
	engine    interfaces.Engine
	snapshots interfaces.SnapshotStore
	checks    map[string]handlers.HealthCheckFunc
}

func buildEngine(cfg *config.Config, b *backends) error {
	if cfg.Database.Driver == "memory" {
		engine := repository.NewMemoryEngine()
		b.engine = engine
		b.checks["database"] = engine.Health
		logger.Warn("Using the in-memory engine, data is lost on exit")
		return nil
	}

	dbConfig := databaseConfig(cfg)
	dbConfig.Lazy = true
	db, err := database.NewConnection(dbConfig)
	if err != nil {
		return err
	}

	// The store falls back to the snapshot when the database is down, so
	// a failed migration is not fatal here.
	if err := database.RunMigrations(db, migrationsDir); err != nil {
		logger.Warn("Skipping migrations: %v", err)
	}

	engine := repository.NewGormEngine(db)
	b.engine = engine
	b.checks["database"] = engine.Health
	return nil
}

func buildSnapshots(cfg *config.Config, b *backends) {
	switch cfg.Cache.Type {
	case "memory":
		snaps := cache.NewMemorySnapshotStore()
		b.snapshots = snaps
		b.checks["snapshot"] = snaps.Health
	default:
		snaps := cache.NewRedisSnapshotStore(cfg.Cache.Addr(), cfg.Cache.Password, cfg.Cache.DB, cfg.Roster.SnapshotPrefix)
		b.snapshots = snaps
		b.checks["snapshot"] = snaps.Health
	}
}

// watchBackend logs every switch between the engine and the snapshot
// store until the bus is stopped.
func watchBackend(bus *events.Bus) {
	changes, _ := bus.Subscribe(roster.EntityBackend)
	go func() {
		for event := range changes {
			switch event.Kind {
			case roster.ChangeDegraded:
				logger.Warn("Persistence degraded to snapshot store at %s", event.At.Format(time.RFC3339))
			case roster.ChangeRestored:
				logger.Info("Persistence restored to database engine")
			}
		}
	}()
}

func startServer() {
	cfg := config.Get()
	if port != "" {
		cfg.Server.Port = port
	}

	b := &backends{checks: map[string]handlers.HealthCheckFunc{}}
	if err := buildEngine(cfg, b); err != nil {
		logger.Error("Failed to set up database engine: %v", err)
		os.Exit(1)
	}
	buildSnapshots(cfg, b)
	defer b.snapshots.Close()

	bus := events.NewBus(cfg.Roster.NotifyBuffer)
	bus.Start()
	defer bus.Stop()
	watchBackend(bus)

	recorder := metrics.NewRecorder()
	store := service.NewDataStore(b.engine, b.snapshots, bus, recorder, cfg.Roster.MaxStudentsPerClass)

	loadCtx, cancelLoad := context.WithTimeout(context.Background(), 30*time.Second)
	err := store.LoadAll(loadCtx)
	cancelLoad()
	if err != nil {
		logger.Error("Failed to load roster: %v", err)
		os.Exit(1)
	}

	r := router.NewRouter(router.Dependencies{
		Store:          store,
		Batches:        service.NewBatchOrchestrator(store, bus, recorder),
		Metrics:        recorder,
		HealthChecks:   b.checks,
		Version:        cfg.App.Version,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		GridColumns:    cfg.Roster.DefaultGridColumns,
		MaxRating:      cfg.Roster.DefaultMaxRating,
	})

	srv := &http.Server{
		Addr:           ":" + cfg.Server.Port,
		Handler:        r,
		ReadTimeout:    time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.Server.WriteTimeout) * time.Second,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	go func() {
		logger.Info("Starting %s %s on %s", cfg.App.Name, cfg.App.Version, srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}
