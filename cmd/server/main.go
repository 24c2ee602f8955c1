package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	_ "github.com/lib/pq"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/harborpaws/resolve/config"
	"github.com/harborpaws/resolve/internal/database"
	"github.com/harborpaws/resolve/internal/middleware"
	"github.com/harborpaws/resolve/internal/repositories/blacklist"
	"github.com/harborpaws/resolve/internal/repositories/household"
	"github.com/harborpaws/resolve/internal/repositories/identifier"
	"github.com/harborpaws/resolve/internal/repositories/job"
	"github.com/harborpaws/resolve/internal/repositories/matchconfig"
	"github.com/harborpaws/resolve/internal/repositories/matchdecision"
	"github.com/harborpaws/resolve/internal/repositories/matchindex"
	"github.com/harborpaws/resolve/internal/repositories/mergehistory"
	"github.com/harborpaws/resolve/internal/repositories/person"
	"github.com/harborpaws/resolve/internal/repositories/place"
	"github.com/harborpaws/resolve/internal/repositories/rawrecord"
	"github.com/harborpaws/resolve/internal/repositories/relationship"
	"github.com/harborpaws/resolve/internal/startup"
	"github.com/harborpaws/resolve/internal/tracing"
	"github.com/harborpaws/resolve/pkg/events"
	householdsvc "github.com/harborpaws/resolve/pkg/household"
	"github.com/harborpaws/resolve/pkg/ingest"
	"github.com/harborpaws/resolve/pkg/jobs"
	"github.com/harborpaws/resolve/pkg/kafka"
	"github.com/harborpaws/resolve/pkg/locks"
	"github.com/harborpaws/resolve/pkg/matching"
	"github.com/harborpaws/resolve/pkg/merging"
	"github.com/harborpaws/resolve/pkg/review"
	blacklistroute "github.com/harborpaws/resolve/pkg/routes/blacklist"
	"github.com/harborpaws/resolve/pkg/routes/health"
	householdroute "github.com/harborpaws/resolve/pkg/routes/household"
	ingestroute "github.com/harborpaws/resolve/pkg/routes/ingest"
	jobroute "github.com/harborpaws/resolve/pkg/routes/job"
	matchconfigroute "github.com/harborpaws/resolve/pkg/routes/matchconfig"
	personroute "github.com/harborpaws/resolve/pkg/routes/person"
	reviewroute "github.com/harborpaws/resolve/pkg/routes/review"
)

var version = "dev"

func main() {
	_ = godotenv.Load()

	var cfg config.Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger()
	log := logger.WithField("app", cfg.AppName)

	otel.SetTracerProvider(sdktrace.NewTracerProvider())
	tracing.SetTracer(otel.Tracer(cfg.AppName))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sqlxDB, err := connectDatabase(cfg)
	if err != nil {
		log.WithError(err).Error("failed to connect to database")
		os.Exit(1)
	}
	defer sqlxDB.Close()

	if err := runMigrations(cfg, logger, sqlxDB); err != nil {
		log.WithError(err).Error("failed to run migrations")
		os.Exit(1)
	}

	db := database.NewInstance(sqlxDB, logger)

	// Repositories
	personRepo := person.NewRepository(db, logger)
	identifierRepo := identifier.NewRepository(db, logger)
	relationshipRepo := relationship.NewRepository(db, logger)
	historyRepo := mergehistory.NewRepository(db, logger)
	matchIndexRepo := matchindex.NewRepository(db, logger)
	decisionRepo := matchdecision.NewRepository(db, logger)
	configRepo := matchconfig.NewRepository(db, logger)
	blacklistRepo := blacklist.NewRepository(db, logger)
	householdRepo := household.NewRepository(db, logger)
	placeRepo := place.NewRepository(db, logger)
	jobRepo := job.NewRepository(db, logger)
	rawRecordRepo := rawrecord.NewRepository(db, logger)

	var guard locks.Guard = locks.NewKeyedMutex()
	if cfg.UseAdvisoryLocks {
		guard = locks.NewPostgresGuard(db, logger)
	}

	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      cfg.KafkaBrokers,
		Topic:        cfg.KafkaEventsTopic,
		BatchSize:    cfg.KafkaBatchSize,
		BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
		RequiredAcks: cfg.KafkaRequiredAcks,
		Compression:  cfg.KafkaCompression,
	}, logger)
	defer producer.Close()

	emitter := events.NewEmitter(producer, logger)

	// Domain services
	resolver := merging.NewResolver(personRepo, cfg.MaxMergeChainDepth, logger)
	mergeEngine := merging.NewEngine(logger, guard, personRepo, identifierRepo, relationshipRepo, historyRepo, matchIndexRepo, resolver, emitter)
	householdSvc := householdsvc.NewService(logger, guard, householdRepo, blacklistRepo, personRepo, placeRepo, identifierRepo, householdsvc.DefaultOptions(), emitter)
	generator := matching.NewGenerator(identifierRepo, matchIndexRepo, matching.NewScorer(), cfg.MaxCandidatesPerRecord, logger)
	matchEngine := matching.NewEngine(logger, guard, generator, personRepo, identifierRepo, decisionRepo, configRepo, blacklistRepo, matchIndexRepo, householdSvc, emitter, cfg.AutoMatchEnabled)
	ingestSvc := ingest.NewService(logger, rawRecordRepo, jobRepo, cfg.JobBatchSize, cfg.JobMaxAttempts)
	pipeline := ingest.NewPipeline(logger, rawRecordRepo, matchEngine, cfg.ResolveRecordTimeout)
	jobSvc := jobs.NewService(logger, jobRepo, cfg.JobBatchSize, cfg.JobMaxAttempts)
	reviewSvc := review.NewService(logger, decisionRepo, identifierRepo, mergeEngine)

	if err := registerDependencies(logger, db, personRepo, identifierRepo, historyRepo, configRepo, blacklistRepo, householdRepo, resolver, mergeEngine, householdSvc, ingestSvc, jobSvc, reviewSvc); err != nil {
		log.WithError(err).Error("failed to register dependencies")
		os.Exit(1)
	}

	// Background components
	boot := startup.New(logger, cfg.StartupMaxAttempts)
	boot.AddDependency(&databaseDependency{db: sqlxDB})
	if cfg.WorkersEnabled {
		boot.AddDependency(jobs.NewWorkerPool(logger, jobRepo, rawRecordRepo, pipeline, cfg))
		boot.AddDependency(jobs.NewSweeper(logger, jobRepo, cfg.JobSweepInterval))
	}
	if cfg.KafkaConsumerEnabled {
		boot.AddDependency(kafka.NewConsumer(cfg, logger, ingestSvc.HandleIntakeMessage))
	}
	if err := boot.Start(ctx); err != nil {
		log.WithError(err).Error("failed to start background components")
		os.Exit(1)
	}

	e := newServer(cfg, logger)

	checker := health.NewChecker(sqlxDB, version)
	checker.RegisterRoutes(e)

	api := e.Group("/api/v1")
	ingestroute.Register(api.Group("/ingest"))
	jobroute.Register(api.Group("/jobs"))
	reviewroute.Register(api.Group("/reviews"))
	personroute.Register(api.Group("/persons"))
	matchconfigroute.Register(api.Group("/match-configs"))
	blacklistroute.Register(api.Group("/blacklist"))
	householdroute.Register(api.Group("/households"))

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		if err := e.StartServer(&http.Server{
			Addr:              addr,
			ReadTimeout:       time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second,
			WriteTimeout:      time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second,
			IdleTimeout:       time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second,
			ReadHeaderTimeout: time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second,
			MaxHeaderBytes:    cfg.MaxHeaderBytes,
		}); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("http server stopped")
			stop()
		}
	}()

	checker.SetReady(true)
	log.WithField("port", cfg.Port).Info("server started")

	<-ctx.Done()
	checker.SetReady(false)
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("failed to shut down http server")
	}
	if err := boot.Stop(shutdownCtx); err != nil {
		log.WithError(err).Error("failed to stop background components")
	}
}

func newLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(msg ectologger.EctoLogMessage) {
		line, err := json.Marshal(msg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to marshal log message: %v\n", err)
			return
		}
		fmt.Println(string(line))
	})
}

func connectDatabase(cfg config.Config) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DatabaseHost, cfg.DatabasePort, cfg.DatabaseUserName, cfg.DatabasePassword, cfg.DatabaseName, cfg.DatabaseSSLMode)

	db, err := sqlx.Open(cfg.DatabaseDriver, dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.DatabaseMaxOpenConns)
	db.SetMaxIdleConns(cfg.DatabaseMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DatabaseConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func runMigrations(cfg config.Config, logger ectologger.Logger, db *sqlx.DB) error {
	driver, err := postgres.WithInstance(db.DB, &postgres.Config{})
	if err != nil {
		return err
	}
	ms := database.NewMigrationService(logger, &database.MigrationConfig{
		MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
		Version:             uint(cfg.DatabaseMigrationVersion),
	})
	return ms.Migrate(cfg.DatabaseName, driver)
}

func registerDependencies(
	logger ectologger.Logger,
	db database.DB,
	personRepo *person.Repository,
	identifierRepo *identifier.Repository,
	historyRepo *mergehistory.Repository,
	configRepo *matchconfig.Repository,
	blacklistRepo *blacklist.Repository,
	householdRepo *household.Repository,
	resolver *merging.Resolver,
	mergeEngine *merging.Engine,
	householdSvc *householdsvc.Service,
	ingestSvc *ingest.Service,
	jobSvc *jobs.Service,
	reviewSvc *review.Service,
) error {
	container, err := ectoinject.NewDIDefaultContainer()
	if err != nil {
		return err
	}

	if err := ectoinject.RegisterInstance[ectologger.Logger](container, logger); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[database.DB](container, db); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*person.Repository](container, personRepo); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*identifier.Repository](container, identifierRepo); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*mergehistory.Repository](container, historyRepo); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*matchconfig.Repository](container, configRepo); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*blacklist.Repository](container, blacklistRepo); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*household.Repository](container, householdRepo); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*merging.Resolver](container, resolver); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*merging.Engine](container, mergeEngine); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*householdsvc.Service](container, householdSvc); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*ingest.Service](container, ingestSvc); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*jobs.Service](container, jobSvc); err != nil {
		return err
	}
	return ectoinject.RegisterInstance[*review.Service](container, reviewSvc)
}

func newServer(cfg config.Config, logger ectologger.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))
	e.HTTPErrorHandler = middleware.Error(logger)

	return e
}

// databaseDependency anchors the startup graph so workers and consumers wait
// on a live connection before they claim work.
type databaseDependency struct {
	db *sqlx.DB
}

func (d *databaseDependency) GetName() string {
	return "database"
}

func (d *databaseDependency) DependsOn() []string {
	return nil
}

func (d *databaseDependency) Start(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

func (d *databaseDependency) Stop(ctx context.Context) error {
	return nil
}
