package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/senyabanana/procurement-core/internal/db"
	"github.com/senyabanana/procurement-core/internal/gateway"
	"github.com/senyabanana/procurement-core/internal/handlers"
	"github.com/senyabanana/procurement-core/internal/outbox"
	"github.com/senyabanana/procurement-core/internal/repository"
	"github.com/senyabanana/procurement-core/internal/router"
	"github.com/senyabanana/procurement-core/internal/router/config"
	"github.com/senyabanana/procurement-core/internal/services"
	"github.com/senyabanana/procurement-core/internal/worker"
	"github.com/senyabanana/procurement-core/pkg/rabbitmq"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatal("cannot load config:", err)
	}

	runDBMigration(cfg.MigrationURL, cfg.PostgresConn)

	dbPool, err := db.InitDb(cfg)
	if err != nil {
		log.Fatalf("error initializing database: %v", err)
	}
	defer dbPool.Close()

	amqpConn, amqpCh, err := rabbitmq.Connect(cfg.AmqpURL)
	if err != nil {
		log.Fatalf("error connecting to RabbitMQ: %v", err)
	}
	defer amqpConn.Close()

	notifier, err := gateway.NewRedisNotifier(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.NotificationChannel)
	if err != nil {
		log.Fatalf("error connecting to Redis: %v", err)
	}
	defer notifier.Close()

	amqpGateway, err := gateway.NewAmqpGateway(amqpCh)
	if err != nil {
		log.Fatalf("error preparing RabbitMQ queues: %v", err)
	}

	docStore, err := gateway.NewFileDocumentStore(cfg.BrochureStoragePath)
	if err != nil {
		log.Fatalf("error preparing brochure storage: %v", err)
	}

	logger := log.New(os.Stdout, "INFO: ", log.LstdFlags)

	bidRepo := repository.NewPostgresBidRepository(dbPool)
	supervisionRepo := repository.NewPostgresSupervisionRepository(dbPool)
	entitlementRepo := repository.NewPostgresEntitlementRepository(dbPool)
	paymentRepo := repository.NewPostgresPaymentRepository(dbPool)
	reviewRepo := repository.NewPostgresReviewLogRepository(dbPool)
	settingsRepo := repository.NewPostgresSettingsRepository(dbPool)
	accessRepo := repository.NewPostgresAccessRepository(dbPool)
	outboxRepo := repository.NewPostgresOutboxRepository(dbPool)

	lifecycleService := services.NewLifecycleService(bidRepo, supervisionRepo, reviewRepo, paymentRepo, settingsRepo)
	supervisionService := services.NewSupervisionService(supervisionRepo, bidRepo, lifecycleService)
	entitlementService := services.NewEntitlementService(entitlementRepo, paymentRepo, cfg.RevealGateEnabled)
	accessService := services.NewAccessService(bidRepo, accessRepo, supervisionRepo, paymentRepo, settingsRepo, entitlementService)

	bidHandler := handlers.NewBidHandler(lifecycleService, accessService, logger, 5*time.Second)
	supervisionHandler := handlers.NewSupervisionHandler(supervisionService, logger, 5*time.Second)
	revealHandler := handlers.NewRevealHandler(entitlementService, logger, 5*time.Second)

	routes := router.InitRoutes(bidHandler, supervisionHandler, revealHandler)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dispatcher := &outbox.Dispatcher{
		Events:        outboxRepo,
		Bids:          bidRepo,
		Notifications: notifier,
		Emails:        amqpGateway,
		Documents:     docStore,
		Fanout:        amqpGateway,
		Logger:        logger,
		PollInterval:  time.Duration(cfg.OutboxPollSeconds) * time.Second,
		MaxAttempts:   cfg.OutboxMaxAttempts,
	}
	go dispatcher.Run(ctx)

	fanoutWorker := worker.NewFanoutWorker(amqpCh, accessRepo, outboxRepo, logger)
	if err := fanoutWorker.Listen(ctx); err != nil {
		log.Fatalf("error starting fanout worker: %v", err)
	}

	log.Printf("server is listening on %s...", cfg.ServerAddress)
	if err := http.ListenAndServe(cfg.ServerAddress, routes); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

func runDBMigration(migrationURL string, dbSource string) {
	migration, err := migrate.New(migrationURL, dbSource)
	if err != nil {
		log.Fatal("cannot create a new migrate instance", err)
	}

	if err = migration.Up(); err != nil && err != migrate.ErrNoChange {
		log.Fatal("failed to run migrate up:", err)
	}
	log.Println("db migrated successfully")
}
