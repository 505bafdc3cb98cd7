package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"event-booking/cmd"
	"event-booking/internal/data/memory"
	"event-booking/internal/data/repository"
	"event-booking/internal/usecase"
	"event-booking/internal/wire"
	"event-booking/pkg/clock"
	"event-booking/pkg/database"
	"event-booking/pkg/events"
	"event-booking/pkg/lock"
	"event-booking/pkg/reference"
	"event-booking/pkg/utils"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const drainTimeout = 10 * time.Second

func main() {
	// Load config
	config, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := utils.InitLogger(config.App)
	if err != nil {
		log.Printf("Failed to init logger: %v. Using standard log.", err)
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	logger.Info("Starting application",
		zap.String("app", config.App.Name),
		zap.String("port", config.App.Port),
		zap.String("storage", config.Storage.Driver),
		zap.String("lock_backend", config.Inventory.LockBackend),
		zap.Bool("debug", config.App.Debug),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, config, logger); err != nil {
		logger.Fatal("Application stopped with error", zap.Error(err))
	}
	logger.Info("Application stopped")
}

func run(ctx context.Context, config *utils.Config, logger *zap.Logger) error {
	repo, health, closeStore, err := openStorage(ctx, config, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	locker, closeLocker, err := newLocker(config, logger)
	if err != nil {
		return err
	}
	defer closeLocker()

	clk := clock.NewSystem()

	sinks := []events.Sink{events.NewAuditSink(logger)}
	if config.Events.RabbitMQURL != "" {
		broker := events.NewRabbitMQSink(config.Events.RabbitMQURL, config.Events.Exchange, config.Events.Queues, logger)
		defer broker.Close()
		sinks = append(sinks, broker)
	}
	dispatcher := events.NewDispatcher(logger, clk, config.Events.Buffer, config.Events.Workers, sinks...)
	dispatcher.Start()

	service := usecase.NewService(repo, usecase.Deps{
		Locker:     locker,
		References: reference.NewGenerator(clk, reference.WithSuffixLengths(config.Reference.BookingSuffix, config.Reference.TransactionSuffix)),
		Publisher:  dispatcher,
		Clock:      clk,
	}, logger)

	app := wire.Wiring(service, config, health, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return cmd.APIServer(gctx, app.Router, config.App.Port, logger)
	})
	g.Go(func() error {
		<-gctx.Done()
		drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		defer cancel()
		return dispatcher.Close(drainCtx)
	})
	return g.Wait()
}

// openStorage returns the repositories for the configured driver, a health
// probe and a close func.
func openStorage(ctx context.Context, config *utils.Config, logger *zap.Logger) (*repository.Repository, wire.HealthCheck, func(), error) {
	if config.Storage.Driver == "memory" {
		logger.Warn("Using in-memory storage, data is lost on restart")
		return memory.NewRepository(logger, memory.WithLockTimeout(config.Inventory.LockTimeout)), nil, func() {}, nil
	}

	db, err := database.InitDB(ctx, config.Database)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect database: %w", err)
	}
	logger.Info("Database connected successfully")

	if config.Database.Migrate {
		if err := database.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, nil, nil, fmt.Errorf("migrate database: %w", err)
		}
		logger.Info("Database migrations applied")
	}

	return repository.NewRepository(db, config.Inventory.LockTimeout, logger), db.Ping, db.Close, nil
}

// newLocker builds the per-ticket lock. With the redis backend a distributed
// lock guards replicas and the in-process lock still queues local callers.
func newLocker(config *utils.Config, logger *zap.Logger) (lock.Locker, func(), error) {
	local := lock.NewKeyed(config.Inventory.LockTimeout)
	if config.Inventory.LockBackend != "redis" {
		return local, func() {}, nil
	}

	opts, err := redis.ParseURL(config.Redis.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	distributed := lock.NewRedis(client, "lock:ticket:", config.Inventory.LockTimeout, logger, lock.WithTTL(config.Redis.LockTTL))

	logger.Info("Using redis ticket lock", zap.String("addr", opts.Addr))
	return lock.Chain(local, distributed), func() { _ = client.Close() }, nil
}
