package internal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/rafaelCarinha/tao-dividends/libs/go/postgres"
	"github.com/rafaelCarinha/tao-dividends/libs/go/routine"
	"github.com/rafaelCarinha/tao-dividends/rebalancer/internal/config"
	"github.com/rafaelCarinha/tao-dividends/rebalancer/internal/kafka"
	"github.com/rafaelCarinha/tao-dividends/rebalancer/internal/sentiment"
	"github.com/rafaelCarinha/tao-dividends/rebalancer/internal/services"
	"github.com/rafaelCarinha/tao-dividends/rebalancer/internal/store"
)

// App centralizes dependency wiring for the rebalance worker.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	redis     *redis.Client
	db        *gorm.DB
	consumers []*kafka.JobConsumer
	publisher *kafka.StakePublisher
	rebalance *services.RebalanceService
}

// NewApp builds an App with all required dependencies.
func NewApp(cfg config.Config, logger *zap.Logger) (*App, error) {
	db, err := postgres.Open(postgres.Option{ConnString: cfg.Postgres.DSN, MaxOpenConns: cfg.Worker.Concurrency + 1, Logger: logger})
	if err != nil {
		return nil, err
	}
	outcomes := store.NewOutcomeStore(db)
	if err := outcomes.Migrate(); err != nil {
		_ = postgres.Close(db)
		return nil, fmt.Errorf("migrate stake_history: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	claims := store.NewJobClaimStore(redisClient, cfg.Worker.ClaimTTL)
	publisher := kafka.NewStakePublisher(cfg)
	scorer := sentiment.NewScorer(cfg.Sentiment, logger)

	consumers := make([]*kafka.JobConsumer, cfg.Worker.Concurrency)
	for i := range consumers {
		consumers[i] = kafka.NewJobConsumer(cfg, logger)
	}

	return &App{
		cfg:       cfg,
		logger:    logger,
		redis:     redisClient,
		db:        db,
		consumers: consumers,
		publisher: publisher,
		rebalance: services.NewRebalanceService(claims, scorer, publisher, outcomes, cfg.Worker.JobTimeout, logger),
	}, nil
}

// Run starts one consumer routine per configured worker plus the metrics
// endpoint, and blocks until ctx is cancelled or a routine fails.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer a.cleanup()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.runConsumers(gctx)
	})

	g.Go(func() error {
		return a.runMetricsServer(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return ctx.Err()
}

func (a *App) runConsumers(ctx context.Context) error {
	manager := routine.NewManager(ctx)
	failed := make(chan error, len(a.consumers))
	for i, consumer := range a.consumers {
		task := &routine.Task{
			ID: fmt.Sprintf("job-consumer-%d", i),
			Handler: func(ctx context.Context) error {
				return consumer.Consume(ctx, a.rebalance.Handle)
			},
			OnStart: func(id string) {
				a.logger.Info("consumer started", zap.String("routine", id))
			},
			OnError: func(id string, err error) {
				if errors.Is(err, context.Canceled) {
					return
				}
				a.logger.Error("consumer stopped", zap.String("routine", id), zap.Error(err))
				failed <- fmt.Errorf("%s: %w", id, err)
			},
		}
		if err := manager.RunTask(task); err != nil {
			_ = manager.ShutdownAll()
			return fmt.Errorf("start %s: %w", task.ID, err)
		}
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-failed:
	}
	_ = manager.ShutdownAll()

	if runErr != nil {
		return runErr
	}
	return ctx.Err()
}

func (a *App) runMetricsServer(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              a.cfg.Worker.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		a.logger.Info("metrics server started", zap.String("addr", srv.Addr))
		serverErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server shutdown: %w", err)
		}
		<-serverErr
		return ctx.Err()
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	}
}

func (a *App) cleanup() {
	for _, c := range a.consumers {
		if err := c.Close(); err != nil {
			a.logger.Error("error closing Kafka consumer", zap.Error(err))
		}
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Error("error closing Kafka publisher", zap.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("error closing Redis client", zap.Error(err))
		}
	}
	if err := postgres.Close(a.db); err != nil {
		a.logger.Error("error closing Postgres pool", zap.Error(err))
	}
}
