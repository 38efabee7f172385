package internal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/rafaelCarinha/tao-dividends/dividends/internal/config"
	"github.com/rafaelCarinha/tao-dividends/dividends/internal/domain"
	"github.com/rafaelCarinha/tao-dividends/dividends/internal/kafka"
	"github.com/rafaelCarinha/tao-dividends/dividends/internal/ledger"
	"github.com/rafaelCarinha/tao-dividends/dividends/internal/rest"
	"github.com/rafaelCarinha/tao-dividends/dividends/internal/services"
	"github.com/rafaelCarinha/tao-dividends/dividends/internal/store"
	"github.com/rafaelCarinha/tao-dividends/libs/go/postgres"
)

// App centralizes dependency wiring for the dividends API.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	redis     *redis.Client
	db        *gorm.DB
	publisher *kafka.JobPublisher
	dividends *services.DividendService

	httpServer *http.Server
}

// NewApp builds an App with all required dependencies. The audit database is
// optional at startup: when it cannot be reached requests are served without
// an audit trail.
func NewApp(cfg config.Config, logger *zap.Logger) *App {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	cache := store.NewDividendCache(redisClient, logger)
	ledgerClient := ledger.NewClient(cfg.Ledger.URL, cfg.Ledger.SS58Prefix, logger)
	publisher := kafka.NewJobPublisher(cfg)

	var auditor services.RequestAuditor = discardAudit{}
	db, err := postgres.Open(postgres.Option{ConnString: cfg.Postgres.DSN, MaxOpenConns: 10, MaxIdleConns: 5, Logger: logger})
	if err != nil {
		logger.Warn("request audit disabled", zap.Error(err))
	} else {
		audits := store.NewRequestAuditStore(db)
		if err := audits.Migrate(); err != nil {
			logger.Warn("request audit migration failed", zap.Error(err))
		}
		auditor = audits
	}

	dividends := services.NewDividendService(ledgerClient, cache, publisher, auditor, cfg.Cache.TTLDuration(), cfg.Postgres.AuditTimeout, logger)

	return &App{
		cfg:       cfg,
		logger:    logger,
		redis:     redisClient,
		db:        db,
		publisher: publisher,
		dividends: dividends,
	}
}

// Run serves HTTP and blocks until ctx cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer a.cleanup()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.runHTTPServer(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return ctx.Err()
}

func (a *App) runHTTPServer(ctx context.Context) error {
	r, srv := rest.NewServer(a.cfg, a.logger)
	a.httpServer = srv
	controller := rest.NewDividendController(a.dividends, a.cfg.HTTP.RequestTimeout, a.logger)
	controller.RegisterDividendRoutes(r.Group("/api/v1", rest.BearerAuth(a.cfg.Auth.Token)))

	serverErr := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server started", zap.String("addr", srv.Addr))
		serverErr <- srv.ListenAndServe()
	}()

	select {
	// App context shutdown:
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		err := <-serverErr
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return ctx.Err()
	// HTTP server error:
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (a *App) cleanup() {
	if a.dividends != nil {
		a.dividends.WaitAudits()
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

type discardAudit struct{}

func (discardAudit) Append(context.Context, *domain.RequestAudit) (string, error) {
	return "", nil
}
