package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rafaelCarinha/tao-dividends/dividends/internal/domain"
	"github.com/rafaelCarinha/tao-dividends/dividends/internal/metrics"
	"github.com/rafaelCarinha/tao-dividends/dividends/internal/store"
	"github.com/rafaelCarinha/tao-dividends/libs/go/jobs"
)

const (
	auditEndpoint       = "/api/v1/tao_dividends"
	defaultAuditTimeout = 2 * time.Second
)

// LedgerReader is the read side of the ledger.
type LedgerReader interface {
	FetchSingle(ctx context.Context, netuid uint16, hotkey string) (*domain.DividendEntry, string, error)
	FetchAllForSubnet(ctx context.Context, netuid uint16) ([]domain.DividendEntry, error)
	FetchAllSubnets(ctx context.Context) (domain.SubnetDividends, error)
}

// Cache holds single-lookup payloads. Implementations swallow their own
// transport errors.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration)
}

// TaskDispatcher enqueues fire-and-forget jobs.
type TaskDispatcher interface {
	Submit(ctx context.Context, name string, args ...any) (string, error)
}

// RequestAuditor records inbound requests.
type RequestAuditor interface {
	Append(ctx context.Context, rec *domain.RequestAudit) (string, error)
}

// DividendService answers dividend queries: it picks the query shape,
// applies cache-aside to single lookups and optionally enqueues a
// sentiment staking job.
type DividendService struct {
	ledger       LedgerReader
	cache        Cache
	dispatcher   TaskDispatcher
	audit        RequestAuditor
	cacheTTL     time.Duration
	auditTimeout time.Duration
	logger       *zap.Logger

	audits sync.WaitGroup
}

func NewDividendService(
	ledger LedgerReader,
	cache Cache,
	dispatcher TaskDispatcher,
	audit RequestAuditor,
	cacheTTL time.Duration,
	auditTimeout time.Duration,
	logger *zap.Logger,
) *DividendService {
	if auditTimeout <= 0 {
		auditTimeout = defaultAuditTimeout
	}
	return &DividendService{
		ledger:       ledger,
		cache:        cache,
		dispatcher:   dispatcher,
		audit:        audit,
		cacheTTL:     cacheTTL,
		auditTimeout: auditTimeout,
		logger:       logger,
	}
}

// GetDividends serves one request. The audit record is written in the
// background and never delays or fails the request.
func (s *DividendService) GetDividends(ctx context.Context, q domain.Query) (*domain.Result, error) {
	s.recordRequest(ctx, q)

	var (
		result *domain.Result
		err    error
	)
	switch {
	case q.Netuid == nil:
		s.logger.Info("fetching dividends for all subnets")
		result, err = s.allSubnets(ctx)
	case q.Hotkey == nil:
		s.logger.Info("fetching dividends for subnet", zap.Uint16("netuid", *q.Netuid))
		result, err = s.subnet(ctx, *q.Netuid)
	default:
		result, err = s.single(ctx, *q.Netuid, *q.Hotkey)
	}
	if err != nil {
		return nil, err
	}

	if q.Trade {
		taskID, err := s.dispatch(ctx, q)
		if err != nil {
			return nil, err
		}
		result.TaskID = taskID
	}
	return result, nil
}

// WaitAudits blocks until every background audit write has finished.
func (s *DividendService) WaitAudits() {
	s.audits.Wait()
}

// dispatch enqueues the staking job with whatever identifiers the caller
// supplied. Absent ones travel as nulls; the worker drops such jobs.
func (s *DividendService) dispatch(ctx context.Context, q domain.Query) (string, error) {
	var netuid, hotkey any
	if q.Netuid != nil {
		netuid = int(*q.Netuid)
	}
	if q.Hotkey != nil {
		hotkey = *q.Hotkey
	}

	taskID, err := s.dispatcher.Submit(ctx, jobs.SentimentStake, netuid, hotkey)
	if err != nil {
		metrics.JobsDispatchedTotal.WithLabelValues("error").Inc()
		return "", err
	}
	metrics.JobsDispatchedTotal.WithLabelValues("success").Inc()
	s.logger.Info("sentiment staking job enqueued",
		zap.String("task_id", taskID),
		zap.Any("netuid", netuid),
		zap.Any("hotkey", hotkey),
	)
	return taskID, nil
}

func (s *DividendService) allSubnets(ctx context.Context) (*domain.Result, error) {
	dividends, err := s.ledger.FetchAllSubnets(ctx)
	if err != nil {
		return nil, err
	}
	return marshalResult(dividends)
}

func (s *DividendService) subnet(ctx context.Context, netuid uint16) (*domain.Result, error) {
	entries, err := s.ledger.FetchAllForSubnet(ctx, netuid)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []domain.DividendEntry{}
	}
	return marshalResult(entries)
}

func (s *DividendService) single(ctx context.Context, netuid uint16, hotkey string) (*domain.Result, error) {
	key := store.CacheKey(netuid, hotkey)
	if payload, ok := s.cache.Get(ctx, key); ok {
		metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
		s.logger.Info("cache hit", zap.String("key", key))
		return &domain.Result{Cached: true, Data: payload}, nil
	}
	metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()

	entry, blockHash, err := s.ledger.FetchSingle(ctx, netuid, hotkey)
	if err != nil {
		return nil, err
	}

	lookup := domain.SingleLookup{Netuid: netuid, Hotkey: hotkey, BlockHash: blockHash}
	if entry != nil {
		lookup.Found = true
		lookup.Dividend = &entry.Dividend
	}
	result, err := marshalResult(lookup)
	if err != nil {
		return nil, err
	}

	// Misses are cached too so known-absent hotkeys stop reaching the node.
	s.cache.Set(ctx, key, result.Data, s.cacheTTL)
	s.logger.Info("cache miss, stored ledger result",
		zap.String("key", key),
		zap.Bool("found", lookup.Found),
		zap.String("block_hash", blockHash),
	)
	return result, nil
}

func (s *DividendService) recordRequest(ctx context.Context, q domain.Query) {
	rec := &domain.RequestAudit{
		Endpoint:  auditEndpoint,
		Method:    "GET",
		Hotkey:    q.Hotkey,
		Trade:     q.Trade,
		CreatedAt: time.Now().UTC(),
	}
	if q.Netuid != nil {
		n := int(*q.Netuid)
		rec.Netuid = &n
	}

	// Detached from the request so a slow sink cannot eat its deadline,
	// bounded so it cannot pile up either.
	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.auditTimeout)
	s.audits.Add(1)
	go func() {
		defer s.audits.Done()
		defer cancel()

		id, err := s.audit.Append(auditCtx, rec)
		if err != nil {
			s.logger.Warn("failed to persist request audit", zap.Error(err))
			return
		}
		s.logger.Debug("request audit persisted", zap.String("audit_id", id))
	}()
}

func marshalResult(v any) (*domain.Result, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode dividends: %w", err)
	}
	return &domain.Result{Data: data}, nil
}
