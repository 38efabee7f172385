package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/rafaelCarinha/tao-dividends/rebalancer/internal/domain"
	"github.com/rafaelCarinha/tao-dividends/rebalancer/internal/metrics"
)

const (
	// stakePerPoint is the TAO moved per point of sentiment.
	stakePerPoint = 0.01

	releaseTimeout = 2 * time.Second
)

type SentimentScorer interface {
	Score(ctx context.Context, netuid uint16) (float64, error)
}

type LedgerWriter interface {
	Stake(ctx context.Context, jobID, hotkey string, netuid uint16, amount float64) (domain.LedgerResult, error)
	Unstake(ctx context.Context, jobID, hotkey string, netuid uint16, amount float64) (domain.LedgerResult, error)
}

type JobClaimer interface {
	Claim(ctx context.Context, jobID string) (bool, error)
	Release(ctx context.Context, jobID string) error
}

type OutcomeSink interface {
	Save(ctx context.Context, o *domain.SentimentOutcome) error
}

// RebalanceService turns a (netuid, hotkey) job into a stake adjustment
// sized by the subnet's sentiment.
type RebalanceService struct {
	claims   JobClaimer
	scorer   SentimentScorer
	ledger   LedgerWriter
	outcomes OutcomeSink
	timeout  time.Duration
	logger   *zap.Logger
}

func NewRebalanceService(claims JobClaimer, scorer SentimentScorer, ledger LedgerWriter, outcomes OutcomeSink, timeout time.Duration, logger *zap.Logger) *RebalanceService {
	return &RebalanceService{
		claims:   claims,
		scorer:   scorer,
		ledger:   ledger,
		outcomes: outcomes,
		timeout:  timeout,
		logger:   logger,
	}
}

// Handle runs one job to completion. Scoring and ledger-write failures abort
// the job; nothing is retried here. A job id that was already claimed is
// skipped without side effects. A job that fails before any stake request
// was attempted gives its claim back so a redelivery can run it.
func (s *RebalanceService) Handle(ctx context.Context, job domain.RebalanceJob) (err error) {
	outcome := "completed"
	defer func() {
		if err != nil {
			outcome = "failed"
		}
		metrics.JobsProcessedTotal.WithLabelValues(outcome).Inc()
	}()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	log := s.logger.With(
		zap.String("job_id", job.ID),
		zap.Uint16("netuid", job.Netuid),
		zap.String("hotkey", job.Hotkey),
	)

	claimed, err := s.claims.Claim(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("claim job: %w", err)
	}
	if !claimed {
		log.Info("job already claimed, skipping")
		outcome = "duplicate"
		return nil
	}

	writeAttempted := false
	defer func() {
		if err == nil || writeAttempted {
			return
		}
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		if rerr := s.claims.Release(releaseCtx, job.ID); rerr != nil {
			log.Warn("failed to release job claim", zap.Error(rerr))
		}
	}()

	score, err := s.scorer.Score(ctx, job.Netuid)
	if err != nil {
		return err
	}
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return fmt.Errorf("%w: score is not finite", domain.ErrScoringFailed)
	}

	metrics.SentimentScore.Observe(score)
	op, amount := Decide(score)
	log.Info("sentiment scored",
		zap.Float64("score", score),
		zap.String("operation", string(op)),
		zap.Float64("amount", amount),
	)

	// From here a stake request may be out; the claim stays so a
	// redelivery cannot move stake twice.
	writeAttempted = true
	var result domain.LedgerResult
	if op == domain.OperationStake {
		result, err = s.ledger.Stake(ctx, job.ID, job.Hotkey, job.Netuid, amount)
	} else {
		result, err = s.ledger.Unstake(ctx, job.ID, job.Hotkey, job.Netuid, amount)
	}
	if err != nil {
		return err
	}
	metrics.StakeOperationsTotal.WithLabelValues(string(op)).Inc()

	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode ledger result: %w", err)
	}
	record := &domain.SentimentOutcome{
		JobID:          job.ID,
		Netuid:         int(job.Netuid),
		Hotkey:         job.Hotkey,
		SentimentScore: score,
		Operation:      op,
		StakeAmount:    amount,
		LedgerResult:   string(raw),
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.outcomes.Save(ctx, record); err != nil {
		return err
	}
	log.Info("rebalance completed", zap.String("request_id", result.RequestID))
	return nil
}

// Decide maps a score to an operation and amount. Zero is not positive and
// unstakes nothing.
func Decide(score float64) (domain.Operation, float64) {
	amount := stakePerPoint * math.Abs(score)
	if score > 0 {
		return domain.OperationStake, amount
	}
	return domain.OperationUnstake, amount
}
