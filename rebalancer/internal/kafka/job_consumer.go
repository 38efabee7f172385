package kafka

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/rafaelCarinha/tao-dividends/libs/go/jobs"
	"github.com/rafaelCarinha/tao-dividends/libs/go/numbers"
	"github.com/rafaelCarinha/tao-dividends/rebalancer/internal/config"
	"github.com/rafaelCarinha/tao-dividends/rebalancer/internal/domain"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// JobConsumer reads sentiment staking jobs from Kafka. Each consumer owns one
// reader in the shared consumer group.
type JobConsumer struct {
	reader messageReader
	logger *zap.Logger
}

func NewJobConsumer(cfg config.Config, logger *zap.Logger) *JobConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.Kafka.Brokers,
		GroupID: cfg.Kafka.GroupID,
		Topic:   cfg.Kafka.JobsTopic,
	})
	return &JobConsumer{reader: reader, logger: logger}
}

// Consume hands every well-formed job to handler and commits the message
// whatever the outcome. Malformed messages and handler errors are logged.
func (c *JobConsumer) Consume(ctx context.Context, handler func(context.Context, domain.RebalanceJob) error) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return ctx.Err()
			}
			return fmt.Errorf("kafka read: %w", err)
		}

		job, err := decodeJob(msg.Value)
		if err != nil {
			c.logger.Warn("skipping malformed job",
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
		} else if err := handler(ctx, job); err != nil {
			c.logger.Error("job failed",
				zap.String("job_id", job.ID),
				zap.Uint16("netuid", job.Netuid),
				zap.String("hotkey", job.Hotkey),
				zap.Error(err),
			)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if errors.Is(err, context.Canceled) {
				return ctx.Err()
			}
			return fmt.Errorf("kafka commit: %w", err)
		}
	}
}

// Close closes the underlying Kafka reader.
func (c *JobConsumer) Close() error {
	return c.reader.Close()
}

func decodeJob(data []byte) (domain.RebalanceJob, error) {
	job, err := jobs.Unmarshal(data)
	if err != nil {
		return domain.RebalanceJob{}, err
	}
	if job.Name != jobs.SentimentStake {
		return domain.RebalanceJob{}, fmt.Errorf("%w: unknown job %q", jobs.ErrMalformedJob, job.Name)
	}
	if len(job.Args) != 2 {
		return domain.RebalanceJob{}, fmt.Errorf("%w: want 2 args, got %d", jobs.ErrMalformedJob, len(job.Args))
	}

	netuid, err := numbers.ExtractUint(job.Args[0])
	if err != nil || netuid > math.MaxUint16 {
		return domain.RebalanceJob{}, fmt.Errorf("%w: bad netuid %v", jobs.ErrMalformedJob, job.Args[0])
	}
	hotkey, ok := job.Args[1].(string)
	if !ok || hotkey == "" {
		return domain.RebalanceJob{}, fmt.Errorf("%w: bad hotkey %v", jobs.ErrMalformedJob, job.Args[1])
	}
	return domain.RebalanceJob{ID: job.ID, Netuid: uint16(netuid), Hotkey: hotkey}, nil
}
