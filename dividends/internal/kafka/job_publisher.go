package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/rafaelCarinha/tao-dividends/dividends/internal/config"
	"github.com/rafaelCarinha/tao-dividends/dividends/internal/domain"
	"github.com/rafaelCarinha/tao-dividends/libs/go/jobs"
)

// flushInterval bounds how long Submit waits for a batch to fill before the
// writer sends what it has. The kafka-go default of one second would sit on
// every trade request.
const flushInterval = 5 * time.Millisecond

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// JobPublisher enqueues background jobs on Kafka. Submit returns once the
// broker has the message; it never waits for the job to run.
type JobPublisher struct {
	writer messageWriter
	Topic  string
}

func NewJobPublisher(cfg config.Config) *JobPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Kafka.Brokers...),
		Topic:                  cfg.Kafka.JobsTopic,
		RequiredAcks:           kafka.RequireAll,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           flushInterval,
		AllowAutoTopicCreation: true,
	}
	return &JobPublisher{writer: writer, Topic: cfg.Kafka.JobsTopic}
}

// Submit enqueues job name with positional args and returns the job id.
func (p *JobPublisher) Submit(ctx context.Context, name string, args ...any) (string, error) {
	job := jobs.Job{
		ID:         uuid.NewString(),
		Name:       name,
		Args:       args,
		EnqueuedAt: time.Now().UTC(),
	}
	value, err := job.Marshal()
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrDispatchFailed, err)
	}

	msg := kafka.Message{
		Key:   []byte(job.ID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "job_name", Value: []byte(name)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return "", fmt.Errorf("%w: kafka write: %w", domain.ErrDispatchFailed, err)
	}
	return job.ID, nil
}

func (p *JobPublisher) Close() error {
	return p.writer.Close()
}
