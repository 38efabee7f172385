package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rafaelCarinha/tao-dividends/rebalancer/internal/config"
	"github.com/rafaelCarinha/tao-dividends/rebalancer/internal/domain"
)

// flushInterval bounds how long a lone message waits for a batch to fill.
const flushInterval = 5 * time.Millisecond

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// StakePublisher hands stake and unstake requests to the signing executor.
type StakePublisher struct {
	writer messageWriter
	Topic  string
}

func NewStakePublisher(cfg config.Config) *StakePublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Kafka.Brokers...),
		Topic:                  cfg.Kafka.ExecutionsTopic,
		RequiredAcks:           kafka.RequireAll,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           flushInterval,
		AllowAutoTopicCreation: true,
	}
	return &StakePublisher{writer: writer, Topic: cfg.Kafka.ExecutionsTopic}
}

func (p *StakePublisher) Stake(ctx context.Context, jobID, hotkey string, netuid uint16, amount float64) (domain.LedgerResult, error) {
	return p.publish(ctx, jobID, hotkey, netuid, amount, domain.OperationStake)
}

func (p *StakePublisher) Unstake(ctx context.Context, jobID, hotkey string, netuid uint16, amount float64) (domain.LedgerResult, error) {
	return p.publish(ctx, jobID, hotkey, netuid, amount, domain.OperationUnstake)
}

func (p *StakePublisher) publish(ctx context.Context, jobID, hotkey string, netuid uint16, amount float64, op domain.Operation) (domain.LedgerResult, error) {
	req := domain.StakeRequest{
		RequestID: uuid.NewString(),
		JobID:     jobID,
		Hotkey:    hotkey,
		Netuid:    netuid,
		Amount:    amount,
		Operation: op,
		CreatedAt: time.Now().UTC(),
	}
	value, err := encodeStakeRequest(req)
	if err != nil {
		return domain.LedgerResult{}, fmt.Errorf("%w: marshal stake request: %w", domain.ErrLedgerWriteFailed, err)
	}

	// Keyed by hotkey so requests for one hotkey stay ordered.
	msg := kafka.Message{Key: []byte(hotkey), Value: value}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return domain.LedgerResult{}, fmt.Errorf("%w: kafka write: %w", domain.ErrLedgerWriteFailed, err)
	}
	return domain.LedgerResult{RequestID: req.RequestID, Topic: p.Topic, Operation: op}, nil
}

// encodeStakeRequest writes the request as a protobuf Struct, the same
// envelope the job queue uses.
func encodeStakeRequest(req domain.StakeRequest) ([]byte, error) {
	msg := &structpb.Struct{Fields: map[string]*structpb.Value{
		"request_id": structpb.NewStringValue(req.RequestID),
		"job_id":     structpb.NewStringValue(req.JobID),
		"hotkey":     structpb.NewStringValue(req.Hotkey),
		"netuid":     structpb.NewNumberValue(float64(req.Netuid)),
		"amount":     structpb.NewNumberValue(req.Amount),
		"operation":  structpb.NewStringValue(string(req.Operation)),
		"created_at": structpb.NewStringValue(req.CreatedAt.Format(time.RFC3339Nano)),
	}}
	return proto.Marshal(msg)
}

// Close closes the underlying Kafka writer.
func (p *StakePublisher) Close() error {
	return p.writer.Close()
}
