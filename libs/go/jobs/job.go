// Package jobs defines the envelope exchanged between the dividends API and
// the rebalancer over Kafka.
package jobs

import (
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// SentimentStake is the job that adjusts stake on (netuid, hotkey) from
// the subnet's social sentiment.
const SentimentStake = "rebalance.sentiment_stake"

var ErrMalformedJob = errors.New("jobs: malformed job envelope")

// Job is a named task with positional arguments.
type Job struct {
	ID         string
	Name       string
	Args       []any
	EnqueuedAt time.Time
}

// Marshal encodes the job as a protobuf Struct.
func (j Job) Marshal() ([]byte, error) {
	args, err := structpb.NewList(j.Args)
	if err != nil {
		return nil, fmt.Errorf("encode job args: %w", err)
	}
	msg := &structpb.Struct{Fields: map[string]*structpb.Value{
		"id":          structpb.NewStringValue(j.ID),
		"name":        structpb.NewStringValue(j.Name),
		"args":        structpb.NewListValue(args),
		"enqueued_at": structpb.NewStringValue(j.EnqueuedAt.UTC().Format(time.RFC3339Nano)),
	}}
	return proto.Marshal(msg)
}

// Unmarshal decodes a job produced by Marshal. Numeric args come back as
// float64, the only number type a Struct carries.
func Unmarshal(data []byte) (Job, error) {
	var msg structpb.Struct
	if err := proto.Unmarshal(data, &msg); err != nil {
		return Job{}, fmt.Errorf("%w: %v", ErrMalformedJob, err)
	}

	fields := msg.GetFields()
	job := Job{
		ID:   fields["id"].GetStringValue(),
		Name: fields["name"].GetStringValue(),
	}
	if job.ID == "" || job.Name == "" {
		return Job{}, fmt.Errorf("%w: missing id or name", ErrMalformedJob)
	}
	if list := fields["args"].GetListValue(); list != nil {
		job.Args = list.AsSlice()
	}
	if ts := fields["enqueued_at"].GetStringValue(); ts != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			job.EnqueuedAt = parsed
		}
	}
	return job, nil
}
