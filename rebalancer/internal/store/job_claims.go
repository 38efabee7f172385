package store

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const claimKeyPrefix = "rebalancer:job:"

// JobClaimStore remembers which job ids have been taken so a redelivered job
// does not move stake twice.
type JobClaimStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewJobClaimStore(client *redis.Client, ttl time.Duration) *JobClaimStore {
	return &JobClaimStore{client: client, ttl: ttl}
}

// Claim reports whether this call took ownership of jobID.
func (s *JobClaimStore) Claim(ctx context.Context, jobID string) (bool, error) {
	if jobID == "" {
		return false, fmt.Errorf("job id is empty")
	}
	key := claimKeyPrefix + jobID
	ok, err := s.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis SETNX %s: %w", key, err)
	}
	return ok, nil
}

// Release drops the claim on jobID so a redelivery can run it again.
func (s *JobClaimStore) Release(ctx context.Context, jobID string) error {
	key := claimKeyPrefix + jobID
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis DEL %s: %w", key, err)
	}
	return nil
}
