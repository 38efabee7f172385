package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/rafaelCarinha/tao-dividends/rebalancer/internal/domain"
)

// OutcomeStore writes completed rebalance outcomes to stake_history.
type OutcomeStore struct {
	db *gorm.DB
}

func NewOutcomeStore(db *gorm.DB) *OutcomeStore {
	return &OutcomeStore{db: db}
}

func (s *OutcomeStore) Migrate() error {
	return s.db.AutoMigrate(&domain.SentimentOutcome{})
}

func (s *OutcomeStore) Save(ctx context.Context, o *domain.SentimentOutcome) error {
	if err := s.db.WithContext(ctx).Create(o).Error; err != nil {
		return fmt.Errorf("insert sentiment outcome: %w", err)
	}
	return nil
}
