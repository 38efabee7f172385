package store

import (
	"context"
	"fmt"
	"strconv"

	"gorm.io/gorm"

	"github.com/rafaelCarinha/tao-dividends/dividends/internal/domain"
)

// RequestAuditStore appends request audit rows to Postgres.
type RequestAuditStore struct {
	db *gorm.DB
}

func NewRequestAuditStore(db *gorm.DB) *RequestAuditStore {
	return &RequestAuditStore{db: db}
}

// Migrate creates or updates the request_audits table.
func (s *RequestAuditStore) Migrate() error {
	return s.db.AutoMigrate(&domain.RequestAudit{})
}

// Append inserts rec and returns its id.
func (s *RequestAuditStore) Append(ctx context.Context, rec *domain.RequestAudit) (string, error) {
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return "", fmt.Errorf("insert request audit: %w", err)
	}
	return strconv.FormatUint(uint64(rec.ID), 10), nil
}
