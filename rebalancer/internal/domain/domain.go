package domain

import (
	"errors"
	"time"
)

var (
	// ErrScoringFailed means no usable sentiment score could be obtained.
	ErrScoringFailed = errors.New("sentiment scoring failed")
	// ErrLedgerWriteFailed means the stake or unstake request was not accepted.
	ErrLedgerWriteFailed = errors.New("ledger write failed")
)

// Operation is the direction of a stake adjustment.
type Operation string

const (
	OperationStake   Operation = "stake"
	OperationUnstake Operation = "unstake"
)

// RebalanceJob is the decoded payload of a sentiment staking job.
type RebalanceJob struct {
	ID     string
	Netuid uint16
	Hotkey string
}

// StakeRequest asks the signing executor to move stake on a hotkey. It
// travels as a protobuf Struct keyed by the snake_case field names.
type StakeRequest struct {
	RequestID string
	JobID     string
	Hotkey    string
	Netuid    uint16
	Amount    float64
	Operation Operation
	CreatedAt time.Time
}

// LedgerResult is the opaque acknowledgement of a stake write.
type LedgerResult struct {
	RequestID string    `json:"request_id"`
	Topic     string    `json:"topic"`
	Operation Operation `json:"operation"`
}

// SentimentOutcome records one completed rebalance job.
type SentimentOutcome struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	JobID          string    `gorm:"size:64;uniqueIndex" json:"job_id"`
	Netuid         int       `gorm:"not null;index" json:"netuid"`
	Hotkey         string    `gorm:"size:64;not null;index" json:"hotkey"`
	SentimentScore float64   `gorm:"not null" json:"sentiment_score"`
	Operation      Operation `gorm:"size:16;not null" json:"operation"`
	StakeAmount    float64   `gorm:"not null" json:"stake_amount"`
	LedgerResult   string    `gorm:"type:text" json:"ledger_result"`
	CreatedAt      time.Time `json:"created_at"`
}

func (SentimentOutcome) TableName() string {
	return "stake_history"
}
