package domain

import (
	"encoding/json"
	"time"
)

// DividendEntry is one hotkey's dividend on a subnet, as read from the ledger.
type DividendEntry struct {
	Hotkey   string `json:"hotkey"`
	Dividend uint64 `json:"dividend"`
}

// SubnetDividends groups entries by netuid in ledger iteration order.
type SubnetDividends map[uint16][]DividendEntry

// Append adds an entry, creating the bucket on first use.
func (m SubnetDividends) Append(netuid uint16, e DividendEntry) {
	m[netuid] = append(m[netuid], e)
}

// SingleLookup is the cacheable result of a (netuid, hotkey) lookup.
// Found is false when the subnet has no entry for the hotkey.
type SingleLookup struct {
	Netuid    uint16  `json:"netuid"`
	Hotkey    string  `json:"hotkey"`
	Found     bool    `json:"found"`
	Dividend  *uint64 `json:"dividend,omitempty"`
	BlockHash string  `json:"block_hash"`
}

// Query is a parsed dividends request. Nil fields were not supplied.
type Query struct {
	Netuid *uint16
	Hotkey *string
	Trade  bool
}

// Result is the response envelope. Data is kept as raw JSON so a cache hit
// returns exactly the bytes the miss path stored.
type Result struct {
	Cached bool            `json:"cached"`
	Data   json.RawMessage `json:"data"`
	TaskID string          `json:"task_id,omitempty"`
}

// RequestAudit records one inbound dividends call.
type RequestAudit struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Endpoint  string    `gorm:"size:128;not null" json:"endpoint"`
	Method    string    `gorm:"size:16;not null" json:"method"`
	Netuid    *int      `json:"netuid"`
	Hotkey    *string   `gorm:"size:64" json:"hotkey"`
	Trade     bool      `json:"trade"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}
