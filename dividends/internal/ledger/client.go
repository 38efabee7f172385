package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rafaelCarinha/tao-dividends/dividends/internal/domain"
	"github.com/rafaelCarinha/tao-dividends/dividends/internal/metrics"
	"github.com/rafaelCarinha/tao-dividends/libs/go/substrate"
)

const (
	dividendsModule = "SubtensorModule"
	dividendsItem   = "TaoDividendsPerSubnet"
)

// ErrLedgerUnavailable means the node could not be reached or did not
// answer a read. No partial results accompany it.
var ErrLedgerUnavailable = errors.New("ledger unavailable")

// Client reads TaoDividendsPerSubnet from a Subtensor node. Every call opens
// its own session and closes it before returning.
type Client struct {
	url        string
	ss58Prefix uint16
	logger     *zap.Logger
}

func NewClient(url string, ss58Prefix uint16, logger *zap.Logger) *Client {
	return &Client{
		url:        url,
		ss58Prefix: ss58Prefix,
		logger:     logger,
	}
}

// FetchSingle returns the entry for hotkey on netuid, or nil when the subnet
// has no such entry. The block hash read against is returned either way.
func (c *Client) FetchSingle(ctx context.Context, netuid uint16, hotkey string) (*domain.DividendEntry, string, error) {
	var match *domain.DividendEntry
	blockHash, err := c.scan(ctx, "single", &netuid, func(entry substrate.RawEntry) bool {
		account, err := c.decodeAccount(entry.Key)
		if err != nil {
			c.skip(entry, err)
			return true
		}
		if account != hotkey {
			return true
		}
		amount, err := decodeAmount(entry.Value)
		if err != nil {
			c.skip(entry, err)
			return true
		}
		match = &domain.DividendEntry{Hotkey: account, Dividend: amount}
		return false
	})
	if err != nil {
		return nil, "", err
	}
	return match, blockHash, nil
}

// FetchAllForSubnet returns every entry of netuid in ledger order.
func (c *Client) FetchAllForSubnet(ctx context.Context, netuid uint16) ([]domain.DividendEntry, error) {
	entries := make([]domain.DividendEntry, 0)
	_, err := c.scan(ctx, "subnet", &netuid, func(entry substrate.RawEntry) bool {
		account, err := c.decodeAccount(entry.Key)
		if err != nil {
			c.skip(entry, err)
			return true
		}
		amount, err := decodeAmount(entry.Value)
		if err != nil {
			c.skip(entry, err)
			return true
		}
		entries = append(entries, domain.DividendEntry{Hotkey: account, Dividend: amount})
		return true
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// FetchAllSubnets scans the whole map and groups entries by netuid.
// Entries in an unrecognized shape are skipped without failing the scan.
func (c *Client) FetchAllSubnets(ctx context.Context) (domain.SubnetDividends, error) {
	result := make(domain.SubnetDividends)
	_, err := c.scan(ctx, "all", nil, func(entry substrate.RawEntry) bool {
		account, err := c.decodeAccount(entry.Key)
		if err != nil {
			c.skip(entry, err)
			return true
		}
		netuid, amount, err := decodeSubnetValue(entry.Value)
		if err != nil {
			c.skip(entry, err)
			return true
		}
		result.Append(netuid, domain.DividendEntry{Hotkey: account, Dividend: amount})
		return true
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// scan opens a session, pins the head block and feeds entries to fn until
// it returns false.
func (c *Client) scan(ctx context.Context, shape string, netuid *uint16, fn func(substrate.RawEntry) bool) (blockHash string, err error) {
	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.LedgerScansTotal.WithLabelValues(shape, status).Inc()
		metrics.LedgerScanDuration.WithLabelValues(shape).Observe(time.Since(start).Seconds())
	}()

	conn, err := substrate.Dial(ctx, c.url)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrLedgerUnavailable, err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			c.logger.Debug("close ledger session", zap.Error(err))
		}
	}()

	blockHash, err = conn.HeadBlock(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: read head block: %w", ErrLedgerUnavailable, err)
	}

	q := substrate.MapQuery{Module: dividendsModule, Item: dividendsItem, First: netuid}
	c.logger.Debug("querying ledger map", zap.String("query", q.Describe()), zap.String("block_hash", blockHash))

	for entry, err := range conn.QueryMap(ctx, q, blockHash) {
		if err != nil {
			return "", fmt.Errorf("%w: query %s: %w", ErrLedgerUnavailable, q.Describe(), err)
		}
		if !fn(entry) {
			break
		}
	}
	return blockHash, nil
}

func (c *Client) decodeAccount(raw any) (string, error) {
	key := classifyKey(raw)
	if key.shape == keySkip {
		return "", fmt.Errorf("%w: %s", ErrDecodeSkipped, key.reason)
	}
	account, err := substrate.EncodeSS58(key.account, c.ss58Prefix)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecodeSkipped, err)
	}
	return account, nil
}

func (c *Client) skip(entry substrate.RawEntry, err error) {
	metrics.LedgerEntriesSkipped.Inc()
	c.logger.Warn("skipping ledger entry",
		zap.String("storage_key", entry.StorageKey),
		zap.Any("raw_key", entry.Key),
		zap.Any("raw_value", entry.Value),
		zap.Error(err),
	)
}
