package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/rafaelCarinha/tao-dividends/dividends/internal/domain"
)

func newCache(t *testing.T) (*DividendCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewDividendCache(client, zap.NewNop()), mr
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "5:5F3sa2TJAWMqDhXG6jhV4N8ko9SxwGy8TpaNS1repo5EYjQX", CacheKey(5, "5F3sa2TJAWMqDhXG6jhV4N8ko9SxwGy8TpaNS1repo5EYjQX"))
}

func TestDividendCache_RoundTrip(t *testing.T) {
	cache, mr := newCache(t)
	ctx := context.Background()

	_, ok := cache.Get(ctx, "18:5Hx")
	assert.False(t, ok)

	payload := []byte(`{"netuid":18,"hotkey":"5Hx","found":true,"dividend":7,"block_hash":"0xab"}`)
	cache.Set(ctx, "18:5Hx", payload, 120*time.Second)

	got, ok := cache.Get(ctx, "18:5Hx")
	require.True(t, ok)
	assert.Equal(t, payload, got)
	assert.Equal(t, 120*time.Second, mr.TTL("18:5Hx"))

	mr.FastForward(121 * time.Second)
	_, ok = cache.Get(ctx, "18:5Hx")
	assert.False(t, ok)
}

func TestDividendCache_RefusesNonPositiveTTL(t *testing.T) {
	cache, mr := newCache(t)
	cache.Set(context.Background(), "18:5Hx", []byte("{}"), 0)
	cache.Set(context.Background(), "18:5Hx", []byte("{}"), -time.Second)
	assert.False(t, mr.Exists("18:5Hx"))
}

func TestDividendCache_UnavailableDegradesToMiss(t *testing.T) {
	cache, mr := newCache(t)
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, ok := cache.Get(ctx, "18:5Hx")
	assert.False(t, ok)
	assert.NotPanics(t, func() { cache.Set(ctx, "18:5Hx", []byte("{}"), time.Minute) })
}

func TestRequestAuditStore_AppendBuildsInsert(t *testing.T) {
	db, err := gorm.Open(postgres.New(postgres.Config{DSN: "host=localhost user=test dbname=test sslmode=disable"}), &gorm.Config{
		DryRun:                 true,
		DisableAutomaticPing:   true,
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	netuid := 18
	hotkey := "5Hx"
	rec := &domain.RequestAudit{Endpoint: "/api/v1/tao_dividends", Method: "GET", Netuid: &netuid, Hotkey: &hotkey, Trade: true}

	var captured string
	require.NoError(t, db.Callback().Create().After("gorm:create").Register("capture", func(tx *gorm.DB) {
		captured = tx.Statement.SQL.String()
	}))

	_, err = NewRequestAuditStore(db).Append(context.Background(), rec)
	require.NoError(t, err)
	assert.Contains(t, captured, `INSERT INTO "request_audits"`)
	assert.False(t, rec.CreatedAt.IsZero())
}
