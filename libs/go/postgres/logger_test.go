package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm/logger"
)

func query(sql string) func() (string, int64) {
	return func() (string, int64) { return sql, 1 }
}

func TestZapLogger_Trace(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewLogger(zap.New(core), logger.Warn, 50*time.Millisecond)
	ctx := context.Background()

	l.Trace(ctx, time.Now(), query(`INSERT INTO "request_audits"`), errors.New("connection refused"))
	l.Trace(ctx, time.Now(), query(`SELECT 1`), logger.ErrRecordNotFound)
	l.Trace(ctx, time.Now().Add(-time.Second), query(`SELECT pg_sleep(1)`), nil)
	l.Trace(ctx, time.Now(), query(`SELECT 2`), nil)

	entries := logs.All()
	require.Len(t, entries, 2)

	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, "query failed", entries[0].Message)
	assert.Equal(t, `INSERT INTO "request_audits"`, entries[0].ContextMap()["sql"])
	assert.Equal(t, "connection refused", entries[0].ContextMap()["error"])

	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "slow query", entries[1].Message)
	assert.Equal(t, `SELECT pg_sleep(1)`, entries[1].ContextMap()["sql"])
}

func TestZapLogger_LogMode(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	base := NewLogger(zap.New(core), logger.Warn, 0)
	ctx := context.Background()

	base.LogMode(logger.Silent).Trace(ctx, time.Now(), query(`SELECT 1`), errors.New("boom"))
	base.LogMode(logger.Silent).Warn(ctx, "pool %s", "exhausted")
	assert.Zero(t, logs.Len())

	base.Info(ctx, "migrating %d tables", 1)
	assert.Zero(t, logs.Len())

	base.LogMode(logger.Info).Info(ctx, "migrating %d tables", 1)
	base.Warn(ctx, "pool %s", "exhausted")
	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "migrating 1 tables", logs.All()[0].Message)
	assert.Equal(t, "pool exhausted", logs.All()[1].Message)
}

func TestOption_GormLogger(t *testing.T) {
	_, isZap := Option{}.gormLogger().(*zapLogger)
	assert.False(t, isZap)

	l, isZap := Option{Logger: zap.NewNop()}.gormLogger().(*zapLogger)
	require.True(t, isZap)
	assert.Equal(t, logger.Warn, l.level)
	assert.Equal(t, defaultSlowQuery, l.slowQuery)
}
