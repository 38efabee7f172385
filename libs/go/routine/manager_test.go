package routine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blockUntilDone(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestManager_RunTaskRejectsInvalidInput(t *testing.T) {
	m := NewManager(context.Background())

	assert.ErrorIs(t, m.RunTask(nil), ErrNilTask)
	assert.ErrorIs(t, m.RunTask(&Task{Handler: blockUntilDone}), ErrEmptyID)
	assert.ErrorIs(t, m.RunTask(&Task{ID: "a"}), ErrTaskHandlerUnset)
	assert.ErrorIs(t, m.Run("a", nil), ErrNilHandler)
}

func TestManager_DuplicateID(t *testing.T) {
	m := NewManager(context.Background())
	require.NoError(t, m.Run("worker-0", blockUntilDone))
	assert.ErrorIs(t, m.Run("worker-0", blockUntilDone), ErrRoutineExists)
	require.NoError(t, m.ShutdownAll())
	assert.Equal(t, 0, m.Len())
}

func TestManager_ShutdownSingle(t *testing.T) {
	m := NewManager(context.Background())
	var done atomic.Bool
	require.NoError(t, m.RunTask(&Task{
		ID:      "worker-0",
		Handler: blockUntilDone,
		OnDone:  func(string) { done.Store(true) },
	}))

	require.NoError(t, m.Shutdown("worker-0"))
	assert.Eventually(t, done.Load, time.Second, 10*time.Millisecond)
	assert.ErrorIs(t, m.Shutdown("worker-0"), ErrRoutineNotFound)
	assert.ErrorIs(t, m.Shutdown(""), ErrEmptyID)
}

func TestManager_OnErrorAndWait(t *testing.T) {
	m := NewManager(context.Background())
	boom := errors.New("boom")
	var got atomic.Value

	require.NoError(t, m.RunTask(&Task{
		ID:      "failing",
		Handler: func(context.Context) error { return boom },
		OnError: func(_ string, err error) { got.Store(err) },
	}))
	m.Wait()

	assert.Equal(t, boom, got.Load())
	assert.Equal(t, 0, m.Len())
}

func TestManager_ParentCancellationStopsAll(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := NewManager(ctx)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, m.Run(id, blockUntilDone))
	}
	assert.Equal(t, 3, m.Len())

	cancel()
	m.Wait()
	assert.Equal(t, 0, m.Len())
}
