package jobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobEnvelope(t *testing.T) {
	enqueued := time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)
	job := Job{ID: "6f1d", Name: SentimentStake, Args: []any{18, "5Hx"}, EnqueuedAt: enqueued}

	data, err := job.Marshal()
	require.NoError(t, err)

	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, "6f1d", got.ID)
	assert.Equal(t, SentimentStake, got.Name)
	assert.Equal(t, []any{float64(18), "5Hx"}, got.Args)
	assert.True(t, enqueued.Equal(got.EnqueuedAt))
}

func TestUnmarshal_Rejects(t *testing.T) {
	_, err := Unmarshal([]byte{0xff, 0xff})
	assert.ErrorIs(t, err, ErrMalformedJob)

	data, err := Job{Name: SentimentStake}.Marshal()
	require.NoError(t, err)
	_, err = Unmarshal(data)
	assert.ErrorIs(t, err, ErrMalformedJob)
}

func TestMarshal_UnsupportedArg(t *testing.T) {
	_, err := Job{ID: "1", Name: "x", Args: []any{struct{}{}}}.Marshal()
	assert.Error(t, err)
}

func TestJobEnvelope_NullArgs(t *testing.T) {
	data, err := Job{ID: "1", Name: SentimentStake, Args: []any{18, nil}}.Marshal()
	require.NoError(t, err)

	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, []any{float64(18), nil}, got.Args)
}
