package sentiment

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rafaelCarinha/tao-dividends/rebalancer/internal/config"
	"github.com/rafaelCarinha/tao-dividends/rebalancer/internal/domain"
)

type upstream struct {
	daturaStatus int
	chutesStatus int
	chutesBody   string

	daturaQuery  atomic.Value
	chutesPrompt atomic.Value
	daturaCalls  atomic.Int32
}

func newUpstream(t *testing.T, u *upstream) config.SentimentConfig {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/twitter", func(w http.ResponseWriter, r *http.Request) {
		u.daturaCalls.Add(1)
		if r.Header.Get("Authorization") != "Bearer d-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		u.daturaQuery.Store(r.URL.Query().Get("query"))
		if u.daturaStatus != 0 {
			w.WriteHeader(u.daturaStatus)
			return
		}
		_, _ = io.WriteString(w, `[{"text":"subnet 18 is great"},{"text":"bullish"}]`)
	})
	mux.HandleFunc("/v1/completions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Authorization") != "Bearer c-key" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			u.chutesPrompt.Store(body["prompt"])
		}
		if u.chutesStatus != 0 {
			w.WriteHeader(u.chutesStatus)
			return
		}
		_, _ = io.WriteString(w, u.chutesBody)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return config.SentimentConfig{
		DaturaURL:    srv.URL + "/twitter",
		DaturaAPIKey: "d-key",
		ChutesURL:    srv.URL + "/v1/completions",
		ChutesAPIKey: "c-key",
		ChutesModel:  "test-model",
	}
}

func TestScore_ReadsScoreField(t *testing.T) {
	u := &upstream{chutesBody: `{"score": 37.5}`}
	s := NewScorer(newUpstream(t, u), zap.NewNop())

	score, err := s.Score(context.Background(), 18)
	require.NoError(t, err)
	assert.InDelta(t, 37.5, score, 1e-9)
	assert.Equal(t, "Bittensor netuid 18", u.daturaQuery.Load())
	assert.Contains(t, u.chutesPrompt.Load(), "subnet 18 is great")
}

func TestScore_FallsBackToCompletionText(t *testing.T) {
	u := &upstream{chutesBody: `{"choices":[{"text":"Sentiment score: -20. Mostly negative."}]}`}
	s := NewScorer(newUpstream(t, u), zap.NewNop())

	score, err := s.Score(context.Background(), 3)
	require.NoError(t, err)
	assert.InDelta(t, -20.0, score, 1e-9)
}

func TestScore_Clamps(t *testing.T) {
	u := &upstream{chutesBody: `{"score": 250}`}
	s := NewScorer(newUpstream(t, u), zap.NewNop())

	score, err := s.Score(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 100.0, score)
}

func TestScore_Failures(t *testing.T) {
	cases := map[string]*upstream{
		"datura error":      {daturaStatus: http.StatusBadGateway},
		"chutes error":      {chutesStatus: http.StatusInternalServerError},
		"no number":         {chutesBody: `{"choices":[{"text":"I cannot tell."}]}`},
		"invalid json":      {chutesBody: `not json`},
		"non-numeric score": {chutesBody: `{"score":"high"}`},
	}
	for name, u := range cases {
		t.Run(name, func(t *testing.T) {
			s := NewScorer(newUpstream(t, u), zap.NewNop())
			_, err := s.Score(context.Background(), 1)
			assert.ErrorIs(t, err, domain.ErrScoringFailed)
		})
	}
}

func TestScore_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	u := &upstream{daturaStatus: http.StatusServiceUnavailable}
	s := NewScorer(newUpstream(t, u), zap.NewNop())

	for i := 0; i < breakerTrips+3; i++ {
		_, err := s.Score(context.Background(), 1)
		require.Error(t, err)
	}
	assert.Equal(t, int32(breakerTrips), u.daturaCalls.Load())

	_, err := s.Score(context.Background(), 1)
	assert.ErrorContains(t, err, "circuit breaker is open")
}

func TestParseScore(t *testing.T) {
	f, err := parseScore([]byte(`{"score":"12.5"}`))
	require.NoError(t, err)
	assert.Equal(t, 12.5, f)

	f, err = parseScore([]byte(`{"choices":[{"text":"+42"}]}`))
	require.NoError(t, err)
	assert.Equal(t, 42.0, f)
}
