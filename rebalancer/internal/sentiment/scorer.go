// Package sentiment scores a subnet's social sentiment by pulling recent
// tweets from Datura and asking a Chutes-hosted LLM to rate them.
package sentiment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/rafaelCarinha/tao-dividends/rebalancer/internal/config"
	"github.com/rafaelCarinha/tao-dividends/rebalancer/internal/domain"
	"github.com/rafaelCarinha/tao-dividends/rebalancer/internal/metrics"
)

const (
	maxScore     = 100
	maxTokens    = 1024
	temperature  = 0.7
	maxBodyBytes = 4 << 20
	breakerTrips = 5
	breakerReset = 30 * time.Second
)

var firstNumber = regexp.MustCompile(`[-+]?\d+(?:\.\d+)?`)

// Scorer returns a sentiment score in [-100, 100] for a subnet.
type Scorer struct {
	cfg    config.SentimentConfig
	client *http.Client
	datura *gobreaker.CircuitBreaker
	chutes *gobreaker.CircuitBreaker
	logger *zap.Logger
}

func NewScorer(cfg config.SentimentConfig, logger *zap.Logger) *Scorer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Scorer{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		datura: newBreaker("datura", logger),
		chutes: newBreaker("chutes", logger),
		logger: logger,
	}
}

func newBreaker(name string, logger *zap.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: breakerReset,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerTrips
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
			logger.Warn("circuit breaker state changed",
				zap.String("upstream", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// Score fetches tweets for netuid and rates them. Any upstream failure or an
// unparseable rating yields ErrScoringFailed. Ratings outside the valid range
// are clamped.
func (s *Scorer) Score(ctx context.Context, netuid uint16) (float64, error) {
	tweets, err := s.fetchTweets(ctx, netuid)
	if err != nil {
		return 0, fmt.Errorf("%w: datura: %v", domain.ErrScoringFailed, err)
	}
	s.logger.Info("fetched tweets",
		zap.Uint16("netuid", netuid),
		zap.Int64("count", gjson.ParseBytes(tweets).Get("#").Int()),
	)

	score, err := s.rate(ctx, tweets)
	if err != nil {
		return 0, fmt.Errorf("%w: chutes: %v", domain.ErrScoringFailed, err)
	}
	return math.Max(-maxScore, math.Min(maxScore, score)), nil
}

func (s *Scorer) fetchTweets(ctx context.Context, netuid uint16) ([]byte, error) {
	u, err := url.Parse(s.cfg.DaturaURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	q := u.Query()
	q.Set("query", fmt.Sprintf("Bittensor netuid %d", netuid))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.DaturaAPIKey)
	return s.do(s.datura, req)
}

func (s *Scorer) rate(ctx context.Context, tweets []byte) (float64, error) {
	body, err := json.Marshal(map[string]any{
		"model":       s.cfg.ChutesModel,
		"prompt":      fmt.Sprintf("From the following tweets: %s, please provide a sentiment score between (-100 to +100).", tweets),
		"stream":      false,
		"max_tokens":  maxTokens,
		"temperature": temperature,
	})
	if err != nil {
		return 0, fmt.Errorf("encode completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.ChutesURL, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.ChutesAPIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.do(s.chutes, req)
	if err != nil {
		return 0, err
	}
	return parseScore(resp)
}

// do runs req through breaker and returns the body of a 2xx response.
func (s *Scorer) do(breaker *gobreaker.CircuitBreaker, req *http.Request) ([]byte, error) {
	out, err := breaker.Execute(func() (interface{}, error) {
		resp, err := s.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(body, 256))
		}
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	return out.([]byte), nil
}

// parseScore reads "score" when the upstream returns it directly and falls
// back to the first number in the completion text.
func parseScore(body []byte) (float64, error) {
	if !gjson.ValidBytes(body) {
		return 0, fmt.Errorf("invalid json response")
	}
	if v := gjson.GetBytes(body, "score"); v.Exists() {
		return finite(v)
	}
	text := gjson.GetBytes(body, "choices.0.text").String()
	m := firstNumber.FindString(text)
	if m == "" {
		return 0, fmt.Errorf("no score in completion %q", truncate([]byte(text), 128))
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, err
	}
	return f, nil
}

func finite(v gjson.Result) (float64, error) {
	if v.Type != gjson.Number {
		if f, err := strconv.ParseFloat(v.String(), 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return f, nil
		}
		return 0, fmt.Errorf("score is not a number: %s", v.Raw)
	}
	f := v.Float()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("score is not finite: %s", v.Raw)
	}
	return f, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
