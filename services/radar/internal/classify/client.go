// Package classify is the radar's client for the predictor's /predict endpoint.
package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/example/comment-radar/services/radar/internal/comment"
)

// ClientConfig holds configurable settings for the classifier client.
type ClientConfig struct {
	MaxRetries     int
	RetryBaseDelay time.Duration
	Timeout        time.Duration
}

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Config     ClientConfig
	CB         *gobreaker.CircuitBreaker
	Log        *zap.Logger
}

// Option configures the Client.
type Option func(*Client)

func WithCircuitBreaker(cb *gobreaker.CircuitBreaker) Option {
	return func(c *Client) { c.CB = cb }
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.Log = log }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.HTTPClient = hc }
}

func New(baseURL string, cfg ClientConfig, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = "http://127.0.0.1:5000"
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 200 * time.Millisecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	c := &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
		Config:     cfg,
		Log:        zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// NewBreaker builds the breaker guarding the predictor.
func NewBreaker(threshold uint32, openFor time.Duration, log *zap.Logger) *gobreaker.CircuitBreaker {
	if threshold == 0 {
		threshold = 5
	}
	if log == nil {
		log = zap.NewNop()
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "predictor",
		Timeout: openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info("circuit-breaker state change", zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
}

// Request is the body sent to /predict.
type Request struct {
	Comment  string  `json:"comment"`
	VideoID  *string `json:"videoId"`
	Username string  `json:"username"`
}

// Result is the classification of one comment. Error is set when the
// boundary failed and the result is the SAFE/0 default.
type Result struct {
	Label      comment.Label
	Confidence float64
	Error      string
}

// Degraded reports whether the result is the failure default.
func (r Result) Degraded() bool { return r.Error != "" }

type response struct {
	Label      string   `json:"label"`
	Confidence *float64 `json:"confidence"`
	// Error is set by the predictor when it answered with its own fallback.
	Error string `json:"error"`
}

// errStatus marks a non-2xx reply.
type errStatus struct {
	code int
	body string
}

func (e *errStatus) Error() string {
	return fmt.Sprintf("predictor: status %d body=%q", e.code, e.body)
}

// Classify sends text to the predictor. Boundary failures do not surface as
// errors: they yield SAFE/0 with Result.Error set. The returned error is
// non-nil only when ctx ends.
func (c *Client) Classify(ctx context.Context, text, videoID, author string) (Result, error) {
	req := Request{Comment: text, Username: author}
	if videoID != "" {
		req.VideoID = &videoID
	}
	resp, err := c.doWithBreaker(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		c.Log.Warn("classification degraded", zap.String("author", author), zap.Error(err))
		return Result{Label: comment.LabelSafe, Error: err.Error()}, nil
	}
	res := Result{Label: comment.ParseLabel(resp.Label)}
	if resp.Confidence != nil {
		res.Confidence = comment.ClampConfidence(*resp.Confidence)
	}
	if resp.Error != "" {
		res.Error = resp.Error
		c.Log.Warn("predictor answered with a fallback", zap.String("author", author), zap.String("error", resp.Error))
	}
	return res, nil
}

func (c *Client) doWithBreaker(ctx context.Context, req Request) (*response, error) {
	if c.CB == nil {
		return c.doWithRetry(ctx, req)
	}
	result, err := c.CB.Execute(func() (interface{}, error) {
		return c.doWithRetry(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return result.(*response), nil
}

func (c *Client) doWithRetry(ctx context.Context, req Request) (*response, error) {
	var lastErr error
	for attempt := 0; attempt <= c.Config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.Config.RetryBaseDelay * time.Duration(math.Pow(2, float64(attempt-1)))
			c.Log.Debug("retrying predict", zap.Int("attempt", attempt), zap.Duration("delay", delay))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
		resp, err := c.do(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		var se *errStatus
		if errors.As(err, &se) && se.code < 500 {
			break
		}
		c.Log.Debug("predict failed", zap.Int("attempt", attempt), zap.Error(err))
	}
	return nil, lastErr
}

func (c *Client) do(ctx context.Context, body Request) (*response, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/predict", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &errStatus{code: resp.StatusCode, body: string(raw[:min(len(raw), 200)])}
	}
	var out response
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("predictor: decode response: %w", err)
	}
	return &out, nil
}
