package classify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/example/comment-radar/services/radar/internal/comment"
)

func TestClassifySpam(t *testing.T) {
	var got Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/predict" || r.Method != http.MethodPost {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"label":"SPAM JUDI","confidence":87.5}`))
	}))
	defer srv.Close()

	c := New(srv.URL, ClientConfig{})
	res, err := c.Classify(context.Background(), "slot gacor", "vid123", "budi")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if res.Label != comment.LabelSpam || res.Confidence != 87.5 || res.Degraded() {
		t.Fatalf("unexpected result %+v", res)
	}
	if got.Comment != "slot gacor" || got.Username != "budi" || got.VideoID == nil || *got.VideoID != "vid123" {
		t.Fatalf("unexpected request %+v", got)
	}
}

func TestClassifySendsNullVideoID(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&raw)
		_, _ = w.Write([]byte(`{"label":"SAFE","confidence":3}`))
	}))
	defer srv.Close()

	if _, err := New(srv.URL, ClientConfig{}).Classify(context.Background(), "halo", "", "siti"); err != nil {
		t.Fatalf("classify: %v", err)
	}
	v, ok := raw["videoId"]
	if !ok || v != nil {
		t.Fatalf("expected videoId null, got %#v (present=%v)", v, ok)
	}
}

func TestClassifyDegradesOnServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	core, logs := observer.New(zap.WarnLevel)
	c := New(srv.URL, ClientConfig{MaxRetries: 2, RetryBaseDelay: time.Millisecond}, WithLogger(zap.New(core)))
	res, err := c.Classify(context.Background(), "halo", "", "siti")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.Label != comment.LabelSafe || res.Confidence != 0 || !res.Degraded() {
		t.Fatalf("expected SAFE/0 degraded, got %+v", res)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
	if logs.FilterMessage("classification degraded").Len() != 1 {
		t.Fatalf("expected a degraded warning")
	}
}

func TestClassifyDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := New(srv.URL, ClientConfig{MaxRetries: 3, RetryBaseDelay: time.Millisecond})
	res, _ := c.Classify(context.Background(), "x", "", "")
	if !res.Degraded() || calls.Load() != 1 {
		t.Fatalf("expected one attempt and a degraded result, got %d calls %+v", calls.Load(), res)
	}
}

func TestClassifyDegradesOnMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	res, err := New(srv.URL, ClientConfig{}).Classify(context.Background(), "x", "", "")
	if err != nil || !res.Degraded() || res.Label != comment.LabelSafe {
		t.Fatalf("expected degraded SAFE, got %+v err=%v", res, err)
	}
}

func TestClassifyKeepsPredictorFallbackError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"label":"SAFE","confidence":0,"error":"Invalid Python output","raw":"Traceback"}`))
	}))
	defer srv.Close()

	core, logs := observer.New(zap.WarnLevel)
	res, err := New(srv.URL, ClientConfig{}, WithLogger(zap.New(core))).Classify(context.Background(), "x", "", "siti")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if res.Label != comment.LabelSafe || res.Confidence != 0 || res.Error != "Invalid Python output" || !res.Degraded() {
		t.Fatalf("expected annotated SAFE/0, got %+v", res)
	}
	if logs.FilterMessage("predictor answered with a fallback").Len() != 1 {
		t.Fatal("expected a fallback warning")
	}
}

func TestClassifyMissingFieldsDefaultSafe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	res, err := New(srv.URL, ClientConfig{}).Classify(context.Background(), "x", "", "")
	if err != nil || res.Degraded() || res.Label != comment.LabelSafe || res.Confidence != 0 {
		t.Fatalf("expected plain SAFE/0, got %+v err=%v", res, err)
	}
}

func TestBreakerOpensAndDegrades(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cb := NewBreaker(2, time.Minute, nil)
	c := New(srv.URL, ClientConfig{}, WithCircuitBreaker(cb))
	for i := 0; i < 4; i++ {
		res, err := c.Classify(context.Background(), "x", "", "")
		if err != nil || !res.Degraded() {
			t.Fatalf("call %d: expected degraded result, got %+v err=%v", i, res, err)
		}
	}
	if calls.Load() != 2 {
		t.Fatalf("expected breaker to stop calls after 2 failures, got %d", calls.Load())
	}
}

func TestClassifyReturnsContextError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := New(srv.URL, ClientConfig{}).Classify(ctx, "x", "", ""); err == nil {
		t.Fatalf("expected context error")
	}
}
