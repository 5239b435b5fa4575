package run

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"go.uber.org/zap"
)

func TestWait_CleanExit(t *testing.T) {
	r := New(zap.NewNop())
	code := r.wait(context.Background(), func(context.Context) error { return http.ErrServerClosed })
	if code != 0 {
		t.Fatalf("expected 0, got %d", code)
	}
}

func TestWait_Failure(t *testing.T) {
	r := New(zap.NewNop())
	code := r.wait(context.Background(), func(context.Context) error { return errors.New("bind: address in use") })
	if code != 1 {
		t.Fatalf("expected 1, got %d", code)
	}
}

func TestWait_ContextDone(t *testing.T) {
	r := New(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	code := r.wait(ctx, func(c context.Context) error {
		<-c.Done()
		return nil
	})
	if code != 0 {
		t.Fatalf("expected 0, got %d", code)
	}
}

func TestGraceful_CallsShutdown(t *testing.T) {
	r := New(zap.NewNop())
	called := false
	r.Graceful(func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); !ok {
			t.Fatal("expected shutdown context with deadline")
		}
		called = true
		return nil
	})
	if !called {
		t.Fatal("shutdown not called")
	}
}
