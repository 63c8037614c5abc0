package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestNew_DisabledIsNil(t *testing.T) {
	if l := New(0, 5); l != nil {
		t.Fatalf("New(0) = %v, want nil", l)
	}

	var l *Limiter
	if !l.Allow() {
		t.Error("nil limiter should always allow")
	}
	if err := l.Wait(context.Background()); err != nil {
		t.Errorf("nil limiter Wait = %v", err)
	}
	l.SetRate(10)
}

func TestLimiter_Burst(t *testing.T) {
	l := New(1, 2)

	if !l.Allow() || !l.Allow() {
		t.Fatal("first two events should fit the burst")
	}
	if l.Allow() {
		t.Error("third event should be throttled")
	}
}

func TestLimiter_WaitHonoursContext(t *testing.T) {
	l := New(0.001, 1)
	l.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := l.Wait(ctx); err == nil {
		t.Error("Wait should fail once the context cannot be satisfied")
	}
}

func TestNew_RaisesBurst(t *testing.T) {
	l := New(100, 0)
	if !l.Allow() {
		t.Error("burst should be at least one")
	}
}
