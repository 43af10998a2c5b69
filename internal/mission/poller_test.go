package mission

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestPoller_ImmediateRefreshThenInterval(t *testing.T) {
	var calls atomic.Int64
	p := NewPoller(20*time.Millisecond, func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}, zerolog.Nop())

	p.Start(context.Background())
	defer p.Stop()

	deadline := time.Now().Add(time.Second)
	for calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if calls.Load() < 3 {
		t.Fatalf("calls = %d, want >= 3 (immediate + ticks)", calls.Load())
	}
}

func TestPoller_StopPreventsFurtherFires(t *testing.T) {
	var calls atomic.Int64
	p := NewPoller(10*time.Millisecond, func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}, zerolog.Nop())

	p.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	p.Stop()

	after := calls.Load()
	time.Sleep(50 * time.Millisecond)
	if calls.Load() != after {
		t.Errorf("refresh fired after Stop: %d -> %d", after, calls.Load())
	}
}

func TestPoller_LoadingVsRefreshing(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int64
	p := NewPoller(15*time.Millisecond, func(ctx context.Context) error {
		if calls.Add(1) > 1 {
			<-release
		}
		return nil
	}, zerolog.Nop())

	if !p.Loading() {
		t.Error("poller should report loading before any data")
	}

	p.Start(context.Background())
	defer func() {
		close(release)
		p.Stop()
	}()

	// After the first successful refresh, the view has data: subsequent
	// in-flight fetches are refreshes, not loads.
	deadline := time.Now().Add(time.Second)
	for p.Loading() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if p.Loading() {
		t.Fatal("poller should leave loading after first success")
	}

	for !p.Refreshing() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !p.Refreshing() {
		t.Error("an in-flight re-fetch should report refreshing")
	}
	if p.Loading() {
		t.Error("refreshing must not regress to loading")
	}
}

func TestPoller_FailedPollKeepsData(t *testing.T) {
	var calls atomic.Int64
	pollErr := errors.New("backend flaked")
	p := NewPoller(10*time.Millisecond, func(ctx context.Context) error {
		if calls.Add(1) == 1 {
			return nil
		}
		return pollErr
	}, zerolog.Nop())

	p.Start(context.Background())
	defer p.Stop()

	deadline := time.Now().Add(time.Second)
	for calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	for p.LastErr() == nil && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if p.Loading() {
		t.Error("a failed poll after a success must not blank the view")
	}
	if !errors.Is(p.LastErr(), pollErr) {
		t.Errorf("LastErr = %v, want %v", p.LastErr(), pollErr)
	}
}

func TestPoller_ReadsParamsAtFireTime(t *testing.T) {
	// The refresh closure consults shared state on every fire, so a change
	// between fires is observed without rebuilding the poller.
	var target atomic.Value
	target.Store("page-1")

	seen := make(chan string, 16)
	p := NewPoller(10*time.Millisecond, func(ctx context.Context) error {
		seen <- target.Load().(string)
		return nil
	}, zerolog.Nop())

	p.Start(context.Background())
	defer p.Stop()

	if got := <-seen; got != "page-1" {
		t.Fatalf("first fire saw %q", got)
	}

	target.Store("page-2")
	deadline := time.After(time.Second)
	for {
		select {
		case got := <-seen:
			if got == "page-2" {
				return
			}
		case <-deadline:
			t.Fatal("poller never observed the updated parameters")
		}
	}
}

func TestPoller_DoubleStartIsNoop(t *testing.T) {
	var calls atomic.Int64
	p := NewPoller(time.Hour, func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}, zerolog.Nop())

	p.Start(context.Background())
	p.Start(context.Background())
	defer p.Stop()

	deadline := time.Now().Add(500 * time.Millisecond)
	for calls.Load() < 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)

	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1 (double Start must not double-fire)", calls.Load())
	}
}
