package checkout

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestScheduleRedirect_Runs(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	r := ScheduleRedirect(10*time.Millisecond, func() { calls.Add(1) })

	select {
	case <-r.Done():
	case <-time.After(time.Second):
		t.Fatal("redirect did not run")
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", calls.Load())
	}
	if r.Cancel() {
		t.Error("expected Cancel after run to report false")
	}
}

func TestScheduleRedirect_Cancel(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	r := ScheduleRedirect(time.Hour, func() { calls.Add(1) })

	if !r.Cancel() {
		t.Fatal("expected Cancel to stop the redirect")
	}
	if r.Cancel() {
		t.Error("expected second Cancel to report false")
	}

	select {
	case <-r.Done():
	default:
		t.Fatal("expected Done to be closed after Cancel")
	}
	if calls.Load() != 0 {
		t.Errorf("expected no calls, got %d", calls.Load())
	}
}
