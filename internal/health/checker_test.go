package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

// ── Stubs ────────────────────────────────────────────────────────────────

type stubVerifier struct {
	err   error
	calls int
}

func (s *stubVerifier) Verify(_ context.Context) error {
	s.calls++
	return s.err
}

// ── Tests ────────────────────────────────────────────────────────────────

func TestCheck_recordsSuccess(t *testing.T) {
	v := &stubVerifier{}
	checker := New(v, Config{}, zap.NewNop())

	var recorded []bool
	checker.SetMetricsRecorder(func(ok bool) { recorded = append(recorded, ok) })

	checker.check(context.Background())

	lastRun, lastErr := checker.Status()
	if lastRun.IsZero() {
		t.Error("lastRun should be set after a check")
	}
	if lastErr != nil {
		t.Errorf("expected nil lastErr, got %v", lastErr)
	}
	if len(recorded) != 1 || !recorded[0] {
		t.Errorf("metrics callback: got %v, want [true]", recorded)
	}
}

func TestCheck_recordsFailure(t *testing.T) {
	broken := errors.New("block 3 hash mismatch")
	v := &stubVerifier{err: broken}
	checker := New(v, Config{}, zap.NewNop())

	var recorded []bool
	checker.SetMetricsRecorder(func(ok bool) { recorded = append(recorded, ok) })

	checker.check(context.Background())

	_, lastErr := checker.Status()
	if !errors.Is(lastErr, broken) {
		t.Errorf("expected the verifier error back, got %v", lastErr)
	}
	if len(recorded) != 1 || recorded[0] {
		t.Errorf("metrics callback: got %v, want [false]", recorded)
	}
}

func TestStatus_zeroBeforeFirstCheck(t *testing.T) {
	checker := New(&stubVerifier{}, Config{}, zap.NewNop())

	lastRun, lastErr := checker.Status()
	if !lastRun.IsZero() || lastErr != nil {
		t.Errorf("expected zero status before first check, got %v / %v", lastRun, lastErr)
	}
}

func TestRun_checksImmediatelyAndStopsOnCancel(t *testing.T) {
	v := &stubVerifier{}
	checker := New(v, Config{CheckInterval: time.Hour}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		checker.Run(ctx)
		close(done)
	}()

	// The immediate check happens before the ticker loop starts.
	deadline := time.After(2 * time.Second)
	for {
		lastRun, _ := checker.Status()
		if !lastRun.IsZero() {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for the immediate check")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on context cancellation")
	}

	if v.calls < 1 {
		t.Errorf("expected at least one check, got %d", v.calls)
	}
}

func TestNew_defaults(t *testing.T) {
	checker := New(&stubVerifier{}, Config{}, zap.NewNop())
	if checker.cfg.CheckInterval != 15*time.Minute {
		t.Errorf("default interval: got %v", checker.cfg.CheckInterval)
	}
	if checker.cfg.CheckTimeout != 30*time.Second {
		t.Errorf("default timeout: got %v", checker.cfg.CheckTimeout)
	}
}
