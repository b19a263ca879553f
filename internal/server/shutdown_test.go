package server

import (
	"errors"
	"testing"

	"go.uber.org/zap"
)

func TestShutdown_ClosesInReverseOrder(t *testing.T) {
	sm := NewShutdownManager(0, zap.NewNop())

	var order []string
	for _, name := range []string{"ledger", "watcher", "http"} {
		name := name
		sm.RegisterFunc(name, func() error {
			order = append(order, name)
			return nil
		})
	}

	if err := sm.Shutdown("test"); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	want := []string{"http", "watcher", "ledger"}
	if len(order) != len(want) {
		t.Fatalf("closed %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("closed %v, want %v", order, want)
		}
	}
}

func TestShutdown_ReportsFirstCloseError(t *testing.T) {
	sm := NewShutdownManager(0, zap.NewNop())

	closed := false
	sm.RegisterFunc("good", func() error {
		closed = true
		return nil
	})
	closeErr := errors.New("flush failed")
	sm.RegisterFunc("bad", func() error { return closeErr })

	err := sm.Shutdown("test")
	if !errors.Is(err, closeErr) {
		t.Fatalf("Shutdown err = %v, want wrapped %v", err, closeErr)
	}
	if !closed {
		t.Error("a failing closer must not stop the remaining closers")
	}
}

func TestShutdown_SecondCallIsNoop(t *testing.T) {
	sm := NewShutdownManager(0, zap.NewNop())

	calls := 0
	sm.RegisterFunc("once", func() error {
		calls++
		return nil
	})

	if err := sm.Shutdown("first"); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := sm.Shutdown("second"); err != nil {
		t.Fatalf("repeat Shutdown: %v", err)
	}
	if calls != 1 {
		t.Errorf("closer ran %d times, want 1", calls)
	}
}
