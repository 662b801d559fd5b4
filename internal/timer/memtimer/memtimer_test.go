package memtimer

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/chimelab/chime/internal/timer"
	"github.com/chimelab/chime/pkg/models"
)

type chanSink struct {
	ch chan models.Signal
}

func newChanSink() *chanSink {
	return &chanSink{ch: make(chan models.Signal, 16)}
}

func (s *chanSink) Publish(sig models.Signal) {
	s.ch <- sig
}

func (s *chanSink) wait(t *testing.T) models.Signal {
	t.Helper()
	select {
	case sig := <-s.ch:
		return sig
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for signal")
		return models.Signal{}
	}
}

func testTimer(t *testing.T) (*Timer, *chanSink) {
	t.Helper()
	sink := newChanSink()
	tm := New(slog.New(slog.DiscardHandler), sink)
	return tm, sink
}

func TestArmReplacesPendingEntry(t *testing.T) {
	tm, _ := testTimer(t)
	ctx := context.Background()

	first := time.Now().Add(time.Hour)
	second := time.Now().Add(2 * time.Hour)

	h1, err := tm.Arm(ctx, "a1", first, timer.Metadata{})
	if err != nil {
		t.Fatalf("Arm() = %v", err)
	}
	h2, err := tm.Arm(ctx, "a1", second, timer.Metadata{})
	if err != nil {
		t.Fatalf("Arm() = %v", err)
	}
	if h1.Token == h2.Token {
		t.Error("re-arm returned the same handle token")
	}

	at, ok := tm.Pending("a1")
	if !ok {
		t.Fatal("Pending() reports no entry after re-arm")
	}
	if !at.Equal(second) {
		t.Errorf("Pending() at = %v, want %v", at, second)
	}
	if len(tm.entries) != 1 {
		t.Errorf("entries = %d, want 1", len(tm.entries))
	}
}

func TestDisarmRemovesEntry(t *testing.T) {
	tm, _ := testTimer(t)
	ctx := context.Background()

	if _, err := tm.Arm(ctx, "a1", time.Now().Add(time.Hour), timer.Metadata{}); err != nil {
		t.Fatalf("Arm() = %v", err)
	}
	if err := tm.Disarm(ctx, "a1"); err != nil {
		t.Fatalf("Disarm() = %v", err)
	}
	if _, ok := tm.Pending("a1"); ok {
		t.Error("entry still pending after Disarm")
	}

	// Disarming an unarmed id is a no-op.
	if err := tm.Disarm(ctx, "a1"); err != nil {
		t.Errorf("Disarm() on unarmed id = %v", err)
	}
}

func TestDisarmAll(t *testing.T) {
	tm, _ := testTimer(t)
	ctx := context.Background()

	for _, id := range []string{"a1", "a2", "snooze-a1"} {
		if _, err := tm.Arm(ctx, id, time.Now().Add(time.Hour), timer.Metadata{}); err != nil {
			t.Fatalf("Arm(%s) = %v", id, err)
		}
	}
	if err := tm.DisarmAll(ctx); err != nil {
		t.Fatalf("DisarmAll() = %v", err)
	}
	if len(tm.entries) != 0 || tm.q.Len() != 0 {
		t.Errorf("entries = %d, queue = %d after DisarmAll", len(tm.entries), tm.q.Len())
	}
}

func TestPermissionDenied(t *testing.T) {
	tm, _ := testTimer(t)
	ctx := context.Background()

	tm.SetPermission(false)
	if tm.CanScheduleExact(ctx) {
		t.Error("CanScheduleExact() = true after SetPermission(false)")
	}
	if _, err := tm.Arm(ctx, "a1", time.Now().Add(time.Hour), timer.Metadata{}); err != timer.ErrPermissionDenied {
		t.Errorf("Arm() = %v, want ErrPermissionDenied", err)
	}

	if err := tm.RequestPermission(ctx); err != nil {
		t.Fatalf("RequestPermission() = %v", err)
	}
	if !tm.CanScheduleExact(ctx) {
		t.Error("CanScheduleExact() = false after RequestPermission")
	}
}

func TestFirePublishesSignal(t *testing.T) {
	tm, sink := testTimer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tm.Run(ctx)
	defer tm.Stop()

	at := time.Now().Add(30 * time.Millisecond)
	h, err := tm.Arm(ctx, "a1", at, timer.Metadata{Label: "Wake up", Repeating: true})
	if err != nil {
		t.Fatalf("Arm() = %v", err)
	}

	sig := sink.wait(t)
	if sig.Type != models.SignalFired {
		t.Errorf("signal type = %v, want FIRED", sig.Type)
	}
	if sig.AlarmID != "a1" {
		t.Errorf("signal alarm id = %q, want a1", sig.AlarmID)
	}
	if sig.Label != "Wake up" {
		t.Errorf("signal label = %q", sig.Label)
	}
	if sig.SignalID != h.Token {
		t.Errorf("signal id = %q, want handle token %q", sig.SignalID, h.Token)
	}
	if !sig.Occurrence.Equal(at) {
		t.Errorf("signal occurrence = %v, want %v", sig.Occurrence, at)
	}

	if _, ok := tm.Pending("a1"); ok {
		t.Error("entry still pending after fire")
	}
}

func TestFireOrdersByInstant(t *testing.T) {
	tm, sink := testTimer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tm.Run(ctx)
	defer tm.Stop()

	base := time.Now()
	if _, err := tm.Arm(ctx, "later", base.Add(80*time.Millisecond), timer.Metadata{}); err != nil {
		t.Fatalf("Arm() = %v", err)
	}
	if _, err := tm.Arm(ctx, "sooner", base.Add(30*time.Millisecond), timer.Metadata{}); err != nil {
		t.Fatalf("Arm() = %v", err)
	}

	first := sink.wait(t)
	second := sink.wait(t)
	if first.AlarmID != "sooner" || second.AlarmID != "later" {
		t.Errorf("fire order = %s, %s; want sooner, later", first.AlarmID, second.AlarmID)
	}
}
