// Package memtimer is the in-process implementation of the exact-timer
// gateway: a single scheduling goroutine sleeping on the earliest pending
// entry. It stands in for a platform alarm service on hosts without one
// and is the gateway used by tests.
package memtimer

import (
	"container/heap"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/chimelab/chime/internal/timer"
	"github.com/chimelab/chime/pkg/models"

	"github.com/google/uuid"
)

// Publisher receives fired signals from the scheduling loop. The wake
// bridge implements it.
type Publisher interface {
	Publish(models.Signal)
}

// Timer is an in-process exact-timer gateway.
type Timer struct {
	// Now is injectable for tests.
	Now func() time.Time

	log  *slog.Logger
	sink Publisher

	mu      sync.Mutex
	entries map[string]*entry
	q       schedQueue
	allowed bool

	poke   chan struct{}
	cancel context.CancelFunc
}

var _ timer.Gateway = (*Timer)(nil)

// New creates a Timer publishing fired signals into sink. Permission
// starts granted; tests and the permission flow flip it.
func New(log *slog.Logger, sink Publisher) *Timer {
	return &Timer{
		Now:     time.Now,
		log:     log.With("component", "memtimer"),
		sink:    sink,
		entries: make(map[string]*entry),
		allowed: true,
		poke:    make(chan struct{}, 1),
		cancel:  func() {},
	}
}

// Run starts the scheduling loop.
func (t *Timer) Run(ctx context.Context) {
	ctx, t.cancel = context.WithCancel(ctx)
	go t.run(ctx)
}

// Stop interrupts the scheduling loop.
func (t *Timer) Stop() {
	t.cancel()
}

// CanScheduleExact reports whether arming is currently authorized.
func (t *Timer) CanScheduleExact(_ context.Context) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.allowed
}

// RequestPermission grants authorization. The in-process gateway has no
// settings surface to bounce through, so the request always succeeds.
func (t *Timer) RequestPermission(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.allowed = true
	return nil
}

// SetPermission overrides the authorization state. Used by tests to drive
// the permission-denied path.
func (t *Timer) SetPermission(allowed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.allowed = allowed
}

// Arm schedules a firing at the given instant. An entry already armed for
// the same id is replaced.
func (t *Timer) Arm(_ context.Context, id string, at time.Time, meta timer.Metadata) (timer.Handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.allowed {
		return timer.Handle{}, timer.ErrPermissionDenied
	}

	h := timer.Handle{Token: uuid.New().String(), At: at}
	if e, ok := t.entries[id]; ok {
		e.at = at
		e.meta = meta
		e.handle = h
		heap.Fix(&t.q, e.index)
	} else {
		e := &entry{id: id, at: at, meta: meta, handle: h}
		t.entries[id] = e
		heap.Push(&t.q, e)
	}
	t.log.Debug("armed", "id", id, "at", at)

	t.wake()
	return h, nil
}

// Disarm removes the pending timer for id. Disarming an unarmed id is a
// no-op.
func (t *Timer) Disarm(_ context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[id]
	if !ok {
		return nil
	}
	heap.Remove(&t.q, e.index)
	delete(t.entries, id)
	t.log.Debug("disarmed", "id", id)

	t.wake()
	return nil
}

// DisarmAll removes every pending timer.
func (t *Timer) DisarmAll(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries = make(map[string]*entry)
	t.q = t.q[:0]
	t.wake()
	return nil
}

// Pending returns the trigger instant armed for id, if any.
func (t *Timer) Pending(id string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	if !ok {
		return time.Time{}, false
	}
	return e.at, true
}

func (t *Timer) wake() {
	select {
	case t.poke <- struct{}{}:
	default:
	}
}

func (t *Timer) run(ctx context.Context) {
	wait := time.NewTimer(1<<63 - 1)
	wait.Stop()

	for {
		t.mu.Lock()
		var next time.Time
		if len(t.q) > 0 {
			next = t.q[0].at
		}
		t.mu.Unlock()

		if !wait.Stop() {
			select {
			case <-wait.C:
			default:
			}
		}
		if !next.IsZero() {
			wait.Reset(next.Sub(t.Now()))
		}

		select {
		case <-ctx.Done():
			wait.Stop()
			return

		case <-t.poke:
			// Schedule changed. Recompute the sleep.

		case <-wait.C:
			t.fireDue()
		}
	}
}

// fireDue pops and publishes every entry whose instant has arrived. An
// early wakeup (clock drift) leaves the entry in place; the loop re-sleeps.
func (t *Timer) fireDue() {
	now := t.Now()

	for {
		t.mu.Lock()
		if len(t.q) == 0 || t.q[0].at.After(now) {
			t.mu.Unlock()
			return
		}
		e := heap.Pop(&t.q).(*entry)
		delete(t.entries, e.id)
		t.mu.Unlock()

		t.log.Info("timer fired", "id", e.id, "at", e.at)
		t.sink.Publish(models.Signal{
			SignalID:   e.handle.Token,
			Type:       models.SignalFired,
			AlarmID:    e.id,
			Label:      e.meta.Label,
			Occurrence: e.at,
		})
	}
}

type entry struct {
	id     string
	at     time.Time
	meta   timer.Metadata
	handle timer.Handle
	index  int
}

type schedQueue []*entry

var _ heap.Interface = (*schedQueue)(nil)

func (q schedQueue) Len() int { return len(q) }

func (q schedQueue) Less(i, j int) bool {
	return q[i].at.Before(q[j].at)
}

func (q schedQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *schedQueue) Push(x any) {
	e := x.(*entry)
	e.index = len(*q)
	*q = append(*q, e)
}

func (q *schedQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return e
}
