// Package wakesignal delivers fired/dismissed/snoozed signals from outside
// the normal in-process call flow into the coordinator. Signals can arrive
// before any subscriber exists, including the signal that launched the
// process, so the bridge keeps a replay buffer until the coordinator
// attaches, collapses duplicate deliveries of the same physical event, and
// dispatches from a single goroutine so signals for one alarm keep their
// emission order.
package wakesignal

import (
	"context"
	"log/slog"
	"sync"

	"github.com/chimelab/chime/pkg/models"

	"github.com/VictoriaMetrics/metrics"
)

// dedupWindow bounds how many recent signal keys are remembered. A firing
// produces at most a handful of duplicate deliveries in quick succession,
// so a small window suffices.
const dedupWindow = 256

const queueSize = 64

var (
	signalsDelivered  = metrics.NewCounter(`chime_signals_delivered_total`)
	signalsDuplicate  = metrics.NewCounter(`chime_signals_duplicate_total`)
	signalsReplayed   = metrics.NewCounter(`chime_signals_replayed_total`)
	signalsBootstraps = metrics.NewCounter(`chime_signals_bootstrap_total`)
)

// Handler consumes a signal. The bridge invokes it from its dispatch
// goroutine, one signal at a time.
type Handler func(context.Context, models.Signal)

// Bridge is the process-wide inbound wake-signal channel.
type Bridge struct {
	log *slog.Logger

	mu       sync.Mutex
	handler  Handler
	backlog  []models.Signal
	seen     map[string]struct{}
	seenFIFO []string

	queue  chan models.Signal
	cancel context.CancelFunc
}

// New creates a Bridge. Call Run to start dispatching and Subscribe to
// attach the consumer.
func New(log *slog.Logger) *Bridge {
	return &Bridge{
		log:    log.With("component", "wakesignal"),
		seen:   make(map[string]struct{}, dedupWindow),
		queue:  make(chan models.Signal, queueSize),
		cancel: func() {},
	}
}

// Run starts the dispatch goroutine.
func (b *Bridge) Run(ctx context.Context) {
	ctx, b.cancel = context.WithCancel(ctx)
	go b.run(ctx)
}

// Stop interrupts dispatching.
func (b *Bridge) Stop() {
	b.cancel()
}

// Subscribe attaches the consumer and replays any signals that arrived
// before it existed, in their original order. Only one subscriber is
// supported; a second call replaces the first.
func (b *Bridge) Subscribe(h Handler) {
	b.mu.Lock()
	b.handler = h
	backlog := b.backlog
	b.backlog = nil
	b.mu.Unlock()

	for _, sig := range backlog {
		signalsReplayed.Inc()
		b.queue <- sig
	}
	if len(backlog) > 0 {
		b.log.Info("replayed buffered signals", "count", len(backlog))
	}
}

// Publish delivers a signal. Duplicate deliveries of the same physical
// event (same de-dup key) collapse to one. With no subscriber attached the
// signal is buffered for replay.
func (b *Bridge) Publish(sig models.Signal) {
	if !sig.Type.Valid() || sig.AlarmID == "" {
		b.log.Warn("dropping malformed signal", "type", sig.Type, "alarm_id", sig.AlarmID)
		return
	}

	b.mu.Lock()
	if b.isDuplicate(sig) {
		b.mu.Unlock()
		signalsDuplicate.Inc()
		b.log.Debug("dropping duplicate signal", "type", sig.Type, "alarm_id", sig.AlarmID)
		return
	}
	if b.handler == nil {
		b.backlog = append(b.backlog, sig)
		b.mu.Unlock()
		b.log.Debug("buffered signal before subscriber attach", "type", sig.Type, "alarm_id", sig.AlarmID)
		return
	}
	b.mu.Unlock()

	b.queue <- sig
}

// Bootstrap redelivers the signal that launched the process, carried in
// process-launch parameters. It goes through the same de-duplication as a
// live delivery, so a broadcast that also made it through Publish does not
// fire twice.
func (b *Bridge) Bootstrap(sig models.Signal) {
	signalsBootstraps.Inc()
	b.Publish(sig)
}

// isDuplicate records the signal key and reports whether it was already
// seen. Caller holds b.mu.
func (b *Bridge) isDuplicate(sig models.Signal) bool {
	key := sig.DedupKey()
	if _, ok := b.seen[key]; ok {
		return true
	}
	b.seen[key] = struct{}{}
	b.seenFIFO = append(b.seenFIFO, key)
	if len(b.seenFIFO) > dedupWindow {
		evict := b.seenFIFO[0]
		b.seenFIFO = b.seenFIFO[1:]
		delete(b.seen, evict)
	}
	return false
}

func (b *Bridge) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-b.queue:
			b.mu.Lock()
			h := b.handler
			b.mu.Unlock()
			if h == nil {
				// Subscriber detached between enqueue and dispatch.
				b.mu.Lock()
				b.backlog = append(b.backlog, sig)
				b.mu.Unlock()
				continue
			}
			signalsDelivered.Inc()
			h(ctx, sig)
		}
	}
}
