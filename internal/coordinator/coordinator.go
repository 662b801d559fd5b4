// Package coordinator owns the alarm lifecycle: it computes next
// occurrences, arms and disarms the exact-timer gateway, and reconciles
// persisted alarm state with what is actually scheduled when wake signals
// arrive from outside the running application.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chimelab/chime/internal/core"
	"github.com/chimelab/chime/internal/sqlite"
	"github.com/chimelab/chime/internal/timer"
	"github.com/chimelab/chime/pkg/models"

	"github.com/VictoriaMetrics/metrics"
)

var (
	alarmsArmed    = metrics.NewCounter(`chime_alarms_armed_total`)
	alarmsDisarmed = metrics.NewCounter(`chime_alarms_disarmed_total`)
	alarmsFired    = metrics.NewCounter(`chime_alarms_fired_total`)
	alarmsDismiss  = metrics.NewCounter(`chime_alarms_dismissed_total`)
	alarmsSnoozed  = metrics.NewCounter(`chime_alarms_snoozed_total`)
)

// Store is the persistent alarm store the coordinator mutates. It is the
// single source of truth; the gateway's schedule is a derived cache kept
// consistent with it.
type Store interface {
	ListAlarms(ctx context.Context) ([]*models.Alarm, error)
	ListEnabledAlarms(ctx context.Context) ([]*models.Alarm, error)
	GetAlarm(ctx context.Context, alarmID string) (*models.Alarm, error)
	CreateAlarm(ctx context.Context, alarm *models.Alarm) error
	UpdateAlarm(ctx context.Context, alarm *models.Alarm) error
	SetAlarmEnabled(ctx context.Context, alarmID string, enabled bool) error
	SetAlarmHandle(ctx context.Context, alarmID, handle string) error
	DeleteAlarm(ctx context.Context, alarmID string) error
}

// Ringing describes an alarm (or snooze entry) currently in the Firing
// state, for the ringing surface to render.
type Ringing struct {
	ID      string    `json:"id"`
	AlarmID string    `json:"alarm_id"`
	Label   string    `json:"label"`
	At      time.Time `json:"at"`
}

// Options encapsulates the dependencies required to run the coordinator.
type Options struct {
	Store   Store
	Gateway timer.Gateway
	Logger  *slog.Logger
	// Snooze is how far in the future a snooze timer is armed.
	Snooze time.Duration
	// ScanDays bounds the next-occurrence weekday scan; values below a
	// full week are raised to one.
	ScanDays int
	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

// Manager serializes all mutating operations per alarm id and keeps the
// store and the gateway consistent. Wake signals are handled on the same
// per-id queue as UI-initiated mutations, not as a special-cased
// interrupt.
type Manager struct {
	store    Store
	gateway  timer.Gateway
	log      *slog.Logger
	snooze   time.Duration
	scanDays int
	now      func() time.Time

	locks keyedLocks

	mu      sync.Mutex
	ringing map[string]Ringing
}

// NewManager constructs a coordinator.
func NewManager(opts Options) *Manager {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	snooze := opts.Snooze
	if snooze <= 0 {
		snooze = 5 * time.Minute
	}
	scanDays := opts.ScanDays
	if scanDays < core.MinOccurrenceScanDays {
		scanDays = core.MinOccurrenceScanDays
	}
	return &Manager{
		store:    opts.Store,
		gateway:  opts.Gateway,
		log:      opts.Logger.With("component", "coordinator"),
		snooze:   snooze,
		scanDays: scanDays,
		now:      now,
		ringing:  make(map[string]Ringing),
	}
}

// List returns all alarm records. Read failures degrade to an empty list
// with a logged diagnostic; availability wins over strict propagation
// here.
func (m *Manager) List(ctx context.Context) []*models.Alarm {
	alarms, err := m.store.ListAlarms(ctx)
	if err != nil {
		m.log.Error("failed to list alarms", "error", err)
		return []*models.Alarm{}
	}
	if alarms == nil {
		alarms = []*models.Alarm{}
	}
	return alarms
}

// Get returns a single alarm record.
func (m *Manager) Get(ctx context.Context, alarmID string) (*models.Alarm, error) {
	alarm, err := m.store.GetAlarm(ctx, alarmID)
	if err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			return nil, core.ErrAlarmNotFound
		}
		return nil, fmt.Errorf("failed to get alarm: %w", err)
	}
	return alarm, nil
}

// Create validates and persists a new alarm, arms its first occurrence,
// and returns the refreshed list. On a permission error the record is kept
// enabled but un-armed and the error propagates so the client can run the
// permission flow and retry via Toggle or Update.
func (m *Manager) Create(ctx context.Context, req *models.CreateAlarmRequest) ([]*models.Alarm, error) {
	if err := core.ValidateCreateRequest(req); err != nil {
		return nil, err
	}

	alarm := core.NewAlarm(req)

	unlock := m.locks.lock(alarm.ID)
	defer unlock()

	if err := m.store.CreateAlarm(ctx, alarm); err != nil {
		return nil, fmt.Errorf("failed to create alarm: %w", err)
	}
	m.log.Info("alarm created", "alarm_id", alarm.ID, "time", alarm.Time.Format("15:04"), "repeat", alarm.RepeatDays.String())

	if err := m.arm(ctx, alarm); err != nil {
		return m.List(ctx), err
	}
	return m.List(ctx), nil
}

// Update applies an edit. The stale schedule is always disarmed before the
// new occurrence is computed; two live handles for one id must never
// exist.
func (m *Manager) Update(ctx context.Context, alarmID string, req *models.UpdateAlarmRequest) ([]*models.Alarm, error) {
	if err := core.ValidateUpdateRequest(req); err != nil {
		return nil, err
	}

	unlock := m.locks.lock(alarmID)
	defer unlock()

	alarm, err := m.Get(ctx, alarmID)
	if err != nil {
		return nil, err
	}

	if err := m.disarm(ctx, alarm); err != nil {
		return nil, err
	}

	core.ApplyUpdate(alarm, req)
	alarm.ScheduledHandle = ""
	if err := m.store.UpdateAlarm(ctx, alarm); err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			return nil, core.ErrAlarmNotFound
		}
		return nil, fmt.Errorf("failed to update alarm: %w", err)
	}
	m.log.Info("alarm updated", "alarm_id", alarm.ID, "enabled", alarm.Enabled)

	if alarm.Enabled {
		if err := m.arm(ctx, alarm); err != nil {
			return m.List(ctx), err
		}
	}
	return m.List(ctx), nil
}

// Toggle flips an alarm between enabled and disabled, arming or disarming
// accordingly.
func (m *Manager) Toggle(ctx context.Context, alarmID string) ([]*models.Alarm, error) {
	unlock := m.locks.lock(alarmID)
	defer unlock()

	alarm, err := m.Get(ctx, alarmID)
	if err != nil {
		return nil, err
	}

	if alarm.Enabled {
		if err := m.disarm(ctx, alarm); err != nil {
			return nil, err
		}
		if err := m.store.SetAlarmEnabled(ctx, alarmID, false); err != nil {
			return nil, fmt.Errorf("failed to disable alarm: %w", err)
		}
		m.log.Info("alarm disabled", "alarm_id", alarmID)
		return m.List(ctx), nil
	}

	if err := m.store.SetAlarmEnabled(ctx, alarmID, true); err != nil {
		return nil, fmt.Errorf("failed to enable alarm: %w", err)
	}
	alarm.Enabled = true
	m.log.Info("alarm enabled", "alarm_id", alarmID)

	if err := m.arm(ctx, alarm); err != nil {
		return m.List(ctx), err
	}
	return m.List(ctx), nil
}

// Delete disarms and removes an alarm. A pending snooze entry for the
// alarm is disarmed with it so no orphaned timer fires for a record that
// no longer exists.
func (m *Manager) Delete(ctx context.Context, alarmID string) ([]*models.Alarm, error) {
	unlock := m.locks.lock(alarmID)
	defer unlock()

	alarm, err := m.Get(ctx, alarmID)
	if err != nil {
		return nil, err
	}

	if err := m.disarm(ctx, alarm); err != nil {
		return nil, err
	}
	if err := m.gateway.Disarm(ctx, models.SnoozeKey(alarmID)); err != nil {
		m.log.Warn("failed to disarm snooze entry", "alarm_id", alarmID, "error", err)
	}

	if err := m.store.DeleteAlarm(ctx, alarmID); err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			return nil, core.ErrAlarmNotFound
		}
		return nil, fmt.Errorf("failed to delete alarm: %w", err)
	}

	m.mu.Lock()
	delete(m.ringing, alarmID)
	delete(m.ringing, models.SnoozeKey(alarmID))
	m.mu.Unlock()

	m.log.Info("alarm deleted", "alarm_id", alarmID)
	return m.List(ctx), nil
}

// Restore reconciles the store with the gateway on startup: every pending
// timer is dropped and each enabled alarm is re-armed from scratch. Stale
// handles persisted by a previous process are meaningless after a restart
// or reboot.
func (m *Manager) Restore(ctx context.Context) error {
	if err := m.gateway.DisarmAll(ctx); err != nil {
		return fmt.Errorf("failed to disarm stale timers: %w", err)
	}

	alarms, err := m.store.ListEnabledAlarms(ctx)
	if err != nil {
		return fmt.Errorf("failed to list enabled alarms: %w", err)
	}

	var restored int
	for _, alarm := range alarms {
		unlock := m.locks.lock(alarm.ID)
		alarm.ScheduledHandle = ""
		if err := m.arm(ctx, alarm); err != nil {
			// Keep going; the record stays enabled and un-armed until a
			// re-arm succeeds.
			m.log.Warn("failed to restore alarm", "alarm_id", alarm.ID, "error", err)
		} else {
			restored++
		}
		unlock()
	}

	m.log.Info("alarms restored", "restored", restored, "enabled", len(alarms))
	return nil
}

// CanScheduleExact reports the gateway's authorization state.
func (m *Manager) CanScheduleExact(ctx context.Context) bool {
	return m.gateway.CanScheduleExact(ctx)
}

// RequestPermission runs the gateway's authorization flow and re-arms
// every enabled alarm once it succeeds.
func (m *Manager) RequestPermission(ctx context.Context) error {
	if err := m.gateway.RequestPermission(ctx); err != nil {
		return fmt.Errorf("permission request failed: %w", err)
	}
	return m.Restore(ctx)
}

// RingingNow lists entries currently in the Firing state.
func (m *Manager) RingingNow() []Ringing {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Ringing, 0, len(m.ringing))
	for _, r := range m.ringing {
		out = append(out, r)
	}
	return out
}

// HandleSignal is the wake-signal bridge subscriber. It runs each signal
// as just another serialized operation on the alarm's queue.
func (m *Manager) HandleSignal(ctx context.Context, sig models.Signal) {
	if parentID, ok := models.IsSnoozeKey(sig.AlarmID); ok {
		m.handleSnoozeSignal(ctx, sig, parentID)
		return
	}
	m.handleAlarmSignal(ctx, sig)
}

// handleAlarmSignal applies a wake signal for a regular alarm record.
func (m *Manager) handleAlarmSignal(ctx context.Context, sig models.Signal) {
	unlock := m.locks.lock(sig.AlarmID)
	defer unlock()

	alarm, err := m.Get(ctx, sig.AlarmID)
	if err != nil {
		// The record may have been deleted while the signal was in
		// flight. Drop any stray timer and move on.
		m.log.Warn("signal for unknown alarm", "alarm_id", sig.AlarmID, "type", sig.Type, "error", err)
		if derr := m.gateway.Disarm(ctx, sig.AlarmID); derr != nil {
			m.log.Warn("failed to disarm stray timer", "alarm_id", sig.AlarmID, "error", derr)
		}
		return
	}

	switch sig.Type {
	case models.SignalFired:
		alarmsFired.Inc()
		m.markRinging(sig.AlarmID, sig.AlarmID, alarm.DisplayLabel(), sig.Occurrence)

		if !alarm.Enabled {
			// A stale fire racing a toggle-off. A disabled record must
			// never hold a live handle, so drop any timer instead of
			// re-arming.
			if err := m.disarm(ctx, alarm); err != nil {
				m.log.Error("failed to disarm after stale fire", "alarm_id", alarm.ID, "error", err)
			}
			return
		}

		if alarm.IsRepeating() {
			// The firing consumed the handle; immediately arm the next
			// matching weekday.
			alarm.ScheduledHandle = ""
			if err := m.arm(ctx, alarm); err != nil {
				m.log.Error("failed to re-arm repeating alarm", "alarm_id", alarm.ID, "error", err)
			}
			return
		}

		// One-time alarms auto-disable once fired.
		if err := m.store.SetAlarmHandle(ctx, alarm.ID, ""); err != nil {
			m.log.Error("failed to clear handle", "alarm_id", alarm.ID, "error", err)
		}
		if err := m.store.SetAlarmEnabled(ctx, alarm.ID, false); err != nil {
			m.log.Error("failed to disable fired alarm", "alarm_id", alarm.ID, "error", err)
		}
		m.log.Info("one-time alarm fired and disabled", "alarm_id", alarm.ID)

	case models.SignalDismissed:
		alarmsDismiss.Inc()
		m.unmarkRinging(sig.AlarmID)

		if !alarm.Enabled {
			// The user toggled the alarm off while it was ringing. The
			// dismiss only silences the ringing surface; the record stays
			// disabled and un-armed.
			if err := m.disarm(ctx, alarm); err != nil {
				m.log.Error("failed to disarm dismissed alarm", "alarm_id", alarm.ID, "error", err)
			}
			m.log.Info("disabled alarm dismissed", "alarm_id", alarm.ID)
			return
		}

		if alarm.IsRepeating() {
			// Re-arm is a replace; if the fire already armed the next
			// occurrence this collapses to the same instant.
			alarm.ScheduledHandle = ""
			if err := m.arm(ctx, alarm); err != nil {
				m.log.Error("failed to re-arm dismissed alarm", "alarm_id", alarm.ID, "error", err)
			}
			m.log.Info("repeating alarm dismissed", "alarm_id", alarm.ID)
			return
		}

		if err := m.store.SetAlarmEnabled(ctx, alarm.ID, false); err != nil {
			m.log.Error("failed to disable dismissed alarm", "alarm_id", alarm.ID, "error", err)
		}
		if alarm.ScheduledHandle != "" {
			if err := m.store.SetAlarmHandle(ctx, alarm.ID, ""); err != nil {
				m.log.Error("failed to clear handle", "alarm_id", alarm.ID, "error", err)
			}
		}
		m.log.Info("one-time alarm dismissed", "alarm_id", alarm.ID)

	case models.SignalSnoozed:
		alarmsSnoozed.Inc()
		m.unmarkRinging(sig.AlarmID)
		m.armSnooze(ctx, alarm.ID, alarm.DisplayLabel())

	default:
		m.log.Warn("unknown signal type", "type", sig.Type, "alarm_id", sig.AlarmID)
	}
}

// handleSnoozeSignal applies a wake signal for a synthetic snooze entry.
// Snooze transitions never touch the parent record's schedule or flags.
func (m *Manager) handleSnoozeSignal(ctx context.Context, sig models.Signal, parentID string) {
	// Serialize against the parent's operations; a snooze firing racing a
	// parent edit must not interleave.
	unlock := m.locks.lock(parentID)
	defer unlock()

	switch sig.Type {
	case models.SignalFired:
		alarmsFired.Inc()
		label := sig.Label
		if label == "" {
			if alarm, err := m.Get(ctx, parentID); err == nil {
				label = alarm.DisplayLabel()
			} else {
				label = "Alarm"
			}
		}
		m.markRinging(sig.AlarmID, parentID, label, sig.Occurrence)
		m.log.Info("snooze fired", "alarm_id", parentID)

	case models.SignalDismissed:
		alarmsDismiss.Inc()
		m.unmarkRinging(sig.AlarmID)
		m.log.Info("snooze dismissed", "alarm_id", parentID)

	case models.SignalSnoozed:
		alarmsSnoozed.Inc()
		m.unmarkRinging(sig.AlarmID)
		m.armSnooze(ctx, parentID, sig.Label)

	default:
		m.log.Warn("unknown signal type", "type", sig.Type, "alarm_id", sig.AlarmID)
	}
}

// armSnooze arms the independent snooze timer for an alarm. The entry is
// keyed "snooze-" + id and replaces any pending snooze for the same alarm;
// the parent's own schedule stays untouched. No de-duplication against the
// parent's next regular fire is attempted; the two are independent timer
// entries even if they land close together.
func (m *Manager) armSnooze(ctx context.Context, alarmID, label string) {
	at := m.now().Add(m.snooze)
	_, err := m.gateway.Arm(ctx, models.SnoozeKey(alarmID), at, timer.Metadata{
		Label:     label,
		Repeating: false,
	})
	if err != nil {
		m.log.Error("failed to arm snooze", "alarm_id", alarmID, "error", err)
		return
	}
	m.log.Info("snooze armed", "alarm_id", alarmID, "at", at)
}

// arm computes the next occurrence and schedules it, replacing any live
// handle for the id first. Arming is a replace operation, never additive.
func (m *Manager) arm(ctx context.Context, alarm *models.Alarm) error {
	// Disarm-before-rearm for the same id, always.
	if err := m.gateway.Disarm(ctx, alarm.ID); err != nil {
		return fmt.Errorf("failed to disarm before re-arm: %w", err)
	}

	now := m.now()
	next := core.NextOccurrence(alarm.Time, alarm.RepeatDays, now, m.scanDays)
	if !alarm.RepeatDays.IsEmpty() && !alarm.RepeatDays.Contains(next.Weekday()) {
		// The calculator's fallback kicked in; log and keep going.
		m.log.Error("next occurrence scan exhausted, using fallback", "alarm_id", alarm.ID, "next", next)
	}

	handle, err := m.gateway.Arm(ctx, alarm.ID, next, timer.Metadata{
		Label:     alarm.DisplayLabel(),
		Repeating: alarm.IsRepeating(),
	})
	if err != nil {
		if errors.Is(err, timer.ErrPermissionDenied) {
			// The record stays enabled but un-armed; the client runs the
			// permission flow and retries. Claiming success here would
			// desynchronize store and gateway.
			m.log.Warn("exact alarm permission denied", "alarm_id", alarm.ID)
			return fmt.Errorf("arming alarm %s: %w", alarm.ID, err)
		}
		return fmt.Errorf("arming alarm %s: %w", alarm.ID, err)
	}

	alarm.ScheduledHandle = handle.Token
	if err := m.store.SetAlarmHandle(ctx, alarm.ID, handle.Token); err != nil {
		return fmt.Errorf("failed to persist handle: %w", err)
	}

	alarmsArmed.Inc()
	m.log.Debug("alarm armed", "alarm_id", alarm.ID, "at", next)
	return nil
}

// disarm removes the pending timer for the alarm and clears its persisted
// handle.
func (m *Manager) disarm(ctx context.Context, alarm *models.Alarm) error {
	if err := m.gateway.Disarm(ctx, alarm.ID); err != nil {
		return fmt.Errorf("failed to disarm alarm %s: %w", alarm.ID, err)
	}
	if alarm.ScheduledHandle != "" {
		if err := m.store.SetAlarmHandle(ctx, alarm.ID, ""); err != nil {
			return fmt.Errorf("failed to clear handle: %w", err)
		}
		alarm.ScheduledHandle = ""
	}
	alarmsDisarmed.Inc()
	return nil
}

func (m *Manager) markRinging(id, alarmID, label string, at time.Time) {
	if at.IsZero() {
		at = m.now()
	}
	m.mu.Lock()
	m.ringing[id] = Ringing{ID: id, AlarmID: alarmID, Label: label, At: at}
	m.mu.Unlock()
}

func (m *Manager) unmarkRinging(id string) {
	m.mu.Lock()
	delete(m.ringing, id)
	m.mu.Unlock()
}

// keyedLocks serializes operations per alarm id. Entries are refcounted
// and evicted once the last holder releases, so the map stays bounded by
// the number of ids with in-flight operations rather than growing with
// every id ever seen.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*idLock
}

type idLock struct {
	sync.Mutex
	refs int
}

// lock acquires the mutex for id, creating it on first use, and returns
// the unlock function.
func (k *keyedLocks) lock(id string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*idLock)
	}
	l, ok := k.locks[id]
	if !ok {
		l = &idLock{}
		k.locks[id] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}
