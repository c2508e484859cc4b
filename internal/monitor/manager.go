package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/loykin/bpmon/internal/client"
	"github.com/loykin/bpmon/internal/metrics"
)

// ClientFactory produces a fresh upstream client for one reconciliation
// cycle or one direct action. The manager closes what it opens.
type ClientFactory func() (*client.Client, error)

// Manager owns the live monitor set and drives periodic status checks.
//
// Each monitor id maps to one cron entry firing every interval. A scheduled
// tick and an on-demand CheckNow may both be in flight for the same id;
// each writes the full record independently and the later completion wins.
// That race is accepted: only latest-status semantics are promised.
//
// Removing a monitor cancels future fires but not an in-flight cycle; the
// per-id generation counter makes the stale cycle's write a no-op, so a
// removed (or removed-then-re-added) monitor is never resurrected or
// overwritten by a result observed before the removal.
type Manager struct {
	mu       sync.Mutex
	monitors map[string]*Record
	entries  map[string]cron.EntryID
	gens     map[string]uint64
	cron     *cron.Cron
	store    Store
	clients  ClientFactory
	logger   *slog.Logger
	timeout  time.Duration
	started  bool
}

// Option adjusts manager construction.
type Option func(*Manager)

// WithCheckTimeout bounds each reconciliation cycle's upstream calls.
func WithCheckTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithLogger sets the manager logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewManager loads the persisted monitor set from store. A missing or
// corrupt store starts empty; monitors are not critical-path data.
func NewManager(store Store, clients ClientFactory, opts ...Option) *Manager {
	m := &Manager{
		monitors: make(map[string]*Record),
		entries:  make(map[string]cron.EntryID),
		gens:     make(map[string]uint64),
		cron:     cron.New(cron.WithLocation(time.UTC)),
		store:    store,
		clients:  clients,
		logger:   slog.Default(),
		timeout:  30 * time.Second,
	}
	for _, o := range opts {
		o(m)
	}
	records, err := store.Load()
	if err != nil {
		m.logger.Warn("monitor store unreadable, starting empty", "error", err)
		records = nil
	}
	for _, rec := range records {
		r := rec
		if r.Kind == "" {
			r.Kind = KindTask
		}
		r.IntervalSeconds = ClampInterval(r.IntervalSeconds)
		m.monitors[r.ID] = &r
	}
	metrics.SetActiveMonitors(len(m.monitors))
	return m
}

// Start begins the scheduler clock and registers a job for every loaded
// monitor, each with an immediate out-of-band first check so state is
// populated right away instead of after a full interval. Idempotent.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true
	m.cron.Start()
	for id, rec := range m.monitors {
		m.scheduleLocked(id, rec.IntervalSeconds)
		go m.check(context.Background(), id)
	}
}

// Stop cancels all future fires. In-flight cycles finish on their own.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return
	}
	m.started = false
	m.cron.Stop()
}

// scheduleLocked (re)registers the cron entry for id, replacing any
// existing schedule rather than stacking. Caller must hold mu.
func (m *Manager) scheduleLocked(id string, intervalSeconds int) {
	if entry, ok := m.entries[id]; ok {
		m.cron.Remove(entry)
	}
	spec := fmt.Sprintf("@every %ds", ClampInterval(intervalSeconds))
	entry, err := m.cron.AddFunc(spec, func() {
		m.check(context.Background(), id)
	})
	if err != nil {
		// "@every <n>s" with a clamped positive n always parses; log and
		// leave the monitor unscheduled rather than crash.
		m.logger.Error("failed to schedule monitor", "id", id, "error", err)
		return
	}
	m.entries[id] = entry
}

// AddMonitor registers a new monitored id. Intervals below the floor are
// clamped. If the scheduler is already running, one immediate check fires
// without waiting for the first tick. Re-adding an existing id replaces its
// record and schedule.
func (m *Manager) AddMonitor(id string, kind Kind, intervalSeconds int) Record {
	if kind == "" {
		kind = KindTask
	}
	rec := &Record{
		ID:              id,
		Kind:            kind,
		IntervalSeconds: ClampInterval(intervalSeconds),
	}

	m.mu.Lock()
	m.monitors[id] = rec
	m.gens[id]++
	m.scheduleLocked(id, rec.IntervalSeconds)
	m.persistLocked()
	metrics.SetActiveMonitors(len(m.monitors))
	running := m.started
	out := *rec
	m.mu.Unlock()

	if running {
		go m.check(context.Background(), id)
	}
	return out
}

// RemoveMonitor cancels the schedule and deletes the record. Unknown ids
// are a no-op, not an error.
func (m *Manager) RemoveMonitor(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry, ok := m.entries[id]; ok {
		m.cron.Remove(entry)
		delete(m.entries, id)
	}
	if _, ok := m.monitors[id]; ok {
		delete(m.monitors, id)
		m.gens[id]++
	}
	m.persistLocked()
	metrics.SetActiveMonitors(len(m.monitors))
}

// UpdateInterval changes the polling period for id, replacing the existing
// schedule. Returns false without persisting when id is unknown.
func (m *Manager) UpdateInterval(id string, intervalSeconds int) (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.monitors[id]
	if !ok {
		return Record{}, false
	}
	rec.IntervalSeconds = ClampInterval(intervalSeconds)
	m.scheduleLocked(id, rec.IntervalSeconds)
	m.persistLocked()
	return *rec, true
}

// CheckNow runs one reconciliation cycle synchronously, regardless of
// scheduler timing. Returns false when id is unknown.
func (m *Manager) CheckNow(ctx context.Context, id string) (Record, bool) {
	m.check(ctx, id)
	return m.Get(id)
}

// Get returns a snapshot of one record.
func (m *Manager) Get(id string) (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.monitors[id]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// Monitors returns a snapshot of all records, sorted by id.
func (m *Manager) Monitors() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, 0, len(m.monitors))
	for _, rec := range m.monitors {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Serialize exports the full state keyed by id, for rendering.
func (m *Manager) Serialize() map[string]Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]Record, len(m.monitors))
	for id, rec := range m.monitors {
		out[id] = *rec
	}
	return out
}

// persistLocked writes the full monitor set. Caller must hold mu.
func (m *Manager) persistLocked() {
	records := make([]Record, 0, len(m.monitors))
	for _, rec := range m.monitors {
		records = append(records, *rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	if err := m.store.Save(records); err != nil {
		m.logger.Error("failed to persist monitors", "error", err)
	}
}

// checkOutcome is what one successful upstream observation yields.
type checkOutcome struct {
	status    string
	name      string
	instances []InstanceSummary
}

// check runs one reconciliation cycle for id. Every failure is downgraded
// to the "error" sentinel plus a log entry; nothing escapes to the
// scheduler. LastChecked is set on both outcomes.
func (m *Manager) check(ctx context.Context, id string) {
	m.mu.Lock()
	rec, ok := m.monitors[id]
	if !ok {
		// removed concurrently; nothing to reconcile
		m.mu.Unlock()
		return
	}
	gen := m.gens[id]
	kind := rec.Kind
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	started := time.Now()
	out, err := m.observe(ctx, kind, id)
	metrics.ObserveCheckDuration(time.Since(started).Seconds())
	now := time.Now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok = m.monitors[id]
	if !ok || m.gens[id] != gen {
		// monitor removed (or replaced) while the cycle was in flight;
		// discard the stale result instead of resurrecting it
		return
	}
	rec.LastChecked = &now
	if err != nil {
		rec.LastStatus = StatusError
		metrics.IncCheck("error")
		m.logger.Error("status check failed", "id", id, "kind", kind, "error", err)
	} else {
		rec.LastStatus = out.status
		if out.name != "" {
			rec.Name = out.name
		}
		if kind == KindDefinition {
			rec.RecentInstances = out.instances
		}
		metrics.IncCheck("ok")
	}
	m.persistLocked()
}

// observe fetches current upstream state for one monitor and normalizes
// it. It owns the client lifecycle for the cycle; resources are released
// on every path.
func (m *Manager) observe(ctx context.Context, kind Kind, id string) (checkOutcome, error) {
	cl, err := m.clients()
	if err != nil {
		return checkOutcome{}, err
	}
	defer cl.Close()

	switch kind {
	case KindDefinition:
		page, err := cl.GetDefinitionInstances(ctx, id, client.InstancesQuery{})
		if err != nil {
			return checkOutcome{}, err
		}
		out := checkOutcome{instances: make([]InstanceSummary, 0, len(page.Content))}
		for _, raw := range page.Content {
			out.instances = append(out.instances, Summarize(raw))
		}
		if len(out.instances) == 0 {
			out.status = StatusNoInstances
			return out, nil
		}
		latest := out.instances[0]
		out.status = latest.Status
		if out.status == "" {
			out.status = StatusUnknown
		}
		if latest.Title != "" {
			out.name = latest.Title
		} else {
			out.name = latest.DefinitionTitle
		}
		return out, nil
	default:
		payload, err := cl.GetTask(ctx, id)
		if err != nil {
			return checkOutcome{}, err
		}
		return checkOutcome{
			status: statusFromPayload(payload),
			name:   nameFromPayload(payload),
		}, nil
	}
}
