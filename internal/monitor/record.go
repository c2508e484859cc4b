package monitor

import "time"

// Sentinel statuses used when no real upstream status is available.
const (
	StatusError       = "error"
	StatusNoInstances = "no instances"
	StatusUnknown     = "unknown"
)

// MinIntervalSeconds is the floor for polling intervals. Values below it
// are clamped, never rejected.
const MinIntervalSeconds = 10

// Kind tags what a monitor id refers to upstream: a single task, or a
// process definition whose endpoint returns a collection of instances.
type Kind string

const (
	KindTask       Kind = "task"
	KindDefinition Kind = "definition"
)

// Record is the persisted state of one tracked upstream entity.
// ID doubles as the scheduler job key. LastChecked is set on every poll
// attempt regardless of outcome; LastStatus reflects only the most recent
// attempt.
type Record struct {
	ID              string            `json:"id"`
	Kind            Kind              `json:"kind"`
	Name            string            `json:"name,omitempty"`
	IntervalSeconds int               `json:"interval_seconds"`
	LastStatus      string            `json:"last_status,omitempty"`
	LastChecked     *time.Time        `json:"last_checked,omitempty"`
	RecentInstances []InstanceSummary `json:"recent_instances,omitempty"`
}

// ClampInterval applies the MinIntervalSeconds floor.
func ClampInterval(seconds int) int {
	if seconds < MinIntervalSeconds {
		return MinIntervalSeconds
	}
	return seconds
}

// Store is a minimal persistence boundary for the monitor set.
// Save overwrites the full set; two consecutive writes fully supersede
// each other. Load degrades to an empty set when the backing data is
// missing or unreadable.
type Store interface {
	Load() ([]Record, error)
	Save(records []Record) error
	Close() error
}
