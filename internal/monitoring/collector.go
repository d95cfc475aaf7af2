package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/mars-cli/internal/model"
	"github.com/sells-group/mars-cli/internal/store"
)

// maxWindowSnapshots bounds how many snapshots a single Collect reads.
const maxWindowSnapshots = 10000

// StepMetrics counts outcomes of one scrape step within the window.
type StepMetrics struct {
	Total     int     `json:"total"`
	OK        int     `json:"ok"`
	NotFound  int     `json:"not_found"`
	Transport int     `json:"transport_error"`
	FailRate  float64 `json:"fail_rate"`
}

// Failed returns the number of non-ok outcomes.
func (m StepMetrics) Failed() int { return m.NotFound + m.Transport }

// MetricsSnapshot holds a point-in-time view of scrape health.
type MetricsSnapshot struct {
	Snapshots  int `json:"snapshots"`
	Complete   int `json:"complete"`
	Unreported int `json:"unreported"`

	Steps map[model.Step]*StepMetrics `json:"steps"`

	// LatestAt is nil when the store holds no snapshots at all.
	LatestAt *time.Time `json:"latest_at,omitempty"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Age returns how old the latest snapshot is relative to CollectedAt.
func (m *MetricsSnapshot) Age() (time.Duration, bool) {
	if m.LatestAt == nil {
		return 0, false
	}
	return m.CollectedAt.Sub(*m.LatestAt), true
}

// SnapshotSource is the slice of store.Store the collector reads from.
type SnapshotSource interface {
	ListSnapshots(ctx context.Context, filter store.SnapshotFilter) ([]model.Snapshot, error)
	LatestSnapshot(ctx context.Context) (*model.Snapshot, error)
}

// Collector gathers metrics from stored snapshots.
type Collector struct {
	store SnapshotSource
	now   func() time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector(st SnapshotSource) *Collector {
	return &Collector{store: st, now: time.Now}
}

// Collect gathers scrape metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := c.now().UTC()
	snap := &MetricsSnapshot{
		Steps:         make(map[model.Step]*StepMetrics, len(model.AllSteps())),
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}
	for _, s := range model.AllSteps() {
		snap.Steps[s] = &StepMetrics{}
	}

	latest, err := c.store.LatestSnapshot(ctx)
	switch {
	case eris.Is(err, store.ErrNotFound):
		return snap, nil
	case err != nil:
		return nil, eris.Wrap(err, "monitoring: latest snapshot")
	}
	at := latest.CreatedAt.UTC()
	snap.LatestAt = &at

	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)
	snaps, err := c.store.ListSnapshots(ctx, store.SnapshotFilter{
		Since: cutoff,
		Limit: maxWindowSnapshots,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list snapshots")
	}

	snap.Snapshots = len(snaps)
	for i := range snaps {
		s := &snaps[i]
		if s.Record.Complete() {
			snap.Complete++
		}
		if s.Report == nil {
			snap.Unreported++
			continue
		}
		for _, sr := range s.Report.Steps {
			m, ok := snap.Steps[sr.Step]
			if !ok {
				continue
			}
			m.Total++
			switch sr.Reason {
			case model.ReasonOK:
				m.OK++
			case model.ReasonNotFound:
				m.NotFound++
			default:
				m.Transport++
			}
		}
	}

	for _, m := range snap.Steps {
		if m.Total > 0 {
			m.FailRate = float64(m.Failed()) / float64(m.Total)
		}
	}

	return snap, nil
}
