package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/mars-cli/internal/model"
)

// ErrNotFound is returned when no snapshot matches a lookup.
var ErrNotFound = eris.New("store: snapshot not found")

// DefaultListLimit caps ListSnapshots when the filter leaves Limit unset.
const DefaultListLimit = 20

// SnapshotFilter specifies criteria for listing snapshots.
type SnapshotFilter struct {
	Since  time.Time `json:"since,omitempty"`
	Limit  int       `json:"limit,omitempty"`
	Offset int       `json:"offset,omitempty"`
}

func (f SnapshotFilter) limit() int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	return f.Limit
}

// Store persists finished scrapes. Snapshots are newest first wherever a
// list is returned.
type Store interface {
	SaveSnapshot(ctx context.Context, rec model.Record, report *model.Report) (*model.Snapshot, error)
	ImportSnapshots(ctx context.Context, snaps []model.Snapshot) (int, error)
	GetSnapshot(ctx context.Context, id string) (*model.Snapshot, error)
	LatestSnapshot(ctx context.Context) (*model.Snapshot, error)
	ListSnapshots(ctx context.Context, filter SnapshotFilter) ([]model.Snapshot, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

func encodeSnapshot(rec model.Record, report *model.Report) (recJSON, reportJSON []byte, err error) {
	recJSON, err = json.Marshal(rec)
	if err != nil {
		return nil, nil, eris.Wrap(err, "marshal record")
	}
	reportJSON, err = json.Marshal(report)
	if err != nil {
		return nil, nil, eris.Wrap(err, "marshal report")
	}
	return recJSON, reportJSON, nil
}

func decodeSnapshot(s *model.Snapshot, recJSON, reportJSON []byte) error {
	if err := json.Unmarshal(recJSON, &s.Record); err != nil {
		return eris.Wrapf(err, "unmarshal record %s", s.ID)
	}
	if len(reportJSON) > 0 {
		if err := json.Unmarshal(reportJSON, &s.Report); err != nil {
			return eris.Wrapf(err, "unmarshal report %s", s.ID)
		}
	}
	s.CreatedAt = s.CreatedAt.UTC()
	return nil
}
