package monitoring

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/mars-cli/internal/model"
	"github.com/sells-group/mars-cli/internal/store"
)

func strPtr(s string) *string { return &s }

func completeRecord() model.Record {
	return model.Record{
		NewsTitle:     strPtr("title"),
		NewsParagraph: strPtr("teaser"),
		FeaturedImage: strPtr("https://spaceimages-mars.com/image/featured/mars.jpg"),
		Facts:         strPtr("<table></table>"),
		Hemispheres:   []model.Hemisphere{{Title: "Cerberus", ImgURL: "https://marshemispheres.com/c.jpg"}},
	}
}

func reportWith(reasons map[model.Step]model.Reason) *model.Report {
	r := &model.Report{}
	for _, s := range model.AllSteps() {
		reason, ok := reasons[s]
		if !ok {
			reason = model.ReasonOK
		}
		r.Steps = append(r.Steps, model.StepReport{Step: s, Reason: reason})
	}
	return r
}

func newSQLite(t *testing.T, snaps ...model.Snapshot) store.Store {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "monitoring.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	ctx := context.Background()
	require.NoError(t, s.Migrate(ctx))
	if len(snaps) > 0 {
		n, err := s.ImportSnapshots(ctx, snaps)
		require.NoError(t, err)
		require.Equal(t, len(snaps), n)
	}
	return s
}

func fixedCollector(src SnapshotSource, now time.Time) *Collector {
	c := NewCollector(src)
	c.now = func() time.Time { return now }
	return c
}

func TestCollector_Collect(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	partial := completeRecord()
	partial.Hemispheres = nil

	st := newSQLite(t,
		model.Snapshot{ID: "a", Record: completeRecord(), Report: reportWith(nil), CreatedAt: now.Add(-1 * time.Hour)},
		model.Snapshot{ID: "b", Record: partial, Report: reportWith(map[model.Step]model.Reason{
			model.StepHemispheres: model.ReasonNotFound,
		}), CreatedAt: now.Add(-2 * time.Hour)},
		model.Snapshot{ID: "c", Record: partial, Report: reportWith(map[model.Step]model.Reason{
			model.StepHemispheres: model.ReasonTransport,
			model.StepNews:        model.ReasonTransport,
		}), CreatedAt: now.Add(-3 * time.Hour)},
		model.Snapshot{ID: "d", Record: completeRecord(), CreatedAt: now.Add(-4 * time.Hour)},
		// Outside the window.
		model.Snapshot{ID: "old", Record: partial, Report: reportWith(map[model.Step]model.Reason{
			model.StepHemispheres: model.ReasonNotFound,
		}), CreatedAt: now.Add(-48 * time.Hour)},
	)

	snap, err := fixedCollector(st, now).Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 4, snap.Snapshots)
	assert.Equal(t, 2, snap.Complete)
	assert.Equal(t, 1, snap.Unreported)
	assert.Equal(t, 24, snap.LookbackHours)
	assert.Equal(t, now, snap.CollectedAt)

	require.NotNil(t, snap.LatestAt)
	assert.True(t, now.Add(-1*time.Hour).Equal(*snap.LatestAt))
	age, ok := snap.Age()
	assert.True(t, ok)
	assert.Equal(t, time.Hour, age)

	hemi := snap.Steps[model.StepHemispheres]
	assert.Equal(t, 3, hemi.Total)
	assert.Equal(t, 1, hemi.OK)
	assert.Equal(t, 1, hemi.NotFound)
	assert.Equal(t, 1, hemi.Transport)
	assert.Equal(t, 2, hemi.Failed())
	assert.InDelta(t, 2.0/3.0, hemi.FailRate, 0.0001)

	news := snap.Steps[model.StepNews]
	assert.Equal(t, 3, news.Total)
	assert.Equal(t, 1, news.Transport)

	facts := snap.Steps[model.StepFacts]
	assert.Equal(t, 3, facts.OK)
	assert.Zero(t, facts.FailRate)
}

func TestCollector_Collect_EmptyStore(t *testing.T) {
	st := newSQLite(t)

	snap, err := NewCollector(st).Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Zero(t, snap.Snapshots)
	assert.Nil(t, snap.LatestAt)
	_, ok := snap.Age()
	assert.False(t, ok)
	assert.Len(t, snap.Steps, len(model.AllSteps()))
}

func TestCollector_Collect_LatestOutsideWindow(t *testing.T) {
	now := time.Now().UTC()
	st := newSQLite(t, model.Snapshot{
		ID: "old", Record: completeRecord(), Report: reportWith(nil), CreatedAt: now.Add(-72 * time.Hour),
	})

	snap, err := fixedCollector(st, now).Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Zero(t, snap.Snapshots)
	require.NotNil(t, snap.LatestAt)
	age, _ := snap.Age()
	assert.InDelta(t, 72, age.Hours(), 0.01)
}

type failingSource struct {
	latestErr error
	listErr   error
}

func (f failingSource) ListSnapshots(context.Context, store.SnapshotFilter) ([]model.Snapshot, error) {
	return nil, f.listErr
}

func (f failingSource) LatestSnapshot(context.Context) (*model.Snapshot, error) {
	if f.latestErr != nil {
		return nil, f.latestErr
	}
	return &model.Snapshot{ID: "x", CreatedAt: time.Now()}, nil
}

func TestCollector_Collect_Errors(t *testing.T) {
	_, err := NewCollector(failingSource{latestErr: errors.New("db gone")}).Collect(context.Background(), 24)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monitoring: latest snapshot")

	_, err = NewCollector(failingSource{listErr: errors.New("db gone")}).Collect(context.Background(), 24)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monitoring: list snapshots")
}
