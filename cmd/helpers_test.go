package main

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/mars-cli/internal/config"
	"github.com/sells-group/mars-cli/internal/model"
	"github.com/sells-group/mars-cli/internal/store"
)

func strPtr(s string) *string { return &s }

// fakeRunner returns a fixed record and tracks overlapping runs.
type fakeRunner struct {
	rec    model.Record
	report model.Report
	delay  time.Duration

	calls    atomic.Int32
	inflight atomic.Int32
	maxSeen  atomic.Int32
}

func (f *fakeRunner) Run(ctx context.Context) (*model.Record, *model.Report) {
	f.calls.Add(1)
	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if n <= seen || f.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	rec, report := f.rec, f.report
	return &rec, &report
}

func completeRunner() *fakeRunner {
	return &fakeRunner{
		rec: model.Record{
			NewsTitle:     strPtr("NASA's Perseverance..."),
			NewsParagraph: strPtr("The agency's newest rover..."),
			FeaturedImage: strPtr("https://spaceimages-mars.com/image/featured/mars2.jpg"),
			Facts:         strPtr(`<table border="1" class="dataframe table table-striped"></table>`),
			LastModified:  time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC),
			Hemispheres: []model.Hemisphere{
				{Title: "Cerberus Hemisphere Enhanced", ImgURL: "https://marshemispheres.com/images/cerberus_full.jpg"},
			},
		},
		report: model.Report{Steps: []model.StepReport{
			{Step: model.StepNews, Reason: model.ReasonOK},
			{Step: model.StepImage, Reason: model.ReasonOK},
			{Step: model.StepFacts, Reason: model.ReasonOK},
			{Step: model.StepHemispheres, Reason: model.ReasonOK},
		}},
	}
}

// partialRunner reports the hemispheres step as a layout miss.
func partialRunner() *fakeRunner {
	r := completeRunner()
	r.rec.Hemispheres = nil
	r.report.Steps[3].Reason = model.ReasonNotFound
	return r
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

// useTempConfig runs the test from an empty directory with a SQLite store
// in it, and restores the global config afterwards.
func useTempConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	dbPath := filepath.Join(dir, "mars.db")
	t.Setenv("MARS_STORE_DRIVER", "sqlite")
	t.Setenv("MARS_STORE_DATABASE_URL", dbPath)
	t.Setenv("MARS_LOG_LEVEL", "error")

	prev := cfg
	t.Cleanup(func() { cfg = prev })
	cfg = &config.Config{
		Store: config.StoreConfig{Driver: "sqlite", DatabaseURL: dbPath},
		Log:   config.LogConfig{Level: "error", Format: "json"},
	}
	return dbPath
}
