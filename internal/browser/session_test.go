package browser

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroken_EveryOperationFails(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("chrome not installed")
	b := NewBroken(boom)

	assert.ErrorIs(t, b.Visit(ctx, "https://example.com"), boom)

	ok, err := b.WaitFor(ctx, "div", time.Second)
	assert.False(t, ok)
	assert.ErrorIs(t, err, boom)

	_, err = b.HTML(ctx)
	assert.ErrorIs(t, err, boom)

	n, err := b.Count(ctx, "a")
	assert.Zero(t, n)
	assert.ErrorIs(t, err, boom)

	assert.ErrorIs(t, b.ClickNth(ctx, "button", 1), boom)
	assert.ErrorIs(t, b.Back(ctx), boom)

	_, err = b.Location(ctx)
	assert.ErrorIs(t, err, boom)

	assert.NoError(t, b.Close())
}

func TestNewBroken_NilError(t *testing.T) {
	b := NewBroken(nil)
	require.Error(t, b.Err)
	assert.Contains(t, b.Visit(context.Background(), "x").Error(), "session unavailable")
}

func TestAllocatorOptions(t *testing.T) {
	base := allocatorOptions(Options{Headless: true})
	withExtras := allocatorOptions(Options{Headless: true, UserAgent: "ua", ExecPath: "/usr/bin/chromium"})
	assert.Len(t, withExtras, len(base)+2)
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	assert.True(t, opts.Headless)
	assert.NotEmpty(t, opts.UserAgent)
	assert.Equal(t, 500*time.Millisecond, opts.Settle)
}

func TestNewChrome_LaunchFailureCleansUp(t *testing.T) {
	opts := DefaultOptions()
	opts.ExecPath = filepath.Join(t.TempDir(), "no-such-chrome")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c, err := NewChrome(ctx, opts)
	require.Error(t, err)
	assert.Nil(t, c)
	assert.Contains(t, err.Error(), "browser: launch chrome")
}

func TestChrome_CloseIsIdempotent(t *testing.T) {
	var tabCancels, allocCancels int
	c := &Chrome{
		tab:         context.Background(),
		cancelTab:   func() { tabCancels++ },
		cancelAlloc: func() { allocCancels++ },
	}

	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
	assert.Equal(t, 1, tabCancels)
	assert.Equal(t, 1, allocCancels)
}
