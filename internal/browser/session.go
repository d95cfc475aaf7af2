// Package browser provides the automated-browser session used by the scraper.
package browser

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
)

// ErrNoElement is returned when a selector or index matches nothing.
var ErrNoElement = eris.New("browser: no such element")

// Session is a single automated-browser tab. A Session is not safe for
// concurrent use; one control flow owns it between open and Close.
type Session interface {
	// Visit navigates to url and blocks until the page has loaded.
	Visit(ctx context.Context, url string) error

	// WaitFor waits at most timeout for selector to appear. It reports
	// whether the element is present; running out of time is not an error.
	WaitFor(ctx context.Context, selector string, timeout time.Duration) (bool, error)

	// HTML returns the current document markup.
	HTML(ctx context.Context) (string, error)

	// Count returns the number of elements matching selector.
	Count(ctx context.Context, selector string) (int, error)

	// ClickNth clicks the n-th (zero-based) element matching selector.
	ClickNth(ctx context.Context, selector string, n int) error

	// Back navigates one step back in history.
	Back(ctx context.Context) error

	// Location returns the URL of the current document.
	Location(ctx context.Context) (string, error)

	// Close releases the session. It is safe to call more than once.
	Close() error
}

// Opener starts a new Session.
type Opener func(ctx context.Context) (Session, error)

// Broken is a Session whose every operation fails with Err. It stands in
// for a session that could not be opened.
type Broken struct {
	Err error
}

// NewBroken wraps err as a Broken session.
func NewBroken(err error) *Broken {
	if err == nil {
		err = eris.New("browser: session unavailable")
	}
	return &Broken{Err: err}
}

func (b *Broken) Visit(context.Context, string) error { return b.Err }

func (b *Broken) WaitFor(context.Context, string, time.Duration) (bool, error) {
	return false, b.Err
}

func (b *Broken) HTML(context.Context) (string, error)        { return "", b.Err }
func (b *Broken) Count(context.Context, string) (int, error)  { return 0, b.Err }
func (b *Broken) ClickNth(context.Context, string, int) error { return b.Err }
func (b *Broken) Back(context.Context) error                  { return b.Err }
func (b *Broken) Location(context.Context) (string, error)    { return "", b.Err }
func (b *Broken) Close() error                                { return nil }
