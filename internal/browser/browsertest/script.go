// Package browsertest provides a scripted browser.Session for tests.
package browsertest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/sells-group/mars-cli/internal/browser"
)

// Page is one scripted document.
type Page struct {
	HTML string
	// Clicks maps a selector to the URL each matching element navigates to,
	// by index. An empty entry means the click does not navigate.
	Clicks map[string][]string
}

// Script is an in-memory browser.Session. Selectors are evaluated against
// the scripted markup with goquery, so queries behave like the real DOM.
//
// Errors injects failures: the key is an operation name ("visit", "html",
// "count", "click", "back", "location", "wait") optionally followed by a
// space and its argument (URL, selector, or "selector#index").
type Script struct {
	Pages  map[string]Page
	Errors map[string]error

	mu      sync.Mutex
	current string
	history []string
	calls   []string
	closed  bool
}

var _ browser.Session = (*Script)(nil)

// New returns a Script serving pages.
func New(pages map[string]Page) *Script {
	return &Script{Pages: pages, Errors: map[string]error{}}
}

// Fail registers err for key and returns s.
func (s *Script) Fail(key string, err error) *Script {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Errors == nil {
		s.Errors = map[string]error{}
	}
	s.Errors[key] = err
	return s
}

// Opener returns a browser.Opener that hands out s.
func (s *Script) Opener() browser.Opener {
	return func(context.Context) (browser.Session, error) { return s, nil }
}

// Calls returns the operations performed so far.
func (s *Script) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// Closed reports whether Close was called.
func (s *Script) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Current returns the current URL.
func (s *Script) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Script) record(op, arg string) error {
	s.calls = append(s.calls, strings.TrimSpace(op+" "+arg))
	if s.closed {
		return eris.New("browsertest: session closed")
	}
	if err := s.Errors[op+" "+arg]; err != nil {
		return err
	}
	return s.Errors[op]
}

func (s *Script) doc() (*goquery.Document, error) {
	p, ok := s.Pages[s.current]
	if !ok {
		return nil, eris.Errorf("browsertest: no page loaded at %q", s.current)
	}
	return goquery.NewDocumentFromReader(strings.NewReader(p.HTML))
}

func (s *Script) navigate(url string) error {
	if _, ok := s.Pages[url]; !ok {
		return eris.Errorf("browsertest: net::ERR_NAME_NOT_RESOLVED %s", url)
	}
	if s.current != "" {
		s.history = append(s.history, s.current)
	}
	s.current = url
	return nil
}

func (s *Script) Visit(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("visit", url); err != nil {
		return err
	}
	return s.navigate(url)
}

func (s *Script) WaitFor(_ context.Context, selector string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("wait", selector); err != nil {
		return false, err
	}
	d, err := s.doc()
	if err != nil {
		return false, err
	}
	return d.Find(selector).Length() > 0, nil
}

func (s *Script) HTML(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("html", s.current); err != nil {
		return "", err
	}
	p, ok := s.Pages[s.current]
	if !ok {
		return "", eris.Errorf("browsertest: no page loaded at %q", s.current)
	}
	return p.HTML, nil
}

func (s *Script) Count(_ context.Context, selector string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("count", selector); err != nil {
		return 0, err
	}
	d, err := s.doc()
	if err != nil {
		return 0, err
	}
	return d.Find(selector).Length(), nil
}

func (s *Script) ClickNth(_ context.Context, selector string, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("click", fmt.Sprintf("%s#%d", selector, n)); err != nil {
		return err
	}
	if err := s.Errors["click "+selector]; err != nil {
		return err
	}
	d, err := s.doc()
	if err != nil {
		return err
	}
	if count := d.Find(selector).Length(); n < 0 || n >= count {
		return eris.Wrapf(browser.ErrNoElement, "browsertest: %s[%d] of %d", selector, n, count)
	}
	targets := s.Pages[s.current].Clicks[selector]
	if n < len(targets) && targets[n] != "" {
		return s.navigate(targets[n])
	}
	return nil
}

func (s *Script) Back(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("back", ""); err != nil {
		return err
	}
	if len(s.history) == 0 {
		return eris.New("browsertest: no history")
	}
	s.current = s.history[len(s.history)-1]
	s.history = s.history[:len(s.history)-1]
	return nil
}

func (s *Script) Location(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("location", ""); err != nil {
		return "", err
	}
	return s.current, nil
}

func (s *Script) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "close")
	s.closed = true
	return nil
}
