// Package scrape collects the Mars news, featured image, facts table and
// hemisphere images into a single model.Record.
package scrape

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/mars-cli/internal/browser"
	"github.com/sells-group/mars-cli/internal/fetcher"
	"github.com/sells-group/mars-cli/internal/model"
	"github.com/sells-group/mars-cli/internal/resilience"
)

// Targets are the remote pages a Scraper reads.
type Targets struct {
	NewsURL string
	// ImageURL is the page holding the featured image; ImageBase is
	// prepended verbatim to the image's relative src.
	ImageURL       string
	ImageBase      string
	FactsURL       string
	HemispheresURL string
}

// DefaultTargets returns the production sites.
func DefaultTargets() Targets {
	return Targets{
		NewsURL:        "https://redplanetscience.com",
		ImageURL:       "https://spaceimages-mars.com",
		ImageBase:      "https://spaceimages-mars.com/",
		FactsURL:       "https://galaxyfacts-mars.com",
		HemispheresURL: "https://marshemispheres.com/",
	}
}

// DefaultNewsWait bounds how long the news step waits for the article list.
const DefaultNewsWait = time.Second

// Option configures a Scraper.
type Option func(*Scraper)

// WithTargets overrides the scraped sites.
func WithTargets(t Targets) Option {
	return func(s *Scraper) { s.targets = t }
}

// WithNewsWait sets the bounded wait for the news list to render.
func WithNewsWait(d time.Duration) Option {
	return func(s *Scraper) { s.newsWait = d }
}

// WithStepTimeout bounds each extraction step. Zero leaves steps unbounded.
func WithStepTimeout(d time.Duration) Option {
	return func(s *Scraper) { s.stepTimeout = d }
}

// WithClock replaces time.Now for the record timestamp.
func WithClock(now func() time.Time) Option {
	return func(s *Scraper) { s.now = now }
}

// Scraper runs the four extraction routines against one browser session.
// A Scraper may be reused; each Run opens and closes its own session.
type Scraper struct {
	open        browser.Opener
	fetcher     fetcher.Fetcher
	targets     Targets
	newsWait    time.Duration
	stepTimeout time.Duration
	now         func() time.Time
}

// New creates a Scraper. open supplies the browser session for the news,
// image and hemisphere steps; f downloads the facts page.
func New(open browser.Opener, f fetcher.Fetcher, opts ...Option) *Scraper {
	s := &Scraper{
		open:     open,
		fetcher:  f,
		targets:  DefaultTargets(),
		newsWait: DefaultNewsWait,
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Run scrapes every site and returns the assembled record with a report
// of each step. It always returns a record; failed steps leave their
// fields nil. The browser session is closed before Run returns.
func (s *Scraper) Run(ctx context.Context) (*model.Record, *model.Report) {
	report := &model.Report{StartedAt: s.now()}

	sess, err := s.open(ctx)
	if err != nil {
		zap.L().Warn("scrape: open browser session", zap.Error(err))
		sess = browser.NewBroken(eris.Wrap(err, "scrape: open session"))
	}
	defer func() {
		if err := sess.Close(); err != nil {
			zap.L().Warn("scrape: close browser session", zap.Error(err))
		}
	}()

	news := runStep(ctx, s, report, model.StepNews, func(ctx context.Context) (News, error) {
		return s.News(ctx, sess)
	})
	image := runStep(ctx, s, report, model.StepImage, func(ctx context.Context) (string, error) {
		return s.FeaturedImage(ctx, sess)
	})
	table := runStep(ctx, s, report, model.StepFacts, s.Facts)
	hemis := runStep(ctx, s, report, model.StepHemispheres, func(ctx context.Context) ([]model.Hemisphere, error) {
		return s.Hemispheres(ctx, sess)
	})

	rec := &model.Record{LastModified: s.now()}
	if news.OK() {
		rec.NewsTitle = &news.Value.Title
		rec.NewsParagraph = &news.Value.Paragraph
	}
	if image.OK() {
		rec.FeaturedImage = &image.Value
	}
	if table.OK() {
		rec.Facts = &table.Value
	}
	if hemis.OK() {
		rec.Hemispheres = hemis.Value
	}

	zap.L().Info("scrape: complete",
		zap.Strings("missing", rec.Missing()),
		zap.Duration("elapsed", rec.LastModified.Sub(report.StartedAt)),
	)
	return rec, report
}

// runStep executes fn under the step timeout and records its outcome.
func runStep[T any](ctx context.Context, s *Scraper, report *model.Report, step model.Step, fn func(context.Context) (T, error)) Outcome[T] {
	if s.stepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.stepTimeout)
		defer cancel()
	}

	start := time.Now()
	out := outcomeOf(fn(ctx))
	sr := model.StepReport{Step: step, Reason: out.Reason, Duration: time.Since(start)}

	if out.Err != nil {
		sr.Error = out.Err.Error()
		zap.L().Warn("scrape: step failed",
			zap.String("step", string(step)),
			zap.String("reason", string(out.Reason)),
			zap.Bool("transient", resilience.IsTransient(out.Err)),
			zap.Error(out.Err),
		)
	} else {
		zap.L().Debug("scrape: step ok", zap.String("step", string(step)), zap.Duration("duration", sr.Duration))
	}

	report.Steps = append(report.Steps, sr)
	return out
}

// missing reports an expected element absent from doc. If the page is an
// anti-bot interstitial the miss is a transport failure, not a layout change.
func missing(doc *goquery.Document, format string, args ...any) error {
	if markup, err := doc.Html(); err == nil {
		if blocked, kind := DetectBlock(markup); blocked {
			return resilience.NewTransientError(eris.Errorf("scrape: blocked by %s interstitial", kind), 0)
		}
	}
	return notFound(format, args...)
}

// parse reads the current page markup from sess.
func parse(ctx context.Context, sess browser.Session) (*goquery.Document, error) {
	markup, err := sess.HTML(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "scrape: read page")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, eris.Wrap(err, "scrape: parse page")
	}
	return doc, nil
}
