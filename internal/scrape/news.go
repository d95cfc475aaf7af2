package scrape

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/mars-cli/internal/browser"
)

const (
	newsListSelector   = "div.list_text"
	newsTitleSelector  = "div.content_title"
	newsTeaserSelector = "div.article_teaser_body"
)

// News is the latest headline and its teaser paragraph.
type News struct {
	Title     string
	Paragraph string
}

// News reads the first article of the news site.
func (s *Scraper) News(ctx context.Context, sess browser.Session) (News, error) {
	if err := sess.Visit(ctx, s.targets.NewsURL); err != nil {
		return News{}, eris.Wrap(err, "scrape: news visit")
	}

	// The list renders client-side. Absence after the wait is not an
	// error here; the lookup below decides.
	present, err := sess.WaitFor(ctx, newsListSelector, s.newsWait)
	if err != nil {
		zap.L().Debug("scrape: news wait failed", zap.Error(err))
	} else if !present {
		zap.L().Debug("scrape: news list not present after wait", zap.Duration("wait", s.newsWait))
	}

	doc, err := parse(ctx, sess)
	if err != nil {
		return News{}, err
	}

	slide := doc.Find(newsListSelector).First()
	if slide.Length() == 0 {
		return News{}, missing(doc, "scrape: news: no %s", newsListSelector)
	}
	title := slide.Find(newsTitleSelector).First()
	if title.Length() == 0 {
		return News{}, missing(doc, "scrape: news: no %s", newsTitleSelector)
	}
	teaser := slide.Find(newsTeaserSelector).First()
	if teaser.Length() == 0 {
		return News{}, missing(doc, "scrape: news: no %s", newsTeaserSelector)
	}

	return News{
		Title:     strings.TrimSpace(title.Text()),
		Paragraph: strings.TrimSpace(teaser.Text()),
	}, nil
}
