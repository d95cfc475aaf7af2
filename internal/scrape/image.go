package scrape

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/mars-cli/internal/browser"
)

const (
	// fullImageButton is the index of the "full image" control among the
	// page's buttons. It relies on the site's current layout.
	fullImageButton       = 1
	featuredImageSelector = "img.fancybox-image"
)

// FeaturedImage opens the full-size featured image and returns its URL:
// ImageBase followed by the image's src exactly as written in the page.
// No URL resolution is applied, so an absolute src yields a doubled URL.
func (s *Scraper) FeaturedImage(ctx context.Context, sess browser.Session) (string, error) {
	if err := sess.Visit(ctx, s.targets.ImageURL); err != nil {
		return "", eris.Wrap(err, "scrape: image visit")
	}
	if err := sess.ClickNth(ctx, "button", fullImageButton); err != nil {
		return "", eris.Wrap(err, "scrape: image open full size")
	}

	doc, err := parse(ctx, sess)
	if err != nil {
		return "", err
	}

	img := doc.Find(featuredImageSelector).First()
	if img.Length() == 0 {
		return "", missing(doc, "scrape: image: no %s", featuredImageSelector)
	}
	src, ok := img.Attr("src")
	if !ok {
		return "", notFound("scrape: image: %s has no src", featuredImageSelector)
	}

	return s.targets.ImageBase + src, nil
}
