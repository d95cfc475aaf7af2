package scrape

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/sells-group/mars-cli/internal/browser"
	"github.com/sells-group/mars-cli/internal/model"
)

const (
	thumbnailSelector = "a.product-item img"
	sampleLinkText    = "Sample"
)

// Hemispheres visits each hemisphere page from the listing and collects
// its title and full image link. Any failure discards the whole list.
func (s *Scraper) Hemispheres(ctx context.Context, sess browser.Session) ([]model.Hemisphere, error) {
	if err := sess.Visit(ctx, s.targets.HemispheresURL); err != nil {
		return nil, eris.Wrap(err, "scrape: hemispheres visit")
	}

	n, err := sess.Count(ctx, thumbnailSelector)
	if err != nil {
		return nil, eris.Wrap(err, "scrape: hemispheres count thumbnails")
	}

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	return collectHemispheres(ctx, sess, thumbnailSelector, indices)
}

// collectHemispheres clicks the selector match at each index, reads the
// hemisphere page, and navigates back to the listing. It returns nil on the
// first failed iteration rather than a partial list.
func collectHemispheres(ctx context.Context, sess browser.Session, selector string, indices []int) ([]model.Hemisphere, error) {
	out := make([]model.Hemisphere, 0, len(indices))
	for _, i := range indices {
		h, err := hemisphereAt(ctx, sess, selector, i)
		if err != nil {
			return nil, eris.Wrapf(err, "scrape: hemisphere %d", i)
		}
		out = append(out, h)

		if err := sess.Back(ctx); err != nil {
			return nil, eris.Wrapf(err, "scrape: hemisphere %d: back to listing", i)
		}
	}
	return out, nil
}

func hemisphereAt(ctx context.Context, sess browser.Session, selector string, i int) (model.Hemisphere, error) {
	if err := sess.ClickNth(ctx, selector, i); err != nil {
		return model.Hemisphere{}, eris.Wrap(err, "open")
	}

	doc, err := parse(ctx, sess)
	if err != nil {
		return model.Hemisphere{}, err
	}

	sample := doc.Find("a").FilterFunction(func(_ int, a *goquery.Selection) bool {
		return strings.TrimSpace(a.Text()) == sampleLinkText
	}).First()
	href, ok := sample.Attr("href")
	if !ok {
		return model.Hemisphere{}, missing(doc, "no %q link", sampleLinkText)
	}

	heading := doc.Find("h2").First()
	if heading.Length() == 0 {
		return model.Hemisphere{}, missing(doc, "no h2 heading")
	}

	loc, err := sess.Location(ctx)
	if err != nil {
		return model.Hemisphere{}, eris.Wrap(err, "location")
	}
	imgURL, err := resolve(loc, href)
	if err != nil {
		return model.Hemisphere{}, err
	}

	return model.Hemisphere{
		Title:  strings.TrimSpace(heading.Text()),
		ImgURL: imgURL,
	}, nil
}

// resolve makes href absolute against the page it was found on, the way a
// browser reports a link's href property.
func resolve(page, href string) (string, error) {
	base, err := url.Parse(page)
	if err != nil {
		return "", eris.Wrapf(err, "parse page url %q", page)
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", notFound("unusable href %q: %v", href, err)
	}
	return base.ResolveReference(ref).String(), nil
}
