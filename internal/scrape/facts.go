package scrape

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/mars-cli/internal/facts"
)

// FactsColumns are the names given to the facts table columns, in order.
var FactsColumns = []string{"description", "Mars", "Earth"}

// FactsClasses are added to the rendered facts table.
const FactsClasses = "table table-striped"

// Facts downloads the facts page and renders its first table with the
// columns renamed to FactsColumns and keyed by "description".
func (s *Scraper) Facts(ctx context.Context) (string, error) {
	body, err := s.fetcher.Download(ctx, s.targets.FactsURL)
	if err != nil {
		return "", eris.Wrap(err, "scrape: facts fetch")
	}
	defer body.Close() //nolint:errcheck

	tbl, err := facts.ParseFirstTable(body)
	if err != nil {
		return "", eris.Wrap(err, "scrape: facts")
	}
	if err := tbl.Rename(FactsColumns...); err != nil {
		return "", notFound("scrape: facts: %v", err)
	}
	if err := tbl.SetIndex(FactsColumns[0]); err != nil {
		return "", notFound("scrape: facts: %v", err)
	}

	return tbl.Render(FactsClasses), nil
}
