package scrape

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sells-group/mars-cli/internal/browser/browsertest"
	"github.com/sells-group/mars-cli/internal/fetcher"
)

const (
	newsURL   = "https://redplanetscience.com"
	imageURL  = "https://spaceimages-mars.com"
	imageFull = "https://spaceimages-mars.com/#fancybox"
	hemiURL   = "https://marshemispheres.com/"
)

var fixedNow = time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)

const newsPage = `<html><body>
<div id="news">
  <div class="list_text">
    <div class="list_date">April 30, 2024</div>
    <div class="content_title">
      NASA's Perseverance...
    </div>
    <div class="article_teaser_body">  The agency's newest rover...  </div>
  </div>
  <div class="list_text">
    <div class="content_title">Older story</div>
    <div class="article_teaser_body">Older teaser</div>
  </div>
</div>
</body></html>`

const imagePage = `<html><body>
<div class="header"><button class="btn">Menu</button><button class="btn btn-outline-light"> FULL IMAGE</button></div>
<img class="headerimage fade-in" src="image/featured/mars2.jpg">
</body></html>`

func imageModal(src string) string {
	return fmt.Sprintf(`<html><body>
<div class="fancybox-container"><img class="fancybox-image" src="%s" alt=""></div>
</body></html>`, src)
}

var hemisphereNames = []string{
	"Cerberus Hemisphere Enhanced",
	"Schiaparelli Hemisphere Enhanced",
	"Syrtis Major Hemisphere Enhanced",
	"Valles Marineris Hemisphere Enhanced",
}

func hemisphereSlug(i int) string {
	return strings.ToLower(strings.Fields(hemisphereNames[i])[0])
}

func hemisphereListing(n int) string {
	var b strings.Builder
	b.WriteString(`<html><body><div class="collapsible results">`)
	for i := range n {
		slug := hemisphereSlug(i)
		fmt.Fprintf(&b, `<div class="item"><a href="%s.html" class="itemLink product-item"><img class="thumb" src="images/%s_thumb.png"></a>`, slug, slug)
		fmt.Fprintf(&b, `<div class="description"><a href="%s.html" class="itemLink product-item"><h3>%s</h3></a></div></div>`, slug, hemisphereNames[i])
	}
	b.WriteString(`</div></body></html>`)
	return b.String()
}

func hemisphereDetail(i int) string {
	slug := hemisphereSlug(i)
	return fmt.Sprintf(`<html><body>
<div class="cover"><h2 class="title"> %s </h2>
<ul><li><a target="_blank" href="images/%s_full.jpg">Sample</a> (jpg) 1024px</li>
<li><a target="_blank" href="images/%s.tif">Original</a></li></ul></div>
<h2>Other</h2>
</body></html>`, hemisphereNames[i], slug, slug)
}

// sitePages returns a scripted copy of all browser-driven sites with n
// hemisphere thumbnails.
func sitePages(n int) map[string]browsertest.Page {
	pages := map[string]browsertest.Page{
		newsURL: {HTML: newsPage},
		imageURL: {
			HTML:   imagePage,
			Clicks: map[string][]string{"button": {"", imageFull}},
		},
		imageFull: {HTML: imageModal("image/featured/mars2.jpg")},
	}

	var targets []string
	for i := range n {
		u := hemiURL + hemisphereSlug(i) + ".html"
		targets = append(targets, u)
		pages[u] = browsertest.Page{HTML: hemisphereDetail(i)}
	}
	pages[hemiURL] = browsertest.Page{
		HTML:   hemisphereListing(n),
		Clicks: map[string][]string{thumbnailSelector: targets},
	}
	return pages
}

const factsPage = `<html><body>
<table class="table table-striped">
  <tbody>
    <tr><th scope="row">Mars - Earth Comparison</th><td>Mars</td><td>Earth</td></tr>
    <tr><th scope="row">Diameter:</th><td>6,779 km</td><td>12,742 km</td></tr>
    <tr><th scope="row">Mass:</th><td>6.39 × 10^23 kg</td><td>5.97 × 10^24 kg</td></tr>
    <tr><th scope="row">Moons:</th><td>2</td><td>1</td></tr>
    <tr><th scope="row">Distance from Sun:</th><td>227,943,824 km</td><td>149,598,262 km</td></tr>
    <tr><th scope="row">Length of Year:</th><td>687 Earth days</td><td>365.24 days</td></tr>
    <tr><th scope="row">Temperature:</th><td>-87 to -5 °C</td><td>-88 to 58°C</td></tr>
  </tbody>
</table>
</body></html>`

// factsServer serves body with status at "/".
func factsServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testFetcher() *fetcher.HTTPFetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{Timeout: 5 * time.Second})
}

// newTestScraper wires a Scraper to the scripted session and a facts server.
func newTestScraper(script *browsertest.Script, factsURL string) *Scraper {
	targets := DefaultTargets()
	targets.FactsURL = factsURL
	return New(script.Opener(), testFetcher(),
		WithTargets(targets),
		WithClock(func() time.Time { return fixedNow }),
		WithNewsWait(10*time.Millisecond),
	)
}
