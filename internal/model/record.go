package model

import "time"

// Record is the merged output of one full scrape. Every field except
// LastModified may be absent; absent fields serialize as null.
type Record struct {
	NewsTitle     *string      `json:"news_title" yaml:"news_title"`
	NewsParagraph *string      `json:"news_paragraph" yaml:"news_paragraph"`
	FeaturedImage *string      `json:"featured_image" yaml:"featured_image"`
	Facts         *string      `json:"facts" yaml:"facts"`
	LastModified  time.Time    `json:"last_modified" yaml:"last_modified"`
	Hemispheres   []Hemisphere `json:"hemispheres" yaml:"hemispheres"`
}

// Hemisphere is one hemisphere listing: its heading and full image URL.
type Hemisphere struct {
	Title  string `json:"title" yaml:"title"`
	ImgURL string `json:"img_url" yaml:"img_url"`
}

// Record field names, as they appear in JSON.
const (
	FieldNewsTitle     = "news_title"
	FieldNewsParagraph = "news_paragraph"
	FieldFeaturedImage = "featured_image"
	FieldFacts         = "facts"
	FieldHemispheres   = "hemispheres"
)

// Missing returns the JSON names of the optional fields that are absent,
// in record order.
func (r *Record) Missing() []string {
	var out []string
	if r.NewsTitle == nil {
		out = append(out, FieldNewsTitle)
	}
	if r.NewsParagraph == nil {
		out = append(out, FieldNewsParagraph)
	}
	if r.FeaturedImage == nil {
		out = append(out, FieldFeaturedImage)
	}
	if r.Facts == nil {
		out = append(out, FieldFacts)
	}
	if r.Hemispheres == nil {
		out = append(out, FieldHemispheres)
	}
	return out
}

// Complete reports whether every optional field is present.
func (r *Record) Complete() bool {
	return len(r.Missing()) == 0
}
