package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestRecord_MissingAll(t *testing.T) {
	r := &Record{LastModified: time.Now()}
	assert.Equal(t, []string{
		FieldNewsTitle, FieldNewsParagraph, FieldFeaturedImage, FieldFacts, FieldHemispheres,
	}, r.Missing())
	assert.False(t, r.Complete())
}

func TestRecord_Complete(t *testing.T) {
	r := &Record{
		NewsTitle:     strPtr("t"),
		NewsParagraph: strPtr("p"),
		FeaturedImage: strPtr("https://example.com/a.jpg"),
		Facts:         strPtr("<table></table>"),
		Hemispheres:   []Hemisphere{},
	}
	assert.Empty(t, r.Missing())
	assert.True(t, r.Complete())
}

func TestRecord_JSONAbsentFieldsAreNull(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	r := Record{NewsTitle: strPtr("Title"), LastModified: ts}

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))

	assert.Equal(t, "Title", m["news_title"])
	for _, k := range []string{"news_paragraph", "featured_image", "facts", "hemispheres"} {
		v, ok := m[k]
		assert.True(t, ok, "key %s must be present", k)
		assert.Nil(t, v, "key %s must be null", k)
	}
	assert.Equal(t, "2024-03-01T12:00:00Z", m["last_modified"])
}

func TestReport_StepAndFailed(t *testing.T) {
	r := &Report{Steps: []StepReport{
		{Step: StepNews, Reason: ReasonOK},
		{Step: StepImage, Reason: ReasonTransport, Error: "boom"},
		{Step: StepFacts, Reason: ReasonNotFound},
		{Step: StepHemispheres, Reason: ReasonOK},
	}}

	sr, ok := r.Step(StepImage)
	require.True(t, ok)
	assert.Equal(t, "boom", sr.Error)

	_, ok = r.Step(Step("unknown"))
	assert.False(t, ok)

	assert.Equal(t, []Step{StepImage, StepFacts}, r.Failed())
}

func TestAllSteps_Order(t *testing.T) {
	assert.Equal(t, []Step{StepNews, StepImage, StepFacts, StepHemispheres}, AllSteps())
}
