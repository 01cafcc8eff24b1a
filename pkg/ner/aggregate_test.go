package ner

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/seqimprove/seqimprove-go/pkg/models"
)

func TestAggregateDropsUngrounded(t *testing.T) {
	raw := `{"annotations":[{"id":["CUI-less"],"mention":"foo","prob":0.9,"span":{"begin":0,"end":3}},{"id":["X1"],"mention":"bar","prob":0.8,"span":{"begin":4,"end":7}}]}`

	agg, err := Aggregate([]byte(raw))
	require.NoError(t, err)

	assert.Equal(t, []models.NERGroup{{
		ID:        "https://identifiers.org/X1",
		DisplayID: "X1",
		Mentions:  []models.NERMention{{Text: "bar", Confidence: 0.8, Start: 4, End: 7}},
		Terms:     []string{"bar"},
		Label:     "bar",
	}}, agg.Groups)
	assert.Equal(t, []models.NERMention{{Text: "foo", Confidence: 0.9, Start: 0, End: 3}}, agg.Ungrounded)
}

func TestAggregateGroupsById(t *testing.T) {
	raw := `{"annotations":[
		{"id":["mesh:D003920"],"mention":"diabetes","prob":0.99,"span":{"begin":0,"end":8}},
		{"id":["NCBITaxon:562"],"mention":"E. coli","prob":0.95,"span":{"begin":10,"end":17}},
		{"id":["mesh:D003920","CUI-less"],"mention":"Diabetes","prob":NaN,"span":{"begin":20,"end":28}},
		{"id":["mesh:D003920"],"mention":"diabetes","prob":0.97,"span":{"begin":30,"end":38}}
	]}`

	agg, err := Aggregate([]byte(raw))
	require.NoError(t, err)
	require.Len(t, agg.Groups, 2)

	diabetes := agg.Groups[0]
	assert.Equal(t, "mesh:D003920", diabetes.DisplayID)
	assert.Equal(t, "https://identifiers.org/mesh:D003920", diabetes.ID)
	require.Len(t, diabetes.Mentions, 3)
	assert.Equal(t, 0, diabetes.Mentions[0].Start)
	assert.Equal(t, 20, diabetes.Mentions[1].Start)
	assert.Equal(t, 0.0, diabetes.Mentions[1].Confidence)
	assert.Equal(t, 30, diabetes.Mentions[2].Start)
	assert.Equal(t, []string{"diabetes", "Diabetes"}, diabetes.Terms)
	assert.Equal(t, "diabetes", diabetes.Label)

	assert.Equal(t, "NCBITaxon:562", agg.Groups[1].DisplayID)
	assert.Len(t, agg.Ungrounded, 1)
}

func TestAggregateEmpty(t *testing.T) {
	agg, err := Aggregate([]byte(`{"annotations":[],"text":"nothing here"}`))
	require.NoError(t, err)
	assert.Empty(t, agg.Groups)
	assert.NotNil(t, agg.Groups)
}

func TestAggregateMalformed(t *testing.T) {
	for _, raw := range []string{``, `not json`, `{"text":"no annotations"}`, `{"annotations":{}}`} {
		_, err := Aggregate([]byte(raw))
		assert.True(t, errors.Is(err, ErrMalformedResponse), "input %q", raw)
	}
}

func TestAddTermsRejectsEmptyGroup(t *testing.T) {
	err := addTerms(&models.NERGroup{DisplayID: "X"})
	assert.True(t, errors.Is(err, ErrEmptyMentions))
}

func TestReplaceNaN(t *testing.T) {
	tests := map[string]string{
		`{"prob":NaN}`:                      `{"prob":0}`,
		`[NaN,NaN]`:                         `[0,0]`,
		`{"mention":"NaN","prob":NaN}`:      `{"mention":"NaN","prob":0}`,
		`{"mention":"say \"NaN\"","p":NaN}`: `{"mention":"say \"NaN\"","p":0}`,
		`{"x":"\\","p":NaN}`:                `{"x":"\\","p":0}`,
		`{"Na":1}`:                          `{"Na":1}`,
	}
	for in, want := range tests {
		assert.Equal(t, want, string(ReplaceNaN([]byte(in))), in)
	}
}

type entity struct {
	ID      []string `json:"id"`
	Mention string   `json:"mention"`
	Prob    float64  `json:"prob"`
	Span    struct {
		Begin int `json:"begin"`
		End   int `json:"end"`
	} `json:"span"`
}

func drawEntities(rt *rapid.T) []entity {
	ids := rapid.SliceOfN(rapid.SampledFrom([]string{"X1", "X2", "mesh:D1", UngroundedID}), 1, 3)
	return rapid.SliceOfN(rapid.Custom(func(rt *rapid.T) entity {
		e := entity{
			ID:      ids.Draw(rt, "ids"),
			Mention: rapid.SampledFrom([]string{"foo", "bar", "baz", "NaN"}).Draw(rt, "mention"),
			Prob:    rapid.Float64Range(0, 1).Draw(rt, "prob"),
		}
		e.Span.Begin = rapid.IntRange(0, 100).Draw(rt, "begin")
		e.Span.End = e.Span.Begin + len(e.Mention)
		return e
	}), 0, 20).Draw(rt, "entities")
}

func TestAggregateProperties(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		entities := drawEntities(rt)
		raw, err := json.Marshal(map[string]interface{}{"annotations": entities})
		if err != nil {
			rt.Fatal(err)
		}

		agg, err := Aggregate(raw)
		if err != nil {
			rt.Fatal(err)
		}

		// expected first-seen order and mention counts
		var order []string
		counts := make(map[string]int)
		for _, e := range entities {
			for _, id := range e.ID {
				if id == UngroundedID {
					continue
				}
				if counts[id] == 0 {
					order = append(order, id)
				}
				counts[id]++
			}
		}

		if len(agg.Groups) != len(order) {
			rt.Fatalf("got %d groups, want %d", len(agg.Groups), len(order))
		}
		for i, g := range agg.Groups {
			if g.DisplayID != order[i] {
				rt.Fatalf("group %d is %s, want %s", i, g.DisplayID, order[i])
			}
			if g.DisplayID == UngroundedID {
				rt.Fatal("ungrounded group in output")
			}
			if len(g.Mentions) != counts[g.DisplayID] {
				rt.Fatalf("group %s has %d mentions, want %d", g.DisplayID, len(g.Mentions), counts[g.DisplayID])
			}
			if len(g.Terms) == 0 || g.Label != g.Terms[0] {
				rt.Fatalf("label %q does not lead terms %v", g.Label, g.Terms)
			}
			seen := make(map[string]bool)
			for _, term := range g.Terms {
				if seen[term] {
					rt.Fatalf("duplicate term %q", term)
				}
				seen[term] = true
			}
			if g.ID != OntologyLinkPrefix+g.DisplayID {
				rt.Fatalf("bad link %s", g.ID)
			}
		}
	})
}
