package features

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seqimprove/seqimprove-go/pkg/sbol"
)

const (
	promoter   = "ttgacggctagctcagtcctaggtacagtgctagc"
	rbs        = "aaagaggagaaatactag"
	terminator = "ccaggcatcaaataaaacgaaaggctcagtcgaaagactgggcctttcgtttta"
	shortPart  = "acgtac"
)

func libraryDoc() *sbol.Document {
	doc := sbol.NewDocument()
	doc.AddComponent(sbol.ComponentSpec{Namespace: "http://lib.example", DisplayID: "J23100", Version: "1", Title: "J23100", Roles: []string{"http://identifiers.org/so/SO:0000167"}, Elements: promoter})
	doc.AddComponent(sbol.ComponentSpec{Namespace: "http://lib.example", DisplayID: "B0034", Version: "1", Title: "B0034", Roles: []string{"http://identifiers.org/so/SO:0000139"}, Elements: rbs})
	doc.AddComponent(sbol.ComponentSpec{Namespace: "http://lib.example", DisplayID: "B0015", Version: "1", Elements: terminator})
	doc.AddComponent(sbol.ComponentSpec{Namespace: "http://lib.example", DisplayID: "tiny", Version: "1", Elements: shortPart})
	return doc
}

func targetDoc(elements string) (*sbol.Document, string) {
	doc := sbol.NewDocument()
	uri := doc.AddComponent(sbol.ComponentSpec{Namespace: "http://design.example", DisplayID: "device", Version: "1", Elements: elements})
	return doc, uri
}

func TestBuild(t *testing.T) {
	lib, err := Build([]*sbol.Document{libraryDoc()})
	require.NoError(t, err)
	assert.Equal(t, 4, lib.Len())

	// longest first
	fs := lib.Features()
	assert.Equal(t, "B0015", fs[0].DisplayID)
	assert.Equal(t, "tiny", fs[3].DisplayID)

	_, err = Build(nil)
	assert.ErrorIs(t, err, ErrNoDocuments)
}

func TestMatcherAnnotatesForwardAndReverse(t *testing.T) {
	lib, err := Build([]*sbol.Document{libraryDoc()})
	require.NoError(t, err)

	design := promoter + "gg" + rbs + "tt" + reverseComplement(terminator) + shortPart
	target, uri := targetDoc(design)

	annotated, err := NewMatcher().Annotate(context.Background(), lib, target, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{uri}, annotated)

	anns := target.ComponentDefinitions()[0].Annotations
	require.Len(t, anns, 3, "short feature must be ignored")

	byName := make(map[string]sbol.SequenceAnnotation)
	for _, a := range anns {
		byName[a.DisplayID] = a
	}

	p := byName["J23100"]
	assert.Equal(t, []sbol.Range{{Start: 1, End: len(promoter), Orientation: sbol.OrientationInline}}, p.Ranges)
	assert.Equal(t, []string{"http://lib.example/J23100/1"}, p.DerivedFrom)

	r := byName["B0034"]
	rbsStart := len(promoter) + 2 + 1
	assert.Equal(t, rbsStart, r.Ranges[0].Start)
	assert.Equal(t, rbsStart+len(rbs)-1, r.Ranges[0].End)

	term := byName["B0015"]
	assert.Equal(t, sbol.OrientationReverse, term.Ranges[0].Orientation)
}

func TestMatcherIsIdempotent(t *testing.T) {
	lib, err := Build([]*sbol.Document{libraryDoc()})
	require.NoError(t, err)
	target, _ := targetDoc(promoter + rbs)

	m := NewMatcher()
	_, err = m.Annotate(context.Background(), lib, target, DefaultOptions())
	require.NoError(t, err)
	annotated, err := m.Annotate(context.Background(), lib, target, DefaultOptions())
	require.NoError(t, err)

	assert.Empty(t, annotated)
	assert.Len(t, target.ComponentDefinitions()[0].Annotations, 2)
}

func TestMatcherRespectsTargetLength(t *testing.T) {
	lib, err := Build([]*sbol.Document{libraryDoc()})
	require.NoError(t, err)
	target, _ := targetDoc(rbs)

	opts := DefaultOptions()
	opts.MinTargetLength = len(rbs) + 1
	annotated, err := NewMatcher().Annotate(context.Background(), lib, target, opts)
	require.NoError(t, err)
	assert.Empty(t, annotated)
}

func TestMatcherNotInPlace(t *testing.T) {
	lib, err := Build([]*sbol.Document{libraryDoc()})
	require.NoError(t, err)
	target, uri := targetDoc(promoter)

	opts := DefaultOptions()
	opts.InPlace = false
	annotated, err := NewMatcher().Annotate(context.Background(), lib, target, opts)
	require.NoError(t, err)
	assert.Equal(t, []string{uri}, annotated)
	assert.Empty(t, target.ComponentDefinitions()[0].Annotations)
}

func TestMatcherHonoursCancellation(t *testing.T) {
	lib, err := Build([]*sbol.Document{libraryDoc()})
	require.NoError(t, err)
	target, _ := targetDoc(promoter)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewMatcher().Annotate(ctx, lib, target, DefaultOptions())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFindAllOverlapping(t *testing.T) {
	hits := findAll("aaaa", "aa", false)
	assert.Equal(t, []span{{start: 1, end: 2}, {start: 2, end: 3}, {start: 3, end: 4}}, hits)
	assert.Equal(t, "gcat", reverseComplement("atgc"))
}
