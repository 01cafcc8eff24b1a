package features

import (
	"context"
	"fmt"
	"strings"

	"github.com/seqimprove/seqimprove-go/pkg/sbol"
)

// Options control an annotation pass
type Options struct {
	MinFeatureLength int
	MinTargetLength  int
	InPlace          bool
}

// DefaultOptions are the lengths the service has always used
func DefaultOptions() Options {
	return Options{MinFeatureLength: 10, MinTargetLength: 10, InPlace: true}
}

// Annotator finds library features in a target document and records
// them as sequence annotations. It returns the URIs of the component
// definitions that received new annotations.
type Annotator interface {
	Annotate(ctx context.Context, lib *Library, target *sbol.Document, opts Options) ([]string, error)
}

// Matcher is the built-in Annotator. It looks for exact occurrences of
// each feature, forward and reverse complement, in every DNA component
// of the target.
type Matcher struct{}

// NewMatcher creates a matcher
func NewMatcher() *Matcher {
	return &Matcher{}
}

// Annotate implements Annotator. With opts.InPlace unset the target is
// left untouched and the annotations are applied to a copy that is
// discarded, which is only useful for counting matches.
func (m *Matcher) Annotate(ctx context.Context, lib *Library, target *sbol.Document, opts Options) ([]string, error) {
	if lib == nil {
		return nil, fmt.Errorf("nil feature library")
	}
	doc := target
	if !opts.InPlace {
		doc = target.Copy()
	}

	seqs := doc.Sequences()
	var annotated []string
	for _, cd := range doc.ComponentDefinitions() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !cd.IsDNA() {
			continue
		}
		elements := sequenceOf(cd, seqs)
		if len(elements) < opts.MinTargetLength {
			continue
		}

		added, err := m.annotateComponent(doc, cd, elements, lib, opts)
		if err != nil {
			return nil, err
		}
		if added > 0 {
			annotated = append(annotated, cd.URI)
		}
	}
	return annotated, nil
}

type span struct {
	start, end int // one-based inclusive
	reverse    bool
	feature    string
}

func (m *Matcher) annotateComponent(doc *sbol.Document, cd sbol.ComponentDefinition, elements string, lib *Library, opts Options) (int, error) {
	existing := make(map[span]bool)
	for _, a := range cd.Annotations {
		for _, r := range a.Ranges {
			for _, src := range a.DerivedFrom {
				existing[span{start: r.Start, end: r.End, reverse: r.Orientation == sbol.OrientationReverse, feature: src}] = true
			}
		}
	}

	added := 0
	for _, f := range lib.features {
		if len(f.Sequence) < opts.MinFeatureLength || len(f.Sequence) > len(elements) || f.URI == cd.URI {
			continue
		}

		hits := findAll(elements, f.Sequence, false)
		if rc := reverseComplement(f.Sequence); rc != f.Sequence {
			hits = append(hits, findAll(elements, rc, true)...)
		}

		for _, h := range hits {
			h.feature = f.URI
			if existing[h] {
				continue
			}
			orientation := sbol.OrientationInline
			if h.reverse {
				orientation = sbol.OrientationReverse
			}
			if _, err := doc.AddSequenceAnnotation(cd.URI, sbol.NewAnnotation{
				DisplayID:   f.DisplayID,
				Name:        f.Name,
				Roles:       f.Roles,
				DerivedFrom: f.URI,
				Range:       sbol.Range{Start: h.start, End: h.end, Orientation: orientation},
			}); err != nil {
				return added, err
			}
			existing[h] = true
			added++
		}
	}
	return added, nil
}

// findAll returns every (possibly overlapping) occurrence of needle
func findAll(haystack, needle string, reverse bool) []span {
	var out []span
	for offset := 0; offset+len(needle) <= len(haystack); {
		i := strings.Index(haystack[offset:], needle)
		if i < 0 {
			break
		}
		pos := offset + i
		out = append(out, span{start: pos + 1, end: pos + len(needle), reverse: reverse})
		offset = pos + 1
	}
	return out
}
