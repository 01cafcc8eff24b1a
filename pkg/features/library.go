// Package features builds feature libraries from design documents and
// annotates target documents against them.
package features

import (
	"errors"
	"sort"
	"strings"

	"github.com/seqimprove/seqimprove-go/pkg/sbol"
)

// ErrNoDocuments is returned when a library is built from nothing
var ErrNoDocuments = errors.New("feature library needs at least one document")

// Feature is one library part with a DNA sequence
type Feature struct {
	URI       string
	DisplayID string
	Name      string
	Roles     []string
	Sequence  string // lower case
}

// Library is an immutable index of features. It is never mutated after
// Build returns and is safe for concurrent use.
type Library struct {
	features []Feature
}

// Build constructs a library from parsed documents. Component
// definitions without a DNA sequence are skipped.
func Build(docs []*sbol.Document) (*Library, error) {
	if len(docs) == 0 {
		return nil, ErrNoDocuments
	}

	seen := make(map[string]bool)
	lib := &Library{}
	for _, doc := range docs {
		seqs := doc.Sequences()
		for _, cd := range doc.ComponentDefinitions() {
			if !cd.IsDNA() || seen[cd.URI] {
				continue
			}
			elements := sequenceOf(cd, seqs)
			if elements == "" {
				continue
			}
			seen[cd.URI] = true
			lib.features = append(lib.features, Feature{
				URI:       cd.URI,
				DisplayID: cd.DisplayID,
				Name:      cd.Name(),
				Roles:     append([]string(nil), cd.Roles...),
				Sequence:  elements,
			})
		}
	}

	// longest first so nested hits resolve to the most specific part
	sort.SliceStable(lib.features, func(i, j int) bool {
		return len(lib.features[i].Sequence) > len(lib.features[j].Sequence)
	})
	return lib, nil
}

// Len returns the number of features
func (l *Library) Len() int {
	return len(l.features)
}

// Features returns a copy of the feature list
func (l *Library) Features() []Feature {
	out := make([]Feature, len(l.features))
	copy(out, l.features)
	return out
}

// sequenceOf returns the first resolvable sequence of cd, normalised to
// lower case with whitespace removed
func sequenceOf(cd sbol.ComponentDefinition, seqs map[string]sbol.Sequence) string {
	for _, uri := range cd.SequenceURIs {
		if seq, ok := seqs[uri]; ok && seq.Elements != "" {
			return normalize(seq.Elements)
		}
	}
	return ""
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), ""))
}

var complement = map[byte]byte{
	'a': 't', 't': 'a', 'g': 'c', 'c': 'g',
	'r': 'y', 'y': 'r', 'k': 'm', 'm': 'k',
	'b': 'v', 'v': 'b', 'd': 'h', 'h': 'd',
	's': 's', 'w': 'w', 'n': 'n', 'u': 'a',
}

func reverseComplement(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c, ok := complement[s[i]]
		if !ok {
			c = s[i]
		}
		out[len(s)-1-i] = c
	}
	return string(out)
}
