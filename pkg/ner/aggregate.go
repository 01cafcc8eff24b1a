// Package ner talks to the biomedical named-entity recognition service
// and groups its mentions by ontology identifier.
package ner

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/seqimprove/seqimprove-go/pkg/models"
)

// UngroundedID is the identifier the recognizer assigns to mentions it
// could not ground in any ontology
const UngroundedID = "CUI-less"

// OntologyLinkPrefix is prepended to identifiers to form group links
const OntologyLinkPrefix = "https://identifiers.org/"

var (
	// ErrMalformedResponse is returned when the recognizer's reply cannot
	// be decoded
	ErrMalformedResponse = errors.New("malformed recognizer response")
	// ErrEmptyMentions means a group was created without any mention,
	// which the grouping never does
	ErrEmptyMentions = errors.New("entity group has no mentions")
)

// Aggregation is the grouped form of a recognizer reply
type Aggregation struct {
	Groups     []models.NERGroup
	Ungrounded []models.NERMention
}

type recognizerReply struct {
	Annotations *[]recognizedEntity `json:"annotations"`
}

type recognizedEntity struct {
	ID      []string `json:"id"`
	Mention string   `json:"mention"`
	Prob    float64  `json:"prob"`
	Span    struct {
		Begin int `json:"begin"`
		End   int `json:"end"`
	} `json:"span"`
}

// Aggregate groups the mentions of a raw recognizer reply by identifier.
// Groups come out in the order their identifier was first seen. An entity
// carrying several identifiers contributes a mention to each of them.
// Ungrounded mentions are returned separately and never form a group.
func Aggregate(raw []byte) (*Aggregation, error) {
	var reply recognizerReply
	if err := json.Unmarshal(ReplaceNaN(raw), &reply); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if reply.Annotations == nil {
		return nil, fmt.Errorf("%w: no annotations field", ErrMalformedResponse)
	}

	var (
		order  []string
		groups = make(map[string]*models.NERGroup)
	)
	for _, entity := range *reply.Annotations {
		mention := models.NERMention{
			Text:       entity.Mention,
			Confidence: entity.Prob,
			Start:      entity.Span.Begin,
			End:        entity.Span.End,
		}
		for _, id := range entity.ID {
			g, ok := groups[id]
			if !ok {
				g = &models.NERGroup{
					ID:        OntologyLinkPrefix + id,
					DisplayID: id,
				}
				groups[id] = g
				order = append(order, id)
			}
			g.Mentions = append(g.Mentions, mention)
		}
	}

	agg := &Aggregation{Groups: make([]models.NERGroup, 0, len(order))}
	for _, id := range order {
		g := groups[id]
		if id == UngroundedID {
			agg.Ungrounded = append(agg.Ungrounded, g.Mentions...)
			continue
		}
		if err := addTerms(g); err != nil {
			return nil, err
		}
		agg.Groups = append(agg.Groups, *g)
	}
	return agg, nil
}

// addTerms fills in the unique mention texts, in first-seen order, and
// the label
func addTerms(g *models.NERGroup) error {
	if len(g.Mentions) == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyMentions, g.DisplayID)
	}
	seen := make(map[string]bool, len(g.Mentions))
	g.Terms = g.Terms[:0]
	for _, m := range g.Mentions {
		if !seen[m.Text] {
			seen[m.Text] = true
			g.Terms = append(g.Terms, m.Text)
		}
	}
	g.Label = g.Terms[0]
	return nil
}

// ReplaceNaN rewrites bare NaN tokens, which the recognizer emits for
// missing probabilities, to 0 so the reply is valid JSON. Occurrences
// inside string literals are left alone.
func ReplaceNaN(raw []byte) []byte {
	out := make([]byte, 0, len(raw))
	inString := false
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if inString {
			out = append(out, c)
			switch c {
			case '\\':
				if i+1 < len(raw) {
					i++
					out = append(out, raw[i])
				}
			case '"':
				inString = false
			}
			continue
		}
		switch {
		case c == '"':
			inString = true
			out = append(out, c)
		case c == 'N' && i+2 < len(raw) && raw[i+1] == 'a' && raw[i+2] == 'N':
			out = append(out, '0')
			i += 2
		default:
			out = append(out, c)
		}
	}
	return out
}
