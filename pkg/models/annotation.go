package models

import (
	"encoding/json"
	"fmt"
)

// AnnotateSequenceRequest is the body of POST /api/annotateSequence
type AnnotateSequenceRequest struct {
	CompleteSbolContent string   `json:"completeSbolContent"`
	PartLibraries       []string `json:"partLibraries"`
	CleanSBOL           bool     `json:"cleanSBOL,omitempty"`
}

// Validate validates an annotate-sequence request
func (r *AnnotateSequenceRequest) Validate() error {
	if r.CompleteSbolContent == "" {
		return fmt.Errorf("completeSbolContent is required")
	}
	return nil
}

// AnnotatedDocument pairs a serialized annotated document with the
// library identifier it was annotated against
type AnnotatedDocument struct {
	Document string
	Library  string
}

// MarshalJSON encodes the pair as a two element array [document, library]
func (a AnnotatedDocument) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{a.Document, a.Library})
}

// UnmarshalJSON decodes the two element array form
func (a *AnnotatedDocument) UnmarshalJSON(data []byte) error {
	var pair [2]string
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	a.Document, a.Library = pair[0], pair[1]
	return nil
}

// LibraryFailure records a library that could not be processed in
// partial-results mode
type LibraryFailure struct {
	Library string `json:"library"`
	Error   string `json:"error"`
}

// AnnotateSequenceResponse is the success body of POST /api/annotateSequence
type AnnotateSequenceResponse struct {
	RunID       string              `json:"runId,omitempty"`
	Annotations []AnnotatedDocument `json:"annotations"`
	Failures    []LibraryFailure    `json:"failures,omitempty"`
}

// AnnotateSequenceError is the failure body of POST /api/annotateSequence
type AnnotateSequenceError struct {
	Sbol         string `json:"sbol"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// CleanRequest is the body of POST /api/cleanSBOL
type CleanRequest struct {
	Sbol      string `json:"sbol"`
	Namespace string `json:"namespace,omitempty"`
}

// ConvertRequest is the body of POST /api/convert
type ConvertRequest struct {
	Content string `json:"content"`
	From    string `json:"from"`
	To      string `json:"to"`
}

// Validate validates a convert request
func (r *ConvertRequest) Validate() error {
	if r.Content == "" {
		return fmt.Errorf("content is required")
	}
	if r.To == "" {
		return fmt.Errorf("target format is required")
	}
	return nil
}

// CleanResponse is the success body of POST /api/cleanSBOL
type CleanResponse struct {
	Sbol string `json:"sbol"`
}

// ConvertResponse is the success body of POST /api/convert
type ConvertResponse struct {
	Content string `json:"content"`
	Format  string `json:"format"`
}
