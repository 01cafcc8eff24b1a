package models

// NERMention is one recognised text span
type NERMention struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
}

// NERGroup collects mentions grounded to one ontology identifier
type NERGroup struct {
	ID        string       `json:"id"`
	DisplayID string       `json:"displayId"`
	Mentions  []NERMention `json:"mentions"`
	Terms     []string     `json:"terms"`
	Label     string       `json:"label"`
}

// AnnotateTextRequest is the body of POST /api/annotateText
type AnnotateTextRequest struct {
	Text string `json:"text"`
}

// AnnotateTextResponse echoes the text with its grounded groups
type AnnotateTextResponse struct {
	Text        string     `json:"text"`
	Annotations []NERGroup `json:"annotations"`
}
