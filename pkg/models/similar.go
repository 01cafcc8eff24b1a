package models

// SimilarPart is a registry part reported as similar to a design
type SimilarPart struct {
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// FindSimilarRequest is the body of POST /api/findSimilarParts
type FindSimilarRequest struct {
	TopLevelURI string `json:"topLevelUri"`
}

// FindSimilarResponse lists similar parts, empty on any failure
type FindSimilarResponse struct {
	SimilarParts []SimilarPart `json:"similarParts"`
}

// PluginRequest is the form SynBioHub posts to /evaluate and /run
type PluginRequest struct {
	CompleteSbol string                 `json:"complete_sbol,omitempty"`
	ShallowSbol  string                 `json:"shallow_sbol,omitempty"`
	Genbank      string                 `json:"genbank,omitempty"`
	TopLevel     string                 `json:"top_level,omitempty"`
	InstanceURL  string                 `json:"instanceUrl,omitempty"`
	Size         int                    `json:"size,omitempty"`
	Type         string                 `json:"type,omitempty"`
	SubmitLink   string                 `json:"submit_link,omitempty"`
	EvalParams   map[string]interface{} `json:"eval_params,omitempty"`
}
