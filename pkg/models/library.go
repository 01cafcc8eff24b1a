package models

import (
	"fmt"
	"time"
)

// LibraryOrigin records how a library entered the registry
type LibraryOrigin string

const (
	LibraryOriginPreload LibraryOrigin = "preload"
	LibraryOriginImport  LibraryOrigin = "import"
	LibraryOriginWatch   LibraryOrigin = "watch"
)

// LibraryInfo describes a registry entry
type LibraryInfo struct {
	Identifier   string        `json:"identifier"`
	Kind         string        `json:"kind"`
	DisplayName  string        `json:"display_name,omitempty"`
	Origin       LibraryOrigin `json:"origin"`
	Source       string        `json:"source,omitempty"`
	FeatureCount int           `json:"feature_count"`
	LoadedAt     time.Time     `json:"loaded_at"`
}

// LibraryImportRequest is the body of POST /api/importLibrary
type LibraryImportRequest struct {
	URL        string `json:"url"`
	Token      string `json:"token,omitempty"`
	Identifier string `json:"identifier,omitempty"` // defaults to URL
}

// Validate validates a library import request
func (r *LibraryImportRequest) Validate() error {
	if r.URL == "" {
		return fmt.Errorf("url is required")
	}
	return nil
}

// LibraryImportResponse returns the fetched document
type LibraryImportResponse struct {
	Identifier string `json:"identifier"`
	Sbol       string `json:"sbol"`
}

// LibraryDeleteRequest is the body of POST /api/deleteLibrary
type LibraryDeleteRequest struct {
	Identifier string `json:"identifier"`
}

// CatalogEntry maps a curated library to its local file and remote
// collection URI
type CatalogEntry struct {
	Name string `json:"name" yaml:"name"`
	File string `json:"file" yaml:"file"`
	URI  string `json:"uri,omitempty" yaml:"uri,omitempty"`
}

// LibraryDeleteResponse confirms a removal
type LibraryDeleteResponse struct {
	Message string `json:"message"`
}
