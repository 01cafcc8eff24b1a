package library

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/seqimprove/seqimprove-go/pkg/models"
)

// catalogFile is the YAML manifest that names the bundled libraries and
// the registry collections they were exported from
type catalogFile struct {
	Libraries []models.CatalogEntry `yaml:"libraries"`
}

// Catalog maps remote collection URLs and local files to each other. A
// nil Catalog is empty.
type Catalog struct {
	byURI  map[string]models.CatalogEntry
	byFile map[string]models.CatalogEntry
}

// LoadCatalog reads a catalog manifest. An empty path yields an empty
// catalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return NewCatalog(nil), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read library catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog parses manifest YAML
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse library catalog: %w", err)
	}
	for i, e := range f.Libraries {
		if e.File == "" {
			return nil, fmt.Errorf("library catalog entry %d has no file", i)
		}
		if filepath.Base(e.File) != e.File {
			return nil, fmt.Errorf("library catalog entry %q must be a bare file name", e.File)
		}
	}
	return NewCatalog(f.Libraries), nil
}

// NewCatalog indexes entries
func NewCatalog(entries []models.CatalogEntry) *Catalog {
	c := &Catalog{
		byURI:  make(map[string]models.CatalogEntry),
		byFile: make(map[string]models.CatalogEntry),
	}
	for _, e := range entries {
		if e.URI != "" {
			c.byURI[strings.TrimSuffix(e.URI, "/")] = e
		}
		c.byFile[localName(e.File)] = e
	}
	return c
}

// FileFor returns the local identifier published for a collection URL
func (c *Catalog) FileFor(uri string) (string, bool) {
	if c == nil {
		return "", false
	}
	e, ok := c.byURI[strings.TrimSuffix(uri, "/")]
	if !ok {
		return "", false
	}
	return localName(e.File), true
}

// DisplayName returns the human name of a local library, if catalogued
func (c *Catalog) DisplayName(name string) string {
	if c == nil {
		return ""
	}
	return c.byFile[name].Name
}

// Len returns the number of catalogued libraries
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.byFile)
}
