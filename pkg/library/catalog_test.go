package library

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalogYAML = `libraries:
  - name: Anderson Promoters
    file: Anderson_Promoters_Anderson_Lab_collection.xml
    uri: https://synbiohub.org/public/Anderson_Promoters/Anderson_Promoters_collection/1
  - name: Cello Parts
    file: cello_library.xml.gz
`

func TestParseCatalog(t *testing.T) {
	c, err := ParseCatalog([]byte(catalogYAML))
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())

	name, ok := c.FileFor("https://synbiohub.org/public/Anderson_Promoters/Anderson_Promoters_collection/1/")
	require.True(t, ok)
	assert.Equal(t, "Anderson_Promoters_Anderson_Lab_collection.xml", name)

	_, ok = c.FileFor("https://synbiohub.org/public/other/other_collection/1")
	assert.False(t, ok)

	assert.Equal(t, "Cello Parts", c.DisplayName("cello_library.xml"))
	assert.Equal(t, "", c.DisplayName("unknown.xml"))
}

func TestParseCatalogRejectsBadEntries(t *testing.T) {
	_, err := ParseCatalog([]byte("libraries:\n  - name: x\n"))
	assert.Error(t, err)

	_, err = ParseCatalog([]byte("libraries:\n  - file: ../escape.xml\n"))
	assert.Error(t, err)

	_, err = ParseCatalog([]byte("libraries: [unterminated"))
	assert.Error(t, err)
}

func TestLoadCatalog(t *testing.T) {
	c, err := LoadCatalog("")
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len())

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(catalogYAML), 0644))
	c, err = LoadCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())

	_, err = LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestNilCatalog(t *testing.T) {
	var c *Catalog
	_, ok := c.FileFor("https://x/y")
	assert.False(t, ok)
	assert.Equal(t, "", c.DisplayName("a.xml"))
	assert.Equal(t, 0, c.Len())
}
