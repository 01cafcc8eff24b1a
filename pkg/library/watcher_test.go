package library

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherReloadsAndUnloads(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(Options{Dir: dir})

	w, err := NewWatcher(store, 20*time.Millisecond, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	path := writeFile(t, dir, "watched.xml", []byte(libraryText(t, "http://lib.example", map[string]string{"J23100": "ttgacggctagctcagtcctaggtacagtgctagc"})))
	assert.Eventually(t, func() bool { return store.Contains("watched.xml") }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.Remove(path))
	assert.Eventually(t, func() bool { return !store.Contains("watched.xml") }, 2*time.Second, 10*time.Millisecond)
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	assert.True(t, isLibraryFile("/x/lib.xml"))
	assert.True(t, isLibraryFile("/x/lib.xml.gz"))
	assert.True(t, isLibraryFile("/x/lib.sbol.gz"))
	assert.True(t, isLibraryFile("/x/lib.rdf"))
	assert.False(t, isLibraryFile("/x/.lib.xml.swp"))
	assert.False(t, isLibraryFile("/x/lib.xml~"))
	assert.False(t, isLibraryFile(filepath.Join("x", "README.md")))
	assert.False(t, isLibraryFile("/x/notes.txt.gz"))
}
