package library

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seqimprove/seqimprove-go/pkg/models"
	"github.com/seqimprove/seqimprove-go/pkg/sbol"
)

// libraryText builds a serialized library with one feature per sequence
func libraryText(t *testing.T, namespace string, seqs map[string]string) string {
	t.Helper()
	doc := sbol.NewDocument()
	for id, elements := range seqs {
		doc.AddComponent(sbol.ComponentSpec{Namespace: namespace, DisplayID: id, Version: "1", Elements: elements})
	}
	text, err := doc.Serialize()
	require.NoError(t, err)
	return text
}

func gzipped(t *testing.T, text string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(text))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func newTestStore(dir string, opts Options) *Store {
	opts.Dir = dir
	return NewStore(opts)
}

func TestPreload(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "promoters.xml", []byte(libraryText(t, "http://lib.example", map[string]string{"J23100": "ttgacggctagctcagtcctaggtacagtgctagc"})))
	writeFile(t, dir, "rbs.xml.gz", gzipped(t, libraryText(t, "http://lib.example", map[string]string{"B0034": "aaagaggagaaatactag", "B0032": "tcacacaggaaagtactag"})))
	writeFile(t, dir, ".hidden", []byte("ignored"))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0755))

	store := newTestStore(dir, Options{Concurrency: 2})
	require.NoError(t, store.Preload(context.Background()))
	assert.Equal(t, 2, store.Len())

	lib, err := store.Resolve("promoters.xml")
	require.NoError(t, err)
	assert.Equal(t, 1, lib.Len())

	lib, err = store.Resolve("rbs.xml")
	require.NoError(t, err)
	assert.Equal(t, 2, lib.Len())

	infos := store.List()
	require.Len(t, infos, 2)
	assert.Equal(t, "promoters.xml", infos[0].Identifier)
	assert.Equal(t, models.LibraryOriginPreload, infos[0].Origin)
	assert.Equal(t, "local", infos[0].Kind)
}

func TestPreloadMissingDirectory(t *testing.T) {
	store := newTestStore(filepath.Join(t.TempDir(), "nope"), Options{})
	assert.Error(t, store.Preload(context.Background()))
}

func TestPreloadInvalidFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "good.xml", []byte(libraryText(t, "http://lib.example", map[string]string{"J23100": "ttgacggctagctcagtcctaggtacagtgctagc"})))
	writeFile(t, dir, "bad.xml", []byte("<rdf:RDF"))

	strict := newTestStore(dir, Options{})
	err := strict.Preload(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrParseFailed))
	assert.Equal(t, 0, strict.Len())

	lenient := newTestStore(dir, Options{SkipInvalid: true})
	require.NoError(t, lenient.Preload(context.Background()))
	assert.True(t, lenient.Contains("good.xml"))
	assert.False(t, lenient.Contains("bad.xml"))
}

func TestPreloadIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "promoters.xml", []byte(libraryText(t, "http://lib.example", map[string]string{"J23100": "ttgacggctagctcagtcctaggtacagtgctagc"})))
	writeFile(t, dir, "README.md", []byte("# feature libraries"))
	writeFile(t, dir, "catalog.yaml", []byte("libraries: []"))

	store := newTestStore(dir, Options{})
	require.NoError(t, store.Preload(context.Background()))
	assert.Equal(t, 1, store.Len())
	assert.True(t, store.Contains("promoters.xml"))
}

func TestPreloadRejectsDuplicateNames(t *testing.T) {
	dir := t.TempDir()
	text := libraryText(t, "http://lib.example", map[string]string{"B0034": "aaagaggagaaatactag"})
	writeFile(t, dir, "rbs.xml", []byte(text))
	writeFile(t, dir, "rbs.xml.gz", gzipped(t, text))

	for _, skip := range []bool{false, true} {
		store := newTestStore(dir, Options{SkipInvalid: skip})
		err := store.Preload(context.Background())
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrDuplicateFile))
		assert.Equal(t, 0, store.Len())
	}
}

func TestLoadFileRejectsDuplicateName(t *testing.T) {
	dir := t.TempDir()
	text := libraryText(t, "http://lib.example", map[string]string{"B0034": "aaagaggagaaatactag"})
	plain := writeFile(t, dir, "rbs.xml", []byte(text))
	store := newTestStore(dir, Options{})
	require.NoError(t, store.Preload(context.Background()))

	compressed := writeFile(t, dir, "rbs.xml.gz", gzipped(t, text))
	_, err := store.LoadFile(compressed, models.LibraryOriginWatch)
	assert.True(t, errors.Is(err, ErrDuplicateFile))

	// once the first file is gone the name is free again
	require.NoError(t, os.Remove(plain))
	id, err := store.LoadFile(compressed, models.LibraryOriginWatch)
	require.NoError(t, err)
	assert.Equal(t, "rbs.xml", id.Raw)

	// reloading the same file is not a duplicate
	_, err = store.LoadFile(compressed, models.LibraryOriginWatch)
	assert.NoError(t, err)
}

func TestResolveRemoteFallback(t *testing.T) {
	dir := t.TempDir()
	text := libraryText(t, "http://lib.example", map[string]string{"J23100": "ttgacggctagctcagtcctaggtacagtgctagc"})
	writeFile(t, dir, "Anderson_Promoters_collection.xml", []byte(text))
	writeFile(t, dir, "anderson_local.xml", []byte(text))

	catalog := NewCatalog([]models.CatalogEntry{{Name: "Anderson", File: "anderson_local.xml", URI: "https://synbiohub.org/public/catalogued/catalogued_collection/1"}})
	store := newTestStore(dir, Options{Catalog: catalog})
	require.NoError(t, store.Preload(context.Background()))

	_, err := store.Resolve("https://synbiohub.org/public/Anderson_Promoters/Anderson_Promoters_collection/1")
	assert.NoError(t, err, "display id fallback")

	_, err = store.Resolve("https://synbiohub.org/public/catalogued/catalogued_collection/1")
	assert.NoError(t, err, "catalog fallback")

	_, err = store.Resolve("https://synbiohub.org/public/unknown/unknown_collection/1")
	assert.True(t, errors.Is(err, ErrNotFound))

	// local identifiers are exact
	_, err = store.Resolve("ANDERSON_LOCAL.XML")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = store.Resolve(" anderson_local.xml")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestImport(t *testing.T) {
	text := libraryText(t, "https://synbiohub.org/user/me/lib", map[string]string{"B0034": "aaagaggagaaatactag"})

	var gotToken atomic.Value
	gotToken.Store("")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken.Store(r.Header.Get("X-authorization"))
		switch r.URL.Path {
		case "/lib/lib_collection/1":
			w.Write([]byte(text))
		case "/gz/gz_collection/1":
			w.Header().Set("Content-Encoding", "gzip")
			w.Write(gzipped(t, text))
		case "/broken/broken_collection/1":
			w.Write([]byte("<html>login</html>"))
		default:
			http.Error(w, "forbidden", http.StatusForbidden)
		}
	}))
	defer srv.Close()

	store := newTestStore(t.TempDir(), Options{Fetcher: NewHTTPFetcher(5 * time.Second)})
	ctx := context.Background()

	url := srv.URL + "/lib/lib_collection/1"
	got, err := store.Import(ctx, url, url, "secret-token")
	require.NoError(t, err)
	assert.Equal(t, text, got)
	assert.Equal(t, "secret-token", gotToken.Load())

	lib, err := store.Resolve(url)
	require.NoError(t, err)
	assert.Equal(t, 1, lib.Len())

	// identifier defaults to the URL and gzip responses are decoded
	gzURL := srv.URL + "/gz/gz_collection/1"
	_, err = store.Import(ctx, "", gzURL, "")
	require.NoError(t, err)
	assert.True(t, store.Contains(gzURL))

	_, err = store.Import(ctx, "denied", srv.URL+"/private/1", "")
	assert.True(t, errors.Is(err, ErrFetchFailed))
	assert.False(t, store.Contains("denied"))

	_, err = store.Import(ctx, "broken", srv.URL+"/broken/broken_collection/1", "")
	assert.True(t, errors.Is(err, ErrParseFailed))
	assert.False(t, store.Contains("broken"))

	infos := store.List()
	require.Len(t, infos, 2)
	for _, info := range infos {
		assert.Equal(t, models.LibraryOriginImport, info.Origin)
		assert.Equal(t, "remote", info.Kind)
	}
}

func TestImportReplacesExisting(t *testing.T) {
	v1 := libraryText(t, "http://lib.example", map[string]string{"a": "aaagaggagaaatactag"})
	v2 := libraryText(t, "http://lib.example", map[string]string{"a": "aaagaggagaaatactag", "b": "tcacacaggaaagtactag"})
	var body atomic.Value
	body.Store(v1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body.Load().(string)))
	}))
	defer srv.Close()

	store := newTestStore(t.TempDir(), Options{Fetcher: NewHTTPFetcher(5 * time.Second)})
	_, err := store.Import(context.Background(), "mine", srv.URL, "")
	require.NoError(t, err)
	before, err := store.Resolve("mine")
	require.NoError(t, err)

	body.Store(v2)
	_, err = store.Import(context.Background(), "mine", srv.URL, "")
	require.NoError(t, err)
	after, err := store.Resolve("mine")
	require.NoError(t, err)

	assert.Equal(t, 1, before.Len(), "earlier reference is unchanged")
	assert.Equal(t, 2, after.Len())
	assert.Equal(t, 1, store.Len())
}

func TestRemove(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "promoters.xml", []byte(libraryText(t, "http://lib.example", map[string]string{"J23100": "ttgacggctagctcagtcctaggtacagtgctagc"})))
	store := newTestStore(dir, Options{})
	require.NoError(t, store.Preload(context.Background()))

	held, err := store.Resolve("promoters.xml")
	require.NoError(t, err)

	require.NoError(t, store.Remove("promoters.xml"))
	_, err = store.Resolve("promoters.xml")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, 1, held.Len(), "in-flight reference stays usable")

	err = store.Remove("promoters.xml")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLoadAndUnloadFile(t *testing.T) {
	dir := t.TempDir()
	store := newTestStore(dir, Options{})
	path := writeFile(t, dir, "new.xml", []byte(libraryText(t, "http://lib.example", map[string]string{"J23100": "ttgacggctagctcagtcctaggtacagtgctagc"})))

	id, err := store.LoadFile(path, models.LibraryOriginWatch)
	require.NoError(t, err)
	assert.Equal(t, "new.xml", id.Raw)
	assert.True(t, store.UnloadFile(path))
	assert.False(t, store.UnloadFile(path))
}

func TestConcurrentResolveAndImport(t *testing.T) {
	text := libraryText(t, "http://lib.example", map[string]string{"a": "aaagaggagaaatactag"})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(text))
	}))
	defer srv.Close()

	store := newTestStore(t.TempDir(), Options{Fetcher: NewHTTPFetcher(5 * time.Second)})
	_, err := store.Import(context.Background(), "shared", srv.URL, "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				lib, err := store.Resolve("shared")
				if err == nil {
					assert.Equal(t, 1, lib.Len())
				}
			}
		}()
		go func() {
			defer wg.Done()
			_, err := store.Import(context.Background(), "shared", srv.URL, "")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.True(t, store.Contains("shared"))
}
