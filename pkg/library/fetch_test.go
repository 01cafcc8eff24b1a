package library

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFetcher struct {
	body   []byte
	err    error
	called []string
}

func (f *stubFetcher) Fetch(_ context.Context, source, _ string) ([]byte, error) {
	f.called = append(f.called, source)
	return f.body, f.err
}

func TestSchemeFetcherRouting(t *testing.T) {
	httpF := &stubFetcher{body: []byte("http")}
	objF := &stubFetcher{body: []byte("s3")}
	f := &SchemeFetcher{HTTP: httpF, Objects: objF}

	got, err := f.Fetch(context.Background(), "s3://bucket/lib.xml", "")
	require.NoError(t, err)
	assert.Equal(t, "s3", string(got))

	got, err = f.Fetch(context.Background(), "https://synbiohub.org/public/x/x_collection/1", "")
	require.NoError(t, err)
	assert.Equal(t, "http", string(got))

	noObjects := &SchemeFetcher{HTTP: httpF}
	_, err = noObjects.Fetch(context.Background(), "s3://bucket/lib.xml", "")
	assert.True(t, errors.Is(err, ErrFetchFailed))
}

func TestSplitObjectURL(t *testing.T) {
	bucket, key, err := splitObjectURL("s3://libraries/curated/cello.xml.gz")
	require.NoError(t, err)
	assert.Equal(t, "libraries", bucket)
	assert.Equal(t, "curated/cello.xml.gz", key)

	_, _, err = splitObjectURL("s3://libraries/")
	assert.Error(t, err)
	_, _, err = splitObjectURL("https://libraries/x")
	assert.Error(t, err)
}

func TestMaybeGunzip(t *testing.T) {
	plain := []byte("<rdf:RDF/>")
	out, err := maybeGunzip(plain)
	require.NoError(t, err)
	assert.Equal(t, plain, out)

	out, err = maybeGunzip(gzipped(t, "<rdf:RDF/>"))
	require.NoError(t, err)
	assert.Equal(t, plain, out)

	_, err = maybeGunzip([]byte{0x1f, 0x8b, 0x00})
	assert.True(t, errors.Is(err, ErrFetchFailed))
}

func TestImportWrapsFetcherErrors(t *testing.T) {
	store := NewStore(Options{Dir: t.TempDir(), Fetcher: &stubFetcher{err: errors.New("boom")}})
	_, err := store.Import(context.Background(), "x", "https://example.org/x", "")
	assert.True(t, errors.Is(err, ErrFetchFailed))

	noFetcher := NewStore(Options{Dir: t.TempDir()})
	_, err = noFetcher.Import(context.Background(), "x", "https://example.org/x", "")
	assert.True(t, errors.Is(err, ErrFetchFailed))
}
