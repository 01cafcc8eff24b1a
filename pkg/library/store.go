package library

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/sync/errgroup"

	"github.com/seqimprove/seqimprove-go/pkg/features"
	"github.com/seqimprove/seqimprove-go/pkg/models"
	"github.com/seqimprove/seqimprove-go/pkg/sbol"
)

var (
	// ErrNotFound is returned for identifiers that are not registered
	ErrNotFound = errors.New("library not found")
	// ErrFetchFailed is returned when a remote document cannot be retrieved
	ErrFetchFailed = errors.New("library fetch failed")
	// ErrParseFailed is returned when a document is not a valid design
	ErrParseFailed = errors.New("library document could not be parsed")
	// ErrDuplicateFile is returned when two files of the library directory
	// register under the same name, such as a.xml and a.xml.gz
	ErrDuplicateFile = errors.New("duplicate library file")
)

// Entry is one registered library
type Entry struct {
	ID          Identifier
	Library     *features.Library
	Origin      models.LibraryOrigin
	Source      string
	DisplayName string
	LoadedAt    time.Time
}

// Options configure a Store
type Options struct {
	Dir         string
	Catalog     *Catalog
	Fetcher     Fetcher
	Codec       sbol.Codec
	Concurrency int
	SkipInvalid bool
	Logger      *slog.Logger
}

// Store is the library registry. Lookups take the read lock, every
// mutation the write lock. Libraries handed out by Resolve stay valid
// after they are replaced or removed.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*Entry

	dir         string
	catalog     *Catalog
	fetcher     Fetcher
	codec       sbol.Codec
	concurrency int
	skipInvalid bool
	logger      *slog.Logger
}

// NewStore creates an empty store
func NewStore(opts Options) *Store {
	if opts.Codec == nil {
		opts.Codec = sbol.XMLCodec{}
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Store{
		entries:     make(map[string]*Entry),
		dir:         opts.Dir,
		catalog:     opts.Catalog,
		fetcher:     opts.Fetcher,
		codec:       opts.Codec,
		concurrency: opts.Concurrency,
		skipInvalid: opts.SkipInvalid,
		logger:      opts.Logger,
	}
}

// Dir returns the library directory
func (s *Store) Dir() string {
	return s.dir
}

// Preload parses every library file of the library directory and
// registers one library per file under its file name. Other files are
// ignored. An unreadable directory is an error, as are two files that map
// to the same name. An unparseable file aborts the preload unless the
// store skips invalid files, in which case it is logged and left out.
func (s *Store) Preload(ctx context.Context) error {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("failed to read library directory: %w", err)
	}

	var files []os.DirEntry
	seen := make(map[string]string)
	for _, f := range dirEntries {
		if f.IsDir() || !isLibraryFile(f.Name()) {
			continue
		}
		name := localName(f.Name())
		if other, ok := seen[name]; ok {
			return fmt.Errorf("%w: %s and %s both register as %s", ErrDuplicateFile, other, f.Name(), name)
		}
		seen[name] = f.Name()
		files = append(files, f)
	}

	var (
		mu     sync.Mutex
		loaded []*Entry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, f := range files {
		path := filepath.Join(s.dir, f.Name())
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			entry, err := s.loadFile(path, models.LibraryOriginPreload)
			if err != nil {
				if s.skipInvalid {
					s.logger.Warn("skipping invalid library", "file", path, "error", err)
					return nil
				}
				return fmt.Errorf("failed to preload %s: %w", f.Name(), err)
			}
			mu.Lock()
			loaded = append(loaded, entry)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	s.mu.Lock()
	for _, e := range loaded {
		s.entries[e.ID.Raw] = e
	}
	s.mu.Unlock()

	s.logger.Info("preloaded libraries", "dir", s.dir, "count", len(loaded))
	return nil
}

// LoadFile (re)registers a single file of the library directory. A file
// whose name is already held by another file that still exists is
// rejected with ErrDuplicateFile.
func (s *Store) LoadFile(path string, origin models.LibraryOrigin) (Identifier, error) {
	entry, err := s.loadFile(path, origin)
	if err != nil {
		return Identifier{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.entries[entry.ID.Raw]; ok && prev.Origin != models.LibraryOriginImport && prev.Source != path {
		if _, err := os.Stat(prev.Source); err == nil {
			return Identifier{}, fmt.Errorf("%w: %s already registers as %s", ErrDuplicateFile, filepath.Base(prev.Source), entry.ID.Raw)
		}
	}
	s.entries[entry.ID.Raw] = entry
	return entry.ID, nil
}

// UnloadFile drops the entry registered for a file of the library
// directory. Imported libraries are never dropped this way. It reports
// whether an entry was removed.
func (s *Store) UnloadFile(path string) bool {
	name := localName(path)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[name]
	if !ok || e.Origin == models.LibraryOriginImport {
		return false
	}
	delete(s.entries, name)
	return true
}

func (s *Store) loadFile(path string, origin models.LibraryOrigin) (*Entry, error) {
	data, err := readLibraryFile(path)
	if err != nil {
		return nil, err
	}
	lib, err := s.build(string(data))
	if err != nil {
		return nil, err
	}
	name := localName(path)
	return &Entry{
		ID:          Identifier{Kind: Local, Raw: name},
		Library:     lib,
		Origin:      origin,
		Source:      path,
		DisplayName: s.catalog.DisplayName(name),
		LoadedAt:    time.Now().UTC(),
	}, nil
}

func readLibraryFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open library file: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
		}
		defer zr.Close()
		r = zr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read library file: %w", err)
	}
	return data, nil
}

func (s *Store) build(text string) (*features.Library, error) {
	doc, err := s.codec.Parse(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}
	lib, err := features.Build([]*sbol.Document{doc})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}
	return lib, nil
}

// Resolve returns the library registered under id. A remote identifier
// that is not registered itself falls back to the local file its
// collection was exported to: the catalog entry for the URL first, then
// the collection display id plus ".xml".
func (s *Store) Resolve(id string) (*features.Library, error) {
	ident := ParseIdentifier(id)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if e, ok := s.entries[ident.Raw]; ok {
		return e.Library, nil
	}

	switch ident.Kind {
	case Remote:
		if name, ok := s.catalog.FileFor(ident.Raw); ok {
			if e, ok := s.entries[name]; ok {
				return e.Library, nil
			}
		}
		if name := collectionFile(ident.Raw); name != "" {
			if e, ok := s.entries[name]; ok {
				return e.Library, nil
			}
		}
	case Local:
		// direct lookup only
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Import fetches a document, builds its library and registers it under
// id, replacing any previous entry. An empty id registers the library
// under its source URL. The fetched text is returned.
func (s *Store) Import(ctx context.Context, id, sourceURL, authToken string) (string, error) {
	if s.fetcher == nil {
		return "", fmt.Errorf("%w: no fetcher configured", ErrFetchFailed)
	}
	if id == "" {
		id = sourceURL
	}

	data, err := s.fetcher.Fetch(ctx, sourceURL, authToken)
	if err != nil {
		if !errors.Is(err, ErrFetchFailed) {
			err = fmt.Errorf("%w: %v", ErrFetchFailed, err)
		}
		return "", err
	}

	text := string(data)
	lib, err := s.build(text)
	if err != nil {
		return "", err
	}

	entry := &Entry{
		ID:          ParseIdentifier(id),
		Library:     lib,
		Origin:      models.LibraryOriginImport,
		Source:      sourceURL,
		DisplayName: s.catalog.DisplayName(id),
		LoadedAt:    time.Now().UTC(),
	}

	s.mu.Lock()
	s.entries[id] = entry
	s.mu.Unlock()

	s.logger.Info("imported library", "identifier", id, "source", sourceURL, "features", lib.Len())
	return text, nil
}

// Remove deletes the library registered under id
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.entries, id)
	return nil
}

// Contains reports whether id is registered as is
func (s *Store) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[id]
	return ok
}

// Len returns the number of registered libraries
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// List describes every registered library, ordered by identifier
func (s *Store) List() []models.LibraryInfo {
	s.mu.RLock()
	out := make([]models.LibraryInfo, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, models.LibraryInfo{
			Identifier:   e.ID.Raw,
			Kind:         e.ID.Kind.String(),
			DisplayName:  e.DisplayName,
			Origin:       e.Origin,
			Source:       e.Source,
			FeatureCount: e.Library.Len(),
			LoadedAt:     e.LoadedAt,
		})
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Identifier < out[j].Identifier
	})
	return out
}
