// Package refstore loads coefficient override files from a directory.
//
// Overrides of a model live under a directory named after the model:
//
//	refs/
//	  rtl_int/
//	    calibration.yaml
//	    spf.json
//
// Each file is parsed as a reference named after its stem and is cached
// until its size or modification time changes.
package refstore

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aretw0/cpm/pkg/core"
)

// DefaultPattern matches reference files at any depth of a model directory.
const DefaultPattern = "**/*.{json,yaml,yml}"

// ErrInvalidPattern is returned for malformed glob patterns.
var ErrInvalidPattern = errors.New("invalid glob pattern")

type entry struct {
	modTime time.Time
	size    int64
	ref     *core.Reference
}

// Store reads reference overrides from a directory.
type Store struct {
	dir     string
	fsys    fs.FS
	pattern string
	size    int
	logger  *slog.Logger
	cache   *lru.Cache[string, entry]

	hits, misses atomic.Int64
}

// Option configures a Store.
type Option func(*Store)

// WithPattern sets the glob matched inside each model directory.
func WithPattern(pattern string) Option {
	return func(s *Store) {
		s.pattern = pattern
	}
}

// WithCacheSize bounds the number of parsed references kept in memory.
func WithCacheSize(n int) Option {
	return func(s *Store) {
		s.size = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a store over dir.
func New(dir string, opts ...Option) (*Store, error) {
	s := &Store{
		dir:     dir,
		fsys:    os.DirFS(dir),
		pattern: DefaultPattern,
		size:    256,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if !doublestar.ValidatePattern(s.pattern) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPattern, s.pattern)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("reference directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("reference directory: %s is not a directory", dir)
	}
	cache, err := lru.New[string, entry](s.size)
	if err != nil {
		return nil, err
	}
	s.cache = cache
	return s, nil
}

// Dir is the root directory of the store.
func (s *Store) Dir() string { return s.dir }

// Paths lists the override files of a model relative to the store root.
func (s *Store) Paths(model string) ([]string, error) {
	if _, err := fs.Stat(s.fsys, model); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	matches, err := doublestar.Glob(s.fsys, path.Join(model, s.pattern), doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPattern, err)
	}
	return matches, nil
}

// Overrides loads every override reference of a model. Two files with the
// same stem are rejected.
func (s *Store) Overrides(model string) ([]*core.Reference, error) {
	paths, err := s.Paths(model)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]string, len(paths))
	refs := make([]*core.Reference, 0, len(paths))
	for _, p := range paths {
		ref, err := s.Load(p)
		if err != nil {
			return nil, err
		}
		if prev, ok := seen[ref.Name()]; ok {
			return nil, fmt.Errorf("%w: %s and %s both override %q", core.ErrDuplicate, prev, p, ref.Name())
		}
		seen[ref.Name()] = p
		refs = append(refs, ref)
	}
	return refs, nil
}

// Load parses one reference file relative to the store root, using the
// cached copy while the file is unchanged.
func (s *Store) Load(rel string) (*core.Reference, error) {
	full := filepath.Join(s.dir, filepath.FromSlash(rel))
	info, err := os.Stat(full)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrReference, err)
	}
	if e, ok := s.cache.Get(rel); ok && e.modTime.Equal(info.ModTime()) && e.size == info.Size() {
		s.hits.Add(1)
		return e.ref, nil
	}
	s.misses.Add(1)
	ref, err := core.ReadReference(full)
	if err != nil {
		return nil, err
	}
	s.cache.Add(rel, entry{modTime: info.ModTime(), size: info.Size(), ref: ref})
	s.logger.Debug("reference loaded", "path", rel, "name", ref.Name())
	return ref, nil
}

// Stats reports cache hits and misses since the store was created.
func (s *Store) Stats() (hits, misses int64) {
	return s.hits.Load(), s.misses.Load()
}

// Purge empties the cache.
func (s *Store) Purge() {
	s.cache.Purge()
}
