// Package store persists each board as a self-contained JSON document
// on disk. Writes go through a temp sibling plus atomic rename, so a
// crashed process never leaves a half-written board behind.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"jobwatch/internal/model"
)

const defaultCacheTTL = 30 * time.Second

// Store reads and writes board documents under a single directory.
// A short read-through cache absorbs the interactive layer's repeated
// reads; every write invalidates the cached entry. Every read returns
// its own deep copy: the scheduler mutates loaded boards in worker
// goroutines while the API serialises them, so no two callers may
// alias one document.
type Store struct {
	dir string
	log *slog.Logger
	ttl time.Duration

	mu    sync.Mutex
	cache map[string]cacheEntry

	now func() time.Time
}

type cacheEntry struct {
	board    *model.JobBoard
	loadedAt time.Time
}

type Options struct {
	Dir      string
	Logger   *slog.Logger
	CacheTTL time.Duration
}

func New(opts Options) *Store {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Store{
		dir:   opts.Dir,
		log:   log,
		ttl:   ttl,
		cache: map[string]cacheEntry{},
		now:   time.Now,
	}
}

// Dir returns the pages directory.
func (s *Store) Dir() string { return s.dir }

// Path returns the document path for a board title.
func (s *Store) Path(title string) string {
	return filepath.Join(s.dir, model.Slugify(title)+".json")
}

// Save serialises the board with 2-space indentation and renames it
// into place.
func (s *Store) Save(b *model.JobBoard) error {
	if !b.Validate() {
		return fmt.Errorf("refusing to persist invalid board %q", b.Title)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create pages dir: %w", err)
	}

	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("encode board %q: %w", b.Title, err)
	}
	data = append(data, '\n')

	path := s.Path(b.Title)
	tmp, err := os.CreateTemp(s.dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}

	s.mu.Lock()
	delete(s.cache, path)
	s.mu.Unlock()
	return nil
}

// Load reads one board document by path, through the cache. The
// returned board is the caller's own copy; mutating it never touches
// the cached entry or any other caller's view.
func (s *Store) Load(path string) (*model.JobBoard, error) {
	s.mu.Lock()
	if e, ok := s.cache[path]; ok && s.now().Sub(e.loadedAt) < s.ttl {
		b := e.board.Clone()
		s.mu.Unlock()
		return b, nil
	}
	s.mu.Unlock()

	b, err := s.read(path)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[path] = cacheEntry{board: b, loadedAt: s.now()}
	s.mu.Unlock()
	return b.Clone(), nil
}

// LoadByTitle loads the document a title slugs to.
func (s *Store) LoadByTitle(title string) (*model.JobBoard, error) {
	return s.Load(s.Path(title))
}

func (s *Store) read(path string) (*model.JobBoard, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var b model.JobBoard
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if !b.Validate() {
		return nil, fmt.Errorf("document %s is missing required fields", path)
	}
	return &b, nil
}

// ListBoards loads every valid board document in the directory.
// Documents that fail to decode or validate are skipped with a
// warning; one corrupt file must not take the whole set down.
func (s *Store) ListBoards() ([]*model.JobBoard, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var boards []*model.JobBoard
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		path := filepath.Join(s.dir, e.Name())
		b, err := s.Load(path)
		if err != nil {
			s.log.Warn("skipping unreadable board document", "path", path, "error", err)
			continue
		}
		boards = append(boards, b)
	}
	sort.Slice(boards, func(i, j int) bool {
		return strings.ToLower(boards[i].Title) < strings.ToLower(boards[j].Title)
	})
	return boards, nil
}

// Delete removes a board document and its cache entry.
func (s *Store) Delete(title string) error {
	path := s.Path(title)
	s.mu.Lock()
	delete(s.cache, path)
	s.mu.Unlock()
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
