package store

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"invsim/internal/catalog"
)

// ErrNotFound is returned when a dataset has neither an in-memory nor an on-disk copy.
var ErrNotFound = errors.New("dataset not cached")

// header is the first line of every cache file.
type header struct {
	Dataset  string    `json:"dataset"`
	NWeeks   int       `json:"n_weeks"`
	Products int       `json:"products"`
	SavedAt  time.Time `json:"saved_at"`
}

// Store keeps prepared catalogs in memory and persists them as JSONL files, one product per line,
// so that decomposition and simulation can run in separate processes.
type Store struct {
	mu       sync.RWMutex
	dir      string
	catalogs map[string]*catalog.Catalog
	loads    singleflight.Group
}

// New returns a store persisting into dir.
func New(dir string) *Store {
	return &Store{
		dir:      dir,
		catalogs: make(map[string]*catalog.Catalog),
	}
}

// DatasetName derives a cache name from an input file path.
func DatasetName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Path is the cache file of a dataset.
func (s *Store) Path(dataset string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s.catalog.jsonl", dataset))
}

// Put registers a catalog in memory.
func (s *Store) Put(dataset string, c *catalog.Catalog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalogs[dataset] = c
}

// Get returns the in-memory catalog of a dataset, loading it from disk on first use.
// Concurrent callers share one load and receive the same catalog.
func (s *Store) Get(dataset string) (*catalog.Catalog, error) {
	if c, ok := s.cached(dataset); ok {
		return c, nil
	}
	v, err, _ := s.loads.Do(dataset, func() (any, error) {
		// a load that finished after the first lookup has already registered the catalog
		if c, ok := s.cached(dataset); ok {
			return c, nil
		}
		return s.Load(dataset)
	})
	if err != nil {
		return nil, err
	}
	return v.(*catalog.Catalog), nil
}

func (s *Store) cached(dataset string) (*catalog.Catalog, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.catalogs[dataset]
	return c, ok
}

// Load reads a dataset's cache file and registers it, replacing any in-memory copy. Lines that
// fail to decode are skipped with a warning.
func (s *Store) Load(dataset string) (*catalog.Catalog, error) {
	path := s.Path(dataset)
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, dataset)
		}
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	// One product line carries several weekly series.
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("error reading cache: %w", err)
		}
		return nil, fmt.Errorf("cache %s is empty", path)
	}
	var h header
	if err := json.Unmarshal(scanner.Bytes(), &h); err != nil {
		return nil, fmt.Errorf("invalid cache header in %s: %w", path, err)
	}

	products := make([]*catalog.ProductSeries, 0, h.Products)
	for scanner.Scan() {
		var p catalog.ProductSeries
		if err := json.Unmarshal(scanner.Bytes(), &p); err != nil {
			log.Warn().Err(err).Str("dataset", dataset).Msg("Skipping invalid JSON line in cache")
			continue
		}
		products = append(products, &p)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading cache: %w", err)
	}

	c, err := catalog.Restore(h.NWeeks, products)
	if err != nil {
		return nil, fmt.Errorf("restoring %s: %w", dataset, err)
	}

	log.Info().Str("dataset", dataset).Int("count", c.Len()).Msg("Loaded catalog from cache")
	s.Put(dataset, c)
	return c, nil
}

// Save persists a dataset's in-memory catalog, replacing the cache file atomically.
func (s *Store) Save(dataset string) error {
	c, ok := s.cached(dataset)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, dataset)
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	path := s.Path(dataset)
	tmpPath := path + ".tmp"

	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}

	writer := bufio.NewWriter(file)
	encoder := json.NewEncoder(writer)

	fail := func(format string, err error) error {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf(format, err)
	}

	h := header{Dataset: dataset, NWeeks: c.NWeeks(), Products: c.Len(), SavedAt: time.Now().UTC()}
	if err := encoder.Encode(h); err != nil {
		return fail("failed to encode header: %w", err)
	}
	for _, p := range c.Products() {
		if err := encoder.Encode(p); err != nil {
			return fail("failed to encode product: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fail("failed to flush writer: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename cache file: %w", err)
	}

	log.Info().Str("dataset", dataset).Int("count", c.Len()).Msg("Catalog saved to cache")
	return nil
}
