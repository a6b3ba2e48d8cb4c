package fixture

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/tailscale/hujson"
)

// Store reads and writes fixture records through a Backend, consulting the
// Mock File Cache first.
type Store struct {
	backend Backend
	cache   *Cache
	trace   *TraceLog
	logger  *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithBackend replaces the default OSBackend.
func WithBackend(b Backend) Option {
	return func(s *Store) { s.backend = b }
}

// WithCache replaces the process-wide cache.
func WithCache(c *Cache) Option {
	return func(s *Store) { s.cache = c }
}

// WithTraceLog appends fixture traffic to t.
func WithTraceLog(t *TraceLog) Option {
	return func(s *Store) { s.trace = t }
}

// WithLogger sets the logger used for write notices.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// NewStore returns a store over the local filesystem and the shared cache
// unless options say otherwise.
func NewStore(opts ...Option) *Store {
	s := &Store{
		backend: OSBackend{},
		cache:   SharedCache(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// With returns a copy of s with opts applied. The copy shares the backend
// and cache of s.
func (s *Store) With(opts ...Option) *Store {
	c := *s
	for _, opt := range opts {
		opt(&c)
	}
	return &c
}

// Cache returns the cache the store reads through.
func (s *Store) Cache() *Cache {
	return s.cache
}

// Write persists rec at path, overwriting any previous fixture.
func (s *Store) Write(path string, rec *Record) error {
	data, err := Encode(rec)
	if err != nil {
		return fmt.Errorf("write fixture %s: %w", path, err)
	}
	if err := s.backend.WriteFile(path, data); err != nil {
		return fmt.Errorf("write fixture %s: %w", path, err)
	}
	s.cache.Put(path, data)
	s.trace.wrote(path)
	s.logger.Debug("wrote fixture", "path", path)
	return nil
}

// Read loads the fixture at path.
//
// A missing fixture yields FIXTURE_NOT_FOUND; other backend errors are
// returned unchanged. Contents that cannot be parsed or fail the schema
// yield FIXTURE_CORRUPT.
func (s *Store) Read(path string) (*Record, error) {
	data, cached := s.cache.Get(path)
	if !cached {
		raw, err := s.backend.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				s.trace.notFound(path)
				return nil, &Error{
					Code:    ErrCodeNotFound,
					Message: "fixture does not exist",
					Path:    path,
					Err:     err,
				}
			}
			return nil, err
		}
		data = raw
	}

	rec, err := Parse(path, data)
	if err != nil {
		return nil, err
	}
	if !cached {
		s.cache.Put(path, data)
	}
	s.trace.read(path)
	return rec, nil
}

// Encode renders rec in the on-disk format: two-space indentation, no HTML
// escaping and a trailing newline.
func Encode(rec *Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Parse decodes and validates fixture bytes read from path.
func Parse(path string, data []byte) (*Record, error) {
	// Standardize rewrites its argument in place; data may be cached.
	standard, err := hujson.Standardize(append([]byte(nil), data...))
	if err != nil {
		return nil, NewCorruptError(path, "invalid JSON", err)
	}

	validator, err := defaultValidator()
	if err != nil {
		return nil, err
	}
	if err := validator.Validate(path, standard); err != nil {
		return nil, NewCorruptError(path, "schema violation", err)
	}

	var rec Record
	if err := json.Unmarshal(standard, &rec); err != nil {
		return nil, NewCorruptError(path, "invalid record", err)
	}
	if _, err := rec.Outcome(); err != nil {
		var fe *Error
		if errors.As(err, &fe) {
			fe.Path = path
		}
		return nil, err
	}
	return &rec, nil
}
