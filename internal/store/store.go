package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// TimestampLayout is the key format of the store document: YYYY-MM-DD HH:MM:SS.ffffff
const TimestampLayout = "2006-01-02 15:04:05.000000"

// ErrCorrupt is returned when the document on disk is not a JSON object of records
var ErrCorrupt = errors.New("store document is corrupt")

// Record is one persisted message
type Record struct {
	Username string `json:"username"`
	Message  string `json:"message"`
}

// Store owns the JSON document holding every record.
// All writes go through Merge, which holds the store mutex for the whole
// read-modify-write cycle. The file must not be written by anything else.
type Store struct {
	path string
	mu   sync.Mutex
}

// New creates a store backed by the file at path
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the document location
func (s *Store) Path() string {
	return s.path
}

// EnsureInitialized creates the storage directory and an empty document if
// the file is absent. An existing document is only read, never rewritten,
// and a corrupt one is reported so the service can refuse to start.
func (s *Store) EnsureInitialized() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create storage directory: %w", err)
	}

	_, err := os.Stat(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return s.writeLocked(map[string]Record{})
	case err != nil:
		return fmt.Errorf("stat store document: %w", err)
	}

	if _, err := s.readLocked(); err != nil {
		return err
	}
	return nil
}

// Merge overlays entries onto the document and rewrites it.
// New keys win on conflict; keys not mentioned in entries are preserved.
// It returns the number of records in the document after the write.
func (s *Store) Merge(entries map[string]Record) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.readLocked()
	if err != nil {
		return 0, err
	}

	for key, record := range entries {
		current[key] = record
	}

	if err := s.writeLocked(current); err != nil {
		return 0, err
	}
	return len(current), nil
}

// Load returns every record currently on disk
func (s *Store) Load() (map[string]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.readLocked()
}

// Count returns the number of records on disk
func (s *Store) Count() (int, error) {
	records, err := s.Load()
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// Key formats a moment as a document key
func Key(t time.Time) string {
	return t.Format(TimestampLayout)
}

func (s *Store) readLocked() (map[string]Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read store document: %w", err)
	}

	records := make(map[string]Record)
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.path, err)
	}

	// "null" decodes without error into a nil map
	if records == nil {
		return nil, fmt.Errorf("%w: %s: document is null", ErrCorrupt, s.path)
	}

	return records, nil
}

func (s *Store) writeLocked(records map[string]Record) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encode store document: %w", err)
	}

	return writeAtomic(s.path, buf.Bytes(), 0o644)
}

// writeAtomic replaces path with data so a crash never leaves a half-written document
func writeAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	tmp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d", base, time.Now().UnixNano()))

	if err := os.WriteFile(tmp, data, perm); err != nil {
		return fmt.Errorf("write store document: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace store document: %w", err)
	}

	return nil
}
