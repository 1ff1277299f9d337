// Package notes provides the durable key-to-text note store backed by
// one file per key under a configurable root directory.
package notes

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Store manages note persistence. Negative outcomes the model can act
// on (missing key, ambiguous edit) are returned as result text, not
// errors; errors are reserved for invalid keys and filesystem failures.
type Store struct {
	dir    string
	logger *slog.Logger

	// locksMu guards locks. Each note key gets its own mutex so
	// concurrent requests touching different keys proceed
	// independently while operations on one key are serialized.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewStore creates a note store rooted at dir. The directory is created
// lazily on first write.
func NewStore(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		dir:    dir,
		logger: logger.With("store", "notes"),
		locks:  make(map[string]*sync.Mutex),
	}
}

// Dir returns the store's root directory.
func (s *Store) Dir() string {
	return s.dir
}

// ValidateKey rejects keys that could reach outside the store
// directory. It is a pure function of the key string and runs before
// any filesystem interaction. Doubtful keys are rejected.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("invalid key: empty")
	}
	if strings.ContainsAny(key, `/\`) {
		return fmt.Errorf("invalid key %q: path separators are not allowed", key)
	}
	if strings.Contains(key, "..") {
		return fmt.Errorf("invalid key %q: parent directory references are not allowed", key)
	}
	if key == "." {
		return fmt.Errorf("invalid key %q", key)
	}
	// A valid key must survive path cleaning unchanged.
	if filepath.Clean(key) != key {
		return fmt.Errorf("invalid key %q", key)
	}
	return nil
}

// keyLock returns the mutex for a key, creating it on first use.
func (s *Store) keyLock(key string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	mu, ok := s.locks[key]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[key] = mu
	}
	return mu
}

// path maps a validated key to its file path. The file name is the key
// itself, so keys round-trip exactly through List.
func (s *Store) path(key string) string {
	return filepath.Join(s.dir, key)
}

// List returns all note keys in name order. A missing root directory
// yields an empty list, not an error.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list notes: %w", err)
	}

	var keys []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		keys = append(keys, e.Name())
	}
	sort.Strings(keys)
	return keys, nil
}

// Read returns a note's content, or a not-found message the model can
// react to in natural language.
func (s *Store) Read(key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}

	mu := s.keyLock(key)
	mu.Lock()
	defer mu.Unlock()

	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return notFound(key), nil
		}
		return "", fmt.Errorf("read note %q: %w", key, err)
	}
	return string(data), nil
}

// Write creates or fully overwrites a note. The root directory is
// created on first use.
func (s *Store) Write(key, content string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}

	mu := s.keyLock(key)
	mu.Lock()
	defer mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create notes directory: %w", err)
	}
	if err := os.WriteFile(s.path(key), []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write note %q: %w", key, err)
	}

	s.logger.Debug("note written", "key", key, "bytes", len(content))
	return fmt.Sprintf("Saved '%s'.", key), nil
}

// Append adds content to the end of a note, separated by a newline.
// The note is created if it does not exist yet.
func (s *Store) Append(key, content string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}

	mu := s.keyLock(key)
	mu.Lock()
	defer mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create notes directory: %w", err)
	}

	// Separate from existing content with a newline; a new or empty
	// note gets the content as-is.
	prefix := "\n"
	if fi, err := os.Stat(s.path(key)); err != nil || fi.Size() == 0 {
		prefix = ""
	}

	f, err := os.OpenFile(s.path(key), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("open note %q: %w", key, err)
	}
	defer f.Close()

	if _, err := f.WriteString(prefix + content); err != nil {
		return "", fmt.Errorf("append to note %q: %w", key, err)
	}

	s.logger.Debug("note appended", "key", key, "bytes", len(content))
	return fmt.Sprintf("Appended to '%s'.", key), nil
}

// Delete removes a note. A missing key is reported distinctly from
// success so the model learns the key was already gone.
func (s *Store) Delete(key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}

	mu := s.keyLock(key)
	mu.Lock()
	defer mu.Unlock()

	if err := os.Remove(s.path(key)); err != nil {
		if os.IsNotExist(err) {
			return notFound(key), nil
		}
		return "", fmt.Errorf("delete note %q: %w", key, err)
	}

	s.logger.Debug("note deleted", "key", key)
	return fmt.Sprintf("Deleted '%s'.", key), nil
}

// Edit replaces exactly one occurrence of oldStr with newStr. Zero
// matches and multiple matches both leave the note unchanged and return
// guidance text; ambiguity is never resolved by picking the first
// match.
func (s *Store) Edit(key, oldStr, newStr string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}

	mu := s.keyLock(key)
	mu.Lock()
	defer mu.Unlock()

	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return notFound(key), nil
		}
		return "", fmt.Errorf("read note %q: %w", key, err)
	}

	content := string(data)
	count := strings.Count(content, oldStr)
	switch {
	case count == 0:
		return fmt.Sprintf("String not found in '%s'. Read the note first to check exact contents.", key), nil
	case count > 1:
		return fmt.Sprintf("Found %d matches in '%s'. Provide more surrounding context to make old_str unique.", count, key), nil
	}

	updated := strings.Replace(content, oldStr, newStr, 1)
	if err := os.WriteFile(s.path(key), []byte(updated), 0o644); err != nil {
		return "", fmt.Errorf("write note %q: %w", key, err)
	}

	s.logger.Debug("note edited", "key", key, "old_len", len(oldStr), "new_len", len(newStr))
	return fmt.Sprintf("Edited '%s'.", key), nil
}

func notFound(key string) string {
	return fmt.Sprintf("No note found for '%s'.", key)
}
