// Package memory provides the per-user long-term memory store: one
// append-only markdown file per user, injected into the system prompt
// on every request.
package memory

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const fileHeader = "# User Memory\n\n"

// Store manages per-user memory files under a root directory. Facts are
// only ever appended; pruning or editing memory is a manual operation
// on the files themselves.
type Store struct {
	dir    string
	logger *slog.Logger

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewStore creates a memory store rooted at dir. The directory is
// created lazily on first save.
func NewStore(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		dir:    dir,
		logger: logger.With("store", "memory"),
		locks:  make(map[string]*sync.Mutex),
	}
}

// ValidateUser rejects user identifiers that could escape the store
// directory. User ids become file names, so the same rules apply as for
// note keys.
func ValidateUser(user string) error {
	if user == "" {
		return fmt.Errorf("invalid user: empty")
	}
	if strings.ContainsAny(user, `/\`) {
		return fmt.Errorf("invalid user %q: path separators are not allowed", user)
	}
	if strings.Contains(user, "..") {
		return fmt.Errorf("invalid user %q: parent directory references are not allowed", user)
	}
	if user == "." || filepath.Clean(user) != user {
		return fmt.Errorf("invalid user %q", user)
	}
	return nil
}

func (s *Store) userLock(user string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	mu, ok := s.locks[user]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[user] = mu
	}
	return mu
}

func (s *Store) path(user string) string {
	return filepath.Join(s.dir, user+".md")
}

// Save appends one fact to the user's memory file as a bullet line,
// seeding the file with a header on first use.
func (s *Store) Save(user, fact string) (string, error) {
	if err := ValidateUser(user); err != nil {
		return "", err
	}

	mu := s.userLock(user)
	mu.Lock()
	defer mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create memory directory: %w", err)
	}

	f, err := os.OpenFile(s.path(user), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("open memory for %q: %w", user, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat memory for %q: %w", user, err)
	}
	if fi.Size() == 0 {
		if _, err := f.WriteString(fileHeader); err != nil {
			return "", fmt.Errorf("seed memory for %q: %w", user, err)
		}
	}

	if _, err := f.WriteString("- " + fact + "\n"); err != nil {
		return "", fmt.Errorf("append memory for %q: %w", user, err)
	}

	s.logger.Debug("memory saved", "user", user, "bytes", len(fact))
	return fmt.Sprintf("Saved: %s", fact), nil
}

// Load returns the user's full memory file, or "" if the user has no
// memory yet. The content is injected verbatim into the system prompt.
func (s *Store) Load(user string) (string, error) {
	if err := ValidateUser(user); err != nil {
		return "", err
	}

	mu := s.userLock(user)
	mu.Lock()
	defer mu.Unlock()

	data, err := os.ReadFile(s.path(user))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read memory for %q: %w", user, err)
	}
	return string(data), nil
}
