package configstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/wirepool/wirepool-go/internal/core/domain"
)

// FileStore persists rendered configs as one file per session under a
// directory, mode 0600. It implements service.ConfigStore.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed and returns the store.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("configstore: dir is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("configstore: create dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Save renders and writes the config payload for a session.
func (s *FileStore) Save(_ context.Context, sessionID string, cred *domain.Credential, _ *domain.ServerNode) error {
	payload, err := Render(cred)
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path(sessionID), []byte(payload), 0o600); err != nil {
		return fmt.Errorf("configstore: write %s: %w", sessionID, err)
	}
	return nil
}

// Delete removes a session's payload. Missing files are not an error.
func (s *FileStore) Delete(_ context.Context, sessionID string) error {
	err := os.Remove(s.path(sessionID))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("configstore: delete %s: %w", sessionID, err)
	}
	return nil
}

// Load reads a session's payload back, mainly for tests and tooling.
func (s *FileStore) Load(_ context.Context, sessionID string) (*domain.Credential, error) {
	raw, err := os.ReadFile(s.path(sessionID))
	if err != nil {
		return nil, fmt.Errorf("configstore: read %s: %w", sessionID, err)
	}
	return Parse(string(raw))
}

func (s *FileStore) path(sessionID string) string {
	// Session IDs are ULID-based and never contain separators, but a
	// hostile ID must not escape the directory.
	name := strings.ReplaceAll(sessionID, string(os.PathSeparator), "_")
	return filepath.Join(s.dir, name+".conf")
}
