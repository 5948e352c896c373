package tokencache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStore keeps the persistent token in a small JSON file, mode 0600.
type FileStore struct {
	path string
}

type fileStorePayload struct {
	AccessToken string `json:"accessToken"`
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read token file: %w", err)
	}

	var payload fileStorePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", fmt.Errorf("decode token file: %w", err)
	}
	return payload.AccessToken, nil
}

func (s *FileStore) Save(token string) error {
	data, err := json.Marshal(fileStorePayload{AccessToken: token})
	if err != nil {
		return fmt.Errorf("encode token file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}

	// Write-then-rename keeps a crash from leaving a truncated file.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace token file: %w", err)
	}
	return nil
}

func (s *FileStore) Delete() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete token file: %w", err)
	}
	return nil
}

// MemoryStore is a Store that forgets on process exit. Useful for tests and
// for callers that want a purely in-memory cache.
type MemoryStore struct {
	token string
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Load() (string, error) { return s.token, nil }

func (s *MemoryStore) Save(token string) error {
	s.token = token
	return nil
}

func (s *MemoryStore) Delete() error {
	s.token = ""
	return nil
}
