package token

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

const (
	accessTokenKey = "INSTAGRAM_ACCESS_TOKEN"
	pageTokenKey   = "INSTAGRAM_PAGE_TOKEN"
)

// EnvFileStore persists refreshed tokens back into the .env file the
// process loads its configuration from, so a restart resumes with the
// latest value instead of a stale one.
type EnvFileStore struct {
	mu   sync.Mutex
	path string
}

func NewEnvFileStore(path string) *EnvFileStore {
	return &EnvFileStore{path: path}
}

func (s *EnvFileStore) SaveAccessToken(token string) error {
	return s.setKey(accessTokenKey, token)
}

func (s *EnvFileStore) SavePageToken(token string) error {
	return s.setKey(pageTokenKey, token)
}

// setKey rewrites one KEY=value line in place, appending it if absent. The
// whole file is rewritten under a lock; these writes are rare (one per
// refresh) so simplicity wins over cleverness.
func (s *EnvFileStore) setKey(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read env file: %w", err)
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	replaced := false
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), key+"=") {
			lines[i] = key + "=" + value
			replaced = true
		}
	}
	if !replaced {
		lines = append(lines, key+"="+value)
	}

	out := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(s.path, []byte(out), 0o600); err != nil {
		return fmt.Errorf("write env file: %w", err)
	}
	return nil
}
