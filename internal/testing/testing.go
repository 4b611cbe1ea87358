// package testing contains shared testing utilities
package testing

import (
	"fmt"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/clouder-dj/clouder/internal/models"
)

// MemoryTokenStore is an in-memory test double for the client's token
// persistence. Tokens are held in plaintext and call counts recorded so
// tests can assert on refresh behavior.
type MemoryTokenStore struct {
	mu sync.Mutex

	Access  string
	Refresh string
	Scope   string

	UpdateAccessCalls int
	UpdateTokensCalls int
	DeleteCalls       int
	Deleted           bool
}

func NewMemoryTokenStore(access, refresh string) *MemoryTokenStore {
	return &MemoryTokenStore{Access: access, Refresh: refresh}
}

func (s *MemoryTokenStore) DecryptTokens(cred *models.Credential) (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Access, s.Refresh, nil
}

func (s *MemoryTokenStore) UpdateAccessToken(cred *models.Credential, newAccessToken string, newExpiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Access = newAccessToken
	s.UpdateAccessCalls++
	cred.SetEncryptedAccessToken("enc:" + newAccessToken)
	cred.SetExpiresAt(newExpiresAt)
	return nil
}

func (s *MemoryTokenStore) UpdateTokens(cred *models.Credential, newAccessToken, newRefreshToken string, newExpiresAt time.Time, scope string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Access = newAccessToken
	s.Refresh = newRefreshToken
	s.Scope = scope
	s.UpdateTokensCalls++
	cred.SetEncryptedAccessToken("enc:" + newAccessToken)
	cred.SetEncryptedRefreshToken("enc:" + newRefreshToken)
	cred.SetExpiresAt(newExpiresAt)
	cred.SetScope(scope)
	return nil
}

func (s *MemoryTokenStore) Delete(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Deleted = true
	s.DeleteCalls++
	return nil
}

// RefreshCalls returns how many times the store persisted a refresh result.
func (s *MemoryTokenStore) RefreshCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.UpdateAccessCalls + s.UpdateTokensCalls
}

// FakeClock is an injectable clock whose time only moves when advanced.
type FakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{t: t}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

// FWriter is a writer that always fails, for exercising output error paths.
type FWriter struct{}

func (FWriter) Write(p []byte) (int, error) {
	return 0, fmt.Errorf("write failed")
}

// LimitedWriter allows a fixed number of writes before failing, passing the
// successful ones through to the underlying writer.
type LimitedWriter struct {
	remaining int
	w         io.Writer
}

func NewLimitedWriter(allowed int, w io.Writer) *LimitedWriter {
	return &LimitedWriter{remaining: allowed, w: w}
}

func (l *LimitedWriter) Write(p []byte) (int, error) {
	if l.remaining <= 0 {
		return 0, fmt.Errorf("write limit reached")
	}
	l.remaining--
	return l.w.Write(p)
}
