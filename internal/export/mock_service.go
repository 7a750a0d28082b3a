package export

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/kimhsiao/stash/internal/models"
)

// MockArchiver is a mock Archiver for testing. It writes a placeholder file
// so retention can be exercised without building real archives.
type MockArchiver struct {
	mu            sync.Mutex
	shouldSucceed bool
	delay         time.Duration
	callCount     int
	lastPath      string
	lastConfig    ArchiveConfig
	lastDoc       models.Document
}

// NewMockArchiver creates a new mock archiver.
func NewMockArchiver() *MockArchiver {
	return &MockArchiver{shouldSucceed: true}
}

// ArchiveFile records the call and writes a placeholder archive.
func (m *MockArchiver) ArchiveFile(path string, doc models.Document, cfg ArchiveConfig) (*ExportResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.callCount++
	m.lastPath = path
	m.lastConfig = cfg
	m.lastDoc = doc

	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if !m.shouldSucceed {
		return nil, fmt.Errorf("mock export failed")
	}

	if err := os.WriteFile(path, []byte("mock export data"), 0644); err != nil {
		return nil, fmt.Errorf("failed to create mock export file: %w", err)
	}

	return &ExportResult{
		FilePath:  path,
		SizeBytes: 16,
		Manifest: models.ArchiveManifest{
			Version:      models.ArchiveFormatVersion,
			BlockCount:   len(doc.Blocks),
			ChannelCount: len(doc.Channels),
			Encrypted:    cfg.Password != "",
		},
		Duration: time.Millisecond,
	}, nil
}

// SetShouldSucceed controls whether the mock export will succeed.
func (m *MockArchiver) SetShouldSucceed(shouldSucceed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shouldSucceed = shouldSucceed
}

// SetDelay sets a delay for each call.
func (m *MockArchiver) SetDelay(delay time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = delay
}

// CallCount returns the number of times ArchiveFile was called.
func (m *MockArchiver) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// LastPath returns the path of the last call.
func (m *MockArchiver) LastPath() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastPath
}

// LastConfig returns the config passed to the last call.
func (m *MockArchiver) LastConfig() ArchiveConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastConfig
}
