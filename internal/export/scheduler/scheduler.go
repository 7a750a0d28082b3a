// Package scheduler provides automatic backup scheduling.
package scheduler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kimhsiao/stash/internal/export"
	"github.com/kimhsiao/stash/internal/logging"
	"github.com/kimhsiao/stash/internal/models"
)

// ExportInterval defines the scheduling frequency.
type ExportInterval string

const (
	IntervalManual ExportInterval = "manual"
	IntervalHourly ExportInterval = "hourly"
	IntervalDaily  ExportInterval = "daily"
	IntervalWeekly ExportInterval = "weekly"
)

// archivePrefix and archiveSuffix name the files the scheduler owns.
const (
	archivePrefix = "stash_"
	archiveSuffix = ".tar.gz"
)

// ParseInterval maps a configuration value to an interval. Unknown values
// are rejected.
func ParseInterval(s string) (ExportInterval, error) {
	switch i := ExportInterval(strings.ToLower(strings.TrimSpace(s))); i {
	case "":
		return IntervalManual, nil
	case IntervalManual, IntervalHourly, IntervalDaily, IntervalWeekly:
		return i, nil
	default:
		return "", fmt.Errorf("unknown interval: %s", s)
	}
}

// Duration converts the interval to a time.Duration.
func (i ExportInterval) Duration() (time.Duration, error) {
	switch i {
	case IntervalHourly:
		return time.Hour, nil
	case IntervalDaily:
		return 24 * time.Hour, nil
	case IntervalWeekly:
		return 7 * 24 * time.Hour, nil
	case IntervalManual:
		return 0, fmt.Errorf("manual interval has no duration")
	default:
		return 0, fmt.Errorf("unknown interval: %s", i)
	}
}

// SchedulerConfig holds the scheduler configuration.
type SchedulerConfig struct {
	Interval       ExportInterval // How often to export
	RetentionCount int            // Number of archives to keep (0 = unlimited)
	ExportDir      string         // Directory to store exports (default: "backups")
	Password       string         // Password for encryption (empty = no encryption)
}

// DocumentSource supplies the document to back up. *store.Store satisfies it.
type DocumentSource interface {
	Snapshot() models.Document
}

// Scheduler manages automatic backups.
type Scheduler struct {
	archiver export.Archiver
	source   DocumentSource
	config   SchedulerConfig

	onCompleted func(*export.ExportResult)
	onFailed    func(error)

	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	now      func() time.Time
}

// NewScheduler creates a new backup scheduler.
func NewScheduler(archiver export.Archiver, source DocumentSource, config SchedulerConfig) *Scheduler {
	if config.ExportDir == "" {
		config.ExportDir = "backups"
	}
	if config.RetentionCount < 0 {
		config.RetentionCount = 0
	}
	if config.Interval == "" {
		config.Interval = IntervalManual
	}

	return &Scheduler{
		archiver: archiver,
		source:   source,
		config:   config,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
		now:      time.Now,
	}
}

// SetEventCallbacks sets callbacks for backup outcomes.
func (s *Scheduler) SetEventCallbacks(completed func(*export.ExportResult), failed func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onCompleted = completed
	s.onFailed = failed
}

// Start begins automatic backups. The first backup is taken after one
// interval. In manual mode Start does nothing.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.config.Interval == IntervalManual {
		logging.Info("Backup scheduler in manual mode, automatic backups disabled", nil)
		return nil
	}

	dur, err := s.config.Interval.Duration()
	if err != nil {
		return fmt.Errorf("invalid interval: %w", err)
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}
	s.running = true
	s.mu.Unlock()

	logging.Info("Backup scheduler started", map[string]interface{}{
		"interval":        string(s.config.Interval),
		"retention_count": s.config.RetentionCount,
		"dir":             s.config.ExportDir,
	})

	go s.loop(ctx, dur)
	return nil
}

func (s *Scheduler) loop(ctx context.Context, dur time.Duration) {
	defer close(s.done)

	ticker := time.NewTicker(dur)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_, _ = s.RunNow()
		case <-s.stopCh:
			logging.Info("Backup scheduler stopped", nil)
			return
		case <-ctx.Done():
			logging.Info("Backup scheduler context cancelled", nil)
			return
		}
	}
}

// Stop shuts down the scheduler and waits for the loop to exit. It is safe
// to call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })

	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if running {
		<-s.done
	}
}

// RunNow takes one backup and applies the retention policy.
func (s *Scheduler) RunNow() (*export.ExportResult, error) {
	s.mu.Lock()
	completed, failed := s.onCompleted, s.onFailed
	s.mu.Unlock()

	outputPath := filepath.Join(s.config.ExportDir, ArchiveName(s.now()))
	result, err := s.archiver.ArchiveFile(outputPath, s.source.Snapshot(), export.ArchiveConfig{
		Password: s.config.Password,
	})
	if err != nil {
		logging.Error("Scheduled backup failed", err, map[string]interface{}{"path": outputPath})
		if failed != nil {
			failed(err)
		}
		return nil, fmt.Errorf("export failed: %w", err)
	}

	logging.Info("Backup completed", map[string]interface{}{
		"file":        result.FilePath,
		"size_bytes":  result.SizeBytes,
		"block_count": result.Manifest.BlockCount,
		"duration":    result.Duration.String(),
	})

	if s.config.RetentionCount > 0 {
		if err := s.applyRetentionPolicy(); err != nil {
			// The backup itself succeeded.
			logging.Error("Retention policy failed", err, nil)
		}
	}

	if completed != nil {
		completed(result)
	}
	return result, nil
}

// ArchiveName returns the file name of a backup taken at t.
func ArchiveName(t time.Time) string {
	return archivePrefix + t.Format("20060102_150405") + archiveSuffix
}

// applyRetentionPolicy removes the oldest archives beyond RetentionCount.
func (s *Scheduler) applyRetentionPolicy() error {
	archives, err := ListArchives(s.config.ExportDir)
	if err != nil {
		return fmt.Errorf("failed to list archives: %w", err)
	}
	if len(archives) <= s.config.RetentionCount {
		return nil
	}

	for _, archive := range archives[:len(archives)-s.config.RetentionCount] {
		if err := os.Remove(archive.Path); err != nil {
			logging.Error("Failed to delete old archive", err, map[string]interface{}{"path": archive.Path})
			continue
		}
		logging.Info("Deleted old archive", map[string]interface{}{"path": archive.Path})
	}
	return nil
}

// ArchiveInfo represents metadata about a backup archive on disk.
type ArchiveInfo struct {
	Path      string
	SizeBytes int64
	CreatedAt time.Time
}

// ListArchives returns the scheduler's archives in exportDir, oldest first.
// Other files and subdirectories are ignored. A missing directory yields
// no archives.
func ListArchives(exportDir string) ([]ArchiveInfo, error) {
	entries, err := os.ReadDir(exportDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var archives []ArchiveInfo
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, archivePrefix) || !strings.HasSuffix(name, archiveSuffix) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		archives = append(archives, ArchiveInfo{
			Path:      filepath.Join(exportDir, name),
			SizeBytes: fi.Size(),
			CreatedAt: fi.ModTime(),
		})
	}

	sort.Slice(archives, func(i, j int) bool {
		if !archives[i].CreatedAt.Equal(archives[j].CreatedAt) {
			return archives[i].CreatedAt.Before(archives[j].CreatedAt)
		}
		return archives[i].Path < archives[j].Path
	})
	return archives, nil
}

// Config returns the current scheduler configuration.
func (s *Scheduler) Config() SchedulerConfig {
	return s.config
}
