package export

import "github.com/kimhsiao/stash/internal/models"

// Archiver writes archive files. The scheduler depends on this rather than
// on *Service so it can be driven by a mock.
type Archiver interface {
	ArchiveFile(path string, doc models.Document, cfg ArchiveConfig) (*ExportResult, error)
}

// Ensure *Service implements the interface at compile time.
var _ Archiver = (*Service)(nil)
