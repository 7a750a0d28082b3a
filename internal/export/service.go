// Package export provides document backup: plain JSON export, tar.gz
// archives with an optional password, and restore of either format.
package export

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	apperrors "github.com/kimhsiao/stash/internal/errors"
	"github.com/kimhsiao/stash/internal/export/crypto"
	"github.com/kimhsiao/stash/internal/models"
	"github.com/kimhsiao/stash/internal/persist"
)

const (
	manifestName = "manifest.json"
	dataName     = "data.json"

	// MaxRestoreBytes caps how much of an uploaded backup is read.
	MaxRestoreBytes = 64 << 20
)

var gzipMagic = []byte{0x1f, 0x8b}

// Service provides export/import functionality.
type Service struct {
	now func() time.Time
}

// NewService creates a new Service.
func NewService() *Service {
	return &Service{now: time.Now}
}

// ArchiveConfig holds archive configuration.
type ArchiveConfig struct {
	Password string // empty = no encryption
}

// ExportResult represents the result of writing an archive file.
type ExportResult struct {
	FilePath  string
	SizeBytes int64
	Manifest  models.ArchiveManifest
	Duration  time.Duration
}

// WriteJSON writes the document in the persisted format.
func (s *Service) WriteJSON(w io.Writer, doc models.Document) error {
	return persist.Export(w, doc)
}

// Archive writes doc to w as a tar.gz containing manifest.json and
// data.json. With a password the whole tarball is encrypted.
func (s *Service) Archive(w io.Writer, doc models.Document, cfg ArchiveConfig) (models.ArchiveManifest, error) {
	doc.Normalize()
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return models.ArchiveManifest{}, apperrors.Wrap(apperrors.ErrExportFailed, "failed to encode document", err)
	}

	sum := sha256.Sum256(data)
	manifest := models.ArchiveManifest{
		Version:      models.ArchiveFormatVersion,
		ExportedAt:   s.now().UnixMilli(),
		BlockCount:   len(doc.Blocks),
		ChannelCount: len(doc.Channels),
		Checksum:     hex.EncodeToString(sum[:]),
		Encrypted:    cfg.Password != "",
	}
	manifestData, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return models.ArchiveManifest{}, apperrors.Wrap(apperrors.ErrExportFailed, "failed to encode manifest", err)
	}

	tarball, err := buildTarball(s.now(), map[string][]byte{
		manifestName: manifestData,
		dataName:     data,
	})
	if err != nil {
		return models.ArchiveManifest{}, apperrors.Wrap(apperrors.ErrExportFailed, "failed to build archive", err)
	}

	if cfg.Password != "" {
		tarball, err = crypto.EncryptArchive(tarball, cfg.Password)
		if err != nil {
			return models.ArchiveManifest{}, apperrors.Wrap(apperrors.ErrValidation, "failed to encrypt archive", err)
		}
	}

	if _, err := w.Write(tarball); err != nil {
		return models.ArchiveManifest{}, apperrors.Wrap(apperrors.ErrExportFailed, "failed to write archive", err)
	}
	return manifest, nil
}

// ArchiveFile writes an archive to path through a temporary file.
func (s *Service) ArchiveFile(path string, doc models.Document, cfg ArchiveConfig) (*ExportResult, error) {
	startTime := s.now()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrExportFailed, "failed to create exports directory", err)
	}

	tempPath := path + ".tmp"
	outFile, err := os.Create(tempPath)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrExportFailed, "failed to create archive", err)
	}

	manifest, err := s.Archive(outFile, doc, cfg)
	if err == nil {
		err = outFile.Sync()
	}
	if cerr := outFile.Close(); err == nil && cerr != nil {
		err = apperrors.Wrap(apperrors.ErrExportFailed, "failed to close archive", cerr)
	}
	if err != nil {
		os.Remove(tempPath)
		return nil, err
	}

	info, err := os.Stat(tempPath)
	if err != nil {
		os.Remove(tempPath)
		return nil, apperrors.Wrap(apperrors.ErrExportFailed, "failed to stat archive", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return nil, apperrors.Wrap(apperrors.ErrExportFailed, "failed to finalize archive", err)
	}

	return &ExportResult{
		FilePath:  path,
		SizeBytes: info.Size(),
		Manifest:  manifest,
		Duration:  time.Since(startTime),
	}, nil
}

// Restore reads a backup in any supported form: plain JSON, a tar.gz
// archive, or an encrypted archive. The returned document has not been
// repaired; callers hand it to Store.ReplaceDocument. The manifest is nil
// for plain JSON.
func (s *Service) Restore(r io.Reader, password string) (models.Document, *models.ArchiveManifest, error) {
	raw, err := io.ReadAll(io.LimitReader(r, MaxRestoreBytes+1))
	if err != nil {
		return models.Document{}, nil, apperrors.Wrap(apperrors.ErrImportFailed, "failed to read backup", err)
	}
	if len(raw) > MaxRestoreBytes {
		return models.Document{}, nil, apperrors.New(apperrors.ErrImportFailed, "backup is too large")
	}

	if crypto.IsEncrypted(raw) {
		if password == "" {
			return models.Document{}, nil, apperrors.New(apperrors.ErrInvalidPassword, "archive is encrypted, a password is required")
		}
		raw, err = crypto.DecryptArchive(raw, password)
		switch {
		case errors.Is(err, crypto.ErrInvalidPassword):
			return models.Document{}, nil, apperrors.Wrap(apperrors.ErrInvalidPassword, "failed to decrypt archive", err)
		case err != nil:
			return models.Document{}, nil, apperrors.Wrap(apperrors.ErrCorruptedArchive, "failed to decrypt archive", err)
		}
	}

	if !bytes.HasPrefix(raw, gzipMagic) {
		doc, err := persist.Decode(raw)
		if err != nil {
			return models.Document{}, nil, apperrors.Wrap(apperrors.ErrImportFailed, "backup is not a stash document", err)
		}
		return doc, nil, nil
	}

	files, err := readTarball(raw)
	if err != nil {
		return models.Document{}, nil, apperrors.Wrap(apperrors.ErrCorruptedArchive, "failed to extract archive", err)
	}

	manifestData, ok := files[manifestName]
	if !ok {
		return models.Document{}, nil, apperrors.New(apperrors.ErrCorruptedArchive, "archive has no manifest")
	}
	var manifest models.ArchiveManifest
	if err := json.Unmarshal(manifestData, &manifest); err != nil {
		return models.Document{}, nil, apperrors.Wrap(apperrors.ErrCorruptedArchive, "failed to read manifest", err)
	}
	if manifest.Checksum == "" {
		return models.Document{}, nil, apperrors.New(apperrors.ErrCorruptedArchive, "manifest missing checksum")
	}

	data, ok := files[dataName]
	if !ok {
		return models.Document{}, nil, apperrors.New(apperrors.ErrCorruptedArchive, "archive has no data")
	}
	sum := sha256.Sum256(data)
	if hex.EncodeToString(sum[:]) != manifest.Checksum {
		return models.Document{}, nil, apperrors.New(apperrors.ErrCorruptedArchive, "checksum mismatch")
	}

	doc, err := persist.Decode(data)
	if err != nil {
		return models.Document{}, nil, apperrors.Wrap(apperrors.ErrImportFailed, "archive data is not a stash document", err)
	}
	return doc, &manifest, nil
}

// ReadManifest returns the manifest of an unencrypted archive file. For an
// encrypted archive only Encrypted is set.
func ReadManifest(path string) (models.ArchiveManifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return models.ArchiveManifest{}, err
	}
	if crypto.IsEncrypted(raw) {
		return models.ArchiveManifest{Encrypted: true}, nil
	}
	files, err := readTarball(raw)
	if err != nil {
		return models.ArchiveManifest{}, err
	}
	var manifest models.ArchiveManifest
	if err := json.Unmarshal(files[manifestName], &manifest); err != nil {
		return models.ArchiveManifest{}, fmt.Errorf("failed to read manifest: %w", err)
	}
	return manifest, nil
}

// =====================================================
// Tarball helpers
// =====================================================

// buildTarball writes the named files, manifest first.
func buildTarball(modTime time.Time, files map[string][]byte) ([]byte, error) {
	var buf bytes.Buffer
	gzw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gzw)

	for _, name := range []string{manifestName, dataName} {
		data, ok := files[name]
		if !ok {
			continue
		}
		header := &tar.Header{
			Name:    name,
			Mode:    0644,
			Size:    int64(len(data)),
			ModTime: modTime,
		}
		if err := tw.WriteHeader(header); err != nil {
			return nil, err
		}
		if _, err := tw.Write(data); err != nil {
			return nil, err
		}
	}

	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := gzw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// readTarball returns the regular files of a tar.gz keyed by name.
func readTarball(raw []byte) (map[string][]byte, error) {
	gzr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	defer gzr.Close()

	files := make(map[string][]byte)
	tr := tar.NewReader(gzr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}
		data, err := io.ReadAll(io.LimitReader(tr, MaxRestoreBytes))
		if err != nil {
			return nil, err
		}
		files[filepath.Base(header.Name)] = data
	}
	return files, nil
}
