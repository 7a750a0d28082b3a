package export

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/kimhsiao/stash/internal/errors"
	"github.com/kimhsiao/stash/internal/export/crypto"
	"github.com/kimhsiao/stash/internal/models"
)

func testDoc() models.Document {
	doc := models.DefaultDocument(1000)
	doc.Blocks = []models.Block{
		{ID: "b_1", Type: models.BlockTypeText, Content: "hello", Tags: []string{"greeting"}, CreatedAt: 2000, ChannelID: models.InboxChannelID},
		{ID: "b_2", Type: models.BlockTypeLink, Content: "https://example.com", Tags: []string{}, CreatedAt: 1500, ChannelID: models.ArticlesChannelID},
	}
	return doc
}

func fixedService() *Service {
	s := NewService()
	s.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return s
}

// =====================================================
// WriteJSON
// =====================================================

func TestWriteJSON_RestoresAsPlainDocument(t *testing.T) {
	s := fixedService()
	var buf bytes.Buffer
	require.NoError(t, s.WriteJSON(&buf, testDoc()))
	assert.Contains(t, buf.String(), `"activeChannelId": "c_inbox"`)

	doc, manifest, err := s.Restore(&buf, "")
	require.NoError(t, err)
	assert.Nil(t, manifest)
	assert.Equal(t, testDoc(), doc)
}

// =====================================================
// Archive / Restore
// =====================================================

func TestArchive_RoundTripPlain(t *testing.T) {
	s := fixedService()
	var buf bytes.Buffer

	manifest, err := s.Archive(&buf, testDoc(), ArchiveConfig{})
	require.NoError(t, err)
	assert.Equal(t, models.ArchiveFormatVersion, manifest.Version)
	assert.Equal(t, int64(1700000000000), manifest.ExportedAt)
	assert.Equal(t, 2, manifest.BlockCount)
	assert.Equal(t, 4, manifest.ChannelCount)
	assert.Len(t, manifest.Checksum, 64)
	assert.False(t, manifest.Encrypted)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), gzipMagic))

	doc, got, err := s.Restore(bytes.NewReader(buf.Bytes()), "")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, manifest, *got)
	assert.Equal(t, testDoc(), doc)
}

func TestArchive_RoundTripEncrypted(t *testing.T) {
	s := fixedService()
	var buf bytes.Buffer

	manifest, err := s.Archive(&buf, testDoc(), ArchiveConfig{Password: "hunter22"})
	require.NoError(t, err)
	assert.True(t, manifest.Encrypted)
	assert.True(t, crypto.IsEncrypted(buf.Bytes()))

	doc, _, err := s.Restore(bytes.NewReader(buf.Bytes()), "hunter22")
	require.NoError(t, err)
	assert.Equal(t, testDoc(), doc)
}

func TestArchive_WeakPasswordRejected(t *testing.T) {
	var buf bytes.Buffer
	_, err := fixedService().Archive(&buf, testDoc(), ArchiveConfig{Password: "short"})
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
	assert.Zero(t, buf.Len())
}

func TestRestore_WrongOrMissingPassword(t *testing.T) {
	s := fixedService()
	var buf bytes.Buffer
	_, err := s.Archive(&buf, testDoc(), ArchiveConfig{Password: "hunter22"})
	require.NoError(t, err)

	_, _, err = s.Restore(bytes.NewReader(buf.Bytes()), "hunter23")
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidPassword))

	_, _, err = s.Restore(bytes.NewReader(buf.Bytes()), "")
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidPassword))
}

func TestRestore_ChecksumMismatch(t *testing.T) {
	tarball, err := buildTarball(time.Now(), map[string][]byte{
		manifestName: []byte(`{"version":"1","checksum":"deadbeef"}`),
		dataName:     []byte(`{"blocks":[],"channels":[]}`),
	})
	require.NoError(t, err)

	_, _, err = fixedService().Restore(bytes.NewReader(tarball), "")
	assert.True(t, apperrors.Is(err, apperrors.ErrCorruptedArchive))
}

func TestRestore_MissingEntries(t *testing.T) {
	tarball, err := buildTarball(time.Now(), map[string][]byte{
		dataName: []byte(`{"blocks":[],"channels":[]}`),
	})
	require.NoError(t, err)
	_, _, err = fixedService().Restore(bytes.NewReader(tarball), "")
	assert.True(t, apperrors.Is(err, apperrors.ErrCorruptedArchive))
}

func TestRestore_GarbageInput(t *testing.T) {
	s := fixedService()

	_, _, err := s.Restore(strings.NewReader("not json"), "")
	assert.True(t, apperrors.Is(err, apperrors.ErrImportFailed))

	_, _, err = s.Restore(strings.NewReader("{}"), "")
	assert.True(t, apperrors.Is(err, apperrors.ErrImportFailed))

	_, _, err = s.Restore(bytes.NewReader([]byte{0x1f, 0x8b, 0x00}), "")
	assert.True(t, apperrors.Is(err, apperrors.ErrCorruptedArchive))
}

func TestReadTarball_SkipsDirectories(t *testing.T) {
	var buf bytes.Buffer
	gzw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gzw)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "backup/", Typeflag: tar.TypeDir, Mode: 0755}))
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "backup/data.json", Mode: 0644, Size: 2}))
	_, err := tw.Write([]byte("{}"))
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gzw.Close())

	files, err := readTarball(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"data.json": []byte("{}")}, files)
}

// =====================================================
// ArchiveFile / ReadManifest
// =====================================================

func TestArchiveFile(t *testing.T) {
	s := fixedService()
	path := filepath.Join(t.TempDir(), "nested", "backup.tar.gz")

	res, err := s.ArchiveFile(path, testDoc(), ArchiveConfig{})
	require.NoError(t, err)
	assert.Equal(t, path, res.FilePath)
	assert.Positive(t, res.SizeBytes)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	manifest, err := ReadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, res.Manifest, manifest)
}

func TestReadManifest_Encrypted(t *testing.T) {
	s := fixedService()
	path := filepath.Join(t.TempDir(), "backup.tar.gz")
	_, err := s.ArchiveFile(path, testDoc(), ArchiveConfig{Password: "hunter22"})
	require.NoError(t, err)

	manifest, err := ReadManifest(path)
	require.NoError(t, err)
	assert.True(t, manifest.Encrypted)
	assert.Empty(t, manifest.Checksum)
}
