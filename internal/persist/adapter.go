package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	apperrors "github.com/kimhsiao/stash/internal/errors"
	"github.com/kimhsiao/stash/internal/logging"
	"github.com/kimhsiao/stash/internal/models"
)

const (
	// StorageKey is the key the document lives under.
	StorageKey = "my_stash_v1"

	// ExportFilename is the suggested name of an exported document.
	ExportFilename = "my_stash_backup.json"
)

// Adapter reads and writes the document through a KV backend.
type Adapter struct {
	kv  KV
	now func() time.Time
}

// NewAdapter creates an Adapter over kv.
func NewAdapter(kv KV) *Adapter {
	return &Adapter{kv: kv, now: time.Now}
}

// Load returns the stored document. A missing or unreadable document yields
// the seeded default; the failure is logged, never returned.
func (a *Adapter) Load(ctx context.Context) models.Document {
	data, err := a.kv.Get(ctx, StorageKey)
	if errors.Is(err, ErrNotFound) {
		logging.Info("No stored document, starting with defaults", nil)
		return models.DefaultDocument(a.now().UnixMilli())
	}
	if err != nil {
		logging.Error("Failed to load state", err, map[string]interface{}{"key": StorageKey})
		return models.DefaultDocument(a.now().UnixMilli())
	}

	doc, err := Decode(data)
	if err != nil {
		logging.Error("Failed to load state", err, map[string]interface{}{"key": StorageKey})
		return models.DefaultDocument(a.now().UnixMilli())
	}
	return doc
}

// Save writes the whole document.
func (a *Adapter) Save(ctx context.Context, doc models.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrPersistFailed, "failed to encode document", err)
	}
	if err := a.kv.Set(ctx, StorageKey, data); err != nil {
		return apperrors.Wrap(apperrors.ErrPersistFailed, "failed to save state", err)
	}
	return nil
}

// Close closes the backend.
func (a *Adapter) Close() error {
	return a.kv.Close()
}

// Export writes the document as indented JSON, in the persisted format.
func Export(w io.Writer, doc models.Document) error {
	doc.Normalize()
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return apperrors.Wrap(apperrors.ErrExportFailed, "failed to write export", err)
	}
	return nil
}

// Decode parses a persisted or exported document and normalises nil lists.
func Decode(data []byte) (models.Document, error) {
	var doc models.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return models.Document{}, fmt.Errorf("failed to parse document: %w", err)
	}
	if doc.Blocks == nil && doc.Channels == nil {
		return models.Document{}, fmt.Errorf("document has neither blocks nor channels")
	}
	doc.Normalize()
	return doc, nil
}
