package handlers

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	apperrors "github.com/kimhsiao/stash/internal/errors"
	"github.com/kimhsiao/stash/internal/export"
	"github.com/kimhsiao/stash/internal/export/scheduler"
	"github.com/kimhsiao/stash/internal/models"
	"github.com/kimhsiao/stash/internal/persist"
	"github.com/kimhsiao/stash/internal/store"
)

// ExportNotifier receives backup outcomes for the change feed.
type ExportNotifier interface {
	BroadcastExportCompleted(fileName string, manifest models.ArchiveManifest)
	BroadcastExportFailed(errMsg string)
}

// ExportHandler handles document export, import and backups.
type ExportHandler struct {
	store     *store.Store
	export    *export.Service
	scheduler *scheduler.Scheduler
	notifier  ExportNotifier
}

// NewExportHandler creates a new ExportHandler. notifier may be nil.
func NewExportHandler(st *store.Store, svc *export.Service, sched *scheduler.Scheduler, notifier ExportNotifier) *ExportHandler {
	return &ExportHandler{store: st, export: svc, scheduler: sched, notifier: notifier}
}

// GetDocument handles GET /api/document
func (h *ExportHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.Snapshot())
}

// Export handles GET /api/document/export
// Downloads the document as my_stash_backup.json.
func (h *ExportHandler) Export(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.export.WriteJSON(&buf, h.store.Snapshot()); err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, persist.ExportFilename))
	_, _ = w.Write(buf.Bytes())
}

// Archive handles POST /api/document/archive
// Downloads a tar.gz backup, encrypted when a password is given.
func (h *ExportHandler) Archive(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	var buf bytes.Buffer
	manifest, err := h.export.Archive(&buf, h.store.Snapshot(), export.ArchiveConfig{Password: req.Password})
	if err != nil {
		if h.notifier != nil {
			h.notifier.BroadcastExportFailed(err.Error())
		}
		writeError(w, err)
		return
	}

	name := scheduler.ArchiveName(time.Now())
	if h.notifier != nil {
		h.notifier.BroadcastExportCompleted(name, manifest)
	}

	w.Header().Set("Content-Type", "application/gzip")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	_, _ = w.Write(buf.Bytes())
}

// Import handles POST /api/document/import
// Accepts either a multipart form (file, password) or a raw body with the
// password in the X-Backup-Password header. The restored document replaces
// the current one after repair.
func (h *ExportHandler) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, export.MaxRestoreBytes+1<<20)

	var (
		src      io.Reader = r.Body
		password           = r.Header.Get("X-Backup-Password")
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(8 << 20); err != nil {
			writeError(w, apperrors.Wrap(apperrors.ErrInvalid, "invalid multipart form", err))
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			writeError(w, apperrors.Wrap(apperrors.ErrValidation, "backup file is required", err))
			return
		}
		defer file.Close()
		src = file
		if p := r.FormValue("password"); p != "" {
			password = p
		}
	}

	doc, manifest, err := h.export.Restore(src, password)
	if err != nil {
		writeError(w, err)
		return
	}

	report, err := h.store.ReplaceDocument(doc)
	if err != nil {
		writeError(w, apperrors.Wrap(apperrors.ErrImportFailed, "backup cannot be imported", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"blocks":         len(doc.Blocks) - len(report.DroppedBlocks),
		"channels":       len(doc.Channels),
		"droppedBlocks":  report.DroppedBlocks,
		"selectionReset": report.SelectionReset,
		"manifest":       manifest,
	})
}

// ListBackups handles GET /api/backups
// Returns the scheduler configuration and the archives on disk.
func (h *ExportHandler) ListBackups(w http.ResponseWriter, r *http.Request) {
	cfg := h.scheduler.Config()
	archives, err := scheduler.ListArchives(cfg.ExportDir)
	if err != nil {
		writeError(w, apperrors.Wrap(apperrors.ErrInternal, "failed to list backups", err))
		return
	}

	type backup struct {
		Name      string    `json:"name"`
		SizeBytes int64     `json:"size_bytes"`
		CreatedAt time.Time `json:"created_at"`
	}
	out := make([]backup, 0, len(archives))
	for _, a := range archives {
		out = append(out, backup{Name: filepath.Base(a.Path), SizeBytes: a.SizeBytes, CreatedAt: a.CreatedAt})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"interval":  cfg.Interval,
		"retention": cfg.RetentionCount,
		"encrypted": cfg.Password != "",
		"backups":   out,
	})
}

// RunBackup handles POST /api/backups
// Takes a backup into the backup directory now.
func (h *ExportHandler) RunBackup(w http.ResponseWriter, r *http.Request) {
	result, err := h.scheduler.RunNow()
	if err != nil {
		writeError(w, apperrors.Wrap(apperrors.ErrExportFailed, "backup failed", err))
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"name":       filepath.Base(result.FilePath),
		"size_bytes": result.SizeBytes,
		"manifest":   result.Manifest,
	})
}
