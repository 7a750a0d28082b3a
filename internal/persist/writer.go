package persist

import (
	"context"
	"sync"
	"time"

	"github.com/kimhsiao/stash/internal/logging"
	"github.com/kimhsiao/stash/internal/models"
)

// Saver is satisfied by Adapter.
type Saver interface {
	Save(ctx context.Context, doc models.Document) error
}

// Writer saves documents in the background. Enqueued documents coalesce:
// only the latest one pending when the writer wakes up is saved. Save errors
// are logged and never reach the caller of Enqueue.
type Writer struct {
	saver   Saver
	timeout time.Duration

	mu      sync.Mutex
	pending *models.Document
	closed  bool
	lastErr error
	saves   int

	wake     chan struct{}
	flushReq chan chan struct{}
	quit     chan struct{}
	done     chan struct{}
	once     sync.Once
}

// NewWriter starts the writer goroutine.
func NewWriter(saver Saver) *Writer {
	w := &Writer{
		saver:    saver,
		timeout:  10 * time.Second,
		wake:     make(chan struct{}, 1),
		flushReq: make(chan chan struct{}),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go w.run()
	return w
}

// Enqueue schedules doc to be saved.
func (w *Writer) Enqueue(doc models.Document) {
	if !w.enqueue(doc) {
		logging.Warn("Writer closed, dropping document", nil)
	}
}

// enqueue reports whether doc was accepted. The closed check and the
// pending write share the lock, so an accepted document is always seen by
// the final drain.
func (w *Writer) enqueue(doc models.Document) bool {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return false
	}
	w.pending = &doc
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
	return true
}

// Flush blocks until every document enqueued before the call is saved.
func (w *Writer) Flush(ctx context.Context) error {
	ack := make(chan struct{})
	select {
	case w.flushReq <- ack:
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close saves what is pending and stops the goroutine. A document enqueued
// before Close returns is either saved or rejected, never lost silently.
func (w *Writer) Close() {
	w.once.Do(func() {
		w.mu.Lock()
		w.closed = true
		w.mu.Unlock()
		close(w.quit)
	})
	<-w.done
}

// LastError returns the error of the most recent save, or nil.
func (w *Writer) LastError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

// Saves returns how many saves were attempted.
func (w *Writer) Saves() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.saves
}

func (w *Writer) run() {
	defer close(w.done)
	for {
		select {
		case <-w.wake:
			w.drain()
		case ack := <-w.flushReq:
			w.drain()
			close(ack)
		case <-w.quit:
			w.drain()
			return
		}
	}
}

func (w *Writer) drain() {
	for {
		w.mu.Lock()
		doc := w.pending
		w.pending = nil
		w.mu.Unlock()

		if doc == nil {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		err := w.saver.Save(ctx, *doc)
		cancel()

		if err != nil {
			logging.Error("Failed to save state", err, map[string]interface{}{
				"blocks":   len(doc.Blocks),
				"channels": len(doc.Channels),
			})
		}

		w.mu.Lock()
		w.lastErr = err
		w.saves++
		w.mu.Unlock()
	}
}
