package audit

import (
	"context"
	"sync"

	"github.com/nerrad567/gray-logic-mfa/internal/infrastructure/logging"
)

// DefaultBufferSize is the capacity of the Recorder queue.
const DefaultBufferSize = 256

// Recorder writes audit logs asynchronously through a bounded queue.
// Entries offered while the queue is full are dropped with a warning, so
// a slow database never holds up a request.
type Recorder struct {
	repo   Repository
	logger *logging.Logger
	ch     chan *AuditLog

	source string

	once sync.Once
	done chan struct{}
}

// NewRecorder creates a Recorder. Entries carry source as their Source
// field unless one is already set. Call Run to start writing.
func NewRecorder(repo Repository, logger *logging.Logger, source string, size int) *Recorder {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &Recorder{
		repo:   repo,
		logger: logger,
		ch:     make(chan *AuditLog, size),
		source: source,
		done:   make(chan struct{}),
	}
}

// Record enqueues entry without blocking. A nil Recorder ignores it.
func (r *Recorder) Record(entry *AuditLog) {
	if r == nil || entry == nil {
		return
	}
	if entry.Source == "" {
		entry.Source = r.source
	}

	select {
	case r.ch <- entry:
	default:
		r.logger.Warn("audit queue full, dropping entry",
			"action", entry.Action,
			"entity_type", entry.EntityType,
		)
	}
}

// Run writes queued entries until ctx is cancelled, then flushes what is
// left and returns. Writes are serial to suit SQLite's single writer.
func (r *Recorder) Run(ctx context.Context) {
	defer r.once.Do(func() { close(r.done) })

	for {
		select {
		case entry := <-r.ch:
			r.write(entry)
		case <-ctx.Done():
			for {
				select {
				case entry := <-r.ch:
					r.write(entry)
				default:
					return
				}
			}
		}
	}
}

// Done is closed once Run has flushed and returned.
func (r *Recorder) Done() <-chan struct{} {
	return r.done
}

func (r *Recorder) write(entry *AuditLog) {
	// The request that produced entry may already be finished.
	if err := r.repo.Create(context.Background(), entry); err != nil {
		r.logger.Error("audit log write failed",
			"action", entry.Action,
			"entity_type", entry.EntityType,
			"error", err,
		)
	}
}
