package activity

import (
	"context"
	"log/slog"
	"time"

	"gatekeeper/internal/verification"
	"gatekeeper/pkg/domain"
)

// Flusher periodically drains the buffer into the verification store. The
// store's TouchActivity only updates Verified rows, so entries for members
// who are mid-challenge or never verified fall through silently.
type Flusher struct {
	buffer   Buffer
	store    verification.Store
	interval time.Duration
	logger   *slog.Logger
}

func NewFlusher(buffer Buffer, store verification.Store, interval time.Duration, logger *slog.Logger) *Flusher {
	return &Flusher{buffer: buffer, store: store, interval: interval, logger: logger}
}

// Run flushes on every tick until the context is cancelled, with one final
// flush on the way out so buffered activity survives a clean shutdown.
func (f *Flusher) Run(ctx context.Context) error {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			f.Flush(flushCtx)
			cancel()
			return ctx.Err()
		case <-ticker.C:
			f.Flush(ctx)
		}
	}
}

// Flush drains the buffer once. Failures are logged and dropped.
func (f *Flusher) Flush(ctx context.Context) {
	err := f.buffer.Drain(ctx, func(member domain.MemberID, group domain.GroupID, at time.Time) error {
		return f.store.TouchActivity(ctx, member, group, at)
	})
	if err != nil {
		f.logger.Warn("activity flush failed", "error", err)
	}
}
