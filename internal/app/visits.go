package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"bookery/pkg/domain"
	"bookery/pkg/store"
)

// dailyVisitLimit caps recorded visits per (viewer, book) pair per UTC day.
// Anonymous viewers share a single bucket per book.
const dailyVisitLimit = 10

type visitEvent struct {
	userID *uint
	bookID uint
	at     time.Time
}

// VisitRecorder records book views on a background worker so page loads
// never block on visit bookkeeping. Recording failures are logged and
// dropped; visits are best-effort by design of the page path.
type VisitRecorder struct {
	store store.Store
	ch    chan visitEvent
	g     *errgroup.Group
	now   func() time.Time
}

func NewVisitRecorder(st store.Store) *VisitRecorder {
	return &VisitRecorder{
		store: st,
		ch:    make(chan visitEvent, 256),
		now:   time.Now,
	}
}

// Start launches the worker. When ctx is canceled the worker drains queued
// events and exits; Wait blocks until then.
func (v *VisitRecorder) Start(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	v.g = g
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				v.drain()
				return nil
			case ev := <-v.ch:
				v.recordNow(ev)
			}
		}
	})
}

func (v *VisitRecorder) drain() {
	for {
		select {
		case ev := <-v.ch:
			v.recordNow(ev)
		default:
			return
		}
	}
}

// Wait blocks until the worker has exited.
func (v *VisitRecorder) Wait() {
	if v != nil && v.g != nil {
		_ = v.g.Wait()
	}
}

// Record enqueues a visit without blocking. Events are dropped when the
// queue is full.
func (v *VisitRecorder) Record(userID *uint, bookID uint) {
	if v == nil {
		return
	}
	ev := visitEvent{userID: userID, bookID: bookID, at: v.now().UTC()}
	select {
	case v.ch <- ev:
	default:
		slog.Warn("visit queue full, dropping visit", "book_id", bookID)
	}
}

func (v *VisitRecorder) recordNow(ev visitEvent) {
	dayStart := time.Date(ev.at.Year(), ev.at.Month(), ev.at.Day(), 0, 0, 0, 0, time.UTC)
	count, err := v.store.CountVisits(ev.userID, ev.bookID, dayStart)
	if err != nil {
		slog.Warn("count visits failed", "book_id", ev.bookID, "error", err)
		return
	}
	if count >= dailyVisitLimit {
		return
	}
	if _, err := v.store.CreateVisit(domain.Visit{UserID: ev.userID, BookID: ev.bookID, VisitTime: ev.at}); err != nil {
		slog.Warn("record visit failed", "book_id", ev.bookID, "error", err)
	}
}
