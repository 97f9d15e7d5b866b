package feed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/digkill/visionhub/internal/models"
)

type MediaLoader interface {
	ListByUser(ctx context.Context, kind models.MediaKind, userID string) ([]models.MediaItem, error)
}

// LiveQuery re-reads a user's collection after every change notification and
// hands the full result to the subscriber.
type LiveQuery struct {
	bus    Bus
	loader MediaLoader
	log    *slog.Logger
}

func NewLiveQuery(bus Bus, loader MediaLoader, log *slog.Logger) *LiveQuery {
	return &LiveQuery{bus: bus, loader: loader, log: log}
}

// Subscribe delivers the current snapshot before returning, then a fresh one
// after each change. Snapshots are delivered sequentially. A failed reload is
// logged and skipped; the subscriber keeps its previous snapshot.
func (q *LiveQuery) Subscribe(ctx context.Context, kind models.MediaKind, uid string, fn func([]models.MediaItem)) (func(), error) {
	subCtx, cancel := context.WithCancel(ctx)
	changed := make(chan struct{}, 1)

	unsubscribe, err := q.bus.Subscribe(subCtx, Channel(kind.Collection(), uid), func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	if err != nil {
		cancel()
		return nil, err
	}

	items, err := q.loader.ListByUser(subCtx, kind, uid)
	if err != nil {
		unsubscribe()
		cancel()
		return nil, fmt.Errorf("initial %s snapshot: %w", kind.Collection(), err)
	}
	fn(items)

	go func() {
		for {
			select {
			case <-subCtx.Done():
				return
			case <-changed:
			}
			items, err := q.loader.ListByUser(subCtx, kind, uid)
			if err != nil {
				if subCtx.Err() == nil && q.log != nil {
					q.log.Warn("reload live query", "collection", kind.Collection(), "user", uid, "err", err)
				}
				continue
			}
			if subCtx.Err() != nil {
				return
			}
			fn(items)
		}
	}()

	return func() {
		unsubscribe()
		cancel()
	}, nil
}

// Notify tells subscribers of uid's collection that it changed.
func (q *LiveQuery) Notify(ctx context.Context, kind models.MediaKind, uid string) error {
	return q.bus.Publish(ctx, Channel(kind.Collection(), uid))
}
