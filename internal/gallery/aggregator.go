package gallery

import (
	"context"
	"fmt"
	"sync"

	"github.com/digkill/visionhub/internal/models"
)

type LiveSubscriber interface {
	Subscribe(ctx context.Context, kind models.MediaKind, uid string, fn func([]models.MediaItem)) (func(), error)
}

// Aggregator keeps a user's grouped gallery current by recomputing it from
// both live collections on every snapshot.
type Aggregator struct {
	live LiveSubscriber
}

func NewAggregator(live LiveSubscriber) *Aggregator {
	return &Aggregator{live: live}
}

type watch struct {
	mu       sync.Mutex
	images   []models.MediaItem
	videos   []models.MediaItem
	seen     map[models.MediaKind]bool
	onChange func([]models.PromptGroup)
}

func (w *watch) update(kind models.MediaKind, items []models.MediaItem) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if kind == models.MediaVideo {
		w.videos = items
	} else {
		w.images = items
	}
	w.seen[kind] = true
	// Hold back the first emission until both collections have reported.
	if !w.seen[models.MediaImage] || !w.seen[models.MediaVideo] {
		return
	}
	w.onChange(Group(w.images, w.videos))
}

// Watch calls onChange with the unordered groups once both collections have
// produced their first snapshot and again after every later snapshot. Calls
// never overlap. The returned func stops the watch.
func (a *Aggregator) Watch(ctx context.Context, uid string, onChange func([]models.PromptGroup)) (func(), error) {
	w := &watch{seen: map[models.MediaKind]bool{}, onChange: onChange}

	stopImages, err := a.live.Subscribe(ctx, models.MediaImage, uid, func(items []models.MediaItem) {
		w.update(models.MediaImage, items)
	})
	if err != nil {
		return nil, fmt.Errorf("watch images: %w", err)
	}
	stopVideos, err := a.live.Subscribe(ctx, models.MediaVideo, uid, func(items []models.MediaItem) {
		w.update(models.MediaVideo, items)
	})
	if err != nil {
		stopImages()
		return nil, fmt.Errorf("watch videos: %w", err)
	}
	return func() {
		stopImages()
		stopVideos()
	}, nil
}
