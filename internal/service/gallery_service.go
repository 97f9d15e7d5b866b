package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/digkill/visionhub/internal/apperror"
	"github.com/digkill/visionhub/internal/gallery"
	"github.com/digkill/visionhub/internal/models"
)

type GalleryService struct {
	log      *slog.Logger
	media    MediaStore
	objects  ObjectStore
	live     ChangeNotifier
	pageSize int
}

func NewGalleryService(log *slog.Logger, media MediaStore, objects ObjectStore, live ChangeNotifier, pageSize int) *GalleryService {
	return &GalleryService{log: log, media: media, objects: objects, live: live, pageSize: pageSize}
}

func (s *GalleryService) PageSize() int {
	return s.pageSize
}

// List returns one page of the user's prompt groups.
func (s *GalleryService) List(ctx context.Context, uid string, order gallery.Order, page int) (gallery.Page, error) {
	images, err := s.media.ListByUser(ctx, models.MediaImage, uid)
	if err != nil {
		return gallery.Page{}, err
	}
	videos, err := s.media.ListByUser(ctx, models.MediaVideo, uid)
	if err != nil {
		return gallery.Page{}, err
	}
	groups := gallery.Group(images, videos)
	gallery.Sort(groups, order)
	return gallery.Paginate(groups, page, s.pageSize), nil
}

// DeleteGroup removes every item of the group from both collections in one
// transaction, then deletes the stored files. File cleanup is best effort.
func (s *GalleryService) DeleteGroup(ctx context.Context, uid, key string) (int, error) {
	if key == "" {
		return 0, apperror.ValidationFailed("key", "group key is required")
	}
	items, err := s.media.FindGroup(ctx, uid, key)
	if err != nil {
		return 0, err
	}
	if len(items) == 0 {
		return 0, apperror.NotFound("prompt group", key)
	}
	if err := s.media.DeleteItems(ctx, items); err != nil {
		return 0, fmt.Errorf("delete group %s: %w", key, err)
	}
	s.cleanup(ctx, items)
	s.notify(ctx, uid, items)
	return len(items), nil
}

// DeleteImage is the admin removal of a single image.
func (s *GalleryService) DeleteImage(ctx context.Context, id string) error {
	item, err := s.media.GetByID(ctx, models.MediaImage, id)
	if err != nil {
		return err
	}
	if item == nil {
		return apperror.NotFound("image", id)
	}
	items := []models.MediaItem{*item}
	if err := s.media.DeleteItems(ctx, items); err != nil {
		return fmt.Errorf("delete image %s: %w", id, err)
	}
	s.cleanup(ctx, items)
	s.notify(ctx, item.UserID, items)
	return nil
}

func (s *GalleryService) cleanup(ctx context.Context, items []models.MediaItem) {
	if s.objects == nil {
		return
	}
	for _, item := range items {
		if item.Path == "" {
			continue
		}
		if err := s.objects.Delete(ctx, item.Path); err != nil && s.log != nil {
			s.log.Warn("delete media object", "item", item.ID, "path", item.Path, "err", err)
		}
	}
}

func (s *GalleryService) notify(ctx context.Context, uid string, items []models.MediaItem) {
	if s.live == nil {
		return
	}
	kinds := map[models.MediaKind]bool{}
	for _, item := range items {
		kinds[item.Kind] = true
	}
	for kind := range kinds {
		if err := s.live.Notify(ctx, kind, uid); err != nil && s.log != nil {
			s.log.Warn("publish gallery change", "user", uid, "kind", kind, "err", err)
		}
	}
}
