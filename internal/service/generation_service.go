package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/digkill/visionhub/internal/apperror"
	"github.com/digkill/visionhub/internal/metrics"
	"github.com/digkill/visionhub/internal/models"
	"github.com/digkill/visionhub/internal/provider"
	"github.com/digkill/visionhub/internal/storage"
)

const (
	defaultAspectRatio = "1:1"
	maxPromptIDLength  = 64
)

var promptIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// GenerationService turns prompts into stored media. Image batches fan out one
// provider call per model and fail as a whole: the first failing branch
// cancels the rest and no partial result is returned. Branches that already
// finished keep their uploaded objects and metadata rows.
type GenerationService struct {
	log       *slog.Logger
	providers ProviderLookup
	media     MediaStore
	objects   ObjectStore
	ledger    *Ledger
	live      ChangeNotifier
	videoCost int

	newID func() string
	now   func() time.Time
}

func NewGenerationService(log *slog.Logger, providers ProviderLookup, media MediaStore, objects ObjectStore, ledger *Ledger, live ChangeNotifier, videoCost int) *GenerationService {
	return &GenerationService{
		log:       log,
		providers: providers,
		media:     media,
		objects:   objects,
		ledger:    ledger,
		live:      live,
		videoCost: videoCost,
		newID:     uuid.NewString,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

type ImageRequest struct {
	UserID      string
	Prompt      string
	AspectRatio string
	Models      []string
	PromptID    string
	SourceImage *provider.Media
}

type VideoRequest struct {
	UserID      string
	Prompt      string
	AspectRatio string
	Model       string
	PromptID    string
	SourceImage *provider.Media
}

// GenerateImages returns one item per requested model, in request order.
func (s *GenerationService) GenerateImages(ctx context.Context, req ImageRequest) (items []models.MediaItem, err error) {
	defer metrics.ObserveGeneration(string(models.MediaImage))(&err)

	if err := s.enabled(); err != nil {
		return nil, err
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, apperror.ValidationFailed("prompt", "prompt is required")
	}
	promptID, err := s.resolvePromptID(req.PromptID)
	if err != nil {
		return nil, err
	}
	if len(req.Models) == 0 {
		return nil, apperror.ValidationFailed("models", "select at least one model")
	}
	providers := make([]provider.Provider, len(req.Models))
	for i, name := range req.Models {
		p, err := s.providers.Lookup(name, models.MediaImage)
		if err != nil {
			return nil, apperror.ValidationFailed("models", fmt.Sprintf("unknown image model %q", name))
		}
		providers[i] = p
	}

	aspect := aspectOrDefault(req.AspectRatio)
	base, err := s.providerRequest(ctx, req.UserID, prompt, aspect, req.SourceImage)
	if err != nil {
		return nil, err
	}
	base.Kind = models.MediaImage

	results := make([]models.MediaItem, len(req.Models))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range req.Models {
		g.Go(func() error {
			call := base
			call.Model = name
			media, err := providers[i].Generate(gctx, call)
			if err != nil {
				return fmt.Errorf("generate with %s: %w", name, err)
			}
			item, err := s.store(gctx, models.MediaImage, req.UserID, name, prompt, promptID, media)
			if err != nil {
				return fmt.Errorf("store %s result: %w", name, err)
			}
			if err := s.media.Insert(gctx, item); err != nil {
				return fmt.Errorf("record %s result: %w", name, err)
			}
			results[i] = *item
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	metrics.GeneratedItems.WithLabelValues(string(models.MediaImage)).Add(float64(len(results)))
	s.notify(ctx, models.MediaImage, req.UserID)
	return results, nil
}

// GenerateVideo charges the configured cost only after the video is stored.
// The metadata row and the debit commit together; if the balance was spent
// concurrently the row is rolled back, the object removed and
// ErrInsufficientCredits returned.
func (s *GenerationService) GenerateVideo(ctx context.Context, req VideoRequest) (item *models.MediaItem, err error) {
	defer metrics.ObserveGeneration(string(models.MediaVideo))(&err)

	if err := s.enabled(); err != nil {
		return nil, err
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, apperror.ValidationFailed("prompt", "prompt is required")
	}
	promptID, err := s.resolvePromptID(req.PromptID)
	if err != nil {
		return nil, err
	}
	p, err := s.providers.Lookup(req.Model, models.MediaVideo)
	if err != nil {
		return nil, apperror.ValidationFailed("model", fmt.Sprintf("unknown video model %q", req.Model))
	}

	charged := s.videoCost > 0
	if charged {
		if err := s.ledger.CheckAndReserve(ctx, req.UserID, s.videoCost); err != nil {
			return nil, err
		}
	}

	aspect := aspectOrDefault(req.AspectRatio)
	call, err := s.providerRequest(ctx, req.UserID, prompt, aspect, req.SourceImage)
	if err != nil {
		return nil, err
	}
	call.Kind = models.MediaVideo
	call.Model = req.Model

	media, err := p.Generate(ctx, call)
	if err != nil {
		return nil, fmt.Errorf("generate with %s: %w", req.Model, err)
	}
	item, err = s.store(ctx, models.MediaVideo, req.UserID, req.Model, prompt, promptID, media)
	if err != nil {
		return nil, fmt.Errorf("store %s result: %w", req.Model, err)
	}

	if !charged {
		if err := s.media.Insert(ctx, item); err != nil {
			s.discard(item.Path)
			return nil, fmt.Errorf("record %s result: %w", req.Model, err)
		}
	} else {
		ok, err := s.media.InsertCharged(ctx, item, s.videoCost)
		if err != nil {
			s.discard(item.Path)
			return nil, fmt.Errorf("record %s result: %w", req.Model, err)
		}
		if !ok {
			s.discard(item.Path)
			metrics.InsufficientCredits.Inc()
			return nil, ErrInsufficientCredits
		}
		metrics.CreditsDebited.Add(float64(s.videoCost))
	}

	metrics.GeneratedItems.WithLabelValues(string(models.MediaVideo)).Inc()
	s.notify(ctx, models.MediaVideo, req.UserID)
	return item, nil
}

func (s *GenerationService) enabled() error {
	if s.providers == nil || s.objects == nil || s.media == nil {
		return ErrGenerationDisabled
	}
	return nil
}

// providerRequest builds the shared request. A reference image is published
// first because some providers only accept it by URL.
func (s *GenerationService) providerRequest(ctx context.Context, uid, prompt, aspect string, source *provider.Media) (provider.Request, error) {
	req := provider.Request{
		Prompt:      fmt.Sprintf("%s (aspect ratio %s)", prompt, aspect),
		AspectRatio: aspect,
	}
	if source == nil || len(source.Data) == 0 {
		return req, nil
	}
	objectPath := fmt.Sprintf("sources/%s/%s%s", uid, s.newID(), storage.ExtensionFor(source.MIMEType))
	url, err := s.publish(ctx, source, objectPath)
	if err != nil {
		return req, fmt.Errorf("publish reference image: %w", err)
	}
	req.SourceImage = source
	req.SourceURL = url
	return req, nil
}

// store uploads the media and returns the item that describes it. The item is not yet persisted.
func (s *GenerationService) store(ctx context.Context, kind models.MediaKind, uid, model, prompt, promptID string, media *provider.Media) (*models.MediaItem, error) {
	if media == nil || len(media.Data) == 0 {
		return nil, provider.ErrNoMedia
	}
	id := s.newID()
	ext := storage.ExtensionFor(media.MIMEType)
	if kind == models.MediaVideo {
		ext = ".mp4"
	}
	objectPath := fmt.Sprintf("%s/%s/%s%s", kind.Collection(), uid, id, ext)

	url, err := s.publish(ctx, media, objectPath)
	if err != nil {
		return nil, err
	}
	return &models.MediaItem{
		ID:        id,
		Kind:      kind,
		UserID:    uid,
		URL:       url,
		Path:      objectPath,
		Prompt:    prompt,
		PromptID:  promptID,
		Model:     model,
		CreatedAt: s.now(),
	}, nil
}

func (s *GenerationService) publish(ctx context.Context, media *provider.Media, objectPath string) (string, error) {
	url, err := s.objects.Upload(ctx, media.Data, objectPath, media.MIMEType)
	if err != nil {
		return "", err
	}
	if err := s.objects.MakePublic(ctx, objectPath); err != nil {
		s.discard(objectPath)
		return "", err
	}
	return url, nil
}

// discard removes an orphaned object. It runs detached from the request so a
// cancelled caller does not leave the object behind.
func (s *GenerationService) discard(objectPath string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.objects.Delete(ctx, objectPath); err != nil && s.log != nil {
		s.log.Warn("delete orphaned object", "path", objectPath, "err", err)
	}
}

func (s *GenerationService) notify(ctx context.Context, kind models.MediaKind, uid string) {
	if s.live == nil {
		return
	}
	if err := s.live.Notify(ctx, kind, uid); err != nil && s.log != nil {
		s.log.Warn("publish gallery change", "user", uid, "kind", kind, "err", err)
	}
}

// resolvePromptID returns the client's prompt id, or a fresh one when absent.
// Ids must fit the prompt_id column unchanged so the group key stays stable.
func (s *GenerationService) resolvePromptID(id string) (string, error) {
	if id == "" {
		return s.newID(), nil
	}
	if len(id) > maxPromptIDLength || !promptIDPattern.MatchString(id) {
		return "", apperror.ValidationFailed("promptId", "promptId must be 1-64 characters of letters, digits, '-', '_' or '.'")
	}
	return id, nil
}

func aspectOrDefault(aspect string) string {
	aspect = strings.TrimSpace(aspect)
	if aspect == "" {
		return defaultAspectRatio
	}
	return aspect
}

// IsInsufficientCredits reports whether err asks the user to buy credits.
func IsInsufficientCredits(err error) bool {
	return errors.Is(err, ErrInsufficientCredits)
}
