// Package api serves the signed-in user surface: profile, generation, gallery and payments.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/digkill/visionhub/internal/auth"
	"github.com/digkill/visionhub/internal/gallery"
	"github.com/digkill/visionhub/internal/httpx"
	"github.com/digkill/visionhub/internal/models"
	"github.com/digkill/visionhub/internal/service"
)

type Users interface {
	EnsureProfile(ctx context.Context, uid, email string, emailVerified bool) (*models.UserProfile, error)
	Profile(ctx context.Context, uid string) (*models.UserProfile, error)
	SetUsername(ctx context.Context, uid, name string) (*models.UserProfile, error)
	CheckUsernameAvailability(ctx context.Context, name string) (bool, error)
}

type Generator interface {
	GenerateImages(ctx context.Context, req service.ImageRequest) ([]models.MediaItem, error)
	GenerateVideo(ctx context.Context, req service.VideoRequest) (*models.MediaItem, error)
}

type Gallery interface {
	List(ctx context.Context, uid string, order gallery.Order, page int) (gallery.Page, error)
	DeleteGroup(ctx context.Context, uid, key string) (int, error)
	PageSize() int
}

type GalleryWatcher interface {
	Watch(ctx context.Context, uid string, onChange func([]models.PromptGroup)) (func(), error)
}

type Payments interface {
	Submit(ctx context.Context, uid string, input service.PaymentInput) (*models.PaymentSubmission, error)
	ListForUser(ctx context.Context, uid string) ([]models.PaymentSubmission, error)
}

type Plans interface {
	List(ctx context.Context, activeOnly bool) ([]models.Plan, error)
}

type Promos interface {
	Apply(ctx context.Context, uid, code string) (int, error)
}

type ModelCatalog interface {
	Models(kind models.MediaKind) []string
}

// Deps are the collaborators behind the routes. Watcher may be nil, which
// disables the gallery stream.
type Deps struct {
	Tokens    *auth.TokenService
	Users     Users
	Generator Generator
	Gallery   Gallery
	Watcher   GalleryWatcher
	Payments  Payments
	Plans     Plans
	Promos    Promos
	Models    ModelCatalog
}

type Options struct {
	Addr           string
	AllowedOrigins []string
	// GenerationsPerMinute bounds generation requests per user. Zero disables the limit.
	GenerationsPerMinute int
}

type Server struct {
	addr    string
	log     *slog.Logger
	deps    Deps
	origins map[string]bool
	limiter *rateLimiter
	router  *chi.Mux
}

func NewServer(opts Options, log *slog.Logger, deps Deps) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httpx.RequestLogger(log))

	s := &Server{
		addr:    opts.Addr,
		log:     log,
		deps:    deps,
		origins: make(map[string]bool),
		limiter: newRateLimiter(opts.GenerationsPerMinute),
		router:  r,
	}
	for _, origin := range opts.AllowedOrigins {
		s.origins[origin] = true
	}
	r.Use(s.cors)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/plans", s.handleListPlans)
	r.Get("/models", s.handleListModels)

	r.Group(func(protected chi.Router) {
		protected.Use(auth.RequireAuth(deps.Tokens))
		protected.Use(s.ensureProfile)

		protected.Get("/me", s.handleMe)
		protected.Put("/me/username", s.handleSetUsername)
		protected.Get("/usernames/{name}/available", s.handleUsernameAvailable)

		protected.Group(func(limited chi.Router) {
			limited.Use(s.limiter.middleware)
			limited.Post("/generations/images", s.handleGenerateImages)
			limited.Post("/generations/videos", s.handleGenerateVideo)
		})

		protected.Get("/gallery", s.handleGallery)
		protected.Get("/gallery/stream", s.handleGalleryStream)
		protected.Delete("/gallery/groups/{key}", s.handleDeleteGroup)

		protected.Get("/payments", s.handleListPayments)
		protected.Post("/payments", s.handleSubmitPayment)
		protected.Post("/promo", s.handleApplyPromo)
	})
	return s
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	httpx.WriteError(w, s.log, err)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Run(ctx context.Context) error {
	// Generation calls can take minutes, so there is no write timeout here;
	// provider deadlines bound the handlers instead.
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error("api shutdown error", "err", err)
		}
	}()

	s.log.Info("api listening", "addr", s.addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api listen: %w", err)
	}
	return nil
}
