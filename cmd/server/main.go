package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/digkill/visionhub/internal/admin"
	"github.com/digkill/visionhub/internal/api"
	"github.com/digkill/visionhub/internal/auth"
	"github.com/digkill/visionhub/internal/config"
	"github.com/digkill/visionhub/internal/database"
	"github.com/digkill/visionhub/internal/feed"
	"github.com/digkill/visionhub/internal/gallery"
	"github.com/digkill/visionhub/internal/gemini"
	"github.com/digkill/visionhub/internal/kie"
	"github.com/digkill/visionhub/internal/metrics"
	"github.com/digkill/visionhub/internal/models"
	"github.com/digkill/visionhub/internal/provider"
	"github.com/digkill/visionhub/internal/repository"
	"github.com/digkill/visionhub/internal/service"
	"github.com/digkill/visionhub/internal/storage"
	"github.com/digkill/visionhub/internal/telegram"
	"github.com/digkill/visionhub/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logr := logger.New(cfg.LogLevel)
	if missing := cfg.Missing(); len(missing) > 0 {
		logr.Warn("running with components disabled", "missing", missing)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MySQLDSN == "" {
		log.Fatalf("database: MYSQL_DSN is required")
	}
	db, err := database.Connect(ctx, cfg.MySQLDSN)
	if err != nil {
		log.Fatalf("database connect: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("database migrate: %v", err)
	}

	var tokens *auth.TokenService
	if cfg.UserAPIEnabled() {
		if tokens, err = auth.NewTokenService(cfg.AuthJWTSecret, cfg.AuthJWTIssuer); err != nil {
			log.Fatalf("auth: %v", err)
		}
	} else {
		logr.Warn("user API disabled", "reason", "AUTH_JWT_SECRET unset or shorter than 16 characters")
	}

	userRepo := repository.NewUserRepository(db)
	mediaRepo := repository.NewMediaRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	planRepo := repository.NewPlanRepository(db)
	promoRepo := repository.NewPromoRepository(db)

	var objects service.ObjectStore
	if cfg.StorageEnabled() {
		uploader, err := storage.NewUploader(storage.Config{
			Endpoint:      cfg.S3Endpoint,
			Region:        cfg.S3Region,
			AccessKey:     cfg.S3AccessKey,
			SecretKey:     cfg.S3SecretKey,
			Bucket:        cfg.S3Bucket,
			PublicBaseURL: cfg.S3PublicBaseURL,
			UsePathStyle:  cfg.S3UsePathStyle,
			Prefix:        cfg.S3Prefix,
		})
		if err != nil {
			log.Fatalf("storage uploader: %v", err)
		}
		objects = uploader
	} else {
		logr.Warn("object storage not configured, generation disabled")
	}

	registry := provider.NewRegistry()
	register := func(name string, kind models.MediaKind, p provider.Provider) {
		registry.Register(name, kind, provider.WithRetry(p, cfg.ProviderTimeout, cfg.ProviderRetries, logr, metrics.ProviderAttempts))
	}
	if cfg.KIEAPIKey != "" {
		kieClient := kie.NewClient(kie.Options{APIKey: cfg.KIEAPIKey, BaseURL: cfg.KIEBaseURL, AttemptTimeout: cfg.ProviderTimeout}, logr)
		register(kie.ModelFlux2, models.MediaImage, kieClient.Flux2())
		register(kie.ModelNanoBanana, models.MediaImage, kieClient.NanoBanana())
		register(cfg.KIEVideoModel, models.MediaVideo, kieClient.Video(cfg.KIEVideoModel))
	}
	if cfg.GeminiAPIKey != "" {
		gem, err := gemini.New(ctx, cfg.GeminiAPIKey, cfg.GeminiImageModel)
		if err != nil {
			log.Fatalf("gemini: %v", err)
		}
		register(gemini.DisplayName, models.MediaImage, gem)
	}
	logr.Info("generation models registered",
		"image", registry.Models(models.MediaImage),
		"video", registry.Models(models.MediaVideo))

	bus, closeBus := newBus(ctx, cfg, logr)
	defer closeBus()
	live := feed.NewLiveQuery(bus, mediaRepo, logr)

	var notifier service.PaymentNotifier
	if cfg.TelegramBotToken != "" && cfg.TelegramAdminChatID != 0 {
		n, err := telegram.NewNotifier(cfg.TelegramBotToken, cfg.TelegramAdminChatID, logr)
		if err != nil {
			logr.Warn("telegram notifier disabled", "err", err)
		} else {
			notifier = n
		}
	}

	ledger := service.NewLedger(userRepo)
	userService := service.NewUserService(logr, userRepo, cfg.SignupCredits)
	planService := service.NewPlanService(service.PlanDefaults{
		Currency:        cfg.PaymentCurrency,
		PriceMinorUnits: cfg.PaymentPriceMinorUnits,
		Credits:         cfg.PaymentCreditsPerPackage,
	}, planRepo)
	promoService := service.NewPromoService(logr, promoRepo, cfg.PromoBonusCredits)
	paymentService := service.NewPaymentService(logr, paymentRepo, planRepo, notifier)
	generationService := service.NewGenerationService(logr, registry, mediaRepo, objects, ledger, live, cfg.VideoCost)
	galleryService := service.NewGalleryService(logr, mediaRepo, objects, live, cfg.GalleryPageSize)

	if err := planService.EnsureDefaultPlan(ctx); err != nil {
		log.Fatalf("ensure default plan: %v", err)
	}

	apiServer := api.NewServer(api.Options{
		Addr:                 cfg.APIListenAddr,
		AllowedOrigins:       cfg.AllowedOrigins,
		GenerationsPerMinute: cfg.GenerationRatePerMinute,
	}, logr, api.Deps{
		Tokens:    tokens,
		Users:     userService,
		Generator: generationService,
		Gallery:   galleryService,
		Watcher:   gallery.NewAggregator(live),
		Payments:  paymentService,
		Plans:     planService,
		Promos:    promoService,
		Models:    registry,
	})
	adminServer := admin.NewServer(admin.Options{
		Addr:         cfg.AdminListenAddr,
		Username:     cfg.AdminUsername,
		Password:     cfg.AdminPassword,
		WebhookToken: cfg.YooKassaSecretKey,
	}, logr, admin.Deps{
		Users:    userService,
		Credits:  ledger,
		Plans:    planService,
		Promos:   promoService,
		Payments: paymentService,
		Images:   galleryService,
	})

	g, gctx := errgroup.WithContext(ctx)
	if tokens != nil {
		g.Go(func() error { return apiServer.Run(gctx) })
	}
	g.Go(func() error { return adminServer.Run(gctx) })
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logr.Error("server stopped", "err", err)
	}
}

// newBus picks Redis pub/sub when configured so several API instances share
// change notifications; a single instance uses the in-process bus.
func newBus(ctx context.Context, cfg config.Config, logr *slog.Logger) (feed.Bus, func()) {
	if cfg.RedisAddr == "" {
		return feed.NewMemoryBus(), func() {}
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		if cfg.IsProduction() {
			log.Fatalf("redis: %v", err)
		}
		logr.Warn("redis unavailable, using in-process change feed", "err", err)
		_ = rdb.Close()
		return feed.NewMemoryBus(), func() {}
	}
	return feed.NewRedisBus(rdb, logr), func() { _ = rdb.Close() }
}
