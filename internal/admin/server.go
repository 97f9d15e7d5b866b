// Package admin serves the operator API: plan and promo management, payment
// approval, balance adjustments and the payment provider webhook.
package admin

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/digkill/visionhub/internal/apperror"
	"github.com/digkill/visionhub/internal/httpx"
	"github.com/digkill/visionhub/internal/metrics"
	"github.com/digkill/visionhub/internal/models"
	"github.com/digkill/visionhub/internal/service"
)

type Users interface {
	Profile(ctx context.Context, uid string) (*models.UserProfile, error)
	SetShowAds(ctx context.Context, uid string, show bool) (*models.UserProfile, error)
}

type Credits interface {
	Credit(ctx context.Context, uid string, amount int, source string) error
	Debit(ctx context.Context, uid string, cost int) error
}

type Plans interface {
	List(ctx context.Context, activeOnly bool) ([]models.Plan, error)
	Create(ctx context.Context, input service.CreatePlanInput) (*models.Plan, error)
	Update(ctx context.Context, id int64, input service.UpdatePlanInput) (*models.Plan, error)
	Delete(ctx context.Context, id int64) error
}

type Promos interface {
	List(ctx context.Context) ([]models.PromoCode, error)
	Create(ctx context.Context, code string, maxUses int) (*models.PromoCode, error)
	Update(ctx context.Context, id int64, input service.UpdatePromoInput) (*models.PromoCode, error)
	Delete(ctx context.Context, id int64) error
}

type Payments interface {
	List(ctx context.Context, pendingOnly bool) ([]models.PaymentSubmission, error)
	Approve(ctx context.Context, id string) (*models.PaymentSubmission, error)
	HandleYooKassaWebhook(ctx context.Context, payload []byte) error
}

type Images interface {
	DeleteImage(ctx context.Context, id string) error
}

type Deps struct {
	Users    Users
	Credits  Credits
	Plans    Plans
	Promos   Promos
	Payments Payments
	Images   Images
}

type Options struct {
	Addr     string
	Username string
	Password string
	// WebhookToken must be passed as ?token= on webhook calls. Empty disables the webhook.
	WebhookToken string
}

type Server struct {
	addr         string
	username     string
	password     string
	webhookToken string
	log          *slog.Logger
	deps         Deps
	router       *chi.Mux
}

func NewServer(opts Options, log *slog.Logger, deps Deps) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httpx.RequestLogger(log))

	s := &Server{
		addr:         opts.Addr,
		username:     opts.Username,
		password:     opts.Password,
		webhookToken: opts.WebhookToken,
		log:          log,
		deps:         deps,
		router:       r,
	}
	r.Post("/webhook/yookassa", s.handleYooKassaWebhook)
	r.Group(func(protected chi.Router) {
		protected.Use(s.basicAuthMiddleware())
		protected.Handle("/metrics", metrics.Handler())
		protected.Route("/plans", func(r chi.Router) {
			r.Get("/", s.handleListPlans)
			r.Post("/", s.handleCreatePlan)
			r.Put("/{id}", s.handleUpdatePlan)
			r.Delete("/{id}", s.handleDeletePlan)
		})
		protected.Route("/promo-codes", func(r chi.Router) {
			r.Get("/", s.handleListPromos)
			r.Post("/", s.handleCreatePromo)
			r.Put("/{id}", s.handleUpdatePromo)
			r.Delete("/{id}", s.handleDeletePromo)
		})
		protected.Route("/payments", func(r chi.Router) {
			r.Get("/", s.handleListPayments)
			r.Post("/{id}/approve", s.handleApprovePayment)
		})
		protected.Route("/users/{uid}", func(r chi.Router) {
			r.Get("/", s.handleGetUser)
			r.Post("/credits", s.handleAdjustCredits)
			r.Put("/ads", s.handleSetShowAds)
		})
		protected.Delete("/images/{id}", s.handleDeleteImage)
	})
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error("admin shutdown error", "err", err)
		}
	}()

	s.log.Info("admin panel listening", "addr", s.addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("admin listen: %w", err)
	}
	return nil
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := s.deps.Plans.List(r.Context(), false)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if plans == nil {
		plans = []models.Plan{}
	}
	httpx.WriteJSON(w, http.StatusOK, plans)
}

func (s *Server) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	plan, err := s.deps.Plans.Create(r.Context(), service.CreatePlanInput{
		Title:           req.Title,
		Description:     req.Description,
		Currency:        req.Currency,
		PriceMinorUnits: req.PriceMinorUnits,
		Credits:         req.Credits,
		IsActive:        req.IsActive,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, plan)
}

func (s *Server) handleUpdatePlan(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var req planUpdateRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	plan, err := s.deps.Plans.Update(r.Context(), id, service.UpdatePlanInput{
		Title:           req.Title,
		Description:     req.Description,
		Currency:        req.Currency,
		PriceMinorUnits: req.PriceMinorUnits,
		Credits:         req.Credits,
		IsActive:        req.IsActive,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, plan)
}

func (s *Server) handleDeletePlan(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if err := s.deps.Plans.Delete(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListPromos(w http.ResponseWriter, r *http.Request) {
	promos, err := s.deps.Promos.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if promos == nil {
		promos = []models.PromoCode{}
	}
	httpx.WriteJSON(w, http.StatusOK, promos)
}

func (s *Server) handleCreatePromo(w http.ResponseWriter, r *http.Request) {
	var req promoRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	promo, err := s.deps.Promos.Create(r.Context(), req.Code, req.MaxUses)
	if err != nil {
		s.writeError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, promo)
}

func (s *Server) handleUpdatePromo(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var req promoUpdateRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	promo, err := s.deps.Promos.Update(r.Context(), id, service.UpdatePromoInput{
		Code:    req.Code,
		MaxUses: req.MaxUses,
		Uses:    req.Uses,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, promo)
}

func (s *Server) handleDeletePromo(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if err := s.deps.Promos.Delete(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListPayments(w http.ResponseWriter, r *http.Request) {
	pendingOnly := true
	if raw := r.URL.Query().Get("pending"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			s.writeError(w, apperror.ValidationFailed("pending", "pending must be true or false"))
			return
		}
		pendingOnly = v
	}
	subs, err := s.deps.Payments.List(r.Context(), pendingOnly)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if subs == nil {
		subs = []models.PaymentSubmission{}
	}
	httpx.WriteJSON(w, http.StatusOK, subs)
}

func (s *Server) handleApprovePayment(w http.ResponseWriter, r *http.Request) {
	sub, err := s.deps.Payments.Approve(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, sub)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	profile, err := s.deps.Users.Profile(r.Context(), chi.URLParam(r, "uid"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, profile)
}

type creditsRequest struct {
	// Amount is added when positive and subtracted when negative.
	Amount int `json:"amount"`
}

func (s *Server) handleAdjustCredits(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	var req creditsRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.Amount == 0 {
		s.writeError(w, apperror.ValidationFailed("amount", "amount must not be zero"))
		return
	}
	if _, err := s.deps.Users.Profile(r.Context(), uid); err != nil {
		s.writeError(w, err)
		return
	}
	var err error
	if req.Amount > 0 {
		err = s.deps.Credits.Credit(r.Context(), uid, req.Amount, "admin")
	} else {
		err = s.deps.Credits.Debit(r.Context(), uid, -req.Amount)
		if service.IsInsufficientCredits(err) {
			err = apperror.Conflict("balance is lower than the requested debit")
		}
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.log.Info("credits adjusted by admin", "user", uid, "amount", req.Amount)
	s.handleGetUser(w, r)
}

type showAdsRequest struct {
	ShowAds bool `json:"showAds"`
}

func (s *Server) handleSetShowAds(w http.ResponseWriter, r *http.Request) {
	var req showAdsRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	profile, err := s.deps.Users.SetShowAds(r.Context(), chi.URLParam(r, "uid"), req.ShowAds)
	if err != nil {
		s.writeError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, profile)
}

func (s *Server) handleDeleteImage(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Images.DeleteImage(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleYooKassaWebhook is the public endpoint for YooKassa payment status
// updates. The shared token in the notification URL authenticates the caller.
func (s *Server) handleYooKassaWebhook(w http.ResponseWriter, r *http.Request) {
	if s.webhookToken == "" {
		http.NotFound(w, r)
		return
	}
	token := r.URL.Query().Get("token")
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.webhookToken)) != 1 {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	if err := s.deps.Payments.HandleYooKassaWebhook(r.Context(), body); err != nil {
		s.log.Error("yookassa webhook", "err", err)
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) basicAuthMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok || s.password == "" ||
				subtle.ConstantTimeCompare([]byte(user), []byte(s.username)) != 1 ||
				subtle.ConstantTimeCompare([]byte(pass), []byte(s.password)) != 1 {
				w.Header().Set("WWW-Authenticate", `Basic realm="visionhub"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	httpx.WriteError(w, s.log, err)
}

func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, apperror.ValidationFailed("id", "invalid id"))
		return 0, false
	}
	return id, true
}

func parseID(value string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(value), 10, 64)
}

type planRequest struct {
	Title           string `json:"title"`
	Description     string `json:"description"`
	Currency        string `json:"currency"`
	PriceMinorUnits int    `json:"price_minor_units"`
	Credits         int    `json:"credits"`
	IsActive        *bool  `json:"is_active"`
}

type planUpdateRequest struct {
	Title           *string `json:"title"`
	Description     *string `json:"description"`
	Currency        *string `json:"currency"`
	PriceMinorUnits *int    `json:"price_minor_units"`
	Credits         *int    `json:"credits"`
	IsActive        *bool   `json:"is_active"`
}

type promoRequest struct {
	Code    string `json:"code"`
	MaxUses int    `json:"max_uses"`
}

type promoUpdateRequest struct {
	Code    *string `json:"code"`
	MaxUses *int    `json:"max_uses"`
	Uses    *int    `json:"uses"`
}
