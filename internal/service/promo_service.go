package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/digkill/visionhub/internal/apperror"
	"github.com/digkill/visionhub/internal/metrics"
	"github.com/digkill/visionhub/internal/models"
	"github.com/digkill/visionhub/internal/repository"
)

type PromoService struct {
	log    *slog.Logger
	promos PromoStore
	bonus  int
}

func NewPromoService(log *slog.Logger, promos PromoStore, bonus int) *PromoService {
	return &PromoService{log: log, promos: promos, bonus: bonus}
}

// Apply redeems code for uid and grants the configured bonus. Each user can
// redeem a code once, and a code stops working after its max uses.
func (s *PromoService) Apply(ctx context.Context, uid, code string) (int, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return 0, apperror.ValidationFailed("code", "promo code is required")
	}
	if err := s.promos.Redeem(ctx, uid, code, s.bonus); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return 0, apperror.NotFound("user", uid)
		}
		return 0, err
	}
	metrics.CreditsGranted.WithLabelValues("promo").Add(float64(s.bonus))
	if s.log != nil {
		s.log.Info("promo code redeemed", "user", uid, "code", code, "bonus", s.bonus)
	}
	return s.bonus, nil
}

func (s *PromoService) List(ctx context.Context) ([]models.PromoCode, error) {
	return s.promos.List(ctx)
}

func (s *PromoService) GetByID(ctx context.Context, id int64) (*models.PromoCode, error) {
	promo, err := s.promos.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if promo == nil {
		return nil, apperror.NotFound("promo code", strconv.FormatInt(id, 10))
	}
	return promo, nil
}

func (s *PromoService) Create(ctx context.Context, code string, maxUses int) (*models.PromoCode, error) {
	code = strings.TrimSpace(code)
	if code == "" || maxUses <= 0 {
		return nil, apperror.ValidationFailed("code", "code and max_uses required")
	}
	return s.promos.Create(ctx, code, maxUses)
}

type UpdatePromoInput struct {
	Code    *string
	MaxUses *int
	Uses    *int
}

func (s *PromoService) Update(ctx context.Context, id int64, input UpdatePromoInput) (*models.PromoCode, error) {
	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.Code != nil && strings.TrimSpace(*input.Code) != "" {
		existing.Code = strings.TrimSpace(*input.Code)
	}
	if input.MaxUses != nil && *input.MaxUses > 0 {
		existing.MaxUses = *input.MaxUses
	}
	if input.Uses != nil && *input.Uses >= 0 {
		existing.Uses = *input.Uses
	}
	if existing.Uses > existing.MaxUses {
		return nil, apperror.ValidationFailed("uses", "uses cannot exceed max_uses")
	}
	return s.promos.Update(ctx, existing)
}

func (s *PromoService) Delete(ctx context.Context, id int64) error {
	return s.promos.Delete(ctx, id)
}
