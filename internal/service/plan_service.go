package service

import (
	"context"
	"strconv"

	"github.com/digkill/visionhub/internal/apperror"
	"github.com/digkill/visionhub/internal/models"
)

type PlanDefaults struct {
	Currency        string
	PriceMinorUnits int
	Credits         int
}

type PlanService struct {
	defaults PlanDefaults
	repo     PlanStore
}

type CreatePlanInput struct {
	Title           string
	Description     string
	Currency        string
	PriceMinorUnits int
	Credits         int
	IsActive        *bool
}

type UpdatePlanInput struct {
	Title           *string
	Description     *string
	Currency        *string
	PriceMinorUnits *int
	Credits         *int
	IsActive        *bool
}

func NewPlanService(defaults PlanDefaults, repo PlanStore) *PlanService {
	return &PlanService{defaults: defaults, repo: repo}
}

// EnsureDefaultPlan seeds one credit package when no active plan exists.
func (s *PlanService) EnsureDefaultPlan(ctx context.Context) error {
	plan, err := s.repo.GetDefault(ctx)
	if err != nil {
		return err
	}
	if plan != nil {
		return nil
	}
	_, err = s.repo.Create(ctx, &models.Plan{
		Title:           "Credit pack",
		Description:     "Credits for video generation",
		Currency:        s.defaults.Currency,
		PriceMinorUnits: s.defaults.PriceMinorUnits,
		Credits:         s.defaults.Credits,
		IsActive:        true,
	})
	return err
}

func (s *PlanService) List(ctx context.Context, activeOnly bool) ([]models.Plan, error) {
	return s.repo.List(ctx, activeOnly)
}

func (s *PlanService) Create(ctx context.Context, input CreatePlanInput) (*models.Plan, error) {
	if input.Title == "" {
		return nil, apperror.ValidationFailed("title", "title is required")
	}
	if input.Currency == "" {
		input.Currency = s.defaults.Currency
	}
	if input.PriceMinorUnits <= 0 {
		return nil, apperror.ValidationFailed("price_minor_units", "price must be positive")
	}
	if input.Credits <= 0 {
		return nil, apperror.ValidationFailed("credits", "credits must be positive")
	}
	isActive := true
	if input.IsActive != nil {
		isActive = *input.IsActive
	}
	return s.repo.Create(ctx, &models.Plan{
		Title:           input.Title,
		Description:     input.Description,
		Currency:        input.Currency,
		PriceMinorUnits: input.PriceMinorUnits,
		Credits:         input.Credits,
		IsActive:        isActive,
	})
}

func (s *PlanService) Update(ctx context.Context, id int64, input UpdatePlanInput) (*models.Plan, error) {
	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.Title != nil && *input.Title != "" {
		existing.Title = *input.Title
	}
	if input.Description != nil {
		existing.Description = *input.Description
	}
	if input.Currency != nil && *input.Currency != "" {
		existing.Currency = *input.Currency
	}
	if input.PriceMinorUnits != nil {
		if *input.PriceMinorUnits <= 0 {
			return nil, apperror.ValidationFailed("price_minor_units", "price must be positive")
		}
		existing.PriceMinorUnits = *input.PriceMinorUnits
	}
	if input.Credits != nil {
		if *input.Credits <= 0 {
			return nil, apperror.ValidationFailed("credits", "credits must be positive")
		}
		existing.Credits = *input.Credits
	}
	if input.IsActive != nil {
		existing.IsActive = *input.IsActive
	}
	return s.repo.Update(ctx, existing)
}

func (s *PlanService) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

func (s *PlanService) GetByID(ctx context.Context, id int64) (*models.Plan, error) {
	plan, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, apperror.NotFound("plan", strconv.FormatInt(id, 10))
	}
	return plan, nil
}
