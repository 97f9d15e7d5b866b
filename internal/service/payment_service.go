package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/digkill/visionhub/internal/apperror"
	"github.com/digkill/visionhub/internal/metrics"
	"github.com/digkill/visionhub/internal/models"
	"github.com/digkill/visionhub/internal/repository"
)

// PaymentService handles manual payment slips: the user submits proof of a
// transfer and an admin, or the YooKassa webhook, approves it.
type PaymentService struct {
	log      *slog.Logger
	payments PaymentStore
	plans    PlanStore
	notifier PaymentNotifier
}

func NewPaymentService(log *slog.Logger, payments PaymentStore, plans PlanStore, notifier PaymentNotifier) *PaymentService {
	return &PaymentService{log: log, payments: payments, plans: plans, notifier: notifier}
}

type PaymentInput struct {
	PlanID         int64
	PaymentSlipURL string
	ReferenceID    string
}

// Submit records an unapproved submission. The plan's credits are copied so
// later plan edits do not change what the approval grants.
func (s *PaymentService) Submit(ctx context.Context, uid string, input PaymentInput) (*models.PaymentSubmission, error) {
	slip := strings.TrimSpace(input.PaymentSlipURL)
	reference := strings.TrimSpace(input.ReferenceID)
	if slip == "" {
		return nil, apperror.ValidationFailed("paymentSlipUrl", "payment slip is required")
	}
	if reference == "" {
		return nil, apperror.ValidationFailed("referenceId", "reference id is required")
	}

	plan, err := s.plan(ctx, input.PlanID)
	if err != nil {
		return nil, err
	}

	sub := &models.PaymentSubmission{
		ID:             uuid.NewString(),
		UserID:         uid,
		PlanID:         plan.ID,
		Plan:           plan.Title,
		Credits:        plan.Credits,
		PaymentSlipURL: slip,
		ReferenceID:    reference,
	}
	if err := s.payments.Create(ctx, sub); err != nil {
		return nil, err
	}
	metrics.PaymentSubmissions.WithLabelValues("submitted").Inc()

	if s.notifier != nil {
		if err := s.notifier.PaymentSubmitted(ctx, sub); err != nil && s.log != nil {
			s.log.Warn("notify payment submission", "payment", sub.ID, "err", err)
		}
	}
	return sub, nil
}

func (s *PaymentService) plan(ctx context.Context, id int64) (*models.Plan, error) {
	var (
		plan *models.Plan
		err  error
	)
	if id == 0 {
		plan, err = s.plans.GetDefault(ctx)
	} else {
		plan, err = s.plans.GetByID(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load plan: %w", err)
	}
	if plan == nil || !plan.IsActive {
		return nil, apperror.ValidationFailed("planId", "plan is not available")
	}
	return plan, nil
}

func (s *PaymentService) List(ctx context.Context, pendingOnly bool) ([]models.PaymentSubmission, error) {
	return s.payments.List(ctx, pendingOnly)
}

func (s *PaymentService) ListForUser(ctx context.Context, uid string) ([]models.PaymentSubmission, error) {
	return s.payments.ListByUser(ctx, uid)
}

// Approve flips the submission to approved and credits its owner exactly once.
// Approving again returns ErrPaymentAlreadyApproved and changes nothing.
func (s *PaymentService) Approve(ctx context.Context, id string) (*models.PaymentSubmission, error) {
	sub, err := s.payments.Approve(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrPaymentNotFound) {
			return nil, apperror.NotFound("payment submission", id)
		}
		return nil, err
	}
	metrics.PaymentSubmissions.WithLabelValues("approved").Inc()
	metrics.CreditsGranted.WithLabelValues("payment").Add(float64(sub.Credits))
	if s.log != nil {
		s.log.Info("payment approved", "payment", sub.ID, "user", sub.UserID, "credits", sub.Credits)
	}
	if s.notifier != nil {
		if err := s.notifier.PaymentApproved(ctx, sub); err != nil && s.log != nil {
			s.log.Warn("notify payment approval", "payment", sub.ID, "err", err)
		}
	}
	return sub, nil
}

type yooKassaEvent struct {
	Event  string `json:"event"`
	Object struct {
		ID       string            `json:"id"`
		Status   string            `json:"status"`
		Metadata map[string]string `json:"metadata"`
	} `json:"object"`
}

// HandleYooKassaWebhook approves the submission referenced by a succeeded
// payment. The submission is matched by metadata.reference_id, falling back
// to the YooKassa payment id. Redelivered events are a no-op.
func (s *PaymentService) HandleYooKassaWebhook(ctx context.Context, payload []byte) error {
	var evt yooKassaEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return apperror.ValidationFailed("body", "malformed webhook payload")
	}
	if evt.Object.ID == "" {
		return apperror.ValidationFailed("object.id", "webhook missing payment id")
	}
	if evt.Object.Status != "succeeded" {
		if s.log != nil {
			s.log.Info("yookassa event ignored", "event", evt.Event, "status", evt.Object.Status, "payment", evt.Object.ID)
		}
		return nil
	}

	reference := evt.Object.Metadata["reference_id"]
	if reference == "" {
		reference = evt.Object.ID
	}
	sub, err := s.payments.FindByReference(ctx, reference)
	if err != nil {
		return fmt.Errorf("find payment: %w", err)
	}
	if sub == nil {
		return apperror.NotFound("payment submission", reference)
	}
	if sub.Approved {
		return nil
	}
	if _, err := s.Approve(ctx, sub.ID); err != nil && !errors.Is(err, ErrPaymentAlreadyApproved) {
		return err
	}
	return nil
}
