package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/digkill/visionhub/internal/apperror"
	"github.com/digkill/visionhub/internal/metrics"
	"github.com/digkill/visionhub/internal/repository"
)

// Ledger owns every change to a user's credit balance.
type Ledger struct {
	store CreditStore
}

func NewLedger(store CreditStore) *Ledger {
	return &Ledger{store: store}
}

func (l *Ledger) Balance(ctx context.Context, uid string) (int, error) {
	credits, err := l.store.Credits(ctx, uid)
	if err != nil {
		return 0, l.mapErr(uid, err)
	}
	return credits, nil
}

// CheckAndReserve is a pre-flight read: it fails fast when the balance is
// already short but does not hold the credits. Debit is the real guard.
func (l *Ledger) CheckAndReserve(ctx context.Context, uid string, cost int) error {
	if cost <= 0 {
		return apperror.ValidationFailed("cost", "cost must be positive")
	}
	credits, err := l.Balance(ctx, uid)
	if err != nil {
		return err
	}
	if credits < cost {
		metrics.InsufficientCredits.Inc()
		return ErrInsufficientCredits
	}
	return nil
}

// Debit subtracts cost atomically and never drives the balance negative.
func (l *Ledger) Debit(ctx context.Context, uid string, cost int) error {
	if cost <= 0 {
		return apperror.ValidationFailed("cost", "cost must be positive")
	}
	ok, err := l.store.DebitCredits(ctx, uid, cost)
	if err != nil {
		return fmt.Errorf("debit %d credits: %w", cost, err)
	}
	if !ok {
		metrics.InsufficientCredits.Inc()
		return ErrInsufficientCredits
	}
	metrics.CreditsDebited.Add(float64(cost))
	return nil
}

// Credit adds amount atomically. source labels the grant in metrics.
func (l *Ledger) Credit(ctx context.Context, uid string, amount int, source string) error {
	if amount <= 0 {
		return apperror.ValidationFailed("amount", "amount must be positive")
	}
	if err := l.store.AddCredits(ctx, uid, amount); err != nil {
		return l.mapErr(uid, err)
	}
	metrics.CreditsGranted.WithLabelValues(source).Add(float64(amount))
	return nil
}

func (l *Ledger) mapErr(uid string, err error) error {
	if errors.Is(err, repository.ErrUserNotFound) {
		return apperror.NotFound("user", uid)
	}
	return err
}
