package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/digkill/visionhub/internal/models"
)

type PaymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `id, user_id, plan_id, plan, credits, payment_slip_url, reference_id, approved, approved_at, created_at`

func (r *PaymentRepository) Create(ctx context.Context, sub *models.PaymentSubmission) error {
	const query = `
INSERT INTO payment_submissions (id, user_id, plan_id, plan, credits, payment_slip_url, reference_id, approved)
VALUES (?, ?, ?, ?, ?, ?, ?, 0)`
	if _, err := r.db.ExecContext(ctx, query, sub.ID, sub.UserID, sub.PlanID, sub.Plan, sub.Credits, sub.PaymentSlipURL, sub.ReferenceID); err != nil {
		return fmt.Errorf("insert payment submission: %w", err)
	}
	return nil
}

func (r *PaymentRepository) GetByID(ctx context.Context, id string) (*models.PaymentSubmission, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payment_submissions WHERE id = ?`, id)
	return scanPaymentRow(row)
}

func (r *PaymentRepository) FindByReference(ctx context.Context, referenceID string) (*models.PaymentSubmission, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payment_submissions WHERE reference_id = ? ORDER BY created_at DESC LIMIT 1`, referenceID)
	return scanPaymentRow(row)
}

func (r *PaymentRepository) List(ctx context.Context, pendingOnly bool) ([]models.PaymentSubmission, error) {
	query := `SELECT ` + paymentColumns + ` FROM payment_submissions`
	if pendingOnly {
		query += ` WHERE approved = 0`
	}
	query += ` ORDER BY created_at ASC`
	return r.list(ctx, query)
}

func (r *PaymentRepository) ListByUser(ctx context.Context, userID string) ([]models.PaymentSubmission, error) {
	return r.list(ctx, `SELECT `+paymentColumns+` FROM payment_submissions WHERE user_id = ? ORDER BY created_at DESC`, userID)
}

func (r *PaymentRepository) list(ctx context.Context, query string, args ...any) ([]models.PaymentSubmission, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list payment submissions: %w", err)
	}
	defer rows.Close()

	var subs []models.PaymentSubmission
	for rows.Next() {
		sub, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

// Approve flips the approval flag and credits the owner in one transaction.
// The row lock makes concurrent approvals of the same submission serialize,
// so the increment happens exactly once.
func (r *PaymentRepository) Approve(ctx context.Context, id string) (*models.PaymentSubmission, error) {
	var approved *models.PaymentSubmission
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payment_submissions WHERE id = ? FOR UPDATE`, id)
		sub, err := scanPaymentRow(row)
		if err != nil {
			return err
		}
		if sub == nil {
			return ErrPaymentNotFound
		}
		if sub.Approved {
			return ErrPaymentAlreadyApproved
		}
		if _, err := tx.ExecContext(ctx, `UPDATE payment_submissions SET approved = 1, approved_at = NOW() WHERE id = ?`, id); err != nil {
			return fmt.Errorf("mark payment approved: %w", err)
		}
		if err := addCredits(ctx, tx, sub.UserID, sub.Credits); err != nil {
			return err
		}
		sub.Approved = true
		approved = sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	return approved, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPaymentRow(row *sql.Row) (*models.PaymentSubmission, error) {
	sub, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return sub, err
}

func scanPayment(row rowScanner) (*models.PaymentSubmission, error) {
	var (
		sub        models.PaymentSubmission
		approved   int
		approvedAt sql.NullTime
	)
	if err := row.Scan(&sub.ID, &sub.UserID, &sub.PlanID, &sub.Plan, &sub.Credits, &sub.PaymentSlipURL, &sub.ReferenceID, &approved, &approvedAt, &sub.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan payment submission: %w", err)
	}
	sub.Approved = approved != 0
	if approvedAt.Valid {
		t := approvedAt.Time
		sub.ApprovedAt = &t
	}
	return &sub, nil
}
