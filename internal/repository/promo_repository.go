package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/digkill/visionhub/internal/models"
)

type PromoRepository struct {
	db *sql.DB
}

func NewPromoRepository(db *sql.DB) *PromoRepository {
	return &PromoRepository{db: db}
}

func (r *PromoRepository) GetByID(ctx context.Context, id int64) (*models.PromoCode, error) {
	const query = `SELECT id, code, max_uses, uses, created_at FROM promo_codes WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)
	var promo models.PromoCode
	if err := row.Scan(&promo.ID, &promo.Code, &promo.MaxUses, &promo.Uses, &promo.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get promo by id: %w", err)
	}
	return &promo, nil
}

func (r *PromoRepository) List(ctx context.Context) ([]models.PromoCode, error) {
	const query = `SELECT id, code, max_uses, uses, created_at FROM promo_codes ORDER BY id DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list promos: %w", err)
	}
	defer rows.Close()

	var promos []models.PromoCode
	for rows.Next() {
		var promo models.PromoCode
		if err := rows.Scan(&promo.ID, &promo.Code, &promo.MaxUses, &promo.Uses, &promo.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan promo list: %w", err)
		}
		promos = append(promos, promo)
	}
	return promos, rows.Err()
}

func (r *PromoRepository) Create(ctx context.Context, code string, maxUses int) (*models.PromoCode, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO promo_codes (code, max_uses, uses) VALUES (?, ?, 0)`, code, maxUses)
	if err != nil {
		return nil, fmt.Errorf("create promo: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("promo last insert id: %w", err)
	}
	return r.GetByID(ctx, id)
}

func (r *PromoRepository) Update(ctx context.Context, promo *models.PromoCode) (*models.PromoCode, error) {
	const query = `UPDATE promo_codes SET code = ?, max_uses = ?, uses = ? WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, promo.Code, promo.MaxUses, promo.Uses, promo.ID); err != nil {
		return nil, fmt.Errorf("update promo: %w", err)
	}
	return r.GetByID(ctx, promo.ID)
}

func (r *PromoRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM promo_codes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete promo: %w", err)
	}
	return nil
}

// Redeem records a one-time redemption of code by userID and grants bonus
// credits, all under a row lock on the promo code.
func (r *PromoRepository) Redeem(ctx context.Context, userID, code string, bonus int) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		var promoID int64
		var uses, maxUses int
		row := tx.QueryRowContext(ctx, `SELECT id, uses, max_uses FROM promo_codes WHERE code = ? FOR UPDATE`, code)
		if err := row.Scan(&promoID, &uses, &maxUses); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrPromoInvalid
			}
			return fmt.Errorf("lock promo: %w", err)
		}
		if uses >= maxUses {
			return ErrPromoExhausted
		}

		if _, err := tx.ExecContext(ctx, `INSERT INTO promo_redemptions (user_id, promo_code_id) VALUES (?, ?)`, userID, promoID); err != nil {
			if isDuplicateEntry(err) {
				return ErrPromoAlreadyRedeemed
			}
			return fmt.Errorf("insert redemption: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE promo_codes SET uses = uses + 1 WHERE id = ?`, promoID); err != nil {
			return fmt.Errorf("increment promo uses: %w", err)
		}
		return addCredits(ctx, tx, userID, bonus)
	})
}
