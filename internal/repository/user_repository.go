package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/digkill/visionhub/internal/models"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) FindByUID(ctx context.Context, uid string) (*models.UserProfile, error) {
	const query = `
SELECT uid, email, email_verified, username, credits, show_ads, created_at, updated_at
FROM users WHERE uid = ?`
	row := r.db.QueryRowContext(ctx, query, uid)
	var (
		u        models.UserProfile
		verified int
		username sql.NullString
		showAds  int
	)
	if err := row.Scan(&u.UID, &u.Email, &verified, &username, &u.Credits, &showAds, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.EmailVerified = verified != 0
	u.ShowAds = showAds != 0
	if username.Valid {
		u.Username = &username.String
	}
	return &u, nil
}

// Ensure creates the profile on first sign-in and refreshes the identity fields afterwards.
// The boolean reports whether a new profile was created.
func (r *UserRepository) Ensure(ctx context.Context, uid, email string, emailVerified bool, signupCredits int) (*models.UserProfile, bool, error) {
	const query = `
INSERT INTO users (uid, email, email_verified, credits)
VALUES (?, ?, ?, ?)
ON DUPLICATE KEY UPDATE email = VALUES(email), email_verified = VALUES(email_verified)`
	res, err := r.db.ExecContext(ctx, query, uid, email, boolToInt(emailVerified), signupCredits)
	if err != nil {
		return nil, false, fmt.Errorf("upsert user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("upsert user rows affected: %w", err)
	}
	user, err := r.FindByUID(ctx, uid)
	if err != nil {
		return nil, false, err
	}
	if user == nil {
		return nil, false, ErrUserNotFound
	}
	// MySQL reports 1 for a fresh insert and 2 (or 0) for the update path.
	return user, affected == 1, nil
}

func (r *UserRepository) Credits(ctx context.Context, uid string) (int, error) {
	row := r.db.QueryRowContext(ctx, `SELECT credits FROM users WHERE uid = ?`, uid)
	var credits int
	if err := row.Scan(&credits); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("scan credits: %w", err)
	}
	return credits, nil
}

// DebitCredits subtracts amount only when the balance covers it. It reports
// false when the guard rejected the update.
func (r *UserRepository) DebitCredits(ctx context.Context, uid string, amount int) (bool, error) {
	return debitCredits(ctx, r.db, uid, amount)
}

func debitCredits(ctx context.Context, q execer, uid string, amount int) (bool, error) {
	const query = `
UPDATE users SET credits = credits - ?, updated_at = NOW()
WHERE uid = ? AND credits >= ?`
	res, err := q.ExecContext(ctx, query, amount, uid, amount)
	if err != nil {
		return false, fmt.Errorf("debit credits: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("debit rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *UserRepository) AddCredits(ctx context.Context, uid string, amount int) error {
	return addCredits(ctx, r.db, uid, amount)
}

func addCredits(ctx context.Context, q execer, uid string, amount int) error {
	const query = `UPDATE users SET credits = credits + ?, updated_at = NOW() WHERE uid = ?`
	res, err := q.ExecContext(ctx, query, amount, uid)
	if err != nil {
		return fmt.Errorf("add credits: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("add credits rows affected: %w", err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetUsername assigns the username once. The unique index arbitrates
// concurrent claims for the same name.
func (r *UserRepository) SetUsername(ctx context.Context, uid, username string) error {
	const query = `UPDATE users SET username = ?, updated_at = NOW() WHERE uid = ? AND username IS NULL`
	res, err := r.db.ExecContext(ctx, query, username, uid)
	if err != nil {
		if isDuplicateEntry(err) {
			return ErrUsernameTaken
		}
		return fmt.Errorf("set username: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set username rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}
	user, err := r.FindByUID(ctx, uid)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	return ErrUsernameAlreadySet
}

func (r *UserRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	row := r.db.QueryRowContext(ctx, `SELECT 1 FROM users WHERE username = ? LIMIT 1`, username)
	var dummy int
	if err := row.Scan(&dummy); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check username: %w", err)
	}
	return true, nil
}

func (r *UserRepository) SetShowAds(ctx context.Context, uid string, show bool) error {
	const query = `UPDATE users SET show_ads = ?, updated_at = NOW() WHERE uid = ?`
	if _, err := r.db.ExecContext(ctx, query, boolToInt(show), uid); err != nil {
		return fmt.Errorf("set show ads: %w", err)
	}
	return nil
}
