package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

var (
	ErrUserNotFound           = errors.New("user not found")
	ErrUsernameTaken          = errors.New("username already taken")
	ErrUsernameAlreadySet     = errors.New("username already set")
	ErrPaymentNotFound        = errors.New("payment submission not found")
	ErrPaymentAlreadyApproved = errors.New("payment submission already approved")
	ErrPromoInvalid           = errors.New("promo code invalid")
	ErrPromoExhausted         = errors.New("promo code exhausted")
	ErrPromoAlreadyRedeemed   = errors.New("promo code already redeemed")
)

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const mysqlDuplicateEntry = 1062

func isDuplicateEntry(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry
}

// withTx runs fn inside a transaction, committing on success and rolling back otherwise.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
