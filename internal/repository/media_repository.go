package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/digkill/visionhub/internal/models"
)

// MediaRepository stores generated image and video metadata. Both kinds share
// one row shape and live in the images and videos tables respectively.
type MediaRepository struct {
	db *sql.DB
}

func NewMediaRepository(db *sql.DB) *MediaRepository {
	return &MediaRepository{db: db}
}

func tableFor(kind models.MediaKind) (string, error) {
	switch kind {
	case models.MediaImage, models.MediaVideo:
		return kind.Collection(), nil
	default:
		return "", fmt.Errorf("unknown media kind: %q", kind)
	}
}

func (r *MediaRepository) Insert(ctx context.Context, item *models.MediaItem) error {
	return insertMedia(ctx, r.db, item)
}

func insertMedia(ctx context.Context, q execer, item *models.MediaItem) error {
	table, err := tableFor(item.Kind)
	if err != nil {
		return err
	}
	query := `INSERT INTO ` + table + ` (id, user_id, url, path, prompt, prompt_id, model, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := q.ExecContext(ctx, query, item.ID, item.UserID, item.URL, item.Path, item.Prompt, item.PromptID, item.Model, item.CreatedAt); err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	return nil
}

// InsertCharged writes the item and debits cost from its owner in one
// transaction. It reports false, with nothing written, when the balance no
// longer covers the cost.
func (r *MediaRepository) InsertCharged(ctx context.Context, item *models.MediaItem, cost int) (bool, error) {
	charged := false
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := insertMedia(ctx, tx, item); err != nil {
			return err
		}
		ok, err := debitCredits(ctx, tx, item.UserID, cost)
		if err != nil {
			return err
		}
		if !ok {
			return errInsufficient
		}
		charged = true
		return nil
	})
	if errors.Is(err, errInsufficient) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return charged, nil
}

var errInsufficient = errors.New("insufficient credits")

func (r *MediaRepository) ListByUser(ctx context.Context, kind models.MediaKind, userID string) ([]models.MediaItem, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	query := `SELECT id, user_id, url, path, prompt, prompt_id, model, created_at
FROM ` + table + ` WHERE user_id = ? ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	defer rows.Close()
	return scanMedia(rows, kind)
}

func (r *MediaRepository) GetByID(ctx context.Context, kind models.MediaKind, id string) (*models.MediaItem, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	query := `SELECT id, user_id, url, path, prompt, prompt_id, model, created_at FROM ` + table + ` WHERE id = ?`
	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", table, err)
	}
	defer rows.Close()
	items, err := scanMedia(rows, kind)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

// FindGroup returns every item of the user whose grouping key equals key:
// the prompt id, or the prompt text for legacy rows without one.
func (r *MediaRepository) FindGroup(ctx context.Context, userID, key string) ([]models.MediaItem, error) {
	var out []models.MediaItem
	for _, kind := range []models.MediaKind{models.MediaImage, models.MediaVideo} {
		table := kind.Collection()
		query := `SELECT id, user_id, url, path, prompt, prompt_id, model, created_at
FROM ` + table + ` WHERE user_id = ? AND (prompt_id = ? OR (prompt_id = '' AND prompt = ?))`
		rows, err := r.db.QueryContext(ctx, query, userID, key, key)
		if err != nil {
			return nil, fmt.Errorf("find group in %s: %w", table, err)
		}
		items, err := scanMedia(rows, kind)
		rows.Close()
		if err != nil {
			return nil, err
		}
		out = append(out, items...)
	}
	return out, nil
}

// DeleteItems removes all given items across both tables in a single transaction.
func (r *MediaRepository) DeleteItems(ctx context.Context, items []models.MediaItem) error {
	if len(items) == 0 {
		return nil
	}
	ids := map[models.MediaKind][]any{}
	for _, item := range items {
		ids[item.Kind] = append(ids[item.Kind], item.ID)
	}
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, kind := range []models.MediaKind{models.MediaImage, models.MediaVideo} {
			args := ids[kind]
			if len(args) == 0 {
				continue
			}
			table := kind.Collection()
			placeholders := strings.TrimSuffix(strings.Repeat("?,", len(args)), ",")
			query := `DELETE FROM ` + table + ` WHERE id IN (` + placeholders + `)`
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("delete from %s: %w", table, err)
			}
		}
		return nil
	})
}

func scanMedia(rows *sql.Rows, kind models.MediaKind) ([]models.MediaItem, error) {
	var items []models.MediaItem
	for rows.Next() {
		item := models.MediaItem{Kind: kind}
		if err := rows.Scan(&item.ID, &item.UserID, &item.URL, &item.Path, &item.Prompt, &item.PromptID, &item.Model, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan %s: %w", kind.Collection(), err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
