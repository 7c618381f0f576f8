package repository

import (
	"context"
	"strings"
	"time"

	"github.com/Fi44er/tradecycle/internal/models"
	"github.com/Fi44er/tradecycle/utils"
	"gorm.io/gorm"
)

type Repository struct {
	db     *gorm.DB
	logger *utils.Logger
}

func NewRepository(db *gorm.DB, logger *utils.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// conn returns tx when the caller is inside a transaction, the pool otherwise.
func (r *Repository) conn(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx == nil {
		return r.db.WithContext(ctx)
	}
	return tx.WithContext(ctx)
}

// transitionReview moves a PENDING payment or withdrawal to status `to`.
// It reports false when the row was not PENDING anymore.
func (r *Repository) transitionReview(ctx context.Context, model any, id string, to models.ReviewStatus, reviewer, reason string, at time.Time, tx *gorm.DB) (bool, error) {
	updates := map[string]any{
		"status":      to,
		"reviewed_by": reviewer,
		"reviewed_at": at,
	}
	if to == models.StatusRejected {
		updates["reject_reason"] = reason
	}

	res := r.conn(ctx, tx).
		Model(model).
		Where("id = ? AND status = ?", id, models.StatusPending).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// likePattern builds a case-insensitive substring pattern for LIKE ... ESCAPE '\'.
func likePattern(search string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + replacer.Replace(strings.ToLower(search)) + "%"
}
