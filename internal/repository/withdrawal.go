package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Fi44er/tradecycle/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (r *Repository) CreateWithdrawal(ctx context.Context, withdrawal *models.Withdrawal, tx *gorm.DB) error {
	return r.conn(ctx, tx).Omit(clause.Associations).Create(withdrawal).Error
}

// ListWithdrawals returns requests newest first, filtered by status when set.
func (r *Repository) ListWithdrawals(ctx context.Context, status models.ReviewStatus) ([]models.Withdrawal, error) {
	q := r.conn(ctx, nil).Preload("User")
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var withdrawals []models.Withdrawal
	if err := q.Order("created_at DESC").Order("id").Find(&withdrawals).Error; err != nil {
		return nil, fmt.Errorf("failed to get withdrawals: %w", err)
	}
	return withdrawals, nil
}

func (r *Repository) ListWithdrawalsByUser(ctx context.Context, userID string) ([]models.Withdrawal, error) {
	var withdrawals []models.Withdrawal
	err := r.conn(ctx, nil).
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id").
		Find(&withdrawals).
		Error

	if err != nil {
		return nil, fmt.Errorf("failed to get withdrawals of user %s: %w", userID, err)
	}
	return withdrawals, nil
}

func (r *Repository) GetWithdrawalByID(ctx context.Context, id string, tx *gorm.DB) (*models.Withdrawal, error) {
	var withdrawal models.Withdrawal
	err := r.conn(ctx, tx).
		Where("id = ?", id).
		First(&withdrawal).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get withdrawal by id %s: %w", id, err)
	}
	return &withdrawal, nil
}

// TransitionWithdrawal is the compare-and-set on a PENDING withdrawal.
func (r *Repository) TransitionWithdrawal(ctx context.Context, id string, to models.ReviewStatus, reviewer, reason string, at time.Time, tx *gorm.DB) (bool, error) {
	ok, err := r.transitionReview(ctx, &models.Withdrawal{}, id, to, reviewer, reason, at, tx)
	if err != nil {
		r.logger.Errorf("failed to update withdrawal %s: %v", id, err)
		return false, fmt.Errorf("failed to update withdrawal status: %w", err)
	}
	return ok, nil
}
