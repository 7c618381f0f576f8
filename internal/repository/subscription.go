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

// GetActiveSubscription returns the window containing now, with its plan.
func (r *Repository) GetActiveSubscription(ctx context.Context, userID string, now time.Time, tx *gorm.DB) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.conn(ctx, tx).
		Preload("Plan").
		Where("user_id = ? AND start_date <= ? AND end_date > ?", userID, now, now).
		Order("end_date DESC").
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active subscription of user %s: %w", userID, err)
	}
	return &sub, nil
}

func (r *Repository) CreateSubscription(ctx context.Context, sub *models.Subscription, tx *gorm.DB) error {
	return r.conn(ctx, tx).Omit(clause.Associations).Create(sub).Error
}

// SetSubscriptionEnd moves the end of a window. paymentID is recorded when set.
func (r *Repository) SetSubscriptionEnd(ctx context.Context, id string, end time.Time, paymentID *string, tx *gorm.DB) error {
	updates := map[string]any{"end_date": end}
	if paymentID != nil {
		updates["payment_id"] = *paymentID
	}

	res := r.conn(ctx, tx).
		Model(&models.Subscription{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update subscription %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("subscription %s not found", id)
	}
	return nil
}
