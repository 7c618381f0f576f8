package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Fi44er/tradecycle/internal/models"
	"gorm.io/gorm"
)

func (r *Repository) GetPlan(ctx context.Context, id string, tx *gorm.DB) (*models.Plan, error) {
	var plan models.Plan
	err := r.conn(ctx, tx).Where("id = ?", id).First(&plan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan %s: %w", id, err)
	}
	return &plan, nil
}

func (r *Repository) ListPlans(ctx context.Context, activeOnly bool) ([]models.Plan, error) {
	q := r.conn(ctx, nil)
	if activeOnly {
		q = q.Where("active = ?", true)
	}

	var plans []models.Plan
	if err := q.Order("sort_order ASC").Order("id").Find(&plans).Error; err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	return plans, nil
}

func (r *Repository) CreatePlan(ctx context.Context, plan *models.Plan, tx *gorm.DB) error {
	return r.conn(ctx, tx).Create(plan).Error
}

// SavePlan writes every column of plan, zero values included.
func (r *Repository) SavePlan(ctx context.Context, plan *models.Plan, tx *gorm.DB) error {
	return r.conn(ctx, tx).Save(plan).Error
}

// CountActiveSubscriptionsForPlan counts windows of planID that contain now.
func (r *Repository) CountActiveSubscriptionsForPlan(ctx context.Context, planID string, now time.Time, tx *gorm.DB) (int64, error) {
	var count int64
	err := r.conn(ctx, tx).
		Model(&models.Subscription{}).
		Where("plan_id = ? AND start_date <= ? AND end_date > ?", planID, now, now).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count subscriptions of plan %s: %w", planID, err)
	}
	return count, nil
}
