package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Fi44er/tradecycle/internal/models"
	"gorm.io/gorm"
)

func (r *Repository) CreateCycle(ctx context.Context, cycle *models.Cycle, tx *gorm.DB) error {
	return r.conn(ctx, tx).Create(cycle).Error
}

// CountCyclesBetween counts cycles with from <= start_time < to.
func (r *Repository) CountCyclesBetween(ctx context.Context, userID string, from, to time.Time, tx *gorm.DB) (int64, error) {
	var count int64
	err := r.conn(ctx, tx).
		Model(&models.Cycle{}).
		Where("user_id = ? AND start_time >= ? AND start_time < ?", userID, from, to).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count cycles: %w", err)
	}
	return count, nil
}

func (r *Repository) ListCyclesByUser(ctx context.Context, userID string) ([]models.Cycle, error) {
	var cycles []models.Cycle
	err := r.conn(ctx, nil).
		Where("user_id = ?", userID).
		Order("start_time DESC").Order("id").
		Find(&cycles).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list cycles: %w", err)
	}
	return cycles, nil
}
