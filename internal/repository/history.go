package repository

import (
	"context"
	"fmt"

	"github.com/Fi44er/tradecycle/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AppendEvent inserts an audit row. Callers pass the transaction of the change
// being recorded.
func (r *Repository) AppendEvent(ctx context.Context, event *models.HistoryEvent, tx *gorm.DB) error {
	if err := r.conn(ctx, tx).Create(event).Error; err != nil {
		return fmt.Errorf("failed to append %s event: %w", event.EventType, err)
	}
	return nil
}

// ListEvents returns a user's events in insertion order. search matches event
// type, currency and serialized details without regard to case.
func (r *Repository) ListEvents(ctx context.Context, userID, search string, limit, offset int) ([]models.HistoryEvent, error) {
	q := r.conn(ctx, nil).Where("user_id = ?", userID)
	if search != "" {
		pattern := likePattern(search)
		q = q.Where(
			`(LOWER(event_type) LIKE ? ESCAPE '\' OR LOWER(currency) LIKE ? ESCAPE '\' OR LOWER(CAST(details AS TEXT)) LIKE ? ESCAPE '\')`,
			pattern, pattern, pattern,
		)
	}

	var events []models.HistoryEvent
	err := q.Order("created_at ASC").Order("id ASC").Limit(limit).Offset(offset).Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list history of user %s: %w", userID, err)
	}
	return events, nil
}

func (r *Repository) SumEvents(ctx context.Context, userID string, eventType models.EventType) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.conn(ctx, nil).
		Model(&models.HistoryEvent{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("user_id = ? AND event_type = ?", userID, eventType).
		Row().
		Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum %s events: %w", eventType, err)
	}
	return sum, nil
}

