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

func (r *Repository) CreatePayment(ctx context.Context, payment *models.ManualPayment, tx *gorm.DB) error {
	return r.conn(ctx, tx).Omit(clause.Associations).Create(payment).Error
}

func (r *Repository) GetPayment(ctx context.Context, id string, tx *gorm.DB) (*models.ManualPayment, error) {
	var payment models.ManualPayment
	err := r.conn(ctx, tx).
		Where("id = ?", id).
		First(&payment).
		Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment %s: %w", id, err)
	}

	return &payment, nil
}

// FindLivePaymentByTxHash returns a non-rejected payment with this hash.
func (r *Repository) FindLivePaymentByTxHash(ctx context.Context, currency, txHash string, tx *gorm.DB) (*models.ManualPayment, error) {
	var payment models.ManualPayment
	err := r.conn(ctx, tx).
		Where("currency = ? AND tx_hash = ? AND status <> ?", currency, txHash, models.StatusRejected).
		First(&payment).
		Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find payment by tx hash: %w", err)
	}
	return &payment, nil
}

// ListPayments returns payments newest first, filtered by status when set.
func (r *Repository) ListPayments(ctx context.Context, status models.ReviewStatus) ([]models.ManualPayment, error) {
	q := r.conn(ctx, nil).Preload("User").Preload("Plan")
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var payments []models.ManualPayment
	if err := q.Order("created_at DESC").Order("id").Find(&payments).Error; err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}

func (r *Repository) ListPaymentsByUser(ctx context.Context, userID string) ([]models.ManualPayment, error) {
	var payments []models.ManualPayment
	err := r.conn(ctx, nil).
		Preload("Plan").
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id").
		Find(&payments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list payments of user %s: %w", userID, err)
	}
	return payments, nil
}

// TransitionPayment is the compare-and-set on a PENDING payment.
func (r *Repository) TransitionPayment(ctx context.Context, id string, to models.ReviewStatus, reviewer, reason string, at time.Time, tx *gorm.DB) (bool, error) {
	ok, err := r.transitionReview(ctx, &models.ManualPayment{}, id, to, reviewer, reason, at, tx)
	if err != nil {
		return false, fmt.Errorf("failed to update payment %s: %w", id, err)
	}
	return ok, nil
}

func (r *Repository) CountApprovedPayments(ctx context.Context, userID string, tx *gorm.DB) (int64, error) {
	var count int64
	err := r.conn(ctx, tx).
		Model(&models.ManualPayment{}).
		Where("user_id = ? AND status = ?", userID, models.StatusApproved).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count approved payments: %w", err)
	}
	return count, nil
}
