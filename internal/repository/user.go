package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Fi44er/tradecycle/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func (r *Repository) getUser(ctx context.Context, query string, arg any, tx *gorm.DB) (*models.User, error) {
	var user models.User
	err := r.conn(ctx, tx).Where(query, arg).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *Repository) GetUserByID(ctx context.Context, id string, tx *gorm.DB) (*models.User, error) {
	return r.getUser(ctx, "id = ?", id, tx)
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string, tx *gorm.DB) (*models.User, error) {
	return r.getUser(ctx, "email = ?", email, tx)
}

func (r *Repository) GetUserByReferralCode(ctx context.Context, code string, tx *gorm.DB) (*models.User, error) {
	return r.getUser(ctx, "referral_code = ?", code, tx)
}

func (r *Repository) CreateUser(ctx context.Context, user *models.User, tx *gorm.DB) error {
	return r.conn(ctx, tx).Create(user).Error
}

// CreditBalance adds amount to the user's withdrawable balance in SQL.
func (r *Repository) CreditBalance(ctx context.Context, userID string, amount decimal.Decimal, tx *gorm.DB) error {
	res := r.conn(ctx, tx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("balance", gorm.Expr("balance + ?", amount))
	if res.Error != nil {
		r.logger.Errorf("failed to credit balance of user %s: %v", userID, res.Error)
		return fmt.Errorf("failed to credit balance: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user %s not found for credit", userID)
	}
	return nil
}

// DebitBalance subtracts amount only if the balance covers it. It reports
// false and changes nothing otherwise.
func (r *Repository) DebitBalance(ctx context.Context, userID string, amount decimal.Decimal, tx *gorm.DB) (bool, error) {
	res := r.conn(ctx, tx).
		Model(&models.User{}).
		Where("id = ? AND balance >= ?", userID, amount).
		Update("balance", gorm.Expr("balance - ?", amount))
	if res.Error != nil {
		r.logger.Errorf("failed to debit balance of user %s: %v", userID, res.Error)
		return false, fmt.Errorf("failed to debit balance: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *Repository) AddProfit(ctx context.Context, userID string, amount decimal.Decimal, tx *gorm.DB) error {
	res := r.conn(ctx, tx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("profit_total", gorm.Expr("profit_total + ?", amount))
	if res.Error != nil {
		return fmt.Errorf("failed to add profit: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user %s not found for profit", userID)
	}
	return nil
}

func (r *Repository) SetUserDisabled(ctx context.Context, userID string, disabled bool, tx *gorm.DB) (bool, error) {
	res := r.conn(ctx, tx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("disabled", disabled)
	if res.Error != nil {
		return false, fmt.Errorf("failed to update user %s: %w", userID, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ListUsers pages through users by creation order. search filters on email.
func (r *Repository) ListUsers(ctx context.Context, search string, limit, offset int) ([]models.User, int64, error) {
	scoped := func() *gorm.DB {
		q := r.conn(ctx, nil).Model(&models.User{})
		if search != "" {
			q = q.Where(`LOWER(email) LIKE ? ESCAPE '\'`, likePattern(search))
		}
		return q
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	var users []models.User
	err := scoped().Order("created_at DESC").Order("id").Limit(limit).Offset(offset).Find(&users).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	return users, total, nil
}

func (r *Repository) CountReferrals(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.conn(ctx, nil).Model(&models.User{}).Where("referred_by = ?", userID).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count referrals: %w", err)
	}
	return count, nil
}
