package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Fi44er/tradecycle/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (r *Repository) BeginTransaction(ctx context.Context) (*gorm.DB, error) {
	r.logger.Debug("Starting transaction...")
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		r.logger.Errorf("Failed to start transaction: %v", tx.Error)
		return nil, tx.Error
	}
	return tx, nil
}

func (r *Repository) Commit(tx *gorm.DB) error {
	r.logger.Debug("Committing transaction...")
	if err := tx.Commit().Error; err != nil {
		r.logger.Errorf("Failed to commit transaction: %v", err)
		return err
	}
	return nil
}

func (r *Repository) Rollback(tx *gorm.DB) {
	r.logger.Debug("Rolling back transaction...")
	_ = tx.Rollback().Error
}

// LockUser reads the user row and holds it until tx ends. This is the per-user
// critical section for ledger, quota and referral checks. On SQLite the single
// pooled connection already serializes transactions, so no clause is added.
func (r *Repository) LockUser(ctx context.Context, userID string, tx *gorm.DB) (*models.User, error) {
	if tx == nil {
		return nil, errors.New("LockUser requires a transaction")
	}

	q := tx.WithContext(ctx)
	if tx.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var user models.User
	err := q.Where("id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock user %s: %w", userID, err)
	}
	return &user, nil
}

// LockPlan reads the plan row under a row lock of the given strength until tx
// ends. Approvals take SHARE so they can run side by side; plan edits take
// UPDATE and wait for them.
func (r *Repository) LockPlan(ctx context.Context, planID, strength string, tx *gorm.DB) (*models.Plan, error) {
	if tx == nil {
		return nil, errors.New("LockPlan requires a transaction")
	}

	q := tx.WithContext(ctx)
	if tx.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: strength})
	}

	var plan models.Plan
	err := q.Where("id = ?", planID).First(&plan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock plan %s: %w", planID, err)
	}
	return &plan, nil
}
