package service

import (
	"context"

	"github.com/Fi44er/tradecycle/internal/apperr"
	"github.com/Fi44er/tradecycle/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// IssueCycle starts a cycle for the user if today's quota allows it. The quota
// check and the insert happen under the user's row lock.
func (s *Service) IssueCycle(ctx context.Context, userID string, initialBalance decimal.Decimal) (*models.Cycle, error) {
	if initialBalance.IsNegative() {
		return nil, apperr.Validation("initial_balance must not be negative")
	}

	var cycle *models.Cycle
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.lockUser(ctx, userID, tx); err != nil {
			return err
		}

		now := s.now()
		sub, err := s.repo.GetActiveSubscription(ctx, userID, now, tx)
		if err != nil {
			return s.internal("get active subscription", err)
		}
		if sub == nil || sub.Plan == nil {
			return apperr.NoActiveSubscription("an active subscription is required to start a cycle")
		}

		from, to := dayBounds(now)
		used, err := s.repo.CountCyclesBetween(ctx, userID, from, to, tx)
		if err != nil {
			return s.internal("count cycles", err)
		}
		if int(used) >= sub.Plan.MaxCyclesPerDay {
			s.metrics.QuotaDenied()
			return apperr.QuotaExceeded("daily limit of %d cycles reached", sub.Plan.MaxCyclesPerDay)
		}

		cycle = &models.Cycle{
			ID:             uuid.NewString(),
			UserID:         userID,
			PlanID:         sub.PlanID,
			StartTime:      now,
			Status:         models.CycleStatusStarted,
			InitialBalance: initialBalance,
			YieldRate:      sub.Plan.DailyYieldRate,
			CreatedAt:      now,
		}
		if err := s.repo.CreateCycle(ctx, cycle, tx); err != nil {
			return s.internal("create cycle", err)
		}

		return s.appendEvent(ctx, tx, &models.HistoryEvent{
			UserID:    userID,
			EventType: models.EventCycleStarted,
			Amount:    initialBalance,
			Currency:  models.CurrencyUSD,
			RelatedID: cycle.ID,
			Details: datatypes.JSONMap{
				"plan_id":         sub.PlanID,
				"yield_rate":      sub.Plan.DailyYieldRate.String(),
				"cycles_used":     used + 1,
				"cycles_per_day":  sub.Plan.MaxCyclesPerDay,
				"subscription_id": sub.ID,
			},
			CreatedAt: now,
		})
	})
	if err != nil {
		if !apperr.IsKind(err, apperr.KindInternal) {
			s.logger.Warnf("Cycle denied for user %s: %v", userID, err)
		}
		return nil, err
	}

	s.metrics.CycleIssued(cycle.PlanID)
	s.logger.Infof("Cycle %s started for user %s", cycle.ID, userID)
	return cycle, nil
}

func (s *Service) ListCycles(ctx context.Context, userID string) ([]models.Cycle, error) {
	cycles, err := s.repo.ListCyclesByUser(ctx, userID)
	if err != nil {
		return nil, s.internal("list cycles", err)
	}
	return cycles, nil
}
