package service

import (
	"context"
	"time"

	"github.com/Fi44er/tradecycle/internal/apperr"
	"github.com/Fi44er/tradecycle/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func (s *Service) GetActiveSubscription(ctx context.Context, userID string) (*models.Subscription, error) {
	sub, err := s.repo.GetActiveSubscription(ctx, userID, s.now(), nil)
	if err != nil {
		return nil, s.internal("get active subscription", err)
	}
	return sub, nil
}

// QuotaRemaining is the number of cycles the user may still start on the UTC
// day containing day. It is 0 without an active subscription.
func (s *Service) QuotaRemaining(ctx context.Context, userID string, day time.Time) (int, error) {
	return s.quotaRemaining(ctx, userID, day, nil)
}

func (s *Service) quotaRemaining(ctx context.Context, userID string, day time.Time, tx *gorm.DB) (int, error) {
	sub, err := s.repo.GetActiveSubscription(ctx, userID, s.now(), tx)
	if err != nil {
		return 0, s.internal("get active subscription", err)
	}
	if sub == nil || sub.Plan == nil {
		return 0, nil
	}

	from, to := dayBounds(day)
	used, err := s.repo.CountCyclesBetween(ctx, userID, from, to, tx)
	if err != nil {
		return 0, s.internal("count cycles", err)
	}

	remaining := sub.Plan.MaxCyclesPerDay - int(used)
	if remaining < 0 {
		return 0, nil
	}
	return remaining, nil
}

// dayBounds returns the UTC day [start, end) containing t.
func dayBounds(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}

// Row lock strengths for LockPlan. Approvals share the plan row; plan edits
// take it exclusively so the active-subscription count they check stays true.
const (
	lockForUpdate = "UPDATE"
	lockForShare  = "SHARE"
)

// activateOrExtend applies an approved payment to the payer's subscription.
// No window: open now..now+period. Same plan: push the end by one period.
// Other plan: close the current window at now and open a new one.
func (s *Service) activateOrExtend(ctx context.Context, tx *gorm.DB, payment *models.ManualPayment, now time.Time) (*models.Subscription, models.EventType, error) {
	plan, err := s.repo.LockPlan(ctx, payment.PlanID, lockForShare, tx)
	if err != nil {
		return nil, "", s.internal("lock plan", err)
	}
	if plan == nil || !plan.Active {
		return nil, "", apperr.Conflict("plan %s is no longer offered", payment.PlanID)
	}

	current, err := s.repo.GetActiveSubscription(ctx, payment.UserID, now, tx)
	if err != nil {
		return nil, "", s.internal("get active subscription", err)
	}

	paymentID := payment.ID
	if current != nil && current.PlanID == payment.PlanID {
		end := current.EndDate.Add(s.subscriptionPeriod)
		if err := s.repo.SetSubscriptionEnd(ctx, current.ID, end, &paymentID, tx); err != nil {
			return nil, "", s.internal("extend subscription", err)
		}
		current.EndDate = end
		current.PaymentID = &paymentID
		return current, models.EventSubscriptionExtended, nil
	}

	if current != nil {
		if err := s.repo.SetSubscriptionEnd(ctx, current.ID, now, nil, tx); err != nil {
			return nil, "", s.internal("close subscription", err)
		}
		s.logger.Infof("Subscription %s of user %s replaced by plan %s", current.ID, payment.UserID, payment.PlanID)
	}

	sub := &models.Subscription{
		ID:        uuid.NewString(),
		UserID:    payment.UserID,
		PlanID:    payment.PlanID,
		StartDate: now,
		EndDate:   now.Add(s.subscriptionPeriod),
		PaymentID: &paymentID,
	}
	if err := s.repo.CreateSubscription(ctx, sub, tx); err != nil {
		return nil, "", s.internal("create subscription", err)
	}
	return sub, models.EventSubscriptionActive, nil
}
