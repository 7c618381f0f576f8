package service

import (
	"context"
	"regexp"
	"strings"

	"github.com/Fi44er/tradecycle/internal/apperr"
	"github.com/Fi44er/tradecycle/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// txHashPattern covers hex hashes, base58 ids and explorer-style refs.
var txHashPattern = regexp.MustCompile(`^[A-Za-z0-9_.:-]{1,128}$`)

type SubmitPaymentInput struct {
	UserID        string
	PlanID        string
	Currency      string
	AmountUSD     decimal.Decimal
	TxHash        string
	ScreenshotRef string
}

// SubmitPayment records a manual crypto payment for admin review.
func (s *Service) SubmitPayment(ctx context.Context, in SubmitPaymentInput) (*models.ManualPayment, error) {
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	txHash := strings.TrimSpace(in.TxHash)

	switch {
	case !in.AmountUSD.IsPositive():
		return nil, apperr.Validation("amount_usd must be positive")
	case txHash == "":
		return nil, apperr.Validation("tx_hash is required")
	case !txHashPattern.MatchString(txHash):
		return nil, apperr.Validation("tx_hash may only contain letters, digits and . _ : -")
	case !models.IsPaymentCurrency(currency):
		return nil, apperr.Validation("currency must be one of %s", strings.Join(models.PaymentCurrencies, ", "))
	case strings.TrimSpace(in.PlanID) == "":
		return nil, apperr.Validation("plan_id is required")
	}

	var (
		payment *models.ManualPayment
		user    *models.User
	)
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		var err error
		user, err = s.lockUser(ctx, in.UserID, tx)
		if err != nil {
			return err
		}

		plan, err := s.repo.GetPlan(ctx, in.PlanID, tx)
		if err != nil {
			return s.internal("get plan", err)
		}
		if plan == nil || !plan.Active {
			return apperr.Validation("plan %q does not exist", in.PlanID)
		}

		dup, err := s.repo.FindLivePaymentByTxHash(ctx, currency, txHash, tx)
		if err != nil {
			return s.internal("check tx hash", err)
		}
		if dup != nil {
			return apperr.Conflict("a payment with this transaction hash was already submitted")
		}

		now := s.now()
		payment = &models.ManualPayment{
			ID:            uuid.NewString(),
			UserID:        in.UserID,
			PlanID:        plan.ID,
			Currency:      currency,
			AmountUSD:     in.AmountUSD,
			TxHash:        txHash,
			ScreenshotRef: in.ScreenshotRef,
			Status:        models.StatusPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.repo.CreatePayment(ctx, payment, tx); err != nil {
			return s.internal("create payment", err)
		}

		return s.appendEvent(ctx, tx, &models.HistoryEvent{
			UserID:    in.UserID,
			EventType: models.EventPaymentSubmitted,
			Amount:    payment.AmountUSD,
			Currency:  currency,
			RelatedID: payment.ID,
			Details: datatypes.JSONMap{
				"plan_id": plan.ID,
				"tx_hash": txHash,
				"status":  string(models.StatusPending),
			},
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Infof("Payment %s submitted by user %s (%s %s)", payment.ID, user.ID, payment.AmountUSD, currency)
	s.notify(func(n Notifier) { n.PaymentSubmitted(payment, user) })
	return payment, nil
}

// ApprovePayment marks the payment APPROVED, activates or extends the payer's
// subscription and pays a first-purchase referral bonus, all in one
// transaction. Approving an approved payment returns it unchanged.
func (s *Service) ApprovePayment(ctx context.Context, paymentID, adminID string) (*models.ManualPayment, error) {
	var (
		payment *models.ManualPayment
		changed bool
	)
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		var err error
		payment, err = s.getPayment(ctx, paymentID, tx)
		if err != nil {
			return err
		}
		if done, err := reviewOutcome(payment.Status, models.StatusApproved, "payment"); done || err != nil {
			return err
		}

		payer, err := s.lockUser(ctx, payment.UserID, tx)
		if err != nil {
			return err
		}

		now := s.now()
		ok, err := s.repo.TransitionPayment(ctx, payment.ID, models.StatusApproved, adminID, "", now, tx)
		if err != nil {
			return s.internal("approve payment", err)
		}
		if !ok {
			// Another reviewer won the race.
			if payment, err = s.getPayment(ctx, paymentID, tx); err != nil {
				return err
			}
			_, err = reviewOutcome(payment.Status, models.StatusApproved, "payment")
			return err
		}
		changed = true

		sub, subEvent, err := s.activateOrExtend(ctx, tx, payment, now)
		if err != nil {
			return err
		}

		if err := s.appendEvent(ctx, tx, &models.HistoryEvent{
			UserID:    payment.UserID,
			EventType: models.EventPaymentApproved,
			Amount:    payment.AmountUSD,
			Currency:  payment.Currency,
			RelatedID: payment.ID,
			Details: datatypes.JSONMap{
				"plan_id":     payment.PlanID,
				"tx_hash":     payment.TxHash,
				"reviewed_by": adminID,
				"status":      string(models.StatusApproved),
			},
			CreatedAt: now,
		}); err != nil {
			return err
		}

		if err := s.appendEvent(ctx, tx, &models.HistoryEvent{
			UserID:    payment.UserID,
			EventType: subEvent,
			Amount:    payment.AmountUSD,
			Currency:  models.CurrencyUSD,
			RelatedID: payment.ID,
			Details: datatypes.JSONMap{
				"subscription_id": sub.ID,
				"plan_id":         sub.PlanID,
				"start_date":      sub.StartDate,
				"end_date":        sub.EndDate,
			},
			CreatedAt: now,
		}); err != nil {
			return err
		}

		if err := s.creditReferrer(ctx, tx, payer, payment, now); err != nil {
			return err
		}

		payment, err = s.getPayment(ctx, paymentID, tx)
		return err
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.metrics.ReviewDecided("payment", "approved")
		s.logger.Infof("Payment %s approved by %s", paymentID, adminID)
	}
	return payment, nil
}

// RejectPayment requires a reason. Rejecting a rejected payment returns it
// unchanged.
func (s *Service) RejectPayment(ctx context.Context, paymentID, adminID, reason string) (*models.ManualPayment, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.Validation("a reject reason is required")
	}

	var (
		payment *models.ManualPayment
		changed bool
	)
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		var err error
		payment, err = s.getPayment(ctx, paymentID, tx)
		if err != nil {
			return err
		}
		if done, err := reviewOutcome(payment.Status, models.StatusRejected, "payment"); done || err != nil {
			return err
		}

		now := s.now()
		ok, err := s.repo.TransitionPayment(ctx, payment.ID, models.StatusRejected, adminID, reason, now, tx)
		if err != nil {
			return s.internal("reject payment", err)
		}
		if !ok {
			if payment, err = s.getPayment(ctx, paymentID, tx); err != nil {
				return err
			}
			_, err = reviewOutcome(payment.Status, models.StatusRejected, "payment")
			return err
		}
		changed = true

		if err := s.appendEvent(ctx, tx, &models.HistoryEvent{
			UserID:    payment.UserID,
			EventType: models.EventPaymentRejected,
			Amount:    payment.AmountUSD,
			Currency:  payment.Currency,
			RelatedID: payment.ID,
			Details: datatypes.JSONMap{
				"plan_id":     payment.PlanID,
				"reason":      reason,
				"reviewed_by": adminID,
				"status":      string(models.StatusRejected),
			},
			CreatedAt: now,
		}); err != nil {
			return err
		}

		payment, err = s.getPayment(ctx, paymentID, tx)
		return err
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.metrics.ReviewDecided("payment", "rejected")
		s.logger.Infof("Payment %s rejected by %s: %s", paymentID, adminID, reason)
	}
	return payment, nil
}

func (s *Service) GetPayment(ctx context.Context, paymentID string) (*models.ManualPayment, error) {
	return s.getPayment(ctx, paymentID, nil)
}

func (s *Service) getPayment(ctx context.Context, paymentID string, tx *gorm.DB) (*models.ManualPayment, error) {
	payment, err := s.repo.GetPayment(ctx, paymentID, tx)
	if err != nil {
		return nil, s.internal("get payment", err)
	}
	if payment == nil {
		return nil, apperr.NotFound("payment %s not found", paymentID)
	}
	return payment, nil
}

// ListPayments is the admin queue. An empty status lists everything.
func (s *Service) ListPayments(ctx context.Context, status string) ([]models.ManualPayment, error) {
	filter, err := parseStatusFilter(status)
	if err != nil {
		return nil, err
	}
	payments, err := s.repo.ListPayments(ctx, filter)
	if err != nil {
		return nil, s.internal("list payments", err)
	}
	return payments, nil
}

func (s *Service) ListMyPayments(ctx context.Context, userID string) ([]models.ManualPayment, error) {
	payments, err := s.repo.ListPaymentsByUser(ctx, userID)
	if err != nil {
		return nil, s.internal("list payments", err)
	}
	return payments, nil
}

// reviewOutcome decides what a review of a record in status current should do.
// done is true when the record already is in target; a different terminal
// status is a conflict.
func reviewOutcome(current, target models.ReviewStatus, entity string) (done bool, err error) {
	switch {
	case current == target:
		return true, nil
	case current.IsTerminal():
		return true, apperr.Conflict("%s is already %s", entity, current)
	case current.CanTransition(target):
		return false, nil
	default:
		return true, apperr.Conflict("%s cannot move from %s to %s", entity, current, target)
	}
}

func parseStatusFilter(raw string) (models.ReviewStatus, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	status, err := models.ParseReviewStatus(raw)
	if err != nil {
		return "", apperr.Validation("%s", err.Error())
	}
	return status, nil
}
