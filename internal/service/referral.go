package service

import (
	"context"
	"time"

	"github.com/Fi44er/tradecycle/internal/models"
	"github.com/Fi44er/tradecycle/utils"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// creditReferrer pays the inviter of payer a share of payer's first approved
// payment. It must run inside the approval transaction, after the status
// change and while payer's row is locked, so the approved count includes
// this payment and concurrent approvals for the same payer are serialized.
func (s *Service) creditReferrer(ctx context.Context, tx *gorm.DB, payer *models.User, payment *models.ManualPayment, now time.Time) error {
	if payer.ReferredBy == nil || *payer.ReferredBy == "" {
		return nil
	}

	approved, err := s.repo.CountApprovedPayments(ctx, payer.ID, tx)
	if err != nil {
		return s.internal("count approved payments", err)
	}
	if approved != 1 {
		return nil
	}

	referrerID := *payer.ReferredBy
	referrer, err := s.repo.GetUserByID(ctx, referrerID, tx)
	if err != nil {
		return s.internal("get referrer", err)
	}
	if referrer == nil {
		s.logger.Warnf("Referrer %s of user %s no longer exists", referrerID, payer.ID)
		return nil
	}

	bonus := utils.RoundMoney(payment.AmountUSD.Mul(s.referralRate))
	if !bonus.IsPositive() {
		return nil
	}

	if err := s.repo.CreditBalance(ctx, referrerID, bonus, tx); err != nil {
		return s.internal("credit referrer", err)
	}

	if err := s.appendEvent(ctx, tx, &models.HistoryEvent{
		UserID:    referrerID,
		EventType: models.EventReferralCredit,
		Amount:    bonus,
		Currency:  models.CurrencyUSD,
		RelatedID: payment.ID,
		Details: datatypes.JSONMap{
			"referred_user_id": payer.ID,
			"referred_email":   payer.Email,
			"payment_amount":   payment.AmountUSD.String(),
			"rate":             s.referralRate.String(),
		},
		CreatedAt: now,
	}); err != nil {
		return err
	}

	s.metrics.LedgerMoved("referral", bonus)
	s.logger.Infof("Referral bonus %s credited to %s for payment %s", bonus, referrerID, payment.ID)
	return nil
}
