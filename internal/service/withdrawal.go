package service

import (
	"context"
	"strings"

	"github.com/Fi44er/tradecycle/internal/apperr"
	"github.com/Fi44er/tradecycle/internal/models"
	"github.com/Fi44er/tradecycle/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RequestWithdrawal files a withdrawal for review. The balance is not held;
// it is checked when an admin approves.
func (s *Service) RequestWithdrawal(ctx context.Context, userID string, amount decimal.Decimal, cryptoType, address string) (*models.Withdrawal, error) {
	cryptoType = strings.ToUpper(strings.TrimSpace(cryptoType))
	address = strings.TrimSpace(address)

	switch {
	case !amount.IsPositive():
		return nil, apperr.Validation("amount must be positive")
	case address == "":
		return nil, apperr.Validation("crypto_address is required")
	case !models.IsPaymentCurrency(cryptoType):
		return nil, apperr.Validation("crypto_type must be one of %s", strings.Join(models.PaymentCurrencies, ", "))
	}
	if err := utils.ValidateAddress(cryptoType, address, s.netParams); err != nil {
		return nil, apperr.Validation("invalid %s address: %v", cryptoType, err)
	}

	var (
		withdrawal *models.Withdrawal
		user       *models.User
	)
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		var err error
		user, err = s.lockUser(ctx, userID, tx)
		if err != nil {
			return err
		}

		now := s.now()
		withdrawal = &models.Withdrawal{
			ID:            uuid.NewString(),
			UserID:        userID,
			Amount:        amount,
			CryptoType:    cryptoType,
			CryptoAddress: address,
			Status:        models.StatusPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.repo.CreateWithdrawal(ctx, withdrawal, tx); err != nil {
			return s.internal("create withdrawal", err)
		}

		return s.appendEvent(ctx, tx, &models.HistoryEvent{
			UserID:    userID,
			EventType: models.EventWithdrawalRequested,
			Amount:    amount,
			Currency:  cryptoType,
			RelatedID: withdrawal.ID,
			Details: datatypes.JSONMap{
				"crypto_address": address,
				"status":         string(models.StatusPending),
			},
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Infof("Withdrawal %s requested by user %s (%s %s)", withdrawal.ID, userID, amount, cryptoType)
	s.notify(func(n Notifier) { n.WithdrawalRequested(withdrawal, user) })
	return withdrawal, nil
}

// ApproveWithdrawal debits the user and marks the request APPROVED in one
// transaction. With too little balance it fails and the request stays PENDING.
func (s *Service) ApproveWithdrawal(ctx context.Context, withdrawalID, adminID string) (*models.Withdrawal, error) {
	var (
		withdrawal *models.Withdrawal
		changed    bool
	)
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		var err error
		withdrawal, err = s.getWithdrawal(ctx, withdrawalID, tx)
		if err != nil {
			return err
		}
		if done, err := reviewOutcome(withdrawal.Status, models.StatusApproved, "withdrawal"); done || err != nil {
			return err
		}

		if _, err := s.lockUser(ctx, withdrawal.UserID, tx); err != nil {
			return err
		}

		now := s.now()
		ok, err := s.repo.TransitionWithdrawal(ctx, withdrawal.ID, models.StatusApproved, adminID, "", now, tx)
		if err != nil {
			return s.internal("approve withdrawal", err)
		}
		if !ok {
			if withdrawal, err = s.getWithdrawal(ctx, withdrawalID, tx); err != nil {
				return err
			}
			_, err = reviewOutcome(withdrawal.Status, models.StatusApproved, "withdrawal")
			return err
		}

		debited, err := s.repo.DebitBalance(ctx, withdrawal.UserID, withdrawal.Amount, tx)
		if err != nil {
			return s.internal("debit balance", err)
		}
		if !debited {
			// Rolls back the status change above.
			return apperr.InsufficientFunds("balance is lower than the requested %s", withdrawal.Amount)
		}
		changed = true

		if err := s.appendEvent(ctx, tx, &models.HistoryEvent{
			UserID:    withdrawal.UserID,
			EventType: models.EventWithdrawalApproved,
			Amount:    withdrawal.Amount,
			Currency:  withdrawal.CryptoType,
			RelatedID: withdrawal.ID,
			Details: datatypes.JSONMap{
				"crypto_address": withdrawal.CryptoAddress,
				"reviewed_by":    adminID,
				"status":         string(models.StatusApproved),
			},
			CreatedAt: now,
		}); err != nil {
			return err
		}

		withdrawal, err = s.getWithdrawal(ctx, withdrawalID, tx)
		return err
	})
	if err != nil {
		if apperr.IsKind(err, apperr.KindInsufficientFunds) {
			s.logger.Warnf("Withdrawal %s not approved: %v", withdrawalID, err)
		}
		return nil, err
	}

	if changed {
		s.metrics.ReviewDecided("withdrawal", "approved")
		s.metrics.LedgerMoved("withdrawal", withdrawal.Amount)
		s.logger.Infof("Withdrawal %s approved by %s", withdrawalID, adminID)
	}
	return withdrawal, nil
}

func (s *Service) RejectWithdrawal(ctx context.Context, withdrawalID, adminID, reason string) (*models.Withdrawal, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.Validation("a reject reason is required")
	}

	var (
		withdrawal *models.Withdrawal
		changed    bool
	)
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		var err error
		withdrawal, err = s.getWithdrawal(ctx, withdrawalID, tx)
		if err != nil {
			return err
		}
		if done, err := reviewOutcome(withdrawal.Status, models.StatusRejected, "withdrawal"); done || err != nil {
			return err
		}

		now := s.now()
		ok, err := s.repo.TransitionWithdrawal(ctx, withdrawal.ID, models.StatusRejected, adminID, reason, now, tx)
		if err != nil {
			return s.internal("reject withdrawal", err)
		}
		if !ok {
			if withdrawal, err = s.getWithdrawal(ctx, withdrawalID, tx); err != nil {
				return err
			}
			_, err = reviewOutcome(withdrawal.Status, models.StatusRejected, "withdrawal")
			return err
		}
		changed = true

		if err := s.appendEvent(ctx, tx, &models.HistoryEvent{
			UserID:    withdrawal.UserID,
			EventType: models.EventWithdrawalRejected,
			Amount:    withdrawal.Amount,
			Currency:  withdrawal.CryptoType,
			RelatedID: withdrawal.ID,
			Details: datatypes.JSONMap{
				"reason":      reason,
				"reviewed_by": adminID,
				"status":      string(models.StatusRejected),
			},
			CreatedAt: now,
		}); err != nil {
			return err
		}

		withdrawal, err = s.getWithdrawal(ctx, withdrawalID, tx)
		return err
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.metrics.ReviewDecided("withdrawal", "rejected")
		s.logger.Infof("Withdrawal %s rejected by %s: %s", withdrawalID, adminID, reason)
	}
	return withdrawal, nil
}

func (s *Service) GetWithdrawal(ctx context.Context, withdrawalID string) (*models.Withdrawal, error) {
	return s.getWithdrawal(ctx, withdrawalID, nil)
}

func (s *Service) getWithdrawal(ctx context.Context, withdrawalID string, tx *gorm.DB) (*models.Withdrawal, error) {
	withdrawal, err := s.repo.GetWithdrawalByID(ctx, withdrawalID, tx)
	if err != nil {
		return nil, s.internal("get withdrawal", err)
	}
	if withdrawal == nil {
		return nil, apperr.NotFound("withdrawal %s not found", withdrawalID)
	}
	return withdrawal, nil
}

func (s *Service) ListWithdrawals(ctx context.Context, status string) ([]models.Withdrawal, error) {
	filter, err := parseStatusFilter(status)
	if err != nil {
		return nil, err
	}
	withdrawals, err := s.repo.ListWithdrawals(ctx, filter)
	if err != nil {
		return nil, s.internal("list withdrawals", err)
	}
	return withdrawals, nil
}

func (s *Service) ListMyWithdrawals(ctx context.Context, userID string) ([]models.Withdrawal, error) {
	withdrawals, err := s.repo.ListWithdrawalsByUser(ctx, userID)
	if err != nil {
		return nil, s.internal("list withdrawals", err)
	}
	return withdrawals, nil
}
