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

type CreditReceipt struct {
	UserID      string          `json:"user_id"`
	UserEmail   string          `json:"user_email"`
	AmountAdded decimal.Decimal `json:"amount_added"`
	Balance     decimal.Decimal `json:"balance"`
	ProfitTotal decimal.Decimal `json:"profit_total"`
	EventID     uint            `json:"event_id"`
}

type UserPage struct {
	Users    []models.User `json:"users"`
	Total    int64         `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// AddFunds credits a user's withdrawable balance. identifier is a user id or an
// email address.
func (s *Service) AddFunds(ctx context.Context, identifier string, amount decimal.Decimal, adminID string) (*CreditReceipt, error) {
	return s.adminCredit(ctx, identifier, amount, adminID, models.EventAdminAddFunds)
}

// AddProfit raises profit_total only; the balance is untouched.
func (s *Service) AddProfit(ctx context.Context, identifier string, amount decimal.Decimal, adminID string) (*CreditReceipt, error) {
	return s.adminCredit(ctx, identifier, amount, adminID, models.EventAdminAddProfit)
}

func (s *Service) adminCredit(ctx context.Context, identifier string, amount decimal.Decimal, adminID string, eventType models.EventType) (*CreditReceipt, error) {
	if !amount.IsPositive() {
		return nil, apperr.Validation("amount must be positive")
	}

	var receipt *CreditReceipt
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		target, err := s.resolveUser(ctx, identifier, tx)
		if err != nil {
			return err
		}
		if _, err := s.lockUser(ctx, target.ID, tx); err != nil {
			return err
		}

		if eventType == models.EventAdminAddFunds {
			err = s.repo.CreditBalance(ctx, target.ID, amount, tx)
		} else {
			err = s.repo.AddProfit(ctx, target.ID, amount, tx)
		}
		if err != nil {
			return s.internal("admin credit", err)
		}

		event := &models.HistoryEvent{
			UserID:    target.ID,
			EventType: eventType,
			Amount:    amount,
			Currency:  models.CurrencyUSD,
			Details:   datatypes.JSONMap{"admin_id": adminID},
		}
		if err := s.appendEvent(ctx, tx, event); err != nil {
			return err
		}

		updated, err := s.repo.GetUserByID(ctx, target.ID, tx)
		if err != nil {
			return s.internal("reload user", err)
		}
		receipt = &CreditReceipt{
			UserID:      updated.ID,
			UserEmail:   updated.Email,
			AmountAdded: amount,
			Balance:     updated.Balance,
			ProfitTotal: updated.ProfitTotal,
			EventID:     event.ID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if eventType == models.EventAdminAddFunds {
		s.metrics.LedgerMoved("admin_funds", amount)
	}
	s.logger.Infof("%s %s to %s by admin %s", eventType, amount, receipt.UserID, adminID)
	return receipt, nil
}

// resolveUser looks identifier up as a user id when it parses as a UUID and as
// an email otherwise.
func (s *Service) resolveUser(ctx context.Context, identifier string, tx *gorm.DB) (*models.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, apperr.Validation("user identifier is required")
	}

	var (
		user *models.User
		err  error
	)
	if id, parseErr := uuid.Parse(identifier); parseErr == nil {
		user, err = s.repo.GetUserByID(ctx, id.String(), tx)
	} else {
		user, err = s.repo.GetUserByEmail(ctx, utils.NormalizeEmail(identifier), tx)
	}
	if err != nil {
		return nil, s.internal("resolve user", err)
	}
	if user == nil {
		return nil, apperr.NotFound("no user matches %q", identifier)
	}
	return user, nil
}

func (s *Service) ListUsers(ctx context.Context, search string, page, pageSize int) (*UserPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	users, total, err := s.repo.ListUsers(ctx, strings.TrimSpace(search), pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, s.internal("list users", err)
	}
	return &UserPage{Users: users, Total: total, Page: page, PageSize: pageSize}, nil
}

// SetUserDisabled soft-disables or re-enables an account. Admins cannot
// disable themselves.
func (s *Service) SetUserDisabled(ctx context.Context, userID string, disabled bool, adminID string) (*models.User, error) {
	if disabled && userID == adminID {
		return nil, apperr.Validation("you cannot disable your own account")
	}

	ok, err := s.repo.SetUserDisabled(ctx, userID, disabled, nil)
	if err != nil {
		return nil, s.internal("set user disabled", err)
	}
	if !ok {
		return nil, apperr.NotFound("user %s not found", userID)
	}

	user, err := s.repo.GetUserByID(ctx, userID, nil)
	if err != nil {
		return nil, s.internal("reload user", err)
	}
	s.logger.Infof("User %s disabled=%t by admin %s", userID, disabled, adminID)
	return user, nil
}
