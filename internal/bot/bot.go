// Package bot is the Telegram console for admins: new payments and withdrawals
// are pushed to the admin chat with inline review buttons.
package bot

import (
	"context"
	"sync"

	"github.com/Fi44er/tradecycle/internal/models"
	"github.com/Fi44er/tradecycle/utils"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// API is the part of *tgbotapi.BotAPI the console uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Reviewer is the review surface of the service.
type Reviewer interface {
	ListPayments(ctx context.Context, status string) ([]models.ManualPayment, error)
	ListWithdrawals(ctx context.Context, status string) ([]models.Withdrawal, error)
	ApprovePayment(ctx context.Context, paymentID, adminID string) (*models.ManualPayment, error)
	RejectPayment(ctx context.Context, paymentID, adminID, reason string) (*models.ManualPayment, error)
	ApproveWithdrawal(ctx context.Context, withdrawalID, adminID string) (*models.Withdrawal, error)
	RejectWithdrawal(ctx context.Context, withdrawalID, adminID, reason string) (*models.Withdrawal, error)
}

// Bot decisions are recorded under reviewerID, the admin account linked to the
// console. With an empty reviewerID the console only notifies.
type Bot struct {
	API            API
	reviewer       Reviewer
	logger         *utils.Logger
	adminChatID    int64
	reviewerID     string
	userStates     map[int64]string
	userActionData map[int64]string
	stateMutex     *sync.Mutex
}

func NewBot(api API, reviewer Reviewer, logger *utils.Logger, adminChatID int64, reviewerID string) *Bot {
	return &Bot{
		API:            api,
		reviewer:       reviewer,
		logger:         logger,
		adminChatID:    adminChatID,
		reviewerID:     reviewerID,
		userStates:     make(map[int64]string),
		userActionData: make(map[int64]string),
		stateMutex:     &sync.Mutex{},
	}
}

// Start runs the update loop until ctx is done.
func (b *Bot) Start(ctx context.Context) {
	b.logger.Info("Starting admin bot...")
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.API.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.API.StopReceivingUpdates()
			b.logger.Info("Admin bot stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.logger.Debugf("Received update: %d", update.UpdateID)
			b.HandleUpdate(ctx, update)
		}
	}
}

func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallbackQuery(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

func GetAdminMenu() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuPendingPayments),
			tgbotapi.NewKeyboardButton(menuPendingWithdrawals),
		),
	)
}
