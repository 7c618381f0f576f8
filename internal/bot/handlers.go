package bot

import (
	"context"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	menuPendingPayments    = "🧾 Pending payments"
	menuPendingWithdrawals = "💸 Pending withdrawals"
)

const (
	actionApprovePayment    = "approve_payment"
	actionRejectPayment     = "reject_payment"
	actionApproveWithdrawal = "approve_withdrawal"
	actionRejectWithdrawal  = "reject_withdrawal"
	actionPaymentsPage      = "payments_page"
	actionWithdrawalsPage   = "withdrawals_page"
	actionCancel            = "cancel"
)

// parseCallback splits button data of the form "action:arg".
func parseCallback(data string) (action, arg string, ok bool) {
	action, arg, found := strings.Cut(data, ":")
	switch action {
	case actionCancel:
		return action, "", true
	case actionApprovePayment, actionRejectPayment, actionApproveWithdrawal, actionRejectWithdrawal,
		actionPaymentsPage, actionWithdrawalsPage:
		if !found || arg == "" {
			return "", "", false
		}
		return action, arg, true
	default:
		return "", "", false
	}
}

func callbackData(action, arg string) string {
	return action + ":" + arg
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Chat == nil {
		return
	}
	chatID := msg.Chat.ID
	if msg.From == nil || !b.isAdmin(msg.From.ID) {
		b.sendMessage(chatID, "⛔️ This bot is for administrators only.", nil)
		return
	}

	adminID := msg.From.ID
	text := strings.TrimSpace(msg.Text)
	b.logger.Infof("Processing message from admin %d: %s", adminID, text)

	if b.getUserState(adminID) == stateAwaitingRejectReason {
		if text == "/cancel" {
			b.resetState(adminID)
			b.sendMessage(chatID, "❌ Action cancelled.", GetAdminMenu())
			return
		}
		b.handleRejectReason(ctx, chatID, adminID, text)
		return
	}

	switch text {
	case "/start", "/help":
		b.sendMessage(chatID, "Welcome! New payments and withdrawals will appear here. Use the menu to browse pending requests.", GetAdminMenu())
	case "/pending", "/payments", menuPendingPayments:
		b.sendPaymentsPage(ctx, chatID, 0)
	case "/withdrawals", menuPendingWithdrawals:
		b.sendWithdrawalsPage(ctx, chatID, 0)
	default:
		b.sendMessage(chatID, "Unknown command. Use the menu.", GetAdminMenu())
	}
}

func (b *Bot) handleCallbackQuery(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	if callback.From == nil || !b.isAdmin(callback.From.ID) {
		b.answerCallback(callback.ID, "This action is available to administrators only.")
		return
	}

	action, arg, ok := parseCallback(callback.Data)
	if !ok {
		b.logger.Errorf("Invalid callback data: %s", callback.Data)
		b.answerCallback(callback.ID, "Error: invalid button data.")
		return
	}

	var chatID int64
	var messageID int
	if callback.Message != nil && callback.Message.Chat != nil {
		chatID = callback.Message.Chat.ID
		messageID = callback.Message.MessageID
	} else {
		chatID = callback.From.ID
	}

	switch action {
	case actionPaymentsPage, actionWithdrawalsPage:
		page, err := strconv.Atoi(arg)
		if err != nil || page < 0 {
			b.answerCallback(callback.ID, "Error: invalid page.")
			return
		}
		if action == actionPaymentsPage {
			b.sendPaymentsPage(ctx, chatID, page)
		} else {
			b.sendWithdrawalsPage(ctx, chatID, page)
		}
		b.answerCallback(callback.ID, "")

	case actionApprovePayment, actionApproveWithdrawal:
		if !b.canReview(callback.ID) {
			return
		}
		b.approve(ctx, callback.ID, chatID, messageID, action, arg)

	case actionRejectPayment, actionRejectWithdrawal:
		if !b.canReview(callback.ID) {
			return
		}
		b.setUserActionData(callback.From.ID, callbackData(action, arg))
		b.setState(callback.From.ID, stateAwaitingRejectReason)
		b.sendMessage(chatID, "✍️ Send the reject reason, or /cancel.", tgbotapi.NewRemoveKeyboard(true))
		b.answerCallback(callback.ID, "")

	case actionCancel:
		b.resetState(callback.From.ID)
		if messageID != 0 {
			edit := tgbotapi.NewEditMessageText(chatID, messageID, "❌ Action cancelled.")
			if _, err := b.API.Send(edit); err != nil {
				b.logger.Warnf("Failed to edit message: %v", err)
			}
		}
		b.answerCallback(callback.ID, "")
	}
}

func (b *Bot) canReview(callbackID string) bool {
	if b.reviewerID == "" {
		b.answerCallback(callbackID, "Reviews are disabled: no admin account is linked to this bot.")
		return false
	}
	return true
}

func (b *Bot) resetState(adminID int64) {
	b.clearUserActionData(adminID)
	b.setState(adminID, stateDefault)
}
