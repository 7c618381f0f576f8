package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/Fi44er/tradecycle/internal/apperr"
	"github.com/Fi44er/tradecycle/internal/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const itemsPerPage = 5

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func userLabel(u *models.User) string {
	if u == nil {
		return "unknown"
	}
	return escapeMarkdown(u.Email)
}

func reviewKeyboard(approve, reject, id string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Approve", callbackData(approve, id)),
			tgbotapi.NewInlineKeyboardButtonData("❌ Reject", callbackData(reject, id)),
		),
	)
}

// PaymentSubmitted and WithdrawalRequested make the bot a service notifier.
func (b *Bot) PaymentSubmitted(p *models.ManualPayment, u *models.User) {
	if b.adminChatID == 0 {
		return
	}
	text := fmt.Sprintf(
		"🆕 New payment `%s`\n\n"+
			"👤 User: %s\n"+
			"📦 Plan: %s\n"+
			"💰 Amount: `%s` USD in %s\n"+
			"🔗 TX: `%s`",
		p.ID, userLabel(u), escapeMarkdown(p.PlanID), p.AmountUSD.StringFixed(2), p.Currency, codeSpan(p.TxHash),
	)
	b.sendMessage(b.adminChatID, text, reviewKeyboard(actionApprovePayment, actionRejectPayment, p.ID))
}

func (b *Bot) WithdrawalRequested(w *models.Withdrawal, u *models.User) {
	if b.adminChatID == 0 {
		return
	}
	text := fmt.Sprintf(
		"🆕 New withdrawal request `%s`\n\n"+
			"👤 User: %s\n"+
			"💰 Amount: `%s` USD\n"+
			"🏦 Balance now: `%s` USD\n"+
			"📬 To (%s): `%s`",
		w.ID, userLabel(u), w.Amount.StringFixed(2), balanceOf(u), w.CryptoType, codeSpan(w.CryptoAddress),
	)
	b.sendMessage(b.adminChatID, text, reviewKeyboard(actionApproveWithdrawal, actionRejectWithdrawal, w.ID))
}

func balanceOf(u *models.User) string {
	if u == nil {
		return "?"
	}
	return u.Balance.StringFixed(2)
}

func (b *Bot) approve(ctx context.Context, callbackID string, chatID int64, messageID int, action, id string) {
	var (
		summary string
		err     error
	)
	if action == actionApprovePayment {
		var p *models.ManualPayment
		if p, err = b.reviewer.ApprovePayment(ctx, id, b.reviewerID); err == nil {
			summary = fmt.Sprintf("✅ Payment `%s` approved (%s USD).", p.ID, p.AmountUSD.StringFixed(2))
		}
	} else {
		var w *models.Withdrawal
		if w, err = b.reviewer.ApproveWithdrawal(ctx, id, b.reviewerID); err == nil {
			summary = fmt.Sprintf("✅ Withdrawal `%s` approved (%s USD to `%s`).", w.ID, w.Amount.StringFixed(2), codeSpan(w.CryptoAddress))
		}
	}
	if err != nil {
		b.reportError(callbackID, chatID, action, id, err)
		return
	}

	if messageID != 0 {
		b.clearMarkup(chatID, messageID)
	}
	b.sendMessage(chatID, summary, nil)
	b.answerCallback(callbackID, "Done")
}

func (b *Bot) reportError(callbackID string, chatID int64, action, id string, err error) {
	e := apperr.From(err)
	if e.Kind == apperr.KindInternal {
		b.logger.Errorf("Bot %s %s failed: %v", action, id, err)
	} else {
		b.logger.Warnf("Bot %s %s refused: %v", action, id, err)
	}
	b.sendMessage(chatID, "❌ "+escapeMarkdown(e.Message), nil)
	if callbackID != "" {
		b.answerCallback(callbackID, "Failed")
	}
}

func (b *Bot) handleRejectReason(ctx context.Context, chatID, adminID int64, reason string) {
	if reason == "" {
		b.sendMessage(chatID, "The reason cannot be empty. Send the reject reason, or /cancel.", nil)
		return
	}

	action, id, ok := parseCallback(b.getUserActionData(adminID))
	b.resetState(adminID)
	if !ok {
		b.sendMessage(chatID, "❌ Nothing to reject. Start again from the request.", GetAdminMenu())
		return
	}

	var (
		summary string
		err     error
	)
	switch action {
	case actionRejectPayment:
		var p *models.ManualPayment
		if p, err = b.reviewer.RejectPayment(ctx, id, b.reviewerID, reason); err == nil {
			summary = fmt.Sprintf("🚫 Payment `%s` rejected: %s", p.ID, escapeMarkdown(p.RejectReason))
		}
	case actionRejectWithdrawal:
		var w *models.Withdrawal
		if w, err = b.reviewer.RejectWithdrawal(ctx, id, b.reviewerID, reason); err == nil {
			summary = fmt.Sprintf("🚫 Withdrawal `%s` rejected: %s", w.ID, escapeMarkdown(w.RejectReason))
		}
	default:
		b.sendMessage(chatID, "❌ Nothing to reject. Start again from the request.", GetAdminMenu())
		return
	}
	if err != nil {
		b.reportError("", chatID, action, id, err)
		return
	}
	b.sendMessage(chatID, summary, GetAdminMenu())
}

// pageBounds maps page onto the list. An out of range page shows the first one.
func pageBounds(total, page int) (start, end, current, pages int) {
	pages = (total-1)/itemsPerPage + 1
	if page < 0 || page >= pages {
		page = 0
	}
	start = page * itemsPerPage
	end = start + itemsPerPage
	if end > total {
		end = total
	}
	return start, end, page, pages
}

func paginationRow(action string, page, pages int) []tgbotapi.InlineKeyboardButton {
	row := make([]tgbotapi.InlineKeyboardButton, 0, 2)
	if page > 0 {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", callbackData(action, fmt.Sprint(page-1))))
	}
	if page < pages-1 {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("Next ➡️", callbackData(action, fmt.Sprint(page+1))))
	}
	return row
}

func renderPaymentsPage(payments []models.ManualPayment, page int) (string, tgbotapi.InlineKeyboardMarkup) {
	start, end, page, pages := pageBounds(len(payments), page)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🧾 Pending payments (page %d of %d):\n\n", page+1, pages))
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, end-start+1)
	for _, p := range payments[start:end] {
		sb.WriteString(fmt.Sprintf(
			"🆔 `%s`\n👤 %s\n📦 %s · `%s` USD in %s\n🔗 `%s`\n\n",
			p.ID, userLabel(p.User), escapeMarkdown(p.PlanID), p.AmountUSD.StringFixed(2), p.Currency, codeSpan(p.TxHash),
		))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ #"+shortID(p.ID), callbackData(actionApprovePayment, p.ID)),
			tgbotapi.NewInlineKeyboardButtonData("❌ #"+shortID(p.ID), callbackData(actionRejectPayment, p.ID)),
		))
	}
	if row := paginationRow(actionPaymentsPage, page, pages); len(row) > 0 {
		rows = append(rows, row)
	}
	return sb.String(), tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func renderWithdrawalsPage(withdrawals []models.Withdrawal, page int) (string, tgbotapi.InlineKeyboardMarkup) {
	start, end, page, pages := pageBounds(len(withdrawals), page)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("💸 Pending withdrawals (page %d of %d):\n\n", page+1, pages))
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, end-start+1)
	for _, w := range withdrawals[start:end] {
		sb.WriteString(fmt.Sprintf(
			"🆔 `%s`\n👤 %s · balance `%s`\n💰 `%s` USD\n📬 %s `%s`\n\n",
			w.ID, userLabel(w.User), balanceOf(w.User), w.Amount.StringFixed(2), w.CryptoType, codeSpan(w.CryptoAddress),
		))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ #"+shortID(w.ID), callbackData(actionApproveWithdrawal, w.ID)),
			tgbotapi.NewInlineKeyboardButtonData("❌ #"+shortID(w.ID), callbackData(actionRejectWithdrawal, w.ID)),
		))
	}
	if row := paginationRow(actionWithdrawalsPage, page, pages); len(row) > 0 {
		rows = append(rows, row)
	}
	return sb.String(), tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (b *Bot) sendPaymentsPage(ctx context.Context, chatID int64, page int) {
	payments, err := b.reviewer.ListPayments(ctx, string(models.StatusPending))
	if err != nil {
		b.logger.Errorf("Failed to get pending payments: %v", err)
		b.sendMessage(chatID, "❌ Failed to load pending payments.", nil)
		return
	}
	if len(payments) == 0 {
		b.sendMessage(chatID, "ℹ️ No pending payments.", GetAdminMenu())
		return
	}
	text, markup := renderPaymentsPage(payments, page)
	b.sendMessage(chatID, text, markup)
}

func (b *Bot) sendWithdrawalsPage(ctx context.Context, chatID int64, page int) {
	withdrawals, err := b.reviewer.ListWithdrawals(ctx, string(models.StatusPending))
	if err != nil {
		b.logger.Errorf("Failed to get pending withdrawals: %v", err)
		b.sendMessage(chatID, "❌ Failed to load pending withdrawals.", nil)
		return
	}
	if len(withdrawals) == 0 {
		b.sendMessage(chatID, "ℹ️ No pending withdrawals.", GetAdminMenu())
		return
	}
	text, markup := renderWithdrawalsPage(withdrawals, page)
	b.sendMessage(chatID, text, markup)
}
