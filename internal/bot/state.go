package bot

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	stateDefault              = ""
	stateAwaitingRejectReason = "awaiting_reject_reason"
)

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// codeSpan makes s safe inside a `code` span, where escapes are not honoured.
func codeSpan(s string) string {
	return strings.ReplaceAll(s, "`", "'")
}

func (b *Bot) sendMessage(chatID int64, text string, replyMarkup interface{}) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if replyMarkup != nil {
		msg.ReplyMarkup = replyMarkup
	}
	if _, err := b.API.Send(msg); err != nil {
		b.logger.Errorf("Failed to send message: %v", err)
	}
}

func (b *Bot) answerCallback(callbackID string, text string) {
	if _, err := b.API.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		b.logger.Errorf("Failed to answer callback: %v", err)
	}
}

func (b *Bot) clearMarkup(chatID int64, messageID int) {
	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, tgbotapi.InlineKeyboardMarkup{
		InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{},
	})
	if _, err := b.API.Send(edit); err != nil {
		b.logger.Warnf("Failed to clear keyboard: %v", err)
	}
}

func (b *Bot) isAdmin(userID int64) bool {
	return b.adminChatID != 0 && userID == b.adminChatID
}

func (b *Bot) setState(userID int64, state string) {
	b.stateMutex.Lock()
	defer b.stateMutex.Unlock()
	if state == stateDefault {
		delete(b.userStates, userID)
	} else {
		b.userStates[userID] = state
	}
	b.logger.Debugf("Set state for user %d: %s", userID, state)
}

func (b *Bot) getUserState(userID int64) string {
	b.stateMutex.Lock()
	defer b.stateMutex.Unlock()
	return b.userStates[userID]
}

func (b *Bot) setUserActionData(userID int64, data string) {
	b.stateMutex.Lock()
	defer b.stateMutex.Unlock()
	b.userActionData[userID] = data
}

func (b *Bot) getUserActionData(userID int64) string {
	b.stateMutex.Lock()
	defer b.stateMutex.Unlock()
	return b.userActionData[userID]
}

func (b *Bot) clearUserActionData(userID int64) {
	b.stateMutex.Lock()
	defer b.stateMutex.Unlock()
	delete(b.userActionData, userID)
}
