package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Fi44er/tradecycle/internal/apperr"
	"github.com/Fi44er/tradecycle/internal/models"
	"github.com/Fi44er/tradecycle/utils"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	adminChat  int64 = 1001
	reviewerID       = "5f0c6a8e-8a43-4f5e-9d8e-3c9a7d1b2e10"
)

type fakeAPI struct {
	mu      sync.Mutex
	sent    []tgbotapi.Chattable
	answers []tgbotapi.CallbackConfig
	updates chan tgbotapi.Update
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{updates: make(chan tgbotapi.Update, 8)}
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cb, ok := c.(tgbotapi.CallbackConfig); ok {
		f.answers = append(f.answers, cb)
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {}

func (f *fakeAPI) messages() []tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.MessageConfig
	for _, c := range f.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeAPI) lastMessage(t *testing.T) tgbotapi.MessageConfig {
	t.Helper()
	msgs := f.messages()
	require.NotEmpty(t, msgs)
	return msgs[len(msgs)-1]
}

type call struct {
	method, id, admin, reason string
}

type fakeReviewer struct {
	mu          sync.Mutex
	calls       []call
	err         error
	payments    []models.ManualPayment
	withdrawals []models.Withdrawal
}

func (r *fakeReviewer) record(c call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
	return r.err
}

func (r *fakeReviewer) ListPayments(context.Context, string) ([]models.ManualPayment, error) {
	return r.payments, nil
}

func (r *fakeReviewer) ListWithdrawals(context.Context, string) ([]models.Withdrawal, error) {
	return r.withdrawals, nil
}

func (r *fakeReviewer) ApprovePayment(_ context.Context, id, admin string) (*models.ManualPayment, error) {
	if err := r.record(call{"approve_payment", id, admin, ""}); err != nil {
		return nil, err
	}
	return &models.ManualPayment{ID: id, Status: models.StatusApproved, AmountUSD: decimal.NewFromInt(350)}, nil
}

func (r *fakeReviewer) RejectPayment(_ context.Context, id, admin, reason string) (*models.ManualPayment, error) {
	if err := r.record(call{"reject_payment", id, admin, reason}); err != nil {
		return nil, err
	}
	return &models.ManualPayment{ID: id, Status: models.StatusRejected, RejectReason: reason}, nil
}

func (r *fakeReviewer) ApproveWithdrawal(_ context.Context, id, admin string) (*models.Withdrawal, error) {
	if err := r.record(call{"approve_withdrawal", id, admin, ""}); err != nil {
		return nil, err
	}
	return &models.Withdrawal{ID: id, Status: models.StatusApproved, Amount: decimal.NewFromInt(40)}, nil
}

func (r *fakeReviewer) RejectWithdrawal(_ context.Context, id, admin, reason string) (*models.Withdrawal, error) {
	if err := r.record(call{"reject_withdrawal", id, admin, reason}); err != nil {
		return nil, err
	}
	return &models.Withdrawal{ID: id, Status: models.StatusRejected, RejectReason: reason}, nil
}

func newTestBot(reviewer string) (*Bot, *fakeAPI, *fakeReviewer) {
	api := newFakeAPI()
	rev := &fakeReviewer{}
	return NewBot(api, rev, utils.NewDiscardLogger(), adminChat, reviewer), api, rev
}

func callbackUpdate(from int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb-1",
		From:    &tgbotapi.User{ID: from},
		Data:    data,
		Message: &tgbotapi.Message{MessageID: 77, Chat: &tgbotapi.Chat{ID: from}},
	}}
}

func messageUpdate(from int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text: text,
		From: &tgbotapi.User{ID: from},
		Chat: &tgbotapi.Chat{ID: from},
	}}
}

func callbackButtons(t *testing.T, markup interface{}) []string {
	t.Helper()
	kb, ok := markup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok, "expected inline keyboard, got %T", markup)
	var out []string
	for _, row := range kb.InlineKeyboard {
		for _, btn := range row {
			require.NotNil(t, btn.CallbackData)
			out = append(out, *btn.CallbackData)
		}
	}
	return out
}

func TestParseCallback(t *testing.T) {
	cases := []struct {
		data, action, arg string
		ok                bool
	}{
		{"approve_payment:abc", actionApprovePayment, "abc", true},
		{"reject_withdrawal:w-1", actionRejectWithdrawal, "w-1", true},
		{"payments_page:2", actionPaymentsPage, "2", true},
		{"cancel", actionCancel, "", true},
		{"approve_payment:", "", "", false},
		{"approve_payment", "", "", false},
		{"contact_user:12", "", "", false},
		{"", "", "", false},
	}
	for _, tc := range cases {
		action, arg, ok := parseCallback(tc.data)
		assert.Equal(t, tc.ok, ok, tc.data)
		assert.Equal(t, tc.action, action, tc.data)
		assert.Equal(t, tc.arg, arg, tc.data)
	}
}

func TestPaymentSubmittedNotifiesAdmin(t *testing.T) {
	b, api, _ := newTestBot(reviewerID)

	b.PaymentSubmitted(&models.ManualPayment{
		ID: "p-1", PlanID: "pro", Currency: "USDT", AmountUSD: decimal.NewFromInt(350), TxHash: "0xabc",
	}, &models.User{Email: "some_user@example.com"})

	msg := api.lastMessage(t)
	assert.Equal(t, adminChat, msg.ChatID)
	assert.Contains(t, msg.Text, "350.00")
	assert.Contains(t, msg.Text, `some\_user@example.com`)
	assert.Equal(t, []string{"approve_payment:p-1", "reject_payment:p-1"}, callbackButtons(t, msg.ReplyMarkup))

	b.WithdrawalRequested(&models.Withdrawal{ID: "w-1", Amount: decimal.NewFromInt(40), CryptoType: "BTC"}, nil)
	msg = api.lastMessage(t)
	assert.Equal(t, []string{"approve_withdrawal:w-1", "reject_withdrawal:w-1"}, callbackButtons(t, msg.ReplyMarkup))
}

func TestNotificationsKeepCodeSpansClosed(t *testing.T) {
	b, api, _ := newTestBot(reviewerID)

	b.PaymentSubmitted(&models.ManualPayment{
		ID: "p-2", PlanID: "pro", Currency: "USDT", AmountUSD: decimal.NewFromInt(350), TxHash: "0xab`c *x*",
	}, &models.User{Email: "u@example.com"})
	msg := api.lastMessage(t)
	assert.Contains(t, msg.Text, "`0xab'c *x*`")
	assert.Equal(t, 0, strings.Count(msg.Text, "`")%2)

	b.WithdrawalRequested(&models.Withdrawal{ID: "w-2", Amount: decimal.NewFromInt(40), CryptoType: "BTC", CryptoAddress: "bc1`q"}, nil)
	msg = api.lastMessage(t)
	assert.Contains(t, msg.Text, "`bc1'q`")
	assert.Equal(t, 0, strings.Count(msg.Text, "`")%2)
}

func TestNotifierWithoutChatIsSilent(t *testing.T) {
	api := newFakeAPI()
	b := NewBot(api, &fakeReviewer{}, utils.NewDiscardLogger(), 0, reviewerID)
	b.PaymentSubmitted(&models.ManualPayment{ID: "p-1"}, nil)
	assert.Empty(t, api.messages())
}

func TestApproveCallback(t *testing.T) {
	b, api, rev := newTestBot(reviewerID)
	ctx := context.Background()

	b.HandleUpdate(ctx, callbackUpdate(adminChat, "approve_payment:p-1"))
	b.HandleUpdate(ctx, callbackUpdate(adminChat, "approve_withdrawal:w-1"))

	assert.Equal(t, []call{
		{"approve_payment", "p-1", reviewerID, ""},
		{"approve_withdrawal", "w-1", reviewerID, ""},
	}, rev.calls)
	assert.Contains(t, api.lastMessage(t).Text, "approved")
	assert.Len(t, api.answers, 2)
}

func TestCallbackFromStrangerIsRefused(t *testing.T) {
	b, api, rev := newTestBot(reviewerID)

	b.HandleUpdate(context.Background(), callbackUpdate(42, "approve_payment:p-1"))

	assert.Empty(t, rev.calls)
	require.Len(t, api.answers, 1)
	assert.Contains(t, api.answers[0].Text, "administrators")
}

func TestReviewsDisabledWithoutReviewer(t *testing.T) {
	b, api, rev := newTestBot("")

	b.HandleUpdate(context.Background(), callbackUpdate(adminChat, "reject_payment:p-1"))

	assert.Empty(t, rev.calls)
	assert.Equal(t, stateDefault, b.getUserState(adminChat))
	require.Len(t, api.answers, 1)
	assert.Contains(t, api.answers[0].Text, "disabled")
}

func TestRejectFlowAsksForReason(t *testing.T) {
	b, api, rev := newTestBot(reviewerID)
	ctx := context.Background()

	b.HandleUpdate(ctx, callbackUpdate(adminChat, "reject_withdrawal:w-9"))
	assert.Equal(t, stateAwaitingRejectReason, b.getUserState(adminChat))

	b.HandleUpdate(ctx, messageUpdate(adminChat, "   "))
	assert.Empty(t, rev.calls)
	assert.Equal(t, stateAwaitingRejectReason, b.getUserState(adminChat))

	b.HandleUpdate(ctx, messageUpdate(adminChat, "Address is on a blocklist"))
	assert.Equal(t, []call{{"reject_withdrawal", "w-9", reviewerID, "Address is on a blocklist"}}, rev.calls)
	assert.Equal(t, stateDefault, b.getUserState(adminChat))
	assert.Empty(t, b.getUserActionData(adminChat))
	assert.Contains(t, api.lastMessage(t).Text, "rejected")
}

func TestRejectFlowCancel(t *testing.T) {
	b, _, rev := newTestBot(reviewerID)
	ctx := context.Background()

	b.HandleUpdate(ctx, callbackUpdate(adminChat, "reject_payment:p-3"))
	b.HandleUpdate(ctx, messageUpdate(adminChat, "/cancel"))
	b.HandleUpdate(ctx, messageUpdate(adminChat, "some text"))

	assert.Empty(t, rev.calls)
	assert.Equal(t, stateDefault, b.getUserState(adminChat))
}

func TestReviewErrorIsShown(t *testing.T) {
	b, api, rev := newTestBot(reviewerID)
	rev.err = apperr.InsufficientFunds("balance 10 is below 40")

	b.HandleUpdate(context.Background(), callbackUpdate(adminChat, "approve_withdrawal:w-1"))

	assert.Contains(t, api.lastMessage(t).Text, "balance 10 is below 40")
	require.Len(t, api.answers, 1)
	assert.Equal(t, "Failed", api.answers[0].Text)
}

func TestStrangerMessageIsRefused(t *testing.T) {
	b, api, _ := newTestBot(reviewerID)
	b.HandleUpdate(context.Background(), messageUpdate(42, "/pending"))
	assert.Contains(t, api.lastMessage(t).Text, "administrators only")
}

func TestPendingPagination(t *testing.T) {
	payments := make([]models.ManualPayment, 7)
	for i := range payments {
		payments[i] = models.ManualPayment{ID: fmt.Sprintf("payment-%02d", i), PlanID: "pro", AmountUSD: decimal.NewFromInt(350)}
	}

	text, markup := renderPaymentsPage(payments, 0)
	assert.Contains(t, text, "page 1 of 2")
	buttons := callbackButtons(t, markup)
	assert.Len(t, buttons, 11)
	assert.Equal(t, "payments_page:1", buttons[len(buttons)-1])

	text, markup = renderPaymentsPage(payments, 1)
	assert.Contains(t, text, "page 2 of 2")
	assert.Contains(t, text, "payment-06")
	buttons = callbackButtons(t, markup)
	assert.Len(t, buttons, 5)
	assert.Equal(t, "payments_page:0", buttons[len(buttons)-1])

	text, _ = renderPaymentsPage(payments, 9)
	assert.Contains(t, text, "page 1 of 2")

	b, api, rev := newTestBot(reviewerID)
	rev.payments = payments
	b.HandleUpdate(context.Background(), callbackUpdate(adminChat, "payments_page:1"))
	assert.True(t, strings.Contains(api.lastMessage(t).Text, "payment-05"))

	_, markup = renderWithdrawalsPage([]models.Withdrawal{{ID: "w-1", Amount: decimal.NewFromInt(5)}}, 0)
	assert.Equal(t, []string{"approve_withdrawal:w-1", "reject_withdrawal:w-1"}, callbackButtons(t, markup))
}

func TestEmptyPendingList(t *testing.T) {
	b, api, _ := newTestBot(reviewerID)
	b.HandleUpdate(context.Background(), messageUpdate(adminChat, menuPendingWithdrawals))
	assert.Contains(t, api.lastMessage(t).Text, "No pending withdrawals")
}

func TestStartStopsWithContext(t *testing.T) {
	b, api, _ := newTestBot(reviewerID)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		b.Start(ctx)
		close(done)
	}()

	api.updates <- messageUpdate(adminChat, "/start")
	require.Eventually(t, func() bool { return len(api.messages()) == 1 }, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("bot did not stop")
	}
}
