package service

import (
	"testing"

	"github.com/Fi44er/tradecycle/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Every committed transition leaves exactly one event carrying the related id
// and amount of the record that changed.
func TestHistoryRoundTrip(t *testing.T) {
	h := newHarness(t)
	admin := h.admin()
	referrer := h.register("r@example.com", "")
	u := h.register("u@example.com", referrer.ReferralCode)

	p := h.submit(u.ID, "pro", "350", "abc123")
	_, err := h.svc.ApprovePayment(h.ctx, p.ID, admin.ID)
	require.NoError(t, err)
	rejected := h.submit(u.ID, "starter", "100", "def456")
	_, err = h.svc.RejectPayment(h.ctx, rejected.ID, admin.ID, "duplicate")
	require.NoError(t, err)

	cycle, err := h.svc.IssueCycle(h.ctx, u.ID, dec("1000"))
	require.NoError(t, err)

	h.fund(u.ID, "200", admin.ID)
	w, err := h.svc.RequestWithdrawal(h.ctx, u.ID, dec("75"), "USDT", usdtAddress)
	require.NoError(t, err)
	_, err = h.svc.ApproveWithdrawal(h.ctx, w.ID, admin.ID)
	require.NoError(t, err)

	want := []struct {
		eventType models.EventType
		related   string
		amount    string
	}{
		{models.EventPaymentSubmitted, p.ID, "350"},
		{models.EventPaymentApproved, p.ID, "350"},
		{models.EventSubscriptionActive, p.ID, "350"},
		{models.EventPaymentSubmitted, rejected.ID, "100"},
		{models.EventPaymentRejected, rejected.ID, "100"},
		{models.EventCycleStarted, cycle.ID, "1000"},
		{models.EventAdminAddFunds, "", "200"},
		{models.EventWithdrawalRequested, w.ID, "75"},
		{models.EventWithdrawalApproved, w.ID, "75"},
	}

	events := h.events(u.ID)
	require.Len(t, events, len(want))
	for i, e := range events {
		assert.Equal(t, want[i].eventType, e.EventType, "event %d", i)
		assert.Equal(t, want[i].related, e.RelatedID, "event %d", i)
		assert.True(t, e.Amount.Equal(dec(want[i].amount)), "event %d amount %s", i, e.Amount)
	}

	referrerEvents := h.events(referrer.ID)
	require.Len(t, referrerEvents, 1)
	assert.Equal(t, models.EventReferralCredit, referrerEvents[0].EventType)
	assert.Equal(t, p.ID, referrerEvents[0].RelatedID)
}

func TestListHistory_SearchAndLimit(t *testing.T) {
	h := newHarness(t)
	admin := h.admin()
	u := h.register("u@example.com", "")
	p := h.submit(u.ID, "pro", "350", "abc123")
	_, err := h.svc.RejectPayment(h.ctx, p.ID, admin.ID, "Blurry screenshot")
	require.NoError(t, err)
	h.fund(u.ID, "10", admin.ID)

	found, err := h.svc.ListHistory(h.ctx, u.ID, HistoryQuery{Search: "blurry"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, models.EventPaymentRejected, found[0].EventType)

	found, err = h.svc.ListHistory(h.ctx, u.ID, HistoryQuery{Search: "rejected"})
	require.NoError(t, err)
	assert.Len(t, found, 1)

	limited, err := h.svc.ListHistory(h.ctx, u.ID, HistoryQuery{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	rest, err := h.svc.ListHistory(h.ctx, u.ID, HistoryQuery{Limit: 1000, Offset: 2})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, models.EventAdminAddFunds, rest[0].EventType)
}
