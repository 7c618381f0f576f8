package service

import (
	"strings"
	"testing"

	"github.com/Fi44er/tradecycle/internal/apperr"
	"github.com/Fi44er/tradecycle/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Two credits by email raise the balance by exactly their sum and append two
// ADMIN_ADD_FUNDS events in call order.
func TestScenarioD_AddFundsByEmail(t *testing.T) {
	h := newHarness(t)
	admin := h.admin()
	u := h.register("u@x.com", "")

	r1, err := h.svc.AddFunds(h.ctx, "u@x.com", dec("100"), admin.ID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, r1.UserID)
	assert.Equal(t, "u@x.com", r1.UserEmail)
	assert.True(t, r1.Balance.Equal(dec("100")))

	r2, err := h.svc.AddFunds(h.ctx, " U@X.com", dec("50"), admin.ID)
	require.NoError(t, err)
	assert.True(t, r2.AmountAdded.Equal(dec("50")))
	assert.True(t, r2.Balance.Equal(dec("150")))

	events := h.eventsOfType(u.ID, models.EventAdminAddFunds)
	require.Len(t, events, 2)
	assert.Equal(t, r1.EventID, events[0].ID)
	assert.Equal(t, r2.EventID, events[1].ID)
	assert.True(t, events[0].Amount.Equal(dec("100")))
	assert.True(t, events[1].Amount.Equal(dec("50")))
	assert.Equal(t, admin.ID, events[0].Details["admin_id"])
}

func TestAddFunds_ByID(t *testing.T) {
	h := newHarness(t)
	admin := h.admin()
	u := h.register("u@x.com", "")

	receipt, err := h.svc.AddFunds(h.ctx, strings.ToUpper(u.ID), dec("12.34"), admin.ID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, receipt.UserID)
	assert.True(t, h.user(u.ID).Balance.Equal(dec("12.34")))
}

func TestAddFunds_Errors(t *testing.T) {
	h := newHarness(t)
	admin := h.admin()
	h.register("u@x.com", "")

	_, err := h.svc.AddFunds(h.ctx, "u@x.com", dec("0"), admin.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	_, err = h.svc.AddFunds(h.ctx, "u@x.com", dec("-5"), admin.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	_, err = h.svc.AddFunds(h.ctx, "nobody@x.com", dec("5"), admin.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	_, err = h.svc.AddFunds(h.ctx, "2b1c3a8e-1111-4222-8333-444455556666", dec("5"), admin.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	_, err = h.svc.AddFunds(h.ctx, "", dec("5"), admin.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestAddProfit_LeavesBalance(t *testing.T) {
	h := newHarness(t)
	admin := h.admin()
	u := h.register("u@x.com", "")
	h.fund(u.ID, "10", admin.ID)

	receipt, err := h.svc.AddProfit(h.ctx, "u@x.com", dec("25"), admin.ID)
	require.NoError(t, err)
	assert.True(t, receipt.ProfitTotal.Equal(dec("25")))
	assert.True(t, receipt.Balance.Equal(dec("10")))

	got := h.user(u.ID)
	assert.True(t, got.Balance.Equal(dec("10")))
	assert.True(t, got.ProfitTotal.Equal(dec("25")))
	assert.Len(t, h.eventsOfType(u.ID, models.EventAdminAddProfit), 1)
}

func TestListUsers_Paging(t *testing.T) {
	h := newHarness(t)
	h.register("a@x.com", "")
	h.register("b@x.com", "")
	h.register("c@y.com", "")

	page, err := h.svc.ListUsers(h.ctx, "", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Len(t, page.Users, 2)

	page, err = h.svc.ListUsers(h.ctx, "@x.com", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, defaultPageSize, page.PageSize)
}

func TestSetUserDisabled(t *testing.T) {
	h := newHarness(t)
	admin := h.admin()

	_, err := h.svc.SetUserDisabled(h.ctx, admin.ID, true, admin.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = h.svc.SetUserDisabled(h.ctx, "missing", true, admin.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

	u := h.register("u@x.com", "")
	got, err := h.svc.SetUserDisabled(h.ctx, u.ID, true, admin.ID)
	require.NoError(t, err)
	assert.True(t, got.Disabled)
}
