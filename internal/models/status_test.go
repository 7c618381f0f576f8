package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReviewStatus_CanTransition(t *testing.T) {
	assert.True(t, StatusPending.CanTransition(StatusApproved))
	assert.True(t, StatusPending.CanTransition(StatusRejected))
	assert.False(t, StatusPending.CanTransition(StatusPending))
	assert.False(t, StatusApproved.CanTransition(StatusRejected))
	assert.False(t, StatusRejected.CanTransition(StatusApproved))
	assert.False(t, StatusApproved.CanTransition(StatusApproved))
}

func TestReviewStatus_IsTerminal(t *testing.T) {
	assert.False(t, StatusPending.IsTerminal())
	assert.True(t, StatusApproved.IsTerminal())
	assert.True(t, StatusRejected.IsTerminal())
	assert.False(t, ReviewStatus("CANCELED").IsTerminal())
}

func TestParseReviewStatus(t *testing.T) {
	s, err := ParseReviewStatus(" pending ")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, s)

	_, err = ParseReviewStatus("")
	assert.Error(t, err)
	_, err = ParseReviewStatus("done")
	assert.Error(t, err)
}

func TestIsPaymentCurrency(t *testing.T) {
	assert.True(t, IsPaymentCurrency("BTC"))
	assert.True(t, IsPaymentCurrency("USDT"))
	assert.False(t, IsPaymentCurrency("usdt"))
	assert.False(t, IsPaymentCurrency("USD"))
}
