package models

import (
	"encoding/json"
	"fmt"
)

// ScreenshotURL is the admin route that serves the proof of payment id.
func ScreenshotURL(paymentID string) string {
	return "/api/admin/manual-payments/" + paymentID + "/screenshot"
}

type paymentJSON ManualPayment

func (p ManualPayment) MarshalJSON() ([]byte, error) {
	out := struct {
		paymentJSON
		UserEmail     string `json:"user_email,omitempty"`
		PlanName      string `json:"plan_name,omitempty"`
		ScreenshotURL string `json:"screenshot_url,omitempty"`
	}{paymentJSON: paymentJSON(p)}

	if p.User != nil {
		out.UserEmail = p.User.Email
	}
	if p.Plan != nil {
		out.PlanName = p.Plan.Name
	}
	if p.ScreenshotRef != "" {
		out.ScreenshotURL = ScreenshotURL(p.ID)
	}
	return json.Marshal(out)
}

type withdrawalJSON Withdrawal

func (w Withdrawal) MarshalJSON() ([]byte, error) {
	out := struct {
		withdrawalJSON
		UserEmail string `json:"user_email,omitempty"`
	}{withdrawalJSON: withdrawalJSON(w)}

	if w.User != nil {
		out.UserEmail = w.User.Email
	}
	return json.Marshal(out)
}

var eventTitles = map[EventType]string{
	EventPaymentSubmitted:     "Payment submitted",
	EventPaymentApproved:      "Payment approved",
	EventPaymentRejected:      "Payment rejected",
	EventSubscriptionActive:   "Subscription activated",
	EventSubscriptionExtended: "Subscription extended",
	EventWithdrawalRequested:  "Withdrawal requested",
	EventWithdrawalApproved:   "Withdrawal approved",
	EventWithdrawalRejected:   "Withdrawal rejected",
	EventAdminAddFunds:        "Funds added by admin",
	EventAdminAddProfit:       "Profit added by admin",
	EventReferralCredit:       "Referral bonus",
	EventCycleStarted:         "Trading cycle started",
}

var eventStatuses = map[EventType]string{
	EventPaymentSubmitted:     string(StatusPending),
	EventPaymentApproved:      string(StatusApproved),
	EventPaymentRejected:      string(StatusRejected),
	EventSubscriptionActive:   "ACTIVE",
	EventSubscriptionExtended: "ACTIVE",
	EventWithdrawalRequested:  string(StatusPending),
	EventWithdrawalApproved:   string(StatusApproved),
	EventWithdrawalRejected:   string(StatusRejected),
	EventCycleStarted:         CycleStatusStarted,
}

// Title is a one-line English summary of the event.
func (e HistoryEvent) Title() string {
	label, ok := eventTitles[e.EventType]
	if !ok {
		label = string(e.EventType)
	}
	if e.Amount.IsZero() {
		return label
	}
	return fmt.Sprintf("%s (%s USD)", label, e.Amount.StringFixed(2))
}

// Status is details.status when recorded, otherwise implied by the event type.
func (e HistoryEvent) Status() string {
	if s, ok := e.Details["status"].(string); ok && s != "" {
		return s
	}
	return eventStatuses[e.EventType]
}

type eventJSON HistoryEvent

func (e HistoryEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		eventJSON
		Status string `json:"status,omitempty"`
		Title  string `json:"title"`
	}{eventJSON: eventJSON(e), Status: e.Status(), Title: e.Title()})
}
