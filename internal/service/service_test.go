package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Fi44er/tradecycle/config"
	"github.com/Fi44er/tradecycle/db"
	"github.com/Fi44er/tradecycle/internal/models"
	"github.com/Fi44er/tradecycle/internal/repository"
	"github.com/Fi44er/tradecycle/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const usdtAddress = "0x52908400098527886E0F7030069857D2E4169EE7"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingNotifier struct {
	payments    chan string
	withdrawals chan string
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{payments: make(chan string, 16), withdrawals: make(chan string, 16)}
}

func (n *recordingNotifier) PaymentSubmitted(p *models.ManualPayment, _ *models.User) {
	n.payments <- p.ID
}

func (n *recordingNotifier) WithdrawalRequested(w *models.Withdrawal, _ *models.User) {
	n.withdrawals <- w.ID
}

type harness struct {
	t     *testing.T
	ctx   context.Context
	db    *gorm.DB
	svc   *Service
	clock *fakeClock
	cfg   *config.Config
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:        "test-secret",
		TokenTTL:         time.Hour,
		BTCNetwork:       "mainnet",
		SubscriptionDays: 30,
		ReferralRate:     0.5,
	}
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	log := utils.NewDiscardLogger()

	database, err := db.ConnectDb("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()), log)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(database, true, log))
	require.NoError(t, db.SeedPlans(database, log))
	t.Cleanup(func() {
		if sqlDB, err := database.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	clock := &fakeClock{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
	cfg := testConfig()
	opts = append([]Option{WithClock(clock.Now), WithPasswordCost(bcrypt.MinCost)}, opts...)
	svc, err := NewService(repository.NewRepository(database, log), cfg, log, opts...)
	require.NoError(t, err)

	return &harness{t: t, ctx: context.Background(), db: database, svc: svc, clock: clock, cfg: cfg}
}

func (h *harness) register(email, referralCode string) *models.User {
	h.t.Helper()
	res, err := h.svc.Register(h.ctx, email, "secret123", referralCode)
	require.NoError(h.t, err)
	return res.User
}

func (h *harness) admin() *models.User {
	h.t.Helper()
	user := h.register(uuid.NewString()[:8]+"@admin.test", "")
	require.NoError(h.t, h.db.Model(&models.User{}).Where("id = ?", user.ID).Update("role", models.RoleAdmin).Error)
	user.Role = models.RoleAdmin
	return user
}

func (h *harness) user(id string) *models.User {
	h.t.Helper()
	var u models.User
	require.NoError(h.t, h.db.First(&u, "id = ?", id).Error)
	return &u
}

func (h *harness) submit(userID, planID, amount, txHash string) *models.ManualPayment {
	h.t.Helper()
	p, err := h.svc.SubmitPayment(h.ctx, SubmitPaymentInput{
		UserID:    userID,
		PlanID:    planID,
		Currency:  models.CurrencyUSDT,
		AmountUSD: decimal.RequireFromString(amount),
		TxHash:    txHash,
	})
	require.NoError(h.t, err)
	return p
}

func (h *harness) subscribe(userID, planID string, adminID string) *models.ManualPayment {
	h.t.Helper()
	p := h.submit(userID, planID, "350", uuid.NewString())
	approved, err := h.svc.ApprovePayment(h.ctx, p.ID, adminID)
	require.NoError(h.t, err)
	return approved
}

func (h *harness) fund(userID, amount, adminID string) {
	h.t.Helper()
	_, err := h.svc.AddFunds(h.ctx, userID, decimal.RequireFromString(amount), adminID)
	require.NoError(h.t, err)
}

func (h *harness) events(userID string) []models.HistoryEvent {
	h.t.Helper()
	events, err := h.svc.ListHistory(h.ctx, userID, HistoryQuery{})
	require.NoError(h.t, err)
	return events
}

func (h *harness) eventsOfType(userID string, eventType models.EventType) []models.HistoryEvent {
	var out []models.HistoryEvent
	for _, e := range h.events(userID) {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
