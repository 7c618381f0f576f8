package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Fi44er/tradecycle/config"
	"github.com/Fi44er/tradecycle/internal/apperr"
	"github.com/Fi44er/tradecycle/internal/models"
	"github.com/Fi44er/tradecycle/utils"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type Repository interface {
	BeginTransaction(ctx context.Context) (*gorm.DB, error)
	Commit(tx *gorm.DB) error
	Rollback(tx *gorm.DB)
	LockUser(ctx context.Context, userID string, tx *gorm.DB) (*models.User, error)
	LockPlan(ctx context.Context, planID, strength string, tx *gorm.DB) (*models.Plan, error)

	GetUserByID(ctx context.Context, id string, tx *gorm.DB) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string, tx *gorm.DB) (*models.User, error)
	GetUserByReferralCode(ctx context.Context, code string, tx *gorm.DB) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User, tx *gorm.DB) error
	CreditBalance(ctx context.Context, userID string, amount decimal.Decimal, tx *gorm.DB) error
	DebitBalance(ctx context.Context, userID string, amount decimal.Decimal, tx *gorm.DB) (bool, error)
	AddProfit(ctx context.Context, userID string, amount decimal.Decimal, tx *gorm.DB) error
	SetUserDisabled(ctx context.Context, userID string, disabled bool, tx *gorm.DB) (bool, error)
	ListUsers(ctx context.Context, search string, limit, offset int) ([]models.User, int64, error)
	CountReferrals(ctx context.Context, userID string) (int64, error)

	GetPlan(ctx context.Context, id string, tx *gorm.DB) (*models.Plan, error)
	ListPlans(ctx context.Context, activeOnly bool) ([]models.Plan, error)
	CreatePlan(ctx context.Context, plan *models.Plan, tx *gorm.DB) error
	SavePlan(ctx context.Context, plan *models.Plan, tx *gorm.DB) error
	CountActiveSubscriptionsForPlan(ctx context.Context, planID string, now time.Time, tx *gorm.DB) (int64, error)

	GetActiveSubscription(ctx context.Context, userID string, now time.Time, tx *gorm.DB) (*models.Subscription, error)
	CreateSubscription(ctx context.Context, sub *models.Subscription, tx *gorm.DB) error
	SetSubscriptionEnd(ctx context.Context, id string, end time.Time, paymentID *string, tx *gorm.DB) error

	CreatePayment(ctx context.Context, payment *models.ManualPayment, tx *gorm.DB) error
	GetPayment(ctx context.Context, id string, tx *gorm.DB) (*models.ManualPayment, error)
	FindLivePaymentByTxHash(ctx context.Context, currency, txHash string, tx *gorm.DB) (*models.ManualPayment, error)
	ListPayments(ctx context.Context, status models.ReviewStatus) ([]models.ManualPayment, error)
	ListPaymentsByUser(ctx context.Context, userID string) ([]models.ManualPayment, error)
	TransitionPayment(ctx context.Context, id string, to models.ReviewStatus, reviewer, reason string, at time.Time, tx *gorm.DB) (bool, error)
	CountApprovedPayments(ctx context.Context, userID string, tx *gorm.DB) (int64, error)

	CreateWithdrawal(ctx context.Context, withdrawal *models.Withdrawal, tx *gorm.DB) error
	GetWithdrawalByID(ctx context.Context, id string, tx *gorm.DB) (*models.Withdrawal, error)
	ListWithdrawals(ctx context.Context, status models.ReviewStatus) ([]models.Withdrawal, error)
	ListWithdrawalsByUser(ctx context.Context, userID string) ([]models.Withdrawal, error)
	TransitionWithdrawal(ctx context.Context, id string, to models.ReviewStatus, reviewer, reason string, at time.Time, tx *gorm.DB) (bool, error)

	CreateCycle(ctx context.Context, cycle *models.Cycle, tx *gorm.DB) error
	CountCyclesBetween(ctx context.Context, userID string, from, to time.Time, tx *gorm.DB) (int64, error)
	ListCyclesByUser(ctx context.Context, userID string) ([]models.Cycle, error)

	AppendEvent(ctx context.Context, event *models.HistoryEvent, tx *gorm.DB) error
	ListEvents(ctx context.Context, userID, search string, limit, offset int) ([]models.HistoryEvent, error)
	SumEvents(ctx context.Context, userID string, eventType models.EventType) (decimal.Decimal, error)
}

// Notifier is told about new work for admins. Calls happen after commit on
// their own goroutine.
type Notifier interface {
	PaymentSubmitted(payment *models.ManualPayment, user *models.User)
	WithdrawalRequested(withdrawal *models.Withdrawal, user *models.User)
}

type Recorder interface {
	ReviewDecided(entity, outcome string)
	CycleIssued(planID string)
	QuotaDenied()
	LedgerMoved(kind string, amount decimal.Decimal)
}

type nopRecorder struct{}

func (nopRecorder) ReviewDecided(string, string) {}
func (nopRecorder) CycleIssued(string) {}
func (nopRecorder) QuotaDenied() {}
func (nopRecorder) LedgerMoved(string, decimal.Decimal) {}

type Service struct {
	repo     Repository
	config   *config.Config
	logger   *utils.Logger
	clock    func() time.Time
	notifier Notifier
	metrics  Recorder

	netParams          *chaincfg.Params
	billing            BillingAddresses
	subscriptionPeriod time.Duration
	referralRate       decimal.Decimal
	passwordCost       int
}

type Option func(*Service)

func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithMetrics(r Recorder) Option {
	return func(s *Service) { s.metrics = r }
}

// WithPasswordCost sets the bcrypt cost. Tests use bcrypt.MinCost.
func WithPasswordCost(cost int) Option {
	return func(s *Service) { s.passwordCost = cost }
}

func NewService(repo Repository, cfg *config.Config, logger *utils.Logger, opts ...Option) (*Service, error) {
	params, err := utils.NetworkParams(cfg.BTCNetwork)
	if err != nil {
		return nil, err
	}

	s := &Service{
		repo:               repo,
		config:             cfg,
		logger:             logger,
		clock:              time.Now,
		metrics:            nopRecorder{},
		netParams:          params,
		subscriptionPeriod: time.Duration(cfg.SubscriptionDays) * 24 * time.Hour,
		referralRate:       decimal.NewFromFloat(cfg.ReferralRate),
		passwordCost:       bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}

	billing, err := s.resolveBillingAddresses()
	if err != nil {
		return nil, err
	}
	s.billing = billing

	return s, nil
}

// SetNotifier attaches a notifier after construction, for notifiers that need
// the service themselves. Call it before serving requests.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

func (s *Service) GetAdminChatID() int64 {
	return s.config.AdminChatID
}

func (s *Service) now() time.Time {
	return s.clock().UTC().Truncate(time.Microsecond)
}

// inTx runs fn in one database transaction. Any error from fn rolls back.
func (s *Service) inTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	tx, err := s.repo.BeginTransaction(ctx)
	if err != nil {
		return s.internal("begin transaction", err)
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorf("Panic occurred: %v", r)
			s.repo.Rollback(tx)
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		s.repo.Rollback(tx)
		return err
	}

	if err := s.repo.Commit(tx); err != nil {
		return s.internal("commit transaction", err)
	}
	return nil
}

// internal logs a storage failure and hides it behind a generic error.
func (s *Service) internal(op string, err error) error {
	s.logger.Errorf("%s: %v", op, err)
	return apperr.Internal(fmt.Errorf("%s: %w", op, err))
}

func (s *Service) notify(fn func(n Notifier)) {
	if s.notifier == nil {
		return
	}
	go fn(s.notifier)
}

func (s *Service) appendEvent(ctx context.Context, tx *gorm.DB, event *models.HistoryEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = s.now()
	}
	if event.Details == nil {
		event.Details = map[string]any{}
	}
	if err := s.repo.AppendEvent(ctx, event, tx); err != nil {
		return s.internal("append history", err)
	}
	return nil
}

// lockUser takes the per-user row lock and maps a missing row to NotFound.
func (s *Service) lockUser(ctx context.Context, userID string, tx *gorm.DB) (*models.User, error) {
	user, err := s.repo.LockUser(ctx, userID, tx)
	if err != nil {
		return nil, s.internal("lock user", err)
	}
	if user == nil {
		return nil, apperr.NotFound("user %s not found", userID)
	}
	return user, nil
}
