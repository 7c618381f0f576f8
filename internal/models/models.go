package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

func init() {
	// API clients read balances as plain JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type User struct {
	ID           string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Email        string          `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash string          `gorm:"not null" json:"-"`
	Balance      decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"balance"`
	ProfitTotal  decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"profit_total"`
	ReferralCode string          `gorm:"uniqueIndex;size:16;not null" json:"referral_code"`
	ReferredBy   *string         `gorm:"index;type:varchar(36)" json:"referred_by,omitempty"`
	Role         Role            `gorm:"size:16;not null" json:"role"`
	Disabled     bool            `gorm:"not null" json:"disabled"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

type Plan struct {
	ID              string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name            string          `gorm:"not null" json:"name"`
	NameFr          string          `json:"name_fr"`
	NameEs          string          `json:"name_es"`
	PriceUSD        decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"price_usd"`
	MaxCyclesPerDay int             `gorm:"not null" json:"max_cycles_per_day"`
	DailyYieldRate  decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"daily_yield_rate"`
	Features        datatypes.JSON  `json:"features"`
	FeaturesFr      datatypes.JSON  `json:"features_fr"`
	FeaturesEs      datatypes.JSON  `json:"features_es"`
	Active          bool            `gorm:"not null" json:"active"`
	SortOrder       int             `gorm:"not null" json:"sort_order"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type Subscription struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID    string    `gorm:"index;type:varchar(36);not null" json:"user_id"`
	PlanID    string    `gorm:"type:varchar(36);not null" json:"plan_id"`
	Plan      *Plan     `gorm:"foreignKey:PlanID" json:"plan,omitempty"`
	StartDate time.Time `gorm:"index;not null" json:"start_date"`
	EndDate   time.Time `gorm:"index;not null" json:"end_date"`
	PaymentID *string   `gorm:"type:varchar(36)" json:"payment_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ManualPayment struct {
	ID            string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID        string          `gorm:"index;type:varchar(36);not null" json:"user_id"`
	User          *User           `gorm:"foreignKey:UserID" json:"user,omitempty"`
	PlanID        string          `gorm:"type:varchar(36);not null" json:"plan_id"`
	Plan          *Plan           `gorm:"foreignKey:PlanID" json:"plan,omitempty"`
	Currency      string          `gorm:"size:8;not null;index:idx_payment_tx" json:"currency"`
	AmountUSD     decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"amount_usd"`
	TxHash        string          `gorm:"not null;index:idx_payment_tx" json:"tx_hash"`
	ScreenshotRef string          `json:"screenshot_ref"`
	Status        ReviewStatus    `gorm:"size:16;not null;index" json:"status"`
	RejectReason  string          `json:"reject_reason,omitempty"`
	ReviewedBy    *string         `gorm:"type:varchar(36)" json:"reviewed_by,omitempty"`
	ReviewedAt    *time.Time      `json:"reviewed_at,omitempty"`
	CreatedAt     time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type Withdrawal struct {
	ID            string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID        string          `gorm:"index;type:varchar(36);not null" json:"user_id"`
	User          *User           `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"amount"`
	CryptoType    string          `gorm:"size:8;not null" json:"crypto_type"`
	CryptoAddress string          `gorm:"not null" json:"crypto_address"`
	Status        ReviewStatus    `gorm:"size:16;not null;index" json:"status"`
	RejectReason  string          `json:"reject_reason,omitempty"`
	ReviewedBy    *string         `gorm:"type:varchar(36)" json:"reviewed_by,omitempty"`
	ReviewedAt    *time.Time      `json:"reviewed_at,omitempty"`
	CreatedAt     time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

const CycleStatusStarted = "STARTED"

type Cycle struct {
	ID             string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID         string          `gorm:"type:varchar(36);not null;index:idx_cycle_user_time" json:"user_id"`
	PlanID         string          `gorm:"type:varchar(36);not null" json:"plan_id"`
	StartTime      time.Time       `gorm:"not null;index:idx_cycle_user_time" json:"start_time"`
	Status         string          `gorm:"size:16;not null" json:"status"`
	InitialBalance decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"initial_balance"`
	YieldRate      decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"yield_rate"`
	CreatedAt      time.Time       `json:"created_at"`
}

type EventType string

const (
	EventPaymentSubmitted     EventType = "PAYMENT_SUBMITTED"
	EventPaymentApproved      EventType = "PAYMENT_APPROVED"
	EventPaymentRejected      EventType = "PAYMENT_REJECTED"
	EventSubscriptionActive   EventType = "SUBSCRIPTION_ACTIVATED"
	EventSubscriptionExtended EventType = "SUBSCRIPTION_EXTENDED"
	EventWithdrawalRequested  EventType = "WITHDRAWAL_REQUESTED"
	EventWithdrawalApproved   EventType = "WITHDRAWAL_APPROVED"
	EventWithdrawalRejected   EventType = "WITHDRAWAL_REJECTED"
	EventAdminAddFunds        EventType = "ADMIN_ADD_FUNDS"
	EventAdminAddProfit       EventType = "ADMIN_ADD_PROFIT"
	EventReferralCredit       EventType = "REFERRAL_CREDIT"
	EventCycleStarted         EventType = "CYCLE_STARTED"
)

// HistoryEvent rows are append-only. The autoincrement id breaks ties between
// events written at the same instant.
type HistoryEvent struct {
	ID        uint              `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    string            `gorm:"type:varchar(36);not null;index" json:"user_id"`
	EventType EventType         `gorm:"size:32;not null" json:"event_type"`
	Amount    decimal.Decimal   `gorm:"type:decimal(20,8);not null" json:"amount"`
	Currency  string            `gorm:"size:8" json:"currency"`
	RelatedID string            `gorm:"type:varchar(36);index" json:"related_id"`
	Details   datatypes.JSONMap `json:"details"`
	CreatedAt time.Time         `gorm:"index;not null" json:"created_at"`
}

const (
	CurrencyUSD  = "USD"
	CurrencyBTC  = "BTC"
	CurrencyUSDT = "USDT"
	CurrencyTRX  = "TRX"
)

// PaymentCurrencies are the networks a manual payment or withdrawal can use.
var PaymentCurrencies = []string{CurrencyBTC, CurrencyUSDT, CurrencyTRX}

func IsPaymentCurrency(c string) bool {
	for _, known := range PaymentCurrencies {
		if c == known {
			return true
		}
	}
	return false
}
