package db

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Fi44er/tradecycle/internal/models"
	"github.com/Fi44er/tradecycle/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DefaultPlans is the catalog created on first start.
func DefaultPlans() []models.Plan {
	return []models.Plan{
		{
			ID: "starter", Name: "Starter", NameFr: "Débutant", NameEs: "Inicial",
			PriceUSD:        decimal.NewFromInt(100),
			MaxCyclesPerDay: 1,
			DailyYieldRate:  decimal.RequireFromString("0.15"),
			Features:        features("1 cycle per day", "Email support"),
			FeaturesFr:      features("1 cycle par jour", "Support par e-mail"),
			FeaturesEs:      features("1 ciclo por día", "Soporte por correo"),
			Active:          true,
			SortOrder:       1,
		},
		{
			ID: "pro", Name: "Pro", NameFr: "Pro", NameEs: "Pro",
			PriceUSD:        decimal.NewFromInt(350),
			MaxCyclesPerDay: 3,
			DailyYieldRate:  decimal.RequireFromString("0.35"),
			Features:        features("3 cycles per day", "Priority support"),
			FeaturesFr:      features("3 cycles par jour", "Support prioritaire"),
			FeaturesEs:      features("3 ciclos por día", "Soporte prioritario"),
			Active:          true,
			SortOrder:       2,
		},
		{
			ID: "elite", Name: "Elite", NameFr: "Élite", NameEs: "Élite",
			PriceUSD:        decimal.NewFromInt(9000),
			MaxCyclesPerDay: 5,
			DailyYieldRate:  decimal.RequireFromString("0.75"),
			Features:        features("5 cycles per day", "Dedicated manager"),
			FeaturesFr:      features("5 cycles par jour", "Gestionnaire dédié"),
			FeaturesEs:      features("5 ciclos por día", "Gestor dedicado"),
			Active:          true,
			SortOrder:       3,
		},
	}
}

func features(items ...string) datatypes.JSON {
	raw, _ := json.Marshal(items)
	return datatypes.JSON(raw)
}

// SeedPlans inserts the default plans that do not exist yet. Existing rows are
// left untouched so admin edits survive restarts.
func SeedPlans(db *gorm.DB, log *utils.Logger) error {
	for _, plan := range DefaultPlans() {
		var count int64
		if err := db.Model(&models.Plan{}).Where("id = ?", plan.ID).Count(&count).Error; err != nil {
			return fmt.Errorf("check plan %s: %w", plan.ID, err)
		}
		if count > 0 {
			continue
		}
		if err := db.Create(&plan).Error; err != nil {
			return fmt.Errorf("seed plan %s: %w", plan.ID, err)
		}
		log.Infof("📦 Seeded plan %s", plan.ID)
	}
	return nil
}

// EnsureAdmin creates the bootstrap admin account, or promotes an existing
// account with that email. The password of an existing account is kept.
func EnsureAdmin(db *gorm.DB, email, password string, log *utils.Logger) error {
	email = utils.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil
	}

	var user models.User
	err := db.Where("email = ?", email).First(&user).Error
	if err == nil {
		if user.Role == models.RoleAdmin {
			return nil
		}
		if err := db.Model(&models.User{}).Where("id = ?", user.ID).Update("role", models.RoleAdmin).Error; err != nil {
			return fmt.Errorf("promote admin: %w", err)
		}
		log.Infof("👤 Promoted %s to admin", email)
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("lookup admin: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	code, err := utils.GenerateReferralCode(8)
	if err != nil {
		return fmt.Errorf("referral code: %w", err)
	}

	admin := models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		Balance:      decimal.Zero,
		ProfitTotal:  decimal.Zero,
		ReferralCode: code,
		Role:         models.RoleAdmin,
	}
	if err := db.Create(&admin).Error; err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	log.Infof("👤 Created admin %s", email)
	return nil
}
