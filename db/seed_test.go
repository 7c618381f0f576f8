package db

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/Fi44er/tradecycle/internal/models"
	"github.com/Fi44er/tradecycle/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	log := utils.NewDiscardLogger()
	database, err := ConnectDb("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()), log)
	require.NoError(t, err)
	require.NoError(t, Migrate(database, true, log))
	t.Cleanup(func() {
		if sqlDB, err := database.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return database
}

func TestConnectDb_LogsErrorsButNotMisses(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	log := &utils.Logger{Logger: logger}

	database, err := ConnectDb("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()), log)
	require.NoError(t, err)
	require.NoError(t, Migrate(database, true, log))
	defer func() {
		if sqlDB, err := database.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()

	var user models.User
	err = database.Where("id = ?", "missing").First(&user).Error
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.NotContains(t, buf.String(), "record not found")

	err = database.Table("no_such_table").Count(new(int64)).Error
	assert.Error(t, err)
	assert.Contains(t, buf.String(), "no_such_table")
}

func TestConnectDb_UnknownDriver(t *testing.T) {
	_, err := ConnectDb("mysql", "dsn", utils.NewDiscardLogger())
	assert.Error(t, err)
}

func TestSeedPlans_Idempotent(t *testing.T) {
	database := openTestDB(t)
	log := utils.NewDiscardLogger()

	require.NoError(t, SeedPlans(database, log))
	require.NoError(t, database.Model(&models.Plan{}).Where("id = ?", "pro").Update("name", "Pro Plus").Error)
	require.NoError(t, SeedPlans(database, log))

	var plans []models.Plan
	require.NoError(t, database.Order("sort_order").Find(&plans).Error)
	require.Len(t, plans, 3)
	assert.Equal(t, "starter", plans[0].ID)
	assert.Equal(t, 1, plans[0].MaxCyclesPerDay)
	assert.True(t, plans[0].PriceUSD.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, "Pro Plus", plans[1].Name)
	assert.Equal(t, 5, plans[2].MaxCyclesPerDay)
	assert.True(t, plans[2].DailyYieldRate.Equal(decimal.RequireFromString("0.75")))
	assert.JSONEq(t, `["5 cycles per day","Dedicated manager"]`, string(plans[2].Features))
}

func TestEnsureAdmin(t *testing.T) {
	database := openTestDB(t)
	log := utils.NewDiscardLogger()

	require.NoError(t, EnsureAdmin(database, " Admin@Example.com ", "secret1", log))
	require.NoError(t, EnsureAdmin(database, "admin@example.com", "other", log))

	var users []models.User
	require.NoError(t, database.Find(&users).Error)
	require.Len(t, users, 1)
	assert.Equal(t, "admin@example.com", users[0].Email)
	assert.Equal(t, models.RoleAdmin, users[0].Role)
	assert.Len(t, users[0].ReferralCode, 8)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(users[0].PasswordHash), []byte("secret1")))
}

func TestEnsureAdmin_PromotesExisting(t *testing.T) {
	database := openTestDB(t)
	log := utils.NewDiscardLogger()

	user := models.User{ID: uuid.NewString(), Email: "ops@example.com", PasswordHash: "x", ReferralCode: "ABCDEFGH", Role: models.RoleUser}
	require.NoError(t, database.Create(&user).Error)

	require.NoError(t, EnsureAdmin(database, "ops@example.com", "secret1", log))

	var got models.User
	require.NoError(t, database.First(&got, "id = ?", user.ID).Error)
	assert.Equal(t, models.RoleAdmin, got.Role)
	assert.Equal(t, "x", got.PasswordHash)
}

func TestEnsureAdmin_NotConfigured(t *testing.T) {
	database := openTestDB(t)
	require.NoError(t, EnsureAdmin(database, "", "", utils.NewDiscardLogger()))

	var count int64
	require.NoError(t, database.Model(&models.User{}).Count(&count).Error)
	assert.Zero(t, count)
}
