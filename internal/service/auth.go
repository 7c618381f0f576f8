package service

import (
	"context"
	"errors"
	"strings"

	"github.com/Fi44er/tradecycle/internal/apperr"
	"github.com/Fi44er/tradecycle/internal/models"
	"github.com/Fi44er/tradecycle/utils"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength  = 6
	referralCodeLength = 8
)

type Claims struct {
	Role models.Role `json:"role"`
	jwt.RegisteredClaims
}

type AuthResult struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        *models.User `json:"user"`
}

func (s *Service) Register(ctx context.Context, email, password, referralCode string) (*AuthResult, error) {
	email = utils.NormalizeEmail(email)
	if !strings.Contains(email, "@") {
		return nil, apperr.Validation("a valid email is required")
	}
	if len(password) < minPasswordLength {
		return nil, apperr.Validation("password must be at least %d characters", minPasswordLength)
	}

	existing, err := s.repo.GetUserByEmail(ctx, email, nil)
	if err != nil {
		return nil, s.internal("lookup email", err)
	}
	if existing != nil {
		return nil, apperr.Conflict("email is already registered")
	}

	var referredBy *string
	if code := strings.ToUpper(strings.TrimSpace(referralCode)); code != "" {
		inviter, err := s.repo.GetUserByReferralCode(ctx, code, nil)
		if err != nil {
			return nil, s.internal("lookup referral code", err)
		}
		if inviter == nil {
			return nil, apperr.Validation("referral code %q does not exist", code)
		}
		referredBy = &inviter.ID
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.passwordCost)
	if err != nil {
		return nil, s.internal("hash password", err)
	}

	code, err := s.newReferralCode(ctx)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		Balance:      decimal.Zero,
		ProfitTotal:  decimal.Zero,
		ReferralCode: code,
		ReferredBy:   referredBy,
		Role:         models.RoleUser,
	}
	if err := s.repo.CreateUser(ctx, user, nil); err != nil {
		// A concurrent registration may have taken the email.
		if again, lookupErr := s.repo.GetUserByEmail(ctx, email, nil); lookupErr == nil && again != nil {
			return nil, apperr.Conflict("email is already registered")
		}
		return nil, s.internal("create user", err)
	}
	s.logger.Infof("Registered user %s (%s)", user.ID, user.Email)

	return s.authResult(user)
}

func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.repo.GetUserByEmail(ctx, utils.NormalizeEmail(email), nil)
	if err != nil {
		return nil, s.internal("lookup email", err)
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, apperr.Unauthorized("invalid email or password")
	}
	if user.Disabled {
		return nil, apperr.Unauthorized("account is disabled")
	}
	return s.authResult(user)
}

func (s *Service) authResult(user *models.User) (*AuthResult, error) {
	token, err := s.IssueToken(user)
	if err != nil {
		return nil, s.internal("sign token", err)
	}
	return &AuthResult{AccessToken: token, TokenType: "bearer", User: user}, nil
}

func (s *Service) IssueToken(user *models.User) (string, error) {
	now := s.now()
	claims := Claims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.TokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.JWTSecret))
}

// Authenticate verifies a bearer token and reloads its user. The stored role
// is authoritative, not the one in the token.
func (s *Service) Authenticate(ctx context.Context, token string) (*models.User, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(s.config.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperr.Unauthorized("token has expired")
		}
		return nil, apperr.Unauthorized("invalid token")
	}

	user, err := s.repo.GetUserByID(ctx, claims.Subject, nil)
	if err != nil {
		return nil, s.internal("load token user", err)
	}
	if user == nil {
		return nil, apperr.Unauthorized("user no longer exists")
	}
	if user.Disabled {
		return nil, apperr.Unauthorized("account is disabled")
	}
	return user, nil
}

func (s *Service) newReferralCode(ctx context.Context) (string, error) {
	for i := 0; i < 5; i++ {
		code, err := utils.GenerateReferralCode(referralCodeLength)
		if err != nil {
			return "", s.internal("generate referral code", err)
		}
		taken, err := s.repo.GetUserByReferralCode(ctx, code, nil)
		if err != nil {
			return "", s.internal("lookup referral code", err)
		}
		if taken == nil {
			return code, nil
		}
	}
	return "", s.internal("generate referral code", errors.New("no free code after 5 attempts"))
}

// Profile is the /auth/me view of a user.
type Profile struct {
	*models.User
	ActiveSubscription *models.Subscription `json:"active_subscription"`
	QuotaRemaining     int                  `json:"quota_remaining"`
	ReferralCount      int64                `json:"referral_count"`
	ReferralEarnings   decimal.Decimal      `json:"referral_earnings"`
}

func (s *Service) Me(ctx context.Context, userID string) (*Profile, error) {
	user, err := s.repo.GetUserByID(ctx, userID, nil)
	if err != nil {
		return nil, s.internal("load user", err)
	}
	if user == nil {
		return nil, apperr.NotFound("user %s not found", userID)
	}

	sub, err := s.GetActiveSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}
	remaining, err := s.QuotaRemaining(ctx, userID, s.now())
	if err != nil {
		return nil, err
	}
	referrals, err := s.repo.CountReferrals(ctx, userID)
	if err != nil {
		return nil, s.internal("count referrals", err)
	}
	earnings, err := s.repo.SumEvents(ctx, userID, models.EventReferralCredit)
	if err != nil {
		return nil, s.internal("sum referral earnings", err)
	}

	return &Profile{
		User:               user,
		ActiveSubscription: sub,
		QuotaRemaining:     remaining,
		ReferralCount:      referrals,
		ReferralEarnings:   earnings,
	}, nil
}
