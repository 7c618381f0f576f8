package utils

import (
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

const referralAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// RoundMoney rounds a USD amount to cents.
func RoundMoney(n decimal.Decimal) decimal.Decimal {
	return n.Round(2)
}

// GenerateReferralCode returns an n-character code without look-alike symbols.
func GenerateReferralCode(n int) (string, error) {
	var sb strings.Builder
	max := big.NewInt(int64(len(referralAlphabet)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		sb.WriteByte(referralAlphabet[idx.Int64()])
	}
	return sb.String(), nil
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
