package service

import (
	"fmt"

	"github.com/Fi44er/tradecycle/internal/models"
	"github.com/Fi44er/tradecycle/utils"
)

// BillingAddresses are the receiving addresses shown on the payment page.
type BillingAddresses struct {
	BTC  string `json:"btc"`
	USDT string `json:"usdt"`
	TRX  string `json:"trx"`
}

func (s *Service) BillingAddresses() BillingAddresses {
	return s.billing
}

// resolveBillingAddresses validates the configured addresses. The BTC address
// falls back to index 0 of BILLING_BTC_XPUB.
func (s *Service) resolveBillingAddresses() (BillingAddresses, error) {
	out := BillingAddresses{
		BTC:  s.config.BillingBTCAddress,
		USDT: s.config.BillingUSDTAddress,
		TRX:  s.config.BillingTRXAddress,
	}

	if out.BTC == "" && s.config.BillingBTCXPub != "" {
		addr, err := utils.DeriveReceivingAddress(s.config.BillingBTCXPub, 0, s.netParams)
		if err != nil {
			return out, fmt.Errorf("derive btc billing address: %w", err)
		}
		s.logger.Infof("Derived BTC billing address %s from xpub", addr)
		out.BTC = addr
	}

	for currency, addr := range map[string]string{
		models.CurrencyBTC:  out.BTC,
		models.CurrencyUSDT: out.USDT,
		models.CurrencyTRX:  out.TRX,
	} {
		if addr == "" {
			continue
		}
		if err := utils.ValidateAddress(currency, addr, s.netParams); err != nil {
			return out, fmt.Errorf("billing %s address: %w", currency, err)
		}
	}
	return out, nil
}
