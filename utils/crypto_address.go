package utils

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
)

const tronAddressVersion = 0x41

var ErrUnsupportedCrypto = errors.New("unsupported crypto type")

// NetworkParams maps a BTC_NETWORK setting to chain parameters.
func NetworkParams(name string) (*chaincfg.Params, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "mainnet":
		return &chaincfg.MainNetParams, nil
	case "testnet", "testnet3":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	default:
		return nil, fmt.Errorf("unknown btc network %q", name)
	}
}

// ValidateAddress checks that address is well formed for the given crypto type.
// USDT is accepted on TRON (TRC20) and on Ethereum style chains.
func ValidateAddress(cryptoType, address string, params *chaincfg.Params) error {
	address = strings.TrimSpace(address)
	if address == "" {
		return errors.New("address is empty")
	}

	switch strings.ToUpper(cryptoType) {
	case "BTC":
		return validateBTCAddress(address, params)
	case "TRX":
		return validateTronAddress(address)
	case "USDT":
		if strings.HasPrefix(address, "0x") || strings.HasPrefix(address, "0X") {
			return validateHexAddress(address)
		}
		return validateTronAddress(address)
	default:
		return ErrUnsupportedCrypto
	}
}

func validateBTCAddress(address string, params *chaincfg.Params) error {
	addr, err := btcutil.DecodeAddress(address, params)
	if err != nil {
		return fmt.Errorf("invalid btc address: %w", err)
	}
	if !addr.IsForNet(params) {
		return fmt.Errorf("btc address is not for %s", params.Name)
	}
	return nil
}

func validateTronAddress(address string) error {
	payload, version, err := base58.CheckDecode(address)
	if err != nil {
		return fmt.Errorf("invalid tron address: %w", err)
	}
	if version != tronAddressVersion || len(payload) != 20 {
		return errors.New("invalid tron address")
	}
	return nil
}

func validateHexAddress(address string) error {
	raw := address[2:]
	if len(raw) != 40 {
		return errors.New("invalid hex address length")
	}
	if _, err := hex.DecodeString(raw); err != nil {
		return fmt.Errorf("invalid hex address: %w", err)
	}
	return nil
}

// DeriveReceivingAddress derives the P2PKH address at index from an extended key.
// Only the public half of the key is used.
func DeriveReceivingAddress(extendedKey string, index uint32, params *chaincfg.Params) (string, error) {
	key, err := hdkeychain.NewKeyFromString(extendedKey)
	if err != nil {
		return "", fmt.Errorf("decode extended key: %w", err)
	}
	if !key.IsForNet(params) {
		return "", fmt.Errorf("extended key is not for %s", params.Name)
	}

	pub, err := key.Neuter()
	if err != nil {
		return "", fmt.Errorf("neuter extended key: %w", err)
	}

	child, err := pub.Derive(index)
	if err != nil {
		return "", fmt.Errorf("derive child %d: %w", index, err)
	}

	ecPub, err := child.ECPubKey()
	if err != nil {
		return "", fmt.Errorf("child public key: %w", err)
	}

	addr, err := btcutil.NewAddressPubKeyHash(btcutil.Hash160(ecPub.SerializeCompressed()), params)
	if err != nil {
		return "", fmt.Errorf("build address: %w", err)
	}
	return addr.EncodeAddress(), nil
}
