package broker

import "errors"

var (
	// ErrAccountExists / ErrUnknownTrader cover the account-lifecycle
	// input faults of spec §7.
	ErrAccountExists     = errors.New("account already exists")
	ErrUnknownTrader     = errors.New("unknown trader")
	ErrMarketExists      = errors.New("market already exists")
	ErrUnknownMarket     = errors.New("unknown market")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInvalidPrice      = errors.New("price must be non-negative")
	ErrMarketHasPrice    = errors.New("market orders must have priceCents = 0")
	ErrInsufficientCash  = errors.New("insufficient tradable cash")
	ErrInsufficientAsset = errors.New("insufficient tradable asset")

	// ErrInvariantViolation marks an I1-I7 failure: per spec §7 these are
	// programmer errors, unreachable from the documented API, and are
	// reported distinctly from ordinary business rejections.
	ErrInvariantViolation = errors.New("broker invariant violation")
)
