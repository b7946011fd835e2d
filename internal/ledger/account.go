// Package ledger holds the per-trader wallet model: integer cash, an
// integer asset portfolio, and the earmarks reserved against resting limit
// orders. Accounts are pure data plus derived queries — mutation only
// happens through the broker's debit/credit primitives.
package ledger

import "fmt"

// Account is a trader's wallet. New builds every balance at zero, so a
// freshly built Account satisfies invariant I1; the fields are exported and
// are not checked until Validate is called.
type Account struct {
	TraderID int

	CashBalanceCents int64

	// Portfolio maps asset symbol to held quantity.
	Portfolio map[string]int64

	EarMarkedCashCents int64

	// EarMarkedAssets maps asset symbol to quantity reserved against
	// resting sell limits.
	EarMarkedAssets map[string]int64
}

// New builds an empty Account for traderID.
func New(traderID int) *Account {
	return &Account{
		TraderID:        traderID,
		Portfolio:       make(map[string]int64),
		EarMarkedAssets: make(map[string]int64),
	}
}

// Validate checks invariant I1 (non-negativity) and I2 (earmarks do not
// exceed gross balances). The broker calls it on every account it touches
// during settlement; a violation is a programmer error, not a business
// rejection.
func (a *Account) Validate() error {
	if a.CashBalanceCents < 0 {
		return fmt.Errorf("%w: trader %d cash balance %d is negative", ErrInvariantViolation, a.TraderID, a.CashBalanceCents)
	}
	if a.EarMarkedCashCents < 0 {
		return fmt.Errorf("%w: trader %d earmarked cash %d is negative", ErrInvariantViolation, a.TraderID, a.EarMarkedCashCents)
	}
	if a.EarMarkedCashCents > a.CashBalanceCents {
		return fmt.Errorf("%w: trader %d earmarked cash %d exceeds balance %d", ErrInvariantViolation, a.TraderID, a.EarMarkedCashCents, a.CashBalanceCents)
	}
	for asset, qty := range a.Portfolio {
		if qty < 0 {
			return fmt.Errorf("%w: trader %d portfolio[%s] %d is negative", ErrInvariantViolation, a.TraderID, asset, qty)
		}
	}
	for asset, qty := range a.EarMarkedAssets {
		if qty < 0 {
			return fmt.Errorf("%w: trader %d earmarked[%s] %d is negative", ErrInvariantViolation, a.TraderID, asset, qty)
		}
		if qty > a.Portfolio[asset] {
			return fmt.Errorf("%w: trader %d earmarked[%s] %d exceeds portfolio %d", ErrInvariantViolation, a.TraderID, asset, qty, a.Portfolio[asset])
		}
	}
	return nil
}

// TradableBalanceCents is the cash available to commit to a new order.
func (a *Account) TradableBalanceCents() int64 {
	return a.CashBalanceCents - a.EarMarkedCashCents
}

// TradableAssetAmount is the quantity of asset available to commit to a new
// sell order. Absent entries read as zero.
func (a *Account) TradableAssetAmount(asset string) int64 {
	return a.Portfolio[asset] - a.EarMarkedAssets[asset]
}

// EarmarkedCashCents is a read-only accessor for the reserved cash.
func (a *Account) EarmarkedCashCents() int64 {
	return a.EarMarkedCashCents
}

// EarmarkedAssetAmount is a read-only accessor for the reserved asset
// quantity, mirroring the original source's `earmarked_asset_amount` helper.
func (a *Account) EarmarkedAssetAmount(asset string) int64 {
	return a.EarMarkedAssets[asset]
}

// Clone returns a deep copy suitable for snapshot/rollback and for
// defensive copies handed out to external callers (spec: get_account_info
// must not leak mutable state).
func (a *Account) Clone() *Account {
	clone := &Account{
		TraderID:           a.TraderID,
		CashBalanceCents:   a.CashBalanceCents,
		EarMarkedCashCents: a.EarMarkedCashCents,
		Portfolio:          make(map[string]int64, len(a.Portfolio)),
		EarMarkedAssets:    make(map[string]int64, len(a.EarMarkedAssets)),
	}
	for k, v := range a.Portfolio {
		clone.Portfolio[k] = v
	}
	for k, v := range a.EarMarkedAssets {
		clone.EarMarkedAssets[k] = v
	}
	return clone
}
