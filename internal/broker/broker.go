// Package broker is the sole component that combines trader accounts with
// markets. It validates every inbound order, earmarks funds for resting
// limits, drives the matcher for market orders, applies settlement against
// the ledger, and rolls back in full on any failure. Within one Broker,
// place_order is the atomic unit: all mutation is single-threaded
// cooperative (spec §5) — callers who want concurrency multiplex several
// Broker instances, never share one across goroutines without external
// serialization.
package broker

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"matchbroker/internal/agent"
	"matchbroker/internal/events"
	"matchbroker/internal/history"
	"matchbroker/internal/ledger"
	"matchbroker/internal/matcher"
	"matchbroker/internal/metrics"
)

// Broker orchestrates accounts, markets, and the L1 history buffer for an
// entire process. It is a singleton per simulated exchange.
type Broker struct {
	tickCount uint64

	accounts map[int]*ledger.Account
	markets  map[string]*matcher.Matcher
	l1       map[string]*history.Buffer

	sink    events.Sink
	metrics *metrics.Collectors
	log     zerolog.Logger
}

// Option configures a Broker at construction time.
type Option func(*Broker)

// WithSink installs an event sink. Calls through it are fire-and-forget:
// a sink failure never rolls back a settled trade (spec §9).
func WithSink(sink events.Sink) Option {
	return func(b *Broker) { b.sink = sink }
}

// WithMetrics installs a metrics collector set.
func WithMetrics(m *metrics.Collectors) Option {
	return func(b *Broker) { b.metrics = m }
}

// New builds an empty Broker: no accounts, no markets.
func New(opts ...Option) *Broker {
	b := &Broker{
		accounts: make(map[int]*ledger.Account),
		markets:  make(map[string]*matcher.Matcher),
		l1:       make(map[string]*history.Buffer),
		sink:     events.NoopSink{},
		log:      log.With().Str("component", "broker").Logger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Broker) nextTick() uint64 {
	b.tickCount++
	return b.tickCount
}

// OpenAccount creates a zero-balance account for traderID.
func (b *Broker) OpenAccount(traderID int) error {
	if _, exists := b.accounts[traderID]; exists {
		return fmt.Errorf("%w: trader %d", ErrAccountExists, traderID)
	}
	b.accounts[traderID] = ledger.New(traderID)
	b.log.Info().Int("traderId", traderID).Msg("account opened")
	return nil
}

// CloseAccount cancels every resting order the trader has across all
// markets (unearmarking as it goes), then removes and returns the final
// account state.
func (b *Broker) CloseAccount(traderID int) (*ledger.Account, error) {
	account, ok := b.accounts[traderID]
	if !ok {
		return nil, fmt.Errorf("%w: trader %d", ErrUnknownTrader, traderID)
	}

	for asset, market := range b.markets {
		removed := market.CancelAllOrdersForTrader(traderID)
		b.unearmark(asset, removed)
	}

	delete(b.accounts, traderID)
	b.log.Info().Int("traderId", traderID).Msg("account closed")
	return account.Clone(), nil
}

// CreateMarket installs a new Matcher and L1 history buffer for asset.
func (b *Broker) CreateMarket(asset string) error {
	if _, exists := b.markets[asset]; exists {
		return fmt.Errorf("%w: %s", ErrMarketExists, asset)
	}
	b.markets[asset] = matcher.New()
	b.l1[asset] = history.NewBuffer()
	b.log.Info().Str("asset", asset).Msg("market created")
	return nil
}

// DestroyMarket removes the Matcher for asset. Per the spec §9 open
// question, this is treated as an implicit cancel-all of every resting
// limit on the asset first, so earmarked cash/assets are correctly
// returned rather than silently dropped, before the asset is purged from
// every account's portfolio and earmarks.
func (b *Broker) DestroyMarket(asset string) error {
	market, ok := b.markets[asset]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMarket, asset)
	}

	for traderID := range b.accounts {
		removed := market.CancelAllOrdersForTrader(traderID)
		b.unearmark(asset, removed)
	}

	delete(b.markets, asset)
	delete(b.l1, asset)

	for _, account := range b.accounts {
		delete(account.Portfolio, asset)
		delete(account.EarMarkedAssets, asset)
	}
	b.log.Info().Str("asset", asset).Msg("market destroyed")
	return nil
}

// CancelAllOrdersForTrader removes every resting limit traderID has on
// asset and unearmarks the funds/assets reserved against them (spec §4.2
// cancel_all_orders_for_trader plus the §4.3 unearmarking rule).
func (b *Broker) CancelAllOrdersForTrader(asset string, traderID int) error {
	market, ok := b.markets[asset]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMarket, asset)
	}
	if _, ok := b.accounts[traderID]; !ok {
		return fmt.Errorf("%w: trader %d", ErrUnknownTrader, traderID)
	}
	removed := market.CancelAllOrdersForTrader(traderID)
	b.unearmark(asset, removed)
	for _, o := range removed {
		b.sink.OrderCancelled(asset, o)
	}
	return nil
}

// unearmark reverses the reservation held against a set of orders removed
// from a book for a reason other than settlement (explicit cancel, account
// close, destroy_market). EndTradingDay does not use it: it resets every
// earmark to zero directly after clearing the books.
func (b *Broker) unearmark(asset string, removed []matcher.Order) {
	for _, o := range removed {
		account, ok := b.accounts[o.TraderID]
		if !ok {
			continue
		}
		if o.Side == matcher.Buy {
			account.EarMarkedCashCents -= o.Amount * o.PriceCents
		} else {
			account.EarMarkedAssets[asset] -= o.Amount
		}
	}
}

// EndTradingDay clears every matcher and resets all earmarks across all
// accounts to zero. Cash and portfolio balances are untouched — closing
// the day cancels open orders, it does not liquidate positions.
func (b *Broker) EndTradingDay() {
	for _, market := range b.markets {
		market.ClearOrderBook()
	}
	for _, account := range b.accounts {
		account.EarMarkedCashCents = 0
		account.EarMarkedAssets = make(map[string]int64)
	}
	b.log.Info().Msg("trading day ended")
}

// DepositCash credits a trader's cash balance.
func (b *Broker) DepositCash(traderID int, amountCents int64) error {
	if amountCents < 0 {
		return fmt.Errorf("%w", ErrInvalidAmount)
	}
	account, ok := b.accounts[traderID]
	if !ok {
		return fmt.Errorf("%w: trader %d", ErrUnknownTrader, traderID)
	}
	account.CashBalanceCents += amountCents
	return nil
}

// WithdrawCash debits a trader's cash balance; succeeds only when the
// tradable (not gross) balance covers the withdrawal.
func (b *Broker) WithdrawCash(traderID int, amountCents int64) error {
	if amountCents < 0 {
		return fmt.Errorf("%w", ErrInvalidAmount)
	}
	account, ok := b.accounts[traderID]
	if !ok {
		return fmt.Errorf("%w: trader %d", ErrUnknownTrader, traderID)
	}
	if account.TradableBalanceCents() < amountCents {
		return fmt.Errorf("%w: trader %d", ErrInsufficientCash, traderID)
	}
	account.CashBalanceCents -= amountCents
	return nil
}

// DepositAsset credits a trader's portfolio.
func (b *Broker) DepositAsset(traderID int, asset string, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("%w", ErrInvalidAmount)
	}
	account, ok := b.accounts[traderID]
	if !ok {
		return fmt.Errorf("%w: trader %d", ErrUnknownTrader, traderID)
	}
	account.Portfolio[asset] += amount
	return nil
}

// WithdrawAsset debits a trader's portfolio; succeeds only when the
// tradable asset amount covers the withdrawal. A withdrawal that drops a
// portfolio entry to zero removes the entry.
func (b *Broker) WithdrawAsset(traderID int, asset string, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("%w", ErrInvalidAmount)
	}
	account, ok := b.accounts[traderID]
	if !ok {
		return fmt.Errorf("%w: trader %d", ErrUnknownTrader, traderID)
	}
	if account.TradableAssetAmount(asset) < amount {
		return fmt.Errorf("%w: trader %d asset %s", ErrInsufficientAsset, traderID, asset)
	}
	account.Portfolio[asset] -= amount
	if account.Portfolio[asset] == 0 {
		delete(account.Portfolio, asset)
	}
	return nil
}

// GetAccountInfo returns a defensive copy so consumers cannot mutate live
// broker state (spec §5).
func (b *Broker) GetAccountInfo(traderID int) (*ledger.Account, error) {
	account, ok := b.accounts[traderID]
	if !ok {
		return nil, fmt.Errorf("%w: trader %d", ErrUnknownTrader, traderID)
	}
	return account.Clone(), nil
}

// GetHighestBid / GetLowestAsk / depth / totals / L1 passthroughs.

func (b *Broker) GetHighestBid(asset string) (int64, bool, error) {
	market, ok := b.markets[asset]
	if !ok {
		return 0, false, fmt.Errorf("%w: %s", ErrUnknownMarket, asset)
	}
	bid, has := market.GetHighestBid()
	return bid, has, nil
}

func (b *Broker) GetLowestAsk(asset string) (int64, bool, error) {
	market, ok := b.markets[asset]
	if !ok {
		return 0, false, fmt.Errorf("%w: %s", ErrUnknownMarket, asset)
	}
	ask, has := market.GetLowestAsk()
	return ask, has, nil
}

func (b *Broker) GetBidDepth(asset string) ([]matcher.DepthLevel, error) {
	market, ok := b.markets[asset]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMarket, asset)
	}
	return market.GetBidDepth(), nil
}

func (b *Broker) GetAskDepth(asset string) ([]matcher.DepthLevel, error) {
	market, ok := b.markets[asset]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMarket, asset)
	}
	return market.GetAskDepth(), nil
}

func (b *Broker) TotalAssetsHeldInAskLimits(asset string) (int64, error) {
	market, ok := b.markets[asset]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownMarket, asset)
	}
	return market.TotalAssetsHeldInAskLimits(), nil
}

func (b *Broker) TotalCashHeldInBidLimits(asset string) (int64, error) {
	market, ok := b.markets[asset]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownMarket, asset)
	}
	return market.TotalCashHeldInBidLimits(), nil
}

// GetLevel1MarketData returns the current top-of-book plus rolling stats.
func (b *Broker) GetLevel1MarketData(asset string) (matcher.Level1MarketData, error) {
	market, ok := b.markets[asset]
	if !ok {
		return matcher.Level1MarketData{}, fmt.Errorf("%w: %s", ErrUnknownMarket, asset)
	}
	return market.GetLevel1MarketData(), nil
}

// Observe builds the Observations a trading agent sees for (traderID,
// asset): a defensive copy of its account and the asset's current L1
// market data (spec §6). The core does not care how an agent turns this
// into Actions; agent.Actions.Orders are submitted back through
// PlaceOrder exactly like any other caller's orders.
func (b *Broker) Observe(traderID int, asset string) (agent.Observations, error) {
	account, ok := b.accounts[traderID]
	if !ok {
		return agent.Observations{}, fmt.Errorf("%w: trader %d", ErrUnknownTrader, traderID)
	}
	market, ok := b.markets[asset]
	if !ok {
		return agent.Observations{}, fmt.Errorf("%w: %s", ErrUnknownMarket, asset)
	}
	return agent.Observations{
		Account:      account.Clone(),
		Level1:       market.GetLevel1MarketData(),
		TradableCash: account.TradableBalanceCents(),
	}, nil
}

// GetL1History returns every L1 row recorded for asset, in tick order,
// flushing any pending buffer first (P7).
func (b *Broker) GetL1History(asset string) ([]history.Row, error) {
	buf, ok := b.l1[asset]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMarket, asset)
	}
	return buf.Rows(), nil
}
