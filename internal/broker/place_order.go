package broker

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"matchbroker/internal/ledger"
	"matchbroker/internal/matcher"
)

// PlaceOrder is the central atomic operation (spec §4.3). It stamps the
// order's tick, validates it, earmarks funds for limits or drives the
// matcher for markets, settles any resulting match against the ledger, and
// rolls back the ordering trader's account to its pre-call snapshot on any
// failure. It returns whether the order was accepted; partial-fill detail
// is never surfaced to the submitter (spec §6).
func (b *Broker) PlaceOrder(asset string, order matcher.Order) bool {
	order.Tick = int64(b.nextTick())

	logEvt := b.log.With().
		Str("asset", asset).
		Int64("orderId", order.ID).
		Int("traderId", order.TraderID).
		Int64("tick", order.Tick).
		Logger()

	market, ok := b.markets[asset]
	if !ok {
		logEvt.Warn().Msg("rejected: unknown market")
		b.reject(asset, order)
		return false
	}
	account, ok := b.accounts[order.TraderID]
	if !ok {
		logEvt.Warn().Msg("rejected: unknown trader")
		b.reject(asset, order)
		return false
	}
	if order.Amount <= 0 {
		logEvt.Warn().Msg("rejected: non-positive amount")
		b.reject(asset, order)
		return false
	}
	if order.PriceCents < 0 {
		logEvt.Warn().Msg("rejected: negative price")
		b.reject(asset, order)
		return false
	}
	if order.Type == matcher.MarketOrder && order.PriceCents != 0 {
		logEvt.Warn().Msg("rejected: market order with non-zero price")
		b.reject(asset, order)
		return false
	}

	// Snapshot the full account state for the ordering trader so a
	// failure partway through can revert exactly (spec §4.3 step 3).
	snapshot := account.Clone()

	if err := validateTradable(asset, order, account); err != nil {
		logEvt.Info().Err(err).Msg("rejected: insufficient tradable balance")
		b.reject(asset, order)
		return false
	}

	var success bool
	switch order.Type {
	case matcher.LimitOrder:
		success = b.placeLimit(asset, order, account, market, logEvt)
	case matcher.MarketOrder:
		success = b.placeMarket(asset, order, account, market, logEvt)
	default:
		logEvt.Error().Msg("rejected: unsupported order type")
		success = false
	}

	if !success {
		b.accounts[order.TraderID] = snapshot
		b.reject(asset, order)
		return false
	}

	if b.metrics != nil {
		b.metrics.OrdersPlaced.WithLabelValues(asset).Inc()
	}
	b.recordL1(asset, order.Tick, market)
	b.sink.OrderExecuted(asset, order)
	return true
}

func (b *Broker) reject(asset string, order matcher.Order) {
	if b.metrics != nil {
		b.metrics.OrdersRejected.WithLabelValues(asset).Inc()
	}
	b.sink.OrderCancelled(asset, order)
}

// validateTradable implements spec §4.3 step 4: for a LIMIT BUY the trader
// must have enough tradable cash; for any SELL (limit or market) the
// trader must have enough tradable asset.
func validateTradable(asset string, order matcher.Order, account *ledger.Account) error {
	if order.Side == matcher.Buy && order.Type == matcher.LimitOrder {
		if account.TradableBalanceCents() < order.Amount*order.PriceCents {
			return fmt.Errorf("%w: trader %d", ErrInsufficientCash, order.TraderID)
		}
	}
	if order.Side == matcher.Sell {
		if account.TradableAssetAmount(asset) < order.Amount {
			return fmt.Errorf("%w: trader %d asset %s", ErrInsufficientAsset, order.TraderID, asset)
		}
	}
	return nil
}

func (b *Broker) placeLimit(asset string, order matcher.Order, account *ledger.Account, market *matcher.Matcher, logEvt zerolog.Logger) bool {
	if order.Side == matcher.Buy {
		account.EarMarkedCashCents += order.Amount * order.PriceCents
	} else {
		account.EarMarkedAssets[asset] += order.Amount
	}

	if err := market.PlaceLimitOrder(order); err != nil {
		if errors.Is(err, matcher.ErrDuplicateOrderID) {
			logEvt.Warn().Err(err).Msg("rejected: duplicate order id")
			return false
		}
		logEvt.Error().Err(err).Msg("rejected: unexpected matcher error")
		return false
	}
	return true
}

func (b *Broker) placeMarket(asset string, order matcher.Order, account *ledger.Account, market *matcher.Matcher, logEvt zerolog.Logger) bool {
	tradableCash := account.TradableBalanceCents()
	tradableAsset := account.TradableAssetAmount(asset)

	filled, err := market.MatchMarketOrder(order, tradableCash, tradableAsset)
	if err != nil {
		logEvt.Error().Err(err).Msg("rejected: matcher rejected market order type")
		return false
	}
	if !filled {
		logEvt.Info().Msg("rejected: market order could not be fully filled")
		return false
	}

	match, ok := market.DequeueMatch()
	if !ok {
		// Unreachable from the documented API: MatchMarketOrder only
		// returns true after enqueuing exactly one match.
		panic(fmt.Errorf("%w: market order filled but no match was queued", ErrInvariantViolation))
	}

	b.settle(*match, asset)
	if b.metrics != nil {
		b.metrics.MatchesSettled.WithLabelValues(asset).Inc()
	}
	return true
}

// settle applies a Match against the ledger (spec §4.3 "Settlement").
func (b *Broker) settle(match matcher.Match, asset string) {
	marketOrder := match.MarketOrder
	account := b.accounts[marketOrder.TraderID]

	if marketOrder.Side == matcher.Buy {
		account.CashBalanceCents -= match.LimitOrdersTotalValueCents()
		account.Portfolio[asset] += match.LimitOrdersTotalAmount()
	} else {
		account.Portfolio[asset] -= match.LimitOrdersTotalAmount()
		account.CashBalanceCents += match.LimitOrdersTotalValueCents()
	}
	if err := account.Validate(); err != nil {
		// Step 4 validation and the matcher's caps make this unreachable
		// from the documented API; a failure here is a broker bug (spec §7),
		// so it panics instead of restoring the snapshot.
		panic(fmt.Errorf("%w: %v", ErrInvariantViolation, err))
	}

	for _, limit := range match.LimitOrders {
		counterparty := b.accounts[limit.TraderID]

		if limit.Side == matcher.Buy {
			counterparty.EarMarkedCashCents -= limit.Amount * limit.PriceCents
			counterparty.CashBalanceCents -= limit.Amount * limit.PriceCents
			counterparty.Portfolio[asset] += limit.Amount
		} else {
			counterparty.EarMarkedAssets[asset] -= limit.Amount
			counterparty.Portfolio[asset] -= limit.Amount
			counterparty.CashBalanceCents += limit.Amount * limit.PriceCents
		}

		// Counterparty earmarks were reserved exactly for this fragment
		// at placement time, so this can never violate I1/I2 under a
		// correctly-functioning broker; treat a failure here as a bug
		// (spec §7), not a user-visible rejection.
		if err := counterparty.Validate(); err != nil {
			panic(fmt.Errorf("%w: counterparty %d: %v", ErrInvariantViolation, limit.TraderID, err))
		}
	}
}

func (b *Broker) recordL1(asset string, tick int64, market *matcher.Matcher) {
	buf := b.l1[asset]
	var bestBid, bestAsk *int64
	if bid, ok := market.GetHighestBid(); ok {
		bestBid = &bid
	}
	if ask, ok := market.GetLowestAsk(); ok {
		bestAsk = &ask
	}
	buf.Append(bestBid, bestAsk, tick)

	if b.metrics != nil {
		if bestBid != nil {
			b.metrics.BestBid.WithLabelValues(asset).Set(float64(*bestBid))
		}
		if bestAsk != nil {
			b.metrics.BestAsk.WithLabelValues(asset).Set(float64(*bestAsk))
		}
	}
}
