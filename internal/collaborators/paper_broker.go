package collaborators

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nyxtrader/decisioncore/internal/core"
)

// PaperBroker simulates order execution using the last price registered
// via SetLastPrice, filling market orders immediately (spec.md 6: "market
// orders fill at last price"). Grounded on
// _examples/NitinKhare-trader/internal/broker/paper.go's mutex-guarded
// funds/holdings map shape, adapted from the teacher's int-quantity/
// float64-price Indian-equities domain to this package's int64-qty/
// decimal.Decimal domain and the Broker interface above.
type PaperBroker struct {
	mu sync.Mutex

	cash        decimal.Decimal
	positions   map[string]*core.Position
	orders      map[string]*Order
	lastPrices  map[string]decimal.Decimal
	news        []core.NewsArticle
	marketOpen  bool
	nextOrderID int
}

// NewPaperBroker creates a paper broker seeded with initialCash.
func NewPaperBroker(initialCash decimal.Decimal) *PaperBroker {
	return &PaperBroker{
		cash:       initialCash,
		positions:  make(map[string]*core.Position),
		orders:     make(map[string]*Order),
		lastPrices: make(map[string]decimal.Decimal),
		marketOpen: true,
	}
}

// SetLastPrice registers the price market orders for symbol fill at, and
// is reflected in position mark-to-market on the next GetAccount call.
func (pb *PaperBroker) SetLastPrice(symbol string, price decimal.Decimal) {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.lastPrices[symbol] = price
	if p, ok := pb.positions[symbol]; ok {
		p.CurrentPrice = price
		p.MarketValue = price.Mul(decimal.NewFromInt(p.Qty))
		p.UnrealizedPnLAbs = p.MarketValue.Sub(p.AvgEntryPrice.Mul(decimal.NewFromInt(p.Qty)))
		if !p.AvgEntryPrice.IsZero() {
			pct, _ := p.UnrealizedPnLAbs.Div(p.AvgEntryPrice.Mul(decimal.NewFromInt(p.Qty))).Float64()
			p.UnrealizedPnLPct = pct
		}
	}
}

// SetMarketOpen controls the value GetMarketStatus reports, for tests that
// need RiskGate's market-not-tradeable check to fire deterministically.
func (pb *PaperBroker) SetMarketOpen(open bool) {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.marketOpen = open
}

// SeedNews makes articles available to the next GetNews call.
func (pb *PaperBroker) SeedNews(articles ...core.NewsArticle) {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.news = append(pb.news, articles...)
}

func (pb *PaperBroker) GetAccount(_ context.Context) (core.AccountState, error) {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	positions := make([]core.Position, 0, len(pb.positions))
	equity := pb.cash
	for _, p := range pb.positions {
		positions = append(positions, *p)
		equity = equity.Add(p.MarketValue)
	}

	return core.AccountState{
		Equity:      equity,
		Cash:        pb.cash,
		BuyingPower: pb.cash,
		Positions:   positions,
		Timestamp:   time.Now().UTC(),
	}, nil
}

func (pb *PaperBroker) GetPositions(ctx context.Context) ([]core.Position, error) {
	account, err := pb.GetAccount(ctx)
	if err != nil {
		return nil, err
	}
	return account.Positions, nil
}

func (pb *PaperBroker) GetBars(_ context.Context, symbol string, start, end time.Time, timeframe string) ([]core.Bar, error) {
	return nil, fmt.Errorf("collaborators: PaperBroker has no bar history for %s; seed bars via a fake test collaborator instead", symbol)
}

func (pb *PaperBroker) GetLatestPrice(_ context.Context, symbol string) (decimal.Decimal, error) {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	price, ok := pb.lastPrices[symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("collaborators: no price registered for %s", symbol)
	}
	return price, nil
}

func (pb *PaperBroker) GetMarketStatus(_ context.Context) (MarketStatus, error) {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	return MarketStatus{IsOpen: pb.marketOpen}, nil
}

func (pb *PaperBroker) GetNews(_ context.Context, symbols []string, since time.Time) ([]core.NewsArticle, error) {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	wanted := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		wanted[s] = true
	}

	var out []core.NewsArticle
	for _, a := range pb.news {
		if a.Timestamp.Before(since) {
			continue
		}
		for _, s := range a.Symbols {
			if wanted[s] {
				out = append(out, a)
				break
			}
		}
	}
	return out, nil
}

// PlaceMarketOrder fills immediately at the symbol's registered last
// price (spec.md 6). A buy without sufficient cash, or a sell exceeding
// the held quantity, is rejected rather than partially filled.
func (pb *PaperBroker) PlaceMarketOrder(_ context.Context, symbol string, qty int64, side OrderSide) (Order, error) {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	if qty <= 0 {
		return Order{}, fmt.Errorf("collaborators: order qty must be positive, got %d", qty)
	}

	price, ok := pb.lastPrices[symbol]
	if !ok {
		return Order{}, fmt.Errorf("collaborators: no price registered for %s", symbol)
	}

	pb.nextOrderID++
	orderID := fmt.Sprintf("PAPER-%d", pb.nextOrderID)
	notional := price.Mul(decimal.NewFromInt(qty))
	now := time.Now().UTC()

	switch side {
	case OrderSideBuy:
		if notional.GreaterThan(pb.cash) {
			order := Order{ID: orderID, Symbol: symbol, Side: side, Qty: qty, Status: OrderStatusRejected, Message: "insufficient cash", Timestamp: now}
			pb.orders[orderID] = &order
			return order, nil
		}
		pb.cash = pb.cash.Sub(notional)
		pb.applyFill(symbol, qty, price)

	case OrderSideSell:
		held, exists := pb.positions[symbol]
		if !exists || held.Qty < qty {
			order := Order{ID: orderID, Symbol: symbol, Side: side, Qty: qty, Status: OrderStatusRejected, Message: "insufficient position", Timestamp: now}
			pb.orders[orderID] = &order
			return order, nil
		}
		pb.cash = pb.cash.Add(notional)
		pb.applyFill(symbol, -qty, price)

	default:
		return Order{}, fmt.Errorf("collaborators: unknown order side %q", side)
	}

	order := Order{ID: orderID, Symbol: symbol, Side: side, Qty: qty, FillPrice: price, Status: OrderStatusFilled, Message: "paper fill", Timestamp: now}
	pb.orders[orderID] = &order
	return order, nil
}

// applyFill must be called with pb.mu held.
func (pb *PaperBroker) applyFill(symbol string, deltaQty int64, price decimal.Decimal) {
	existing, ok := pb.positions[symbol]
	if !ok {
		if deltaQty == 0 {
			return
		}
		pb.positions[symbol] = &core.Position{
			Symbol: symbol, Qty: deltaQty, AvgEntryPrice: price,
			CurrentPrice: price, MarketValue: price.Mul(decimal.NewFromInt(deltaQty)),
		}
		return
	}

	newQty := existing.Qty + deltaQty
	if newQty == 0 {
		delete(pb.positions, symbol)
		return
	}
	if deltaQty > 0 {
		totalCost := existing.AvgEntryPrice.Mul(decimal.NewFromInt(existing.Qty)).Add(price.Mul(decimal.NewFromInt(deltaQty)))
		existing.AvgEntryPrice = totalCost.Div(decimal.NewFromInt(newQty))
	}
	existing.Qty = newQty
	existing.CurrentPrice = price
	existing.MarketValue = price.Mul(decimal.NewFromInt(newQty))
}

func (pb *PaperBroker) GetOrder(_ context.Context, orderID string) (Order, error) {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	order, ok := pb.orders[orderID]
	if !ok {
		return Order{}, fmt.Errorf("collaborators: order %s not found", orderID)
	}
	return *order, nil
}

// IsPaperTrading always reports true — PaperBroker is the paper endpoint.
func (pb *PaperBroker) IsPaperTrading(_ context.Context) (bool, error) {
	return true, nil
}
