// Package collaborators defines the external-system contracts TradingAgent
// and Scheduler depend on — Broker and NewsProvider — plus an in-memory
// PaperBroker reference implementation for tests and local runs. Only the
// contracts are pinned here; no production HTTP/SDK client ships (spec.md
// 6's explicit non-goal). Every interaction crossing one of these
// boundaries must carry a context.Context deadline (spec.md 5: 10s for
// Broker calls).
package collaborators

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nyxtrader/decisioncore/internal/core"
)

// OrderSide mirrors the two sides TradingAgent ever submits.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderStatus is the closed enumeration Broker.GetOrder reports.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusFilled    OrderStatus = "FILLED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusRejected  OrderStatus = "REJECTED"
)

// Order is what PlaceMarketOrder returns and GetOrder refreshes.
type Order struct {
	ID        string
	Symbol    string
	Side      OrderSide
	Qty       int64
	FillPrice decimal.Decimal
	Status    OrderStatus
	Message   string
	Timestamp time.Time
}

// MarketStatus is the Broker's view of whether the exchange currently
// accepts orders, used by MarketClock as a fallback truth source.
type MarketStatus struct {
	IsOpen    bool
	NextOpen  time.Time
	NextClose time.Time
}

// Broker is the sole contract between the Core and any execution venue
// (spec.md 6). Implementations must be stateless from the Core's
// perspective — all durable state lives in LearningStore, not here.
type Broker interface {
	// GetAccount returns the current account snapshot; the Broker is
	// always the source of truth, never the Core's own cache.
	GetAccount(ctx context.Context) (core.AccountState, error)

	// GetPositions returns all currently held non-zero positions.
	GetPositions(ctx context.Context) ([]core.Position, error)

	// GetBars returns OHLCV history for symbol between start and end at
	// the given timeframe (e.g. "1d", "5m").
	GetBars(ctx context.Context, symbol string, start, end time.Time, timeframe string) ([]core.Bar, error)

	// GetLatestPrice returns the most recent trade price for symbol.
	GetLatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error)

	// GetMarketStatus reports whether the exchange is currently open.
	GetMarketStatus(ctx context.Context) (MarketStatus, error)

	// GetNews returns articles for any of symbols published since since.
	// Broker may itself be the NewsProvider, or NewsProvider may be wired
	// as a separate collaborator with the same contract shape.
	GetNews(ctx context.Context, symbols []string, since time.Time) ([]core.NewsArticle, error)

	// PlaceMarketOrder submits a market order. qty is always positive;
	// side determines direction.
	PlaceMarketOrder(ctx context.Context, symbol string, qty int64, side OrderSide) (Order, error)

	// GetOrder refreshes the status of a previously submitted order.
	GetOrder(ctx context.Context, orderID string) (Order, error)

	// IsPaperTrading reports whether this Broker is a paper-trading
	// endpoint. The Core refuses to initialize otherwise (spec.md 6's
	// startup probe): this method IS that probe.
	IsPaperTrading(ctx context.Context) (bool, error)
}

// NewsProvider has the same contract shape as Broker.GetNews, for when
// news comes from a separate service than order execution.
type NewsProvider interface {
	GetNews(ctx context.Context, symbols []string, since time.Time) ([]core.NewsArticle, error)
}

// ProbePaperMode is the startup check spec.md 6 requires: the Core MUST
// refuse to initialize against a non-paper endpoint.
func ProbePaperMode(ctx context.Context, b Broker) error {
	isPaper, err := b.IsPaperTrading(ctx)
	if err != nil {
		return &PaperModeProbeError{Cause: err}
	}
	if !isPaper {
		return &PaperModeProbeError{NotPaper: true}
	}
	return nil
}

// PaperModeProbeError is returned by ProbePaperMode; cmd/engine maps it to
// the dedicated "broker probe failure" exit code.
type PaperModeProbeError struct {
	NotPaper bool
	Cause    error
}

func (e *PaperModeProbeError) Error() string {
	if e.NotPaper {
		return "collaborators: broker endpoint is not paper trading; refusing to initialize"
	}
	return "collaborators: paper-mode probe failed: " + e.Cause.Error()
}

func (e *PaperModeProbeError) Unwrap() error { return e.Cause }
