package collaborators

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyxtrader/decisioncore/internal/core"
)

func mustParse(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestPaperBroker_IsPaperTrading(t *testing.T) {
	pb := NewPaperBroker(decimal.NewFromInt(100000))
	isPaper, err := pb.IsPaperTrading(context.Background())
	require.NoError(t, err)
	assert.True(t, isPaper)
}

func TestProbePaperMode_AcceptsPaperBroker(t *testing.T) {
	pb := NewPaperBroker(decimal.NewFromInt(100000))
	assert.NoError(t, ProbePaperMode(context.Background(), pb))
}

func TestPaperBroker_BuyThenSell_RoundTripsCash(t *testing.T) {
	ctx := context.Background()
	pb := NewPaperBroker(decimal.NewFromInt(10000))
	pb.SetLastPrice("AAPL", decimal.NewFromInt(100))

	order, err := pb.PlaceMarketOrder(ctx, "AAPL", 10, OrderSideBuy)
	require.NoError(t, err)
	assert.Equal(t, OrderStatusFilled, order.Status)

	account, err := pb.GetAccount(ctx)
	require.NoError(t, err)
	assert.True(t, account.Cash.Equal(decimal.NewFromInt(9000)))
	require.True(t, account.HasPosition("AAPL"))

	order, err = pb.PlaceMarketOrder(ctx, "AAPL", 10, OrderSideSell)
	require.NoError(t, err)
	assert.Equal(t, OrderStatusFilled, order.Status)

	account, err = pb.GetAccount(ctx)
	require.NoError(t, err)
	assert.True(t, account.Cash.Equal(decimal.NewFromInt(10000)))
	assert.False(t, account.HasPosition("AAPL"))
}

func TestPaperBroker_BuyRejectedOnInsufficientCash(t *testing.T) {
	ctx := context.Background()
	pb := NewPaperBroker(decimal.NewFromInt(500))
	pb.SetLastPrice("AAPL", decimal.NewFromInt(100))

	order, err := pb.PlaceMarketOrder(ctx, "AAPL", 10, OrderSideBuy)
	require.NoError(t, err)
	assert.Equal(t, OrderStatusRejected, order.Status)
}

func TestPaperBroker_SellRejectedWithoutHolding(t *testing.T) {
	ctx := context.Background()
	pb := NewPaperBroker(decimal.NewFromInt(10000))
	pb.SetLastPrice("AAPL", decimal.NewFromInt(100))

	order, err := pb.PlaceMarketOrder(ctx, "AAPL", 5, OrderSideSell)
	require.NoError(t, err)
	assert.Equal(t, OrderStatusRejected, order.Status)
}

func TestPaperBroker_GetOrder_ReturnsPreviouslyPlacedOrder(t *testing.T) {
	ctx := context.Background()
	pb := NewPaperBroker(decimal.NewFromInt(10000))
	pb.SetLastPrice("AAPL", decimal.NewFromInt(100))

	placed, err := pb.PlaceMarketOrder(ctx, "AAPL", 10, OrderSideBuy)
	require.NoError(t, err)

	got, err := pb.GetOrder(ctx, placed.ID)
	require.NoError(t, err)
	assert.Equal(t, placed.ID, got.ID)
	assert.Equal(t, OrderStatusFilled, got.Status)
}

func TestPaperBroker_GetNews_FiltersBySymbolAndSince(t *testing.T) {
	ctx := context.Background()
	pb := NewPaperBroker(decimal.NewFromInt(10000))

	old := core.NewsArticle{ID: "a1", Symbols: []string{"AAPL"}, Timestamp: mustParse("2026-01-01T00:00:00Z")}
	recent := core.NewsArticle{ID: "a2", Symbols: []string{"AAPL"}, Timestamp: mustParse("2026-07-30T00:00:00Z")}
	other := core.NewsArticle{ID: "a3", Symbols: []string{"MSFT"}, Timestamp: mustParse("2026-07-30T00:00:00Z")}
	pb.SeedNews(old, recent, other)

	articles, err := pb.GetNews(ctx, []string{"AAPL"}, mustParse("2026-07-01T00:00:00Z"))
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, "a2", articles[0].ID)
}

func TestPaperBroker_AveragesEntryPriceAcrossFills(t *testing.T) {
	ctx := context.Background()
	pb := NewPaperBroker(decimal.NewFromInt(100000))

	pb.SetLastPrice("AAPL", decimal.NewFromInt(100))
	_, err := pb.PlaceMarketOrder(ctx, "AAPL", 10, OrderSideBuy)
	require.NoError(t, err)

	pb.SetLastPrice("AAPL", decimal.NewFromInt(200))
	_, err = pb.PlaceMarketOrder(ctx, "AAPL", 10, OrderSideBuy)
	require.NoError(t, err)

	positions, err := pb.GetPositions(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.True(t, positions[0].AvgEntryPrice.Equal(decimal.NewFromInt(150)))
	assert.Equal(t, int64(20), positions[0].Qty)
}
