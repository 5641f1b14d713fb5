package indicators

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyxtrader/decisioncore/internal/core"
)

func syntheticWindow(symbol string, n int) OHLCVWindow {
	w := OHLCVWindow{Symbol: symbol}
	price := 100.0
	for i := 0; i < n; i++ {
		price += math.Sin(float64(i)/5) * 0.5
		w.Open = append(w.Open, price)
		w.High = append(w.High, price+1)
		w.Low = append(w.Low, price-1)
		w.Close = append(w.Close, price)
		w.Volume = append(w.Volume, 1_000_000+float64(i)*100)
	}
	return w
}

func TestEngine_Analyze_InsufficientData(t *testing.T) {
	e := New(DefaultConfig(), nil)
	_, err := e.Analyze(context.Background(), syntheticWindow("AAPL", 10))

	require.Error(t, err)
	assert.Equal(t, core.KindInsufficientData, core.KindOf(err))
}

func TestEngine_Analyze_ProducesFullSnapshot(t *testing.T) {
	e := New(DefaultConfig(), nil)
	set, err := e.Analyze(context.Background(), syntheticWindow("AAPL", 80))
	require.NoError(t, err)

	require.NotNil(t, set.Close)
	require.NotNil(t, set.SMA20)
	require.NotNil(t, set.SMA50)
	require.NotNil(t, set.EMA12)
	require.NotNil(t, set.EMA26)
	require.NotNil(t, set.MACD)
	require.NotNil(t, set.MACDSignal)
	require.NotNil(t, set.RSI14)
	require.NotNil(t, set.BollingerUpper)
	require.NotNil(t, set.BollingerLower)
	require.NotNil(t, set.ATR14)
	require.NotNil(t, set.VolumeSMA)
	require.NotNil(t, set.VolumeRatio)
	require.NotNil(t, set.OBV)
	require.NotNil(t, set.Support)
	require.NotNil(t, set.Resistance)

	assert.Contains(t, []core.Signal{core.SignalBullish, core.SignalBearish, core.SignalNeutral}, set.Signals.Composite)
}

func TestSMASeries_AbsentBeforeWindow(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	out := smaSeries(values, 3)

	assert.True(t, math.IsNaN(out[0]))
	assert.True(t, math.IsNaN(out[1]))
	assert.InDelta(t, 2.0, out[2], 1e-9)
	assert.InDelta(t, 3.0, out[3], 1e-9)
	assert.InDelta(t, 4.0, out[4], 1e-9)
}

func TestRSISeries_ExtremesAt0And100(t *testing.T) {
	allUp := make([]float64, 20)
	for i := range allUp {
		allUp[i] = float64(i)
	}
	out := rsiSeries(allUp, 14)
	last, ok := lastValid(out)
	require.True(t, ok)
	assert.InDelta(t, 100, last, 1e-6)

	allDown := make([]float64, 20)
	for i := range allDown {
		allDown[i] = float64(20 - i)
	}
	out = rsiSeries(allDown, 14)
	last, ok = lastValid(out)
	require.True(t, ok)
	assert.InDelta(t, 0, last, 1e-6)
}

func TestBollingerSeries_SymmetricAroundMid(t *testing.T) {
	values := []float64{10, 12, 11, 13, 12, 14, 13, 15, 14, 16}
	upper, mid, lower, _ := bollingerSeries(values, 5, 2.0)
	last := len(values) - 1
	assert.InDelta(t, mid[last]-lower[last], upper[last]-mid[last], 1e-9)
}

func TestATRSeries_NonNegative(t *testing.T) {
	w := syntheticWindow("X", 60)
	out := atrSeries(w.High, w.Low, w.Close, 14)
	v, ok := lastValid(out)
	require.True(t, ok)
	assert.GreaterOrEqual(t, v, 0.0)
}

func TestSupportResistance_BoundsCloses(t *testing.T) {
	values := []float64{10, 9, 11, 8, 12}
	support, resistance, ok := supportResistance(values, 5)
	require.True(t, ok)
	assert.Equal(t, 8.0, support)
	assert.Equal(t, 12.0, resistance)
}

func TestDeriveSignals_OverboughtAndBearish(t *testing.T) {
	rsi := 75.0
	macd, sig := 1.0, 2.0
	set := &core.IndicatorSet{RSI14: &rsi, MACD: &macd, MACDSignal: &sig}
	signals := deriveSignals(set)

	assert.Equal(t, core.SignalOverbought, signals.Momentum)
	assert.Equal(t, core.SignalBearish, signals.Trend)
}
