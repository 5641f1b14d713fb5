package indicators

import (
	"context"
	"sync"
	"time"

	"github.com/nyxtrader/decisioncore/internal/core"
	"github.com/nyxtrader/decisioncore/internal/logging"
)

// Config mirrors pkg/indicators/provider.go's IndicatorConfig, pinned to
// spec's mandated periods (RSI-14, MACD 12/26/9, Bollinger-20±2σ, ATR-14,
// volume SMA-20) with the SMA/EMA period pairs kept configurable the way
// the teacher's stack iterates a configured period list.
type Config struct {
	SMAPeriods       []int
	EMAPeriods       []int
	RSIPeriod        int
	MACDFast         int
	MACDSlow         int
	MACDSignal       int
	BollingerPeriod  int
	BollingerStdDev  float64
	ATRPeriod        int
	VolumeSMAPeriod  int
	HistVolWindow    int
	SupportResistWindow int
}

// DefaultConfig returns spec-mandated periods.
func DefaultConfig() Config {
	return Config{
		SMAPeriods:          []int{20, 50},
		EMAPeriods:          []int{12, 26},
		RSIPeriod:           14,
		MACDFast:            12,
		MACDSlow:            26,
		MACDSignal:          9,
		BollingerPeriod:     20,
		BollingerStdDev:     2.0,
		ATRPeriod:           14,
		VolumeSMAPeriod:     20,
		HistVolWindow:       20,
		SupportResistWindow: 20,
	}
}

// Engine computes IndicatorSet snapshots over OHLCV windows, grounded on
// pkg/indicators/stack.go's MultiIndicatorStack: one goroutine per
// indicator family, collected under a mutex, joined with a WaitGroup.
type Engine struct {
	cfg    Config
	logger *logging.StandardLogger
}

// New builds an Engine. A zero Config uses DefaultConfig.
func New(cfg Config, logger *logging.StandardLogger) *Engine {
	if cfg.RSIPeriod == 0 {
		cfg = DefaultConfig()
	}
	return &Engine{cfg: cfg, logger: logger}
}

// Analyze computes the full IndicatorSet for window. Returns
// core.ErrInsufficientData (wrapped in a *core.Error of KindInsufficientData)
// when window has fewer than MinimumBars bars, per spec — in that case
// the caller should treat all signals as NEUTRAL and volatility fields
// as absent rather than call Analyze at all.
func (e *Engine) Analyze(ctx context.Context, window OHLCVWindow) (*core.IndicatorSet, error) {
	if err := window.Validate(); err != nil {
		return nil, core.NewError(core.KindUnknown, "indicators.Analyze", err)
	}
	if window.Len() < MinimumBars {
		return nil, core.NewError(core.KindInsufficientData, "indicators.Analyze", core.ErrInsufficientData)
	}

	set := &core.IndicatorSet{
		Symbol:    window.Symbol,
		Timestamp: time.Now(),
	}

	if v, ok := lastValid(window.Close); ok {
		set.Close = ptr(v)
	}
	if v, ok := lastValid(window.High); ok {
		set.High = ptr(v)
	}
	if v, ok := lastValid(window.Low); ok {
		set.Low = ptr(v)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex

	run := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mu.Lock()
			defer mu.Unlock()
			fn()
		}()
	}

	run(func() {
		for _, p := range e.cfg.SMAPeriods {
			if v, ok := lastValid(smaSeries(window.Close, p)); ok {
				switch p {
				case 20:
					set.SMA20 = ptr(v)
				case 50:
					set.SMA50 = ptr(v)
				}
			}
		}
	})

	run(func() {
		for _, p := range e.cfg.EMAPeriods {
			if v, ok := lastValid(emaSeries(window.Close, p)); ok {
				switch p {
				case 12:
					set.EMA12 = ptr(v)
				case 26:
					set.EMA26 = ptr(v)
				}
			}
		}
	})

	run(func() {
		macd, sig, hist := macdSeries(window.Close, e.cfg.MACDFast, e.cfg.MACDSlow, e.cfg.MACDSignal)
		if v, ok := lastValid(macd); ok {
			set.MACD = ptr(v)
		}
		if v, ok := lastValid(sig); ok {
			set.MACDSignal = ptr(v)
		}
		if v, ok := lastValid(hist); ok {
			set.MACDHistogram = ptr(v)
		}
	})

	run(func() {
		if v, ok := lastValid(rsiSeries(window.Close, e.cfg.RSIPeriod)); ok {
			set.RSI14 = ptr(v)
		}
	})

	run(func() {
		upper, mid, lower, sd := bollingerSeries(window.Close, e.cfg.BollingerPeriod, e.cfg.BollingerStdDev)
		if v, ok := lastValid(upper); ok {
			set.BollingerUpper = ptr(v)
		}
		if v, ok := lastValid(mid); ok {
			set.BollingerMid = ptr(v)
		}
		if v, ok := lastValid(lower); ok {
			set.BollingerLower = ptr(v)
		}
		if v, ok := lastValid(sd); ok {
			set.StdDev = ptr(v)
		}
	})

	run(func() {
		if v, ok := lastValid(atrSeries(window.High, window.Low, window.Close, e.cfg.ATRPeriod)); ok {
			set.ATR14 = ptr(v)
		}
	})

	run(func() {
		if v, ok := lastValid(historicalVolatility(window.Close, e.cfg.HistVolWindow)); ok {
			set.HistoricalVol = ptr(v)
		}
	})

	run(func() {
		volSMA := smaSeries(window.Volume, e.cfg.VolumeSMAPeriod)
		if v, ok := lastValid(volSMA); ok {
			set.VolumeSMA = ptr(v)
			if cv, ok := lastValid(window.Volume); ok && v != 0 {
				set.VolumeRatio = ptr(cv / v)
			}
		}
	})

	run(func() {
		obv := obvSeries(window.Close, window.Volume)
		if v, ok := lastValid(obv); ok {
			set.OBV = ptr(v)
		}
	})

	run(func() {
		if support, resistance, ok := supportResistance(window.Close, e.cfg.SupportResistWindow); ok {
			set.Support = ptr(support)
			set.Resistance = ptr(resistance)
		}
	})

	wg.Wait()

	set.Signals = deriveSignals(set)

	if e.logger != nil {
		e.logger.WithFields(map[string]interface{}{
			"symbol": window.Symbol,
			"bars":   window.Len(),
		}).Debug("indicator set computed")
	}

	return set, nil
}

// deriveSignals summarizes the numeric IndicatorSet into the enumerated
// labels the PromptAssembler relies on, so the model never sees raw
// numbers unaccompanied, per spec 4.B.
func deriveSignals(set *core.IndicatorSet) core.IndicatorSignals {
	signals := core.IndicatorSignals{
		Momentum:   core.SignalNeutral,
		Trend:      core.SignalNeutral,
		Volatility: core.SignalNeutral,
		Composite:  core.SignalNeutral,
	}

	if set.RSI14 != nil {
		switch {
		case *set.RSI14 >= 70:
			signals.Momentum = core.SignalOverbought
		case *set.RSI14 <= 30:
			signals.Momentum = core.SignalOversold
		default:
			signals.Momentum = core.SignalNeutral
		}
	}

	if set.MACD != nil && set.MACDSignal != nil {
		if *set.MACD > *set.MACDSignal {
			signals.Trend = core.SignalBullish
		} else if *set.MACD < *set.MACDSignal {
			signals.Trend = core.SignalBearish
		}
	}

	if set.Close != nil && set.BollingerUpper != nil && set.BollingerLower != nil {
		bandWidth := *set.BollingerUpper - *set.BollingerLower
		if bandWidth > 0 {
			position := (*set.Close - *set.BollingerLower) / bandWidth
			switch {
			case position >= 0.8:
				signals.Volatility = core.SignalNearUpper
			case position <= 0.2:
				signals.Volatility = core.SignalNearLower
			default:
				signals.Volatility = core.SignalMiddle
			}
		}
	}

	bullish, bearish := 0, 0
	if signals.Momentum == core.SignalOversold {
		bullish++
	}
	if signals.Momentum == core.SignalOverbought {
		bearish++
	}
	if signals.Trend == core.SignalBullish {
		bullish++
	}
	if signals.Trend == core.SignalBearish {
		bearish++
	}
	switch {
	case bullish > bearish:
		signals.Composite = core.SignalBullish
	case bearish > bullish:
		signals.Composite = core.SignalBearish
	default:
		signals.Composite = core.SignalNeutral
	}

	return signals
}

func ptr(v float64) *float64 { return &v }
