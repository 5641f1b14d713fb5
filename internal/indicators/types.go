// Package indicators implements IndicatorEngine: vectorized computation of
// technical signals over a fixed-length OHLCV window, grounded on
// pkg/indicators/stack.go's MultiIndicatorStack (goroutine-per-indicator
// fan-out over a sync.WaitGroup, mutex-guarded result collection) and
// pkg/indicators/provider.go's IndicatorProvider interface shape — the
// calculation bodies themselves are newly authored here since the pack
// ships no pure-Go (non-cgo) technical-analysis library: the teacher's own
// TalibAdapter binds the C talib library via cgo, which is out of scope
// for this engine (no cgo dependency ships), so the underlying math is
// implemented directly against float64 slices, matching spec's explicit
// formula choices (Wilder's smoothing for RSI/ATR, SMA±2·stdev Bollinger).
package indicators

import "errors"

// OHLCVWindow is one symbol's fixed-length bar history, ordered oldest
// to newest, the input IndicatorEngine.Analyze consumes.
type OHLCVWindow struct {
	Symbol string
	Open   []float64
	High   []float64
	Low    []float64
	Close  []float64
	Volume []float64
}

// Len returns the number of bars in the window.
func (w OHLCVWindow) Len() int { return len(w.Close) }

// Validate checks internal length consistency.
func (w OHLCVWindow) Validate() error {
	n := len(w.Close)
	if n == 0 {
		return errors.New("indicators: empty window")
	}
	if len(w.Open) != n || len(w.High) != n || len(w.Low) != n || len(w.Volume) != n {
		return errors.New("indicators: inconsistent OHLCV lengths")
	}
	return nil
}

// MinimumBars is the spec-mandated floor below which Analyze fails with
// ErrInsufficientData rather than emit partial/misleading signals.
const MinimumBars = 50
