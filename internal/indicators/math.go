package indicators

import "math"

// smaSeries computes the simple moving average series; the first
// period-1 positions are NaN ("absent").
func smaSeries(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
	}
	if period <= 0 || len(values) < period {
		return out
	}
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// emaSeries computes the exponential moving average series, seeded with
// the SMA of the first period values (the conventional warm-up), absent
// before that seed point.
func emaSeries(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
	}
	if period <= 0 || len(values) < period {
		return out
	}
	seedSum := 0.0
	for i := 0; i < period; i++ {
		seedSum += values[i]
	}
	ema := seedSum / float64(period)
	out[period-1] = ema
	k := 2.0 / (float64(period) + 1.0)
	for i := period; i < len(values); i++ {
		ema = values[i]*k + ema*(1-k)
		out[i] = ema
	}
	return out
}

// rsiSeries computes Wilder's RSI, period typically 14.
func rsiSeries(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
	}
	if period <= 0 || len(values) <= period {
		return out
	}

	gainSum, lossSum := 0.0, 0.0
	for i := 1; i <= period; i++ {
		delta := values[i] - values[i-1]
		if delta > 0 {
			gainSum += delta
		} else {
			lossSum -= delta
		}
	}
	avgGain := gainSum / float64(period)
	avgLoss := lossSum / float64(period)
	out[period] = rsiFromAverages(avgGain, avgLoss)

	for i := period + 1; i < len(values); i++ {
		delta := values[i] - values[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiFromAverages(avgGain, avgLoss)
	}
	return out
}

func rsiFromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// macdSeries computes MACD line, signal line, and histogram.
func macdSeries(values []float64, fast, slow, signal int) (macd, sig, hist []float64) {
	fastEMA := emaSeries(values, fast)
	slowEMA := emaSeries(values, slow)

	macd = make([]float64, len(values))
	for i := range values {
		if math.IsNaN(fastEMA[i]) || math.IsNaN(slowEMA[i]) {
			macd[i] = math.NaN()
		} else {
			macd[i] = fastEMA[i] - slowEMA[i]
		}
	}

	sig = emaSeriesSkippingNaN(macd, signal)

	hist = make([]float64, len(values))
	for i := range values {
		if math.IsNaN(macd[i]) || math.IsNaN(sig[i]) {
			hist[i] = math.NaN()
		} else {
			hist[i] = macd[i] - sig[i]
		}
	}
	return macd, sig, hist
}

// emaSeriesSkippingNaN runs an EMA over a series that begins with NaN
// (absent) values, treating the first non-NaN run of length period as the
// warm-up window — used for the MACD signal line, whose input (the MACD
// line) is itself absent until the slow EMA warms up.
func emaSeriesSkippingNaN(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
	}
	start := -1
	for i, v := range values {
		if !math.IsNaN(v) {
			start = i
			break
		}
	}
	if start == -1 || len(values)-start < period {
		return out
	}
	return shiftedEMA(values, start, period, out)
}

func shiftedEMA(values []float64, start, period int, out []float64) []float64 {
	seedSum := 0.0
	for i := start; i < start+period; i++ {
		seedSum += values[i]
	}
	ema := seedSum / float64(period)
	idx := start + period - 1
	out[idx] = ema
	k := 2.0 / (float64(period) + 1.0)
	for i := idx + 1; i < len(values); i++ {
		ema = values[i]*k + ema*(1-k)
		out[i] = ema
	}
	return out
}

// bollingerSeries computes upper/mid/lower bands: SMA(period) ± stdDevMult·stdev(period).
func bollingerSeries(values []float64, period int, stdDevMult float64) (upper, mid, lower, stddev []float64) {
	mid = smaSeries(values, period)
	upper = make([]float64, len(values))
	lower = make([]float64, len(values))
	stddev = make([]float64, len(values))
	for i := range values {
		if math.IsNaN(mid[i]) {
			upper[i], lower[i], stddev[i] = math.NaN(), math.NaN(), math.NaN()
			continue
		}
		sd := stdevAt(values, i, period, mid[i])
		stddev[i] = sd
		upper[i] = mid[i] + stdDevMult*sd
		lower[i] = mid[i] - stdDevMult*sd
	}
	return upper, mid, lower, stddev
}

func stdevAt(values []float64, i, period int, mean float64) float64 {
	sumSq := 0.0
	for j := i - period + 1; j <= i; j++ {
		d := values[j] - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(period))
}

// atrSeries computes Wilder's Average True Range.
func atrSeries(high, low, close []float64, period int) []float64 {
	n := len(close)
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	if n <= period {
		return out
	}

	tr := make([]float64, n)
	tr[0] = high[0] - low[0]
	for i := 1; i < n; i++ {
		hl := high[i] - low[i]
		hc := math.Abs(high[i] - close[i-1])
		lc := math.Abs(low[i] - close[i-1])
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}

	sum := 0.0
	for i := 1; i <= period; i++ {
		sum += tr[i]
	}
	atr := sum / float64(period)
	out[period] = atr
	for i := period + 1; i < n; i++ {
		atr = (atr*float64(period-1) + tr[i]) / float64(period)
		out[i] = atr
	}
	return out
}

// stochasticSeries computes %K (fast) over kPeriod and its dPeriod SMA.
func stochasticSeries(high, low, close []float64, kPeriod, dPeriod int) (k, d []float64) {
	n := len(close)
	k = make([]float64, n)
	for i := range k {
		k[i] = math.NaN()
	}
	for i := kPeriod - 1; i < n; i++ {
		hh, ll := high[i], low[i]
		for j := i - kPeriod + 1; j <= i; j++ {
			hh = math.Max(hh, high[j])
			ll = math.Min(ll, low[j])
		}
		if hh == ll {
			k[i] = 50
		} else {
			k[i] = 100 * (close[i] - ll) / (hh - ll)
		}
	}
	d = smaSeries(k, dPeriod)
	return k, d
}

// obvSeries computes On-Balance Volume, a running total (not windowed:
// the first point is always present, seeded at 0).
func obvSeries(close, volume []float64) []float64 {
	n := len(close)
	out := make([]float64, n)
	for i := 1; i < n; i++ {
		switch {
		case close[i] > close[i-1]:
			out[i] = out[i-1] + volume[i]
		case close[i] < close[i-1]:
			out[i] = out[i-1] - volume[i]
		default:
			out[i] = out[i-1]
		}
	}
	return out
}

// historicalVolatility computes annualized stdev of log returns over the
// trailing window, absent until window+1 closes are available.
func historicalVolatility(close []float64, window int) []float64 {
	n := len(close)
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	if n <= window {
		return out
	}
	returns := make([]float64, n)
	returns[0] = math.NaN()
	for i := 1; i < n; i++ {
		returns[i] = math.Log(close[i] / close[i-1])
	}
	for i := window; i < n; i++ {
		mean := 0.0
		for j := i - window + 1; j <= i; j++ {
			mean += returns[j]
		}
		mean /= float64(window)
		sumSq := 0.0
		for j := i - window + 1; j <= i; j++ {
			d := returns[j] - mean
			sumSq += d * d
		}
		stdev := math.Sqrt(sumSq / float64(window-1))
		out[i] = stdev * math.Sqrt(252)
	}
	return out
}

// lastValid returns the final element of series and whether it is
// present (non-NaN), the boundary across which IndicatorEngine converts
// an internal float64 series into the domain's *float64 "absent" model.
func lastValid(series []float64) (float64, bool) {
	if len(series) == 0 {
		return 0, false
	}
	v := series[len(series)-1]
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// supportResistance derives a simple trailing support/resistance pair:
// the min/max close over the trailing window, a common unweighted
// approximation used alongside the indicator stack rather than a
// dedicated pivot-point calculation (out of scope: no swing-point
// detection is specified).
func supportResistance(close []float64, window int) (support, resistance float64, ok bool) {
	n := len(close)
	if n < window {
		return 0, 0, false
	}
	lo, hi := close[n-window], close[n-window]
	for i := n - window; i < n; i++ {
		lo = math.Min(lo, close[i])
		hi = math.Max(hi, close[i])
	}
	return lo, hi, true
}
