package strategy

// Shared indicator math for the built-in strategies. Plain rolling
// calculations over date-ordered slices; nothing here allocates per call
// beyond the result.

// ma returns the simple moving average of the last window values, or 0
// when there is not enough data.
func ma(values []float64, window int) float64 {
	if len(values) < window || window <= 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values[len(values)-window:] {
		sum += v
	}
	return sum / float64(window)
}

// rsi returns the Wilder RSI over the given period for the last value,
// or 50 (neutral) when there is not enough data.
func rsi(closes []float64, period int) float64 {
	if len(closes) <= period {
		return 50
	}

	var gain, loss float64
	for i := 1; i <= period; i++ {
		diff := closes[i] - closes[i-1]
		if diff > 0 {
			gain += diff
		} else {
			loss -= diff
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)

	for i := period + 1; i < len(closes); i++ {
		diff := closes[i] - closes[i-1]
		g, l := 0.0, 0.0
		if diff > 0 {
			g = diff
		} else {
			l = -diff
		}
		avgGain = (avgGain*float64(period-1) + g) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + l) / float64(period)
	}

	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// maxOf returns the maximum of the last window values.
func maxOf(values []float64, window int) float64 {
	if len(values) < window {
		window = len(values)
	}
	max := values[len(values)-window]
	for _, v := range values[len(values)-window:] {
		if v > max {
			max = v
		}
	}
	return max
}
