package ta

import "math"

func MeanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}

// SMA returns the simple moving average of the trailing period bars, or NaN
// when the series is too short.
func SMA(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return math.NaN()
	}
	sum := 0.0
	for i := len(values) - period; i < len(values); i++ {
		sum += values[i]
	}
	return sum / float64(period)
}

// RSI returns the Wilder-smoothed relative strength index of the trailing
// period, or NaN when the series is too short.
func RSI(closes []float64, period int) float64 {
	if period <= 0 || len(closes) <= period {
		return math.NaN()
	}
	var gainSum float64
	var lossSum float64
	for i := 1; i <= period; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gainSum += delta
		} else {
			lossSum -= delta
		}
	}
	avgGain := gainSum / float64(period)
	avgLoss := lossSum / float64(period)
	for i := period + 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		gain := math.Max(delta, 0)
		loss := math.Max(-delta, 0)
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}
	return rsiFromAvg(avgGain, avgLoss)
}

func rsiFromAvg(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// OBVSeries computes the on-balance-volume series: volume added on up closes,
// subtracted on down closes, cumulative.
func OBVSeries(closes, volumes []float64) []float64 {
	if len(closes) == 0 || len(closes) != len(volumes) {
		return nil
	}
	out := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		switch {
		case closes[i] > closes[i-1]:
			out[i] = out[i-1] + volumes[i]
		case closes[i] < closes[i-1]:
			out[i] = out[i-1] - volumes[i]
		default:
			out[i] = out[i-1]
		}
	}
	return out
}

// Slope returns the least-squares slope of the series against its index.
func Slope(values []float64) float64 {
	n := float64(len(values))
	if n < 2 {
		return 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, v := range values {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

// Bollinger returns middle, upper and lower bands over the trailing period.
func Bollinger(values []float64, period int, stdDevs float64) (middle, upper, lower float64) {
	if period <= 0 || len(values) < period {
		nan := math.NaN()
		return nan, nan, nan
	}
	window := values[len(values)-period:]
	mean, std := MeanStd(window)
	return mean, mean + stdDevs*std, mean - stdDevs*std
}
