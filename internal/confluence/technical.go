package confluence

import (
	"math"

	"tickerpulse/internal/config"
	"tickerpulse/internal/domain"
	"tickerpulse/internal/ta"
)

const minBars = 20

// volumeSlopeScale divides the OBV slope before capping; it keeps typical
// daily-volume slopes inside [-1,1].
const volumeSlopeScale = 1e6

// TechnicalCalculator turns an OHLCV series into a composite technical score.
type TechnicalCalculator struct {
	cfg config.ConfluenceConfig
}

func NewTechnicalCalculator(cfg config.ConfluenceConfig) *TechnicalCalculator {
	return &TechnicalCalculator{cfg: cfg}
}

// Calculate returns nil when fewer than 20 bars are supplied.
func (c *TechnicalCalculator) Calculate(candles []domain.Candle) *domain.TechnicalScore {
	if len(candles) < minBars {
		return nil
	}

	closes := domain.Closes(candles)
	volumes := domain.Volumes(candles)
	price := closes[len(closes)-1]

	rsiScore, rsiValue := rsiScore(closes)
	smaScore, smaShort, smaLong := smaTrendScore(closes, price)
	volScore, obvSlope := volumeScore(closes, volumes)
	bollScore, bollMid := bollingerScore(closes, price)

	overall := c.cfg.WeightSMATrend*smaScore +
		c.cfg.WeightRSI*rsiScore +
		c.cfg.WeightVolume*volScore +
		c.cfg.WeightBollinger*bollScore

	return &domain.TechnicalScore{
		OverallScore:   clamp(overall, -1, 1),
		RSIScore:       rsiScore,
		SMATrendScore:  smaScore,
		VolumeScore:    volScore,
		BollingerScore: bollScore,
		Indicators: map[string]float64{
			"rsi":              rsiValue,
			"sma_short":        smaShort,
			"sma_long":         smaLong,
			"obv_slope":        obvSlope,
			"bollinger_middle": bollMid,
			"price":            price,
		},
	}
}

// rsiScore maps RSI piecewise: oversold territory (<=30) is [-1,0], the
// 30-70 band is [-1,1] centered at 50, overbought (>70) is [0,1].
func rsiScore(closes []float64) (score, value float64) {
	value = ta.RSI(closes, 14)
	if math.IsNaN(value) {
		return 0, 0
	}
	return rsiValueToScore(value), value
}

func rsiValueToScore(value float64) float64 {
	var score float64
	switch {
	case value <= 30:
		score = (value - 30) / 30
	case value <= 70:
		score = (value - 50) / 20
	default:
		score = (value - 70) / 30
	}
	return clamp(score, -1, 1)
}

// smaTrendScore combines the distance of price from the 20-bar SMA (60%)
// and from the 200-bar SMA, falling back to 50 bars on short history (40%).
// Distances are scaled by 10 so a 10% stretch saturates the score.
func smaTrendScore(closes []float64, price float64) (score, smaShort, smaLong float64) {
	smaShort = ta.SMA(closes, 20)
	longPeriod := 200
	if len(closes) < 200 {
		longPeriod = 50
	}
	smaLong = ta.SMA(closes, longPeriod)

	shortScore := smaDistance(price, smaShort)
	longScore := smaDistance(price, smaLong)
	if math.IsNaN(smaLong) {
		// Not enough history for any long SMA: the short trend stands alone.
		smaLong = 0
		return clamp(shortScore, -1, 1), smaShort, smaLong
	}
	return clamp(0.6*shortScore+0.4*longScore, -1, 1), smaShort, smaLong
}

func smaDistance(price, sma float64) float64 {
	if math.IsNaN(sma) || sma == 0 {
		return 0
	}
	return clamp((price-sma)/sma*10, -1, 1)
}

// volumeScore is the sign and capped magnitude of the OBV slope.
func volumeScore(closes, volumes []float64) (score, slope float64) {
	obv := ta.OBVSeries(closes, volumes)
	slope = ta.Slope(obv)
	return clamp(slope/volumeSlopeScale, -1, 1), slope
}

// bollingerScore maps the price position within the bands: lower = -1,
// middle = 0, upper = +1.
func bollingerScore(closes []float64, price float64) (score, middle float64) {
	middle, upper, lower := ta.Bollinger(closes, 20, 2)
	if math.IsNaN(middle) || upper == lower {
		return 0, 0
	}
	return clamp(2*(price-lower)/(upper-lower)-1, -1, 1), middle
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
