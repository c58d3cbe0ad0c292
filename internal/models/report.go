package models

import (
	"encoding/json"
	"fmt"
	"math"
)

// QualityRating is a discrete view over a 0-100 quality score.
type QualityRating string

const (
	RatingElite     QualityRating = "Elite"
	RatingExcellent QualityRating = "Excellent"
	RatingGood      QualityRating = "Good"
	RatingAverage   QualityRating = "Average"
	RatingPoor      QualityRating = "Poor"
)

// Lower bounds (inclusive) of each rating band.
const (
	EliteMinScore     = 85.0
	ExcellentMinScore = 70.0
	GoodMinScore      = 55.0
	AverageMinScore   = 40.0
)

// RatingForScore maps a score onto its band. Scores below 40 (and NaN) are Poor.
func RatingForScore(score float64) QualityRating {
	switch {
	case score >= EliteMinScore:
		return RatingElite
	case score >= ExcellentMinScore:
		return RatingExcellent
	case score >= GoodMinScore:
		return RatingGood
	case score >= AverageMinScore:
		return RatingAverage
	default:
		return RatingPoor
	}
}

// Ratio is a float64 that may legitimately be +Inf (e.g. a profit factor with
// no losing trades). It encodes non-finite values as JSON strings.
type Ratio float64

func (r Ratio) MarshalJSON() ([]byte, error) {
	v := float64(r)
	switch {
	case math.IsInf(v, 1):
		return []byte(`"Infinity"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-Infinity"`), nil
	case math.IsNaN(v):
		return []byte(`null`), nil
	}
	return json.Marshal(v)
}

func (r *Ratio) UnmarshalJSON(b []byte) error {
	switch string(b) {
	case `"Infinity"`:
		*r = Ratio(math.Inf(1))
		return nil
	case `"-Infinity"`:
		*r = Ratio(math.Inf(-1))
		return nil
	case `null`:
		*r = Ratio(math.NaN())
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("decode ratio: %w", err)
	}
	*r = Ratio(v)
	return nil
}

// Posterior summarizes a Beta posterior over the win probability.
type Posterior struct {
	Alpha  float64 `json:"alpha"`
	Beta   float64 `json:"beta"`
	Mean   float64 `json:"mean"`
	Mode   float64 `json:"mode"`
	Lower  float64 `json:"lower"`
	Upper  float64 `json:"upper"`
	Trials int     `json:"trials"`
	// Method names how the interval was built: "normal", "fixed_band" or "prior".
	Method string `json:"method"`
}

// PerformanceReport is a read-only snapshot of one signal type's performance.
type PerformanceReport struct {
	SignalType SignalType `json:"signalType"`
	SampleSize int        `json:"sampleSize"`
	Wins       int        `json:"wins"`
	Losses     int        `json:"losses"`
	WinRate    float64    `json:"winRate"`

	TotalPnL      float64 `json:"totalPnl"`
	TotalReturn   float64 `json:"totalReturn"`
	AverageReturn float64 `json:"averageReturn"`
	AverageWin    float64 `json:"averageWin"`
	AverageLoss   float64 `json:"averageLoss"`
	Expectancy    float64 `json:"expectancy"`

	ProfitFactor       Ratio   `json:"profitFactor"`
	SharpeRatio        float64 `json:"sharpeRatio"`
	SortinoRatio       float64 `json:"sortinoRatio"`
	CalmarRatio        float64 `json:"calmarRatio"`
	OmegaRatio         Ratio   `json:"omegaRatio"`
	MaxDrawdown        float64 `json:"maxDrawdown"`
	MaxDrawdownPercent float64 `json:"maxDrawdownPercent"`

	AverageMAE float64 `json:"averageMae"`
	AverageMFE float64 `json:"averageMfe"`

	Posterior    Posterior     `json:"posterior"`
	QualityScore float64       `json:"qualityScore"`
	Rating       QualityRating `json:"rating"`
}

// EmptyReport is the well-defined report for a signal type with no trades.
func EmptyReport(t SignalType) PerformanceReport {
	return PerformanceReport{
		SignalType: t,
		Posterior: Posterior{
			Alpha: 1, Beta: 1, Mean: 0.5, Mode: 0.5,
			Lower: 0, Upper: 1, Method: "prior",
		},
		QualityScore: 0,
		Rating:       RatingPoor,
	}
}
