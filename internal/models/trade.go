package models

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"signal-analytics-go/internal/stats"
)

// ErrInvalidTrade is returned when a trade record fails validation.
var ErrInvalidTrade = errors.New("invalid trade record")

// TradeRecord is a completed trade attributed to a signal.
// Records are treated as immutable once built by NewTradeRecord.
type TradeRecord struct {
	ID         string     `json:"id"`
	SignalID   string     `json:"signalId"`
	SignalType SignalType `json:"signalType"`
	Symbol     string     `json:"symbol,omitempty"`
	Direction  Direction  `json:"direction"`
	EntryPrice float64    `json:"entryPrice"`
	ExitPrice  float64    `json:"exitPrice"`
	Quantity   float64    `json:"quantity"`
	EntryTime  time.Time  `json:"entryTime"`
	ExitTime   time.Time  `json:"exitTime"`
	PnL        float64    `json:"pnl"`
	// PnLPercent is a fraction of entry notional: 0.02 == 2%.
	PnLPercent float64 `json:"pnlPercent"`

	// Extreme prices seen while the trade was open, when the source knows them.
	HighPrice *float64 `json:"highPrice,omitempty"`
	LowPrice  *float64 `json:"lowPrice,omitempty"`

	Fees     float64 `json:"fees,omitempty"`
	Slippage float64 `json:"slippage,omitempty"`

	// Derived by NewTradeRecord.
	MAE           float64       `json:"mae"`
	MFE           float64       `json:"mfe"`
	HoldingPeriod time.Duration `json:"holdingPeriod"`
}

// IsWin reports whether the trade made money.
func (t TradeRecord) IsWin() bool {
	return t.PnL > 0
}

// Return is the per-trade return used by every return-series statistic.
func (t TradeRecord) Return() float64 {
	return t.PnLPercent
}

// Extremes returns the high and low seen during the trade, falling back to
// the entry/exit prices when the source did not report them.
func (t TradeRecord) Extremes() (high, low float64) {
	high = math.Max(t.EntryPrice, t.ExitPrice)
	low = math.Min(t.EntryPrice, t.ExitPrice)
	if t.HighPrice != nil && *t.HighPrice > high {
		high = *t.HighPrice
	}
	if t.LowPrice != nil && *t.LowPrice > 0 && *t.LowPrice < low {
		low = *t.LowPrice
	}
	return high, low
}

// NewTradeRecord validates a raw record and fills the derived fields.
//
// Signal id, a known signal type, and positive finite entry and exit prices are
// required. Quantity defaults to 1. PnL and PnLPercent are derived from the
// prices when the source left them at zero; MAE, MFE and HoldingPeriod are
// always derived. An id is generated when none is supplied.
func NewTradeRecord(raw TradeRecord) (TradeRecord, error) {
	t := raw
	t.SignalID = strings.TrimSpace(t.SignalID)

	if t.SignalID == "" {
		return TradeRecord{}, fmt.Errorf("%w: missing signal id", ErrInvalidTrade)
	}
	if !t.SignalType.Valid() {
		return TradeRecord{}, fmt.Errorf("%w: missing or unknown signal type", ErrInvalidTrade)
	}
	if !validPrice(t.EntryPrice) {
		return TradeRecord{}, fmt.Errorf("%w: missing or invalid entry price", ErrInvalidTrade)
	}
	if !validPrice(t.ExitPrice) {
		return TradeRecord{}, fmt.Errorf("%w: missing or invalid exit price", ErrInvalidTrade)
	}
	if t.Direction != Long && t.Direction != Short {
		return TradeRecord{}, fmt.Errorf("%w: unknown direction", ErrInvalidTrade)
	}
	if t.Quantity < 0 || !stats.IsFinite(t.Quantity) {
		return TradeRecord{}, fmt.Errorf("%w: invalid quantity", ErrInvalidTrade)
	}
	if !stats.IsFinite(t.Fees) || !stats.IsFinite(t.Slippage) {
		return TradeRecord{}, fmt.Errorf("%w: invalid fees or slippage", ErrInvalidTrade)
	}
	if !t.EntryTime.IsZero() && !t.ExitTime.IsZero() && t.ExitTime.Before(t.EntryTime) {
		return TradeRecord{}, fmt.Errorf("%w: exit time before entry time", ErrInvalidTrade)
	}

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Quantity == 0 {
		t.Quantity = 1
	}

	move := (t.ExitPrice - t.EntryPrice) * t.Direction.Sign()
	if t.PnL == 0 {
		t.PnL = move*t.Quantity - t.Fees - t.Slippage
	}
	if t.PnLPercent == 0 {
		t.PnLPercent = t.PnL / (t.EntryPrice * t.Quantity)
	}
	if !stats.IsFinite(t.PnL) || !stats.IsFinite(t.PnLPercent) {
		return TradeRecord{}, fmt.Errorf("%w: pnl out of range", ErrInvalidTrade)
	}

	high, low := t.Extremes()
	long := t.Direction == Long
	t.MAE = stats.AdverseExcursion(t.EntryPrice, high, low, long)
	t.MFE = stats.FavorableExcursion(t.EntryPrice, high, low, long)

	if !t.EntryTime.IsZero() && !t.ExitTime.IsZero() {
		t.HoldingPeriod = t.ExitTime.Sub(t.EntryTime)
	}
	return t, nil
}

func validPrice(p float64) bool {
	return p > 0 && !math.IsInf(p, 0) && !math.IsNaN(p)
}

// Returns extracts the per-trade return series in the given order.
func Returns(trades []TradeRecord) []float64 {
	out := make([]float64, len(trades))
	for i, t := range trades {
		out[i] = t.Return()
	}
	return out
}

// PriceBar is one OHLCV candle of market context around a trade.
type PriceBar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}
