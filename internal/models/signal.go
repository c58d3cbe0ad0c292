package models

import (
	"fmt"
	"strings"
)

// SignalType is the closed set of strategies a trade can be attributed to.
type SignalType int

const (
	SignalTypeUnknown SignalType = iota
	SignalBreakout
	SignalReversal
	SignalMomentum
	SignalMeanReversion
	SignalTrendFollowing
	SignalDivergence
	SignalVolumeSpike
	SignalSupportResistance
	SignalPattern
)

var signalTypeNames = [...]string{
	SignalTypeUnknown:       "unknown",
	SignalBreakout:          "breakout",
	SignalReversal:          "reversal",
	SignalMomentum:          "momentum",
	SignalMeanReversion:     "mean_reversion",
	SignalTrendFollowing:    "trend_following",
	SignalDivergence:        "divergence",
	SignalVolumeSpike:       "volume_spike",
	SignalSupportResistance: "support_resistance",
	SignalPattern:           "pattern",
}

// AllSignalTypes returns every valid signal type in declaration order.
func AllSignalTypes() []SignalType {
	out := make([]SignalType, 0, len(signalTypeNames)-1)
	for t := SignalBreakout; int(t) < len(signalTypeNames); t++ {
		out = append(out, t)
	}
	return out
}

// Valid reports whether t is a member of the enumeration (excluding unknown).
func (t SignalType) Valid() bool {
	return t > SignalTypeUnknown && int(t) < len(signalTypeNames)
}

func (t SignalType) String() string {
	if t < 0 || int(t) >= len(signalTypeNames) {
		return fmt.Sprintf("SignalType(%d)", int(t))
	}
	return signalTypeNames[t]
}

// ParseSignalType accepts the snake_case name, case-insensitively.
func ParseSignalType(s string) (SignalType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	name = strings.ReplaceAll(name, "-", "_")
	for _, t := range AllSignalTypes() {
		if signalTypeNames[t] == name {
			return t, nil
		}
	}
	return SignalTypeUnknown, fmt.Errorf("unknown signal type %q", s)
}

func (t SignalType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("cannot marshal invalid signal type %d", int(t))
	}
	return []byte(t.String()), nil
}

func (t *SignalType) UnmarshalText(b []byte) error {
	parsed, err := ParseSignalType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Direction is the side of a trade.
type Direction int

const (
	Long Direction = iota
	Short
)

// Sign is +1 for long and -1 for short.
func (d Direction) Sign() float64 {
	if d == Short {
		return -1
	}
	return 1
}

func (d Direction) String() string {
	if d == Short {
		return "short"
	}
	return "long"
}

func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(b []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(b))) {
	case "long", "buy":
		*d = Long
	case "short", "sell":
		*d = Short
	default:
		return fmt.Errorf("unknown direction %q", string(b))
	}
	return nil
}

// Regime is an optional market-regime tag attached to a trade's context.
type Regime int

const (
	RegimeNone Regime = iota
	RegimeTrendingUp
	RegimeTrendingDown
	RegimeRanging
	RegimeVolatile
)

var regimeNames = [...]string{
	RegimeNone:         "none",
	RegimeTrendingUp:   "trending_up",
	RegimeTrendingDown: "trending_down",
	RegimeRanging:      "ranging",
	RegimeVolatile:     "volatile",
}

// AllRegimes lists the concrete regimes (RegimeNone excluded).
func AllRegimes() []Regime {
	return []Regime{RegimeTrendingUp, RegimeTrendingDown, RegimeRanging, RegimeVolatile}
}

func (r Regime) String() string {
	if r < 0 || int(r) >= len(regimeNames) {
		return fmt.Sprintf("Regime(%d)", int(r))
	}
	return regimeNames[r]
}

func (r Regime) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Regime) UnmarshalText(b []byte) error {
	name := strings.ToLower(strings.TrimSpace(string(b)))
	if name == "" {
		*r = RegimeNone
		return nil
	}
	for i, n := range regimeNames {
		if n == name {
			*r = Regime(i)
			return nil
		}
	}
	return fmt.Errorf("unknown regime %q", string(b))
}
