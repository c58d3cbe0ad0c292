package reporting

import (
	"github.com/shopspring/decimal"

	"signal-analytics-go/internal/models"
	"signal-analytics-go/internal/stats"
)

var bpsDivisor = decimal.NewFromInt(10000)

// CostModel describes execution costs charged on both entry and exit.
type CostModel struct {
	// FixedCommission is charged per side, in quote currency.
	FixedCommission float64 `json:"fixedCommission" mapstructure:"fixed_commission"`
	// PercentCommission is a fraction of notional per side (0.001 == 10bps).
	PercentCommission float64 `json:"percentCommission" mapstructure:"percent_commission"`
	MinCommission     float64 `json:"minCommission" mapstructure:"min_commission"`
	// MaxCommission caps the per-side commission; zero means no cap.
	MaxCommission float64 `json:"maxCommission" mapstructure:"max_commission"`
	SlippageBps   float64 `json:"slippageBps" mapstructure:"slippage_bps"`
}

// CostAnalysis compares gross and net performance under a cost model.
type CostAnalysis struct {
	Model           CostModel `json:"model"`
	TotalTrades     int       `json:"totalTrades"`
	TotalCommission float64   `json:"totalCommission"`
	TotalSlippage   float64   `json:"totalSlippage"`
	TotalCosts      float64   `json:"totalCosts"`
	CostPerTrade    float64   `json:"costPerTrade"`
	GrossPnL        float64   `json:"grossPnl"`
	NetPnL          float64   `json:"netPnl"`
	// CostDrag is total costs as a fraction of gross profit; zero when the
	// gross result is not positive.
	CostDrag     float64   `json:"costDrag"`
	GrossWinRate float64   `json:"grossWinRate"`
	NetWinRate   float64   `json:"netWinRate"`
	GrossSharpe  float64   `json:"grossSharpe"`
	NetSharpe    float64   `json:"netSharpe"`
	NetReturns   []float64 `json:"-"`
	EdgeErased   bool      `json:"edgeErased"`
}

// AnalyzeTransactionCosts applies the cost model to every trade and
// recomputes P&L, win rate and Sharpe net of costs.
func AnalyzeTransactionCosts(trades []models.TradeRecord, model CostModel) CostAnalysis {
	res := CostAnalysis{
		Model:       model,
		TotalTrades: len(trades),
		NetReturns:  make([]float64, len(trades)),
	}

	totalCommission := decimal.Zero
	totalSlippage := decimal.Zero
	gross := decimal.Zero
	net := decimal.Zero
	grossReturns := make([]float64, len(trades))

	for i, t := range trades {
		qty := decimal.NewFromFloat(t.Quantity)
		if qty.IsZero() {
			qty = decimal.NewFromInt(1)
		}
		entryNotional := decimal.NewFromFloat(t.EntryPrice).Mul(qty)
		exitNotional := decimal.NewFromFloat(t.ExitPrice).Mul(qty)

		commission := model.commission(entryNotional).Add(model.commission(exitNotional))
		slippage := model.slippage(entryNotional).Add(model.slippage(exitNotional))

		pnl := decimal.NewFromFloat(t.PnL)
		netPnL := pnl.Sub(commission).Sub(slippage)

		totalCommission = totalCommission.Add(commission)
		totalSlippage = totalSlippage.Add(slippage)
		gross = gross.Add(pnl)
		net = net.Add(netPnL)

		grossReturns[i] = t.Return()
		if entryNotional.IsPositive() {
			res.NetReturns[i] = netPnL.Div(entryNotional).InexactFloat64()
		}
	}

	costs := totalCommission.Add(totalSlippage)
	res.TotalCommission = totalCommission.InexactFloat64()
	res.TotalSlippage = totalSlippage.InexactFloat64()
	res.TotalCosts = costs.InexactFloat64()
	res.GrossPnL = gross.InexactFloat64()
	res.NetPnL = net.InexactFloat64()
	if len(trades) > 0 {
		res.CostPerTrade = costs.Div(decimal.NewFromInt(int64(len(trades)))).InexactFloat64()
	}
	if gross.IsPositive() {
		res.CostDrag = costs.Div(gross).InexactFloat64()
	}

	res.GrossWinRate = stats.WinRate(grossReturns)
	res.NetWinRate = stats.WinRate(res.NetReturns)
	res.GrossSharpe = stats.SharpeRatio(grossReturns, 0)
	res.NetSharpe = stats.SharpeRatio(res.NetReturns, 0)
	res.EdgeErased = gross.IsPositive() && !net.IsPositive()
	return res
}

func (m CostModel) commission(notional decimal.Decimal) decimal.Decimal {
	c := decimal.NewFromFloat(m.FixedCommission).
		Add(notional.Mul(decimal.NewFromFloat(m.PercentCommission)))
	if floor := decimal.NewFromFloat(m.MinCommission); c.LessThan(floor) {
		c = floor
	}
	if m.MaxCommission > 0 {
		c = decimal.Min(c, decimal.NewFromFloat(m.MaxCommission))
	}
	return c
}

func (m CostModel) slippage(notional decimal.Decimal) decimal.Decimal {
	return notional.Mul(decimal.NewFromFloat(m.SlippageBps)).Div(bpsDivisor)
}
