package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Currencies lists the settlement currencies in display order.
var Currencies = []CurrencyCode{USD, EUR, GBP, JPY, AUD}

// CurrencySymbols maps a currency to its display prefix.
var CurrencySymbols = map[CurrencyCode]string{
	USD: "$",
	EUR: "€",
	GBP: "£",
	JPY: "¥",
	AUD: "A$",
}

// InitialBalances is the demo funding every session starts with.
func InitialBalances() map[CurrencyCode]decimal.Decimal {
	return map[CurrencyCode]decimal.Decimal{
		USD: decimal.NewFromInt(100000),
		EUR: decimal.NewFromInt(92000),
		GBP: decimal.NewFromInt(79000),
		JPY: decimal.NewFromInt(15000000),
		AUD: decimal.NewFromInt(152000),
	}
}

// ParseCurrency accepts a case-insensitive currency code.
func ParseCurrency(s string) (CurrencyCode, bool) {
	c := CurrencyCode(strings.ToUpper(strings.TrimSpace(s)))
	_, ok := CurrencySymbols[c]
	return c, ok
}

// AssetClasses lists the advisory segments in display order.
var AssetClasses = []AssetClass{
	AssetClassCrypto,
	AssetClassForex,
	AssetClassCommodities,
	AssetClassMinerals,
	AssetClassBondsEquity,
}

var catalogue = map[AssetClass][]string{
	AssetClassCrypto:      {"BTC", "ETH", "SOL", "LINK"},
	AssetClassForex:       {"EUR/USD", "USD/JPY", "GBP/USD", "AUD/NZD"},
	AssetClassCommodities: {"GOLD", "SILVER", "BRENT CRUDE"},
	AssetClassMinerals:    {"LITHIUM", "COPPER", "NICKEL"},
	AssetClassBondsEquity: {"US10Y", "NVDA", "TSLA", "SPY"},
}

// Instruments returns the instruments of a class in catalogue order.
func Instruments(class AssetClass) []Instrument {
	symbols := catalogue[class]
	out := make([]Instrument, 0, len(symbols))
	for _, s := range symbols {
		out = append(out, Instrument{Symbol: s, AssetClass: class})
	}
	return out
}

// LookupInstrument finds a symbol in the catalogue.
func LookupInstrument(symbol string) (Instrument, bool) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	for _, class := range AssetClasses {
		for _, s := range catalogue[class] {
			if s == symbol {
				return Instrument{Symbol: s, AssetClass: class}, true
			}
		}
	}
	return Instrument{}, false
}

// ParseAssetClass accepts a case-insensitive asset class name.
func ParseAssetClass(s string) (AssetClass, bool) {
	for _, c := range AssetClasses {
		if strings.EqualFold(string(c), strings.TrimSpace(s)) {
			return c, true
		}
	}
	return "", false
}

// Dividends is the reference dividend table merged into equity signals.
var Dividends = map[string]Dividend{
	"NVDA": {Symbol: "NVDA", ExDate: "2026-03-05", PaymentDate: "2026-03-27", Amount: decimal.RequireFromString("0.04"), Yield: decimal.RequireFromString("0.02"), DeclarationDate: "2026-02-21"},
	"TSLA": {Symbol: "TSLA", ExDate: "2026-04-12", PaymentDate: "2026-05-01", Amount: decimal.Zero, Yield: decimal.Zero, DeclarationDate: "2026-04-01"},
	"SPY":  {Symbol: "SPY", ExDate: "2026-03-15", PaymentDate: "2026-04-30", Amount: decimal.RequireFromString("1.58"), Yield: decimal.RequireFromString("1.34"), DeclarationDate: "2026-03-01"},
}

// Headlines is the rotating alpha news stream.
var Headlines = []string{
	"FRED: US Core Inflation trending below 2.8% targets.",
	"GLASSNODE: Dormant whale supply (7y+) hits 24-month high.",
	"POLYGON: Institutional liquidity in Lithium futures up 14% WoW.",
	"ALPHA VANTAGE: EUR/USD RSI showing bearish divergence on H4.",
	"NEXUS: Zero-Gamma level for BTC options shifts to $72k.",
}

// Tab is a dashboard navigation target.
type Tab string

const (
	TabMarketMaps       Tab = "MARKET_MAPS"
	TabDerivatives      Tab = "DERIVATIVES"
	TabMinerScreener    Tab = "MINER_SCREENER"
	TabETFTracker       Tab = "ETF_TRACKER"
	TabGeopoliticalRisk Tab = "GEOPOLITICAL_RISK"
	TabTacticalAdvisory Tab = "TACTICAL_ADVISORY"
	TabStrategyLab      Tab = "STRATEGY_LAB"
	TabSettings         Tab = "SETTINGS"
)

var tabLabels = map[Tab]string{
	TabMarketMaps:       "Market Maps",
	TabTacticalAdvisory: "Tactical Advisory",
	TabStrategyLab:      "Strategy Lab",
	TabDerivatives:      "Derivatives & Flow",
	TabMinerScreener:    "AI Infrastructure",
	TabETFTracker:       "ETF Dominance",
	TabGeopoliticalRisk: "Geopolitical Risk",
}

// Label is the navigation name, used as the chat context label.
// Tabs without a navigation entry fall back to "General Dashboard".
func (t Tab) Label() string {
	if l, ok := tabLabels[t]; ok {
		return l
	}
	return "General Dashboard"
}

// ParseTab accepts a tab identifier.
func ParseTab(s string) (Tab, bool) {
	t := Tab(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case TabMarketMaps, TabDerivatives, TabMinerScreener, TabETFTracker,
		TabGeopoliticalRisk, TabTacticalAdvisory, TabStrategyLab, TabSettings:
		return t, true
	}
	return "", false
}
