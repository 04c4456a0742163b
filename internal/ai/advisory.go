package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"nexus_terminal/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

// wireSignal mirrors the response schema. Pointers distinguish a missing
// field from a zero value; every field is required.
type wireSignal struct {
	Asset        *string  `json:"asset" validate:"required"`
	Type         *string  `json:"type" validate:"required,oneof=BUY SELL HOLD"`
	Confidence   *float64 `json:"confidence" validate:"required,gte=0,lte=1"`
	Entry        *float64 `json:"entry" validate:"required,gt=0"`
	TP1          *float64 `json:"tp1" validate:"required,gte=0"`
	TP2          *float64 `json:"tp2" validate:"required,gte=0"`
	SL           *float64 `json:"sl" validate:"required,gte=0"`
	LotSize      *float64 `json:"lotSize" validate:"required,gte=0"`
	RSI          *float64 `json:"rsi" validate:"required"`
	Timeframe    *string  `json:"timeframe" validate:"required"`
	Rationale    *string  `json:"rationale" validate:"required"`
	FundingRate  *float64 `json:"fundingRate" validate:"required"`
	GammaPivot   *string  `json:"gammaPivot" validate:"required"`
	DeltaSkew    *float64 `json:"deltaSkew" validate:"required"`
	ETFNetFlow   *string  `json:"etfNetFlow" validate:"required"`
	NexusVerdict *string  `json:"nexusVerdict" validate:"required"`
	HedgeActive  *bool    `json:"hedgeActive" validate:"required"`
}

var advisorySchema = map[string]interface{}{
	"type": "OBJECT",
	"properties": map[string]interface{}{
		"asset":        map[string]string{"type": "STRING"},
		"type":         map[string]string{"type": "STRING"},
		"confidence":   map[string]string{"type": "NUMBER"},
		"entry":        map[string]string{"type": "NUMBER"},
		"tp1":          map[string]string{"type": "NUMBER"},
		"tp2":          map[string]string{"type": "NUMBER"},
		"sl":           map[string]string{"type": "NUMBER"},
		"lotSize":      map[string]string{"type": "NUMBER"},
		"rsi":          map[string]string{"type": "NUMBER"},
		"timeframe":    map[string]string{"type": "STRING"},
		"rationale":    map[string]string{"type": "STRING"},
		"fundingRate":  map[string]string{"type": "NUMBER"},
		"gammaPivot":   map[string]string{"type": "STRING"},
		"deltaSkew":    map[string]string{"type": "NUMBER"},
		"etfNetFlow":   map[string]string{"type": "STRING"},
		"nexusVerdict": map[string]string{"type": "STRING"},
		"hedgeActive":  map[string]string{"type": "BOOLEAN"},
	},
	"required": []string{
		"asset", "type", "confidence", "entry", "tp1", "tp2", "sl", "lotSize", "rsi",
		"timeframe", "rationale", "fundingRate", "gammaPivot", "deltaSkew", "etfNetFlow",
		"nexusVerdict", "hedgeActive",
	},
}

func advisoryPrompt(inst models.Instrument, div *models.Dividend) string {
	divCtx := "None"
	if div != nil {
		b, _ := json.Marshal(div)
		divCtx = string(b)
	}
	return fmt.Sprintf(`Generate a short-horizon trading signal for %s (%s).
Dividend data: %s
Support level for BTC is $89,200; set hedgeActive true only if BTC trades below it.
Return a single JSON object with the fields of the response schema; "asset" must be %q.`,
		inst.Symbol, inst.AssetClass, divCtx, inst.Symbol)
}

// GenerateAdvisory asks the model for a structured signal and validates it.
// Errors wrap ErrNetwork, ErrEmptyResponse or ErrMalformedResponse.
func (c *Client) GenerateAdvisory(ctx context.Context, inst models.Instrument) (*models.AdvisorySignal, error) {
	var div *models.Dividend
	if d, ok := models.Dividends[inst.Symbol]; ok {
		div = &d
	}

	payload := textPayload(advisoryPrompt(inst, div))
	payload["generationConfig"] = map[string]interface{}{
		"responseMimeType": "application/json",
		"responseSchema":   advisorySchema,
	}

	resp, err := c.generate(ctx, c.model, payload)
	if err != nil {
		return nil, err
	}

	text := stripFences(resp.text())
	if text == "" {
		return nil, ErrEmptyResponse
	}

	signal, err := parseSignal(text)
	if err != nil {
		c.log.Warn().Err(err).Str("asset", inst.Symbol).Msg("Rejected advisory payload")
		return nil, err
	}
	signal.Dividend = div
	return signal, nil
}

// parseSignal decodes and validates the model's JSON text.
func parseSignal(text string) (*models.AdvisorySignal, error) {
	var w wireSignal
	if err := json.Unmarshal([]byte(text), &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if w.Type != nil {
		t := strings.ToUpper(strings.TrimSpace(*w.Type))
		w.Type = &t
	}
	if err := validate.Struct(w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	return &models.AdvisorySignal{
		Asset:        *w.Asset,
		Action:       models.Action(*w.Type),
		Confidence:   *w.Confidence,
		EntryPrice:   decimal.NewFromFloat(*w.Entry),
		TakeProfit1:  decimal.NewFromFloat(*w.TP1),
		TakeProfit2:  decimal.NewFromFloat(*w.TP2),
		StopLoss:     decimal.NewFromFloat(*w.SL),
		PositionSize: decimal.NewFromFloat(*w.LotSize),
		RSI:          *w.RSI,
		Timeframe:    *w.Timeframe,
		Rationale:    *w.Rationale,
		FundingRate:  *w.FundingRate,
		GammaPivot:   *w.GammaPivot,
		DeltaSkew:    *w.DeltaSkew,
		ETFNetFlow:   *w.ETFNetFlow,
		Verdict:      *w.NexusVerdict,
		HedgeActive:  *w.HedgeActive,
	}, nil
}
