package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"nexus_terminal/internal/ai"
	"nexus_terminal/internal/dashboard"
	"nexus_terminal/internal/models"
	"nexus_terminal/internal/portfolio"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// handleHealth returns liveness
// GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": s.version})
}

// handleState returns the full dashboard snapshot
// GET /api/state
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.dash.Snapshot())
}

// handleSelectTab switches the navigation tab
// PUT /api/tab {"tab": "TACTICAL_ADVISORY"}
func (s *Server) handleSelectTab(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tab string `json:"tab"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	tab, ok := models.ParseTab(req.Tab)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "unknown tab")
		return
	}
	if err := s.dash.SelectTab(tab); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, s.dash.Snapshot())
}

// handleSelectCurrency switches the settlement currency
// PUT /api/currency {"currency": "EUR"}
func (s *Server) handleSelectCurrency(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Currency string `json:"currency"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	code, ok := models.ParseCurrency(req.Currency)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "unknown currency")
		return
	}
	if err := s.dash.SelectCurrency(code); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, s.dash.Snapshot())
}

// handleRequestAdvisory starts an advisory request. symbol wins over
// asset_class; with neither the current instrument is refreshed.
// POST /api/advisory {"asset_class": "Forex"} | {"symbol": "ETH"} | {}
func (s *Server) handleRequestAdvisory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AssetClass string `json:"asset_class"`
		Symbol     string `json:"symbol"`
	}
	if r.ContentLength != 0 && !s.decode(w, r, &req) {
		return
	}

	var (
		gen uint64
		err error
	)
	switch {
	case strings.TrimSpace(req.Symbol) != "":
		gen, err = s.dash.SelectInstrument(req.Symbol)
	case strings.TrimSpace(req.AssetClass) != "":
		class, ok := models.ParseAssetClass(req.AssetClass)
		if !ok {
			s.writeError(w, http.StatusBadRequest, "unknown asset class")
			return
		}
		gen, err = s.dash.SelectAssetClass(class)
	default:
		s.dash.Start()
		gen = s.dash.Snapshot().Advisory.Generation
	}
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.writeJSON(w, http.StatusAccepted, map[string]interface{}{"generation": gen})
}

type tradeRequest struct {
	Asset string          `json:"asset"`
	Side  string          `json:"side"`
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
}

// handleExecute executes a manual trade in the selected currency
// POST /api/trades {"asset": "BTC", "side": "BUY", "price": "91240", "size": "0.5"}
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Asset) == "" {
		s.writeError(w, http.StatusBadRequest, "asset is required")
		return
	}

	side := models.Side(strings.ToUpper(strings.TrimSpace(req.Side)))
	pos, err := s.dash.Execute(r.Context(), strings.ToUpper(strings.TrimSpace(req.Asset)), side, req.Price, req.Size)
	if err != nil {
		s.writeTradeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, pos)
}

// handleExecuteSignal executes the current settled signal
// POST /api/trades/signal
func (s *Server) handleExecuteSignal(w http.ResponseWriter, r *http.Request) {
	pos, err := s.dash.ExecuteSignal(r.Context())
	if err != nil {
		s.writeTradeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, pos)
}

// handlePortfolio returns balances and positions
// GET /api/portfolio
func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.dash.Portfolio())
}

// handleAsk sends a chat question
// POST /api/chat {"message": "..."}
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	reply, err := s.dash.Ask(r.Context(), req.Message)
	switch {
	case errors.Is(err, dashboard.ErrEmptyQuestion):
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, dashboard.ErrChatUnavailable):
		s.writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

// handleTranscript returns the chat history
// GET /api/chat
func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.dash.Transcript())
}

// handleInsight runs a canned analysis
// GET /api/insights/{topic}
func (s *Server) handleInsight(w http.ResponseWriter, r *http.Request) {
	topic, ok := ai.ParseTopic(chi.URLParam(r, "topic"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown topic")
		return
	}
	in, err := s.dash.Insight(r.Context(), topic)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, in)
}

// Helper methods

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// writeTradeError maps ledger and signal errors to status codes.
func (s *Server) writeTradeError(w http.ResponseWriter, err error) {
	var funds *portfolio.InsufficientFundsError
	switch {
	case errors.As(err, &funds):
		s.writeJSON(w, http.StatusConflict, map[string]string{
			"error":     err.Error(),
			"currency":  string(funds.Currency),
			"required":  funds.Required.String(),
			"available": funds.Available.String(),
		})
	case errors.Is(err, dashboard.ErrNoSignal),
		errors.Is(err, dashboard.ErrNotActionable),
		errors.Is(err, dashboard.ErrStaleSignal):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, portfolio.ErrInvalidSide),
		errors.Is(err, portfolio.ErrInvalidPrice),
		errors.Is(err, portfolio.ErrInvalidSize),
		errors.Is(err, portfolio.ErrUnknownCurrency):
		s.writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Error().Err(err).Msg("Trade failed")
		s.writeError(w, http.StatusInternalServerError, "trade failed")
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
