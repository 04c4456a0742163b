package dashboard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"nexus_terminal/internal/advisory"
	"nexus_terminal/internal/models"
	"nexus_terminal/internal/telegram"
)

const notifyTimeout = 10 * time.Second

// Notifier delivers trade and signal messages to an operator chat.
type Notifier interface {
	Enabled() bool
	Notify(ctx context.Context, text string) error
	SendInteractive(ctx context.Context, text string, buttons []telegram.Button) error
}

func (c *Controller) notifier() Notifier {
	n := c.deps.Notifier
	if n == nil || !n.Enabled() {
		return nil
	}
	return n
}

// announceTrade sends the execution in the background. The caller's
// cancellation does not abort the send.
func (c *Controller) announceTrade(ctx context.Context, pos models.Position) {
	n := c.notifier()
	if n == nil {
		return
	}
	msg := FormatTrade(pos)
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()
		if err := n.Notify(ctx, msg); err != nil {
			c.log.Warn().Err(err).Msg("Trade notification failed")
		}
	}()
}

// announceSignal sends a settled signal with an execute button bound to
// its generation.
func (c *Controller) announceSignal(st advisory.State) {
	n := c.notifier()
	if n == nil {
		return
	}
	msg := FormatSignal(st)
	var buttons []telegram.Button
	if _, ok := st.Signal.Side(); ok {
		buttons = []telegram.Button{
			{Text: "✅ EXECUTE", CallbackData: fmt.Sprintf("%s%d", callbackExecute, st.Generation)},
			{Text: "❌ DISMISS", CallbackData: fmt.Sprintf("%s%d", callbackDismiss, st.Generation)},
		}
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		var err error
		if len(buttons) > 0 {
			err = n.SendInteractive(ctx, msg, buttons)
		} else {
			err = n.Notify(ctx, msg)
		}
		if err != nil {
			c.log.Warn().Err(err).Msg("Signal notification failed")
		}
	}()
}

// FormatTrade renders an executed position as a Markdown message.
func FormatTrade(pos models.Position) string {
	sym := models.CurrencySymbols[pos.Currency]
	return fmt.Sprintf("🟢 *%s %s*\nSize: `%s` @ `%s%s`\nCost: `%s%s`\nID: `%s`",
		pos.Side, pos.Asset,
		pos.Size.String(), sym, pos.EntryPrice.StringFixed(2),
		sym, pos.Cost().StringFixed(2),
		pos.ID)
}

// FormatSignal renders a settled advisory as a Markdown message.
func FormatSignal(st advisory.State) string {
	sig := st.Signal
	var sb strings.Builder
	fmt.Fprintf(&sb, "📡 *%s %s* (%.0f%% confidence, %s)\n", sig.Action, sig.Asset, sig.Confidence*100, sig.Timeframe)
	fmt.Fprintf(&sb, "Entry `%s` | TP1 `%s` | TP2 `%s` | SL `%s`\n",
		sig.EntryPrice.StringFixed(2), sig.TakeProfit1.StringFixed(2), sig.TakeProfit2.StringFixed(2), sig.StopLoss.StringFixed(2))
	fmt.Fprintf(&sb, "Size `%s` | RSI `%.1f`\n", sig.PositionSize.String(), sig.RSI)
	if st.Phase == advisory.PhaseDegraded {
		fmt.Fprintf(&sb, "⚠️ Fallback signal (%s)\n", st.Reason)
	}
	if sig.Verdict != "" {
		sb.WriteString(telegram.EscapeMarkdown(sig.Verdict))
	}
	return strings.TrimRight(sb.String(), "\n")
}
