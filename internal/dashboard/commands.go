package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"nexus_terminal/internal/advisory"
	"nexus_terminal/internal/ai"
	"nexus_terminal/internal/models"
	"nexus_terminal/internal/portfolio"
	"nexus_terminal/internal/telegram"
)

const (
	callbackExecute = "EXECUTE_SIGNAL_"
	callbackDismiss = "DISMISS_SIGNAL_"
)

type CommandDoc struct {
	Name        string
	Description string
	Example     string
}

var commandDocs = []CommandDoc{
	{"/status", "Selections, advisory phase and feed state", "/status"},
	{"/signal", "Request an advisory (current instrument if omitted)", "/signal ETH"},
	{"/class", "Switch asset class and request its first instrument", "/class Forex"},
	{"/execute", "Execute the current signal at the live price", "/execute"},
	{"/portfolio", "Balances and positions", "/portfolio"},
	{"/currency", "Switch settlement currency", "/currency EUR"},
	{"/price", "Latest feed price", "/price BTCUSDT"},
	{"/news", "Current headline", "/news"},
	{"/ask", "Ask Nexus Intelligence", "/ask funding rates?"},
	{"/insight", "Canned analysis: macro, pulse, geopolitical", "/insight pulse"},
}

// HandleCommand processes an inbound chat command and returns the reply.
func (c *Controller) HandleCommand(ctx context.Context, cmd string) string {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return ""
	}
	args := parts[1:]

	switch strings.ToLower(parts[0]) {
	case "/ping":
		return "Pong 🏓"
	case "/help":
		return c.getHelp()
	case "/status":
		return c.getStatus()
	case "/signal":
		return c.handleSignalCommand(args)
	case "/class":
		return c.handleClassCommand(args)
	case "/execute":
		pos, err := c.ExecuteSignal(ctx)
		if err != nil {
			return describeTradeError(err)
		}
		return FormatTrade(pos)
	case "/portfolio":
		return c.getPortfolio()
	case "/currency":
		if len(args) != 1 {
			return "Usage: /currency <USD|EUR|GBP|JPY|AUD>"
		}
		code, ok := models.ParseCurrency(args[0])
		if !ok || c.SelectCurrency(code) != nil {
			return fmt.Sprintf("⚠️ Unknown currency %q.", args[0])
		}
		return fmt.Sprintf("Settlement currency set to %s.", code)
	case "/price":
		return c.getPrice(args)
	case "/news":
		if c.deps.News == nil {
			return "News feed disabled."
		}
		_, h := c.deps.News.Current()
		return "📰 " + h
	case "/ask":
		if len(args) == 0 {
			return "Usage: /ask <question>"
		}
		reply, err := c.Ask(ctx, strings.Join(args, " "))
		if err != nil {
			return "⚠️ " + err.Error()
		}
		return telegram.EscapeMarkdown(reply)
	case "/insight":
		if len(args) != 1 {
			return "Usage: /insight <macro|pulse|geopolitical>"
		}
		topic, ok := ai.ParseTopic(args[0])
		if !ok {
			return fmt.Sprintf("⚠️ Unknown topic %q.", args[0])
		}
		in, err := c.Insight(ctx, topic)
		if err != nil {
			return "⚠️ " + err.Error()
		}
		return telegram.EscapeMarkdown(in.Text)
	default:
		return "Unknown command. Try /status, /signal, /execute, /portfolio or /help."
	}
}

// HandleCallback processes an inline button press.
func (c *Controller) HandleCallback(ctx context.Context, data string) string {
	switch {
	case strings.HasPrefix(data, callbackExecute):
		gen, err := strconv.ParseUint(strings.TrimPrefix(data, callbackExecute), 10, 64)
		if err != nil {
			return "⚠️ Invalid callback data."
		}
		pos, err := c.ExecuteSignalGeneration(ctx, gen)
		if err != nil {
			return describeTradeError(err)
		}
		return FormatTrade(pos)
	case strings.HasPrefix(data, callbackDismiss):
		return "❌ Signal dismissed."
	default:
		return "⚠️ Invalid callback data."
	}
}

func (c *Controller) getHelp() string {
	var sb strings.Builder
	sb.WriteString("🤖 *NEXUS TERMINAL COMMANDS*\n\n")
	for _, cmd := range commandDocs {
		sb.WriteString(fmt.Sprintf("🔹 *%s*\n%s\n`%s`\n\n", cmd.Name, cmd.Description, cmd.Example))
	}
	return sb.String()
}

func (c *Controller) getStatus() string {
	snap := c.Snapshot()
	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 *STATUS*\nTab: %s\nCurrency: %s\nInstrument: %s (%s)\n",
		snap.TabLabel, snap.Currency, snap.Instrument.Symbol, snap.AssetClass)

	adv := snap.Advisory
	switch adv.Phase {
	case advisory.PhaseInProgress:
		fmt.Fprintf(&sb, "Advisory: %s\n", adv.StageLabel)
	case advisory.PhaseResolved, advisory.PhaseDegraded:
		fmt.Fprintf(&sb, "Advisory: %s %s @ %s", adv.Signal.Action, adv.Signal.Asset, adv.Signal.EntryPrice.StringFixed(2))
		if adv.Phase == advisory.PhaseDegraded {
			fmt.Fprintf(&sb, " (fallback, %s)", adv.Reason)
		}
		sb.WriteString("\n")
	default:
		fmt.Fprintf(&sb, "Advisory: %s\n", adv.Phase)
	}
	if snap.LivePrice != nil {
		fmt.Fprintf(&sb, "Live: %s%s\n", snap.CurrencySymbol, snap.LivePrice.StringFixed(2))
	}
	if snap.Feed != nil {
		state := "live"
		if snap.Feed.Stale {
			state = "stale"
		}
		fmt.Fprintf(&sb, "Feed: %s (%s)\n", state, snap.Feed.Direction)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (c *Controller) handleSignalCommand(args []string) string {
	if len(args) == 0 {
		c.Start()
		return "🔄 Refreshing advisory..."
	}
	symbol := strings.Join(args, " ")
	if _, err := c.SelectInstrument(symbol); err != nil {
		return fmt.Sprintf("⚠️ Unknown instrument %q.", symbol)
	}
	return fmt.Sprintf("🔄 Requesting advisory for %s...", strings.ToUpper(symbol))
}

func (c *Controller) handleClassCommand(args []string) string {
	if len(args) == 0 {
		return "Usage: /class <Crypto|Forex|Commodities|Minerals|Bonds/Equity>"
	}
	class, ok := models.ParseAssetClass(strings.Join(args, " "))
	if !ok {
		return fmt.Sprintf("⚠️ Unknown asset class %q.", strings.Join(args, " "))
	}
	if _, err := c.SelectAssetClass(class); err != nil {
		return "⚠️ " + err.Error()
	}
	return fmt.Sprintf("🔄 Switched to %s.", class)
}

func (c *Controller) getPortfolio() string {
	snap := c.Portfolio()
	var sb strings.Builder
	sb.WriteString("💼 *PORTFOLIO*\n")

	for _, code := range models.Currencies {
		if bal, ok := snap.Balances[code]; ok {
			fmt.Fprintf(&sb, "%s `%s%s`\n", code, models.CurrencySymbols[code], bal.StringFixed(2))
		}
	}
	if len(snap.Positions) == 0 {
		sb.WriteString("\nNo positions.")
		return sb.String()
	}
	sb.WriteString("\n")
	for _, p := range snap.Positions {
		fmt.Fprintf(&sb, "%s %s %s @ %s%s\n", p.Side, p.Size.String(), p.Asset, models.CurrencySymbols[p.Currency], p.EntryPrice.StringFixed(2))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (c *Controller) getPrice(args []string) string {
	if c.deps.Feed == nil {
		return "Price feed disabled."
	}
	if len(args) > 0 {
		want := strings.ToUpper(args[0])
		p, ok := c.deps.Feed.Price(want)
		if !ok {
			return fmt.Sprintf("No price for %s.", want)
		}
		return fmt.Sprintf("%s: $%s", want, p.StringFixed(2))
	}

	feed := c.deps.Feed.Snapshot()
	if len(feed.Ticks) == 0 {
		return "No prices yet."
	}
	lines := make([]string, 0, len(feed.Ticks))
	for _, t := range feed.Ticks {
		lines = append(lines, fmt.Sprintf("%s: $%s", t.Symbol, t.Price.StringFixed(2)))
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n")
}

func describeTradeError(err error) string {
	var funds *portfolio.InsufficientFundsError
	switch {
	case errors.As(err, &funds):
		return fmt.Sprintf("⚠️ Insufficient %s: need %s, have %s.", funds.Currency, funds.Required.StringFixed(2), funds.Available.StringFixed(2))
	case errors.Is(err, ErrNoSignal):
		return "⚠️ No settled signal yet."
	case errors.Is(err, ErrNotActionable):
		return "⚠️ Signal is HOLD, nothing to execute."
	case errors.Is(err, ErrStaleSignal):
		return "⚠️ Signal expired, a newer advisory replaced it."
	default:
		return "⚠️ Trade failed: " + err.Error()
	}
}
