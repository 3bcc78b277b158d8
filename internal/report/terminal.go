package report

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"basis-sim/internal/engine"
	"basis-sim/internal/strategy"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	warning   = lipgloss.AdaptiveColor{Light: "#F25D94", Dark: "#F25D94"}

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("230")).
			Background(highlight).
			Padding(0, 1).
			Bold(true)

	labelStyle = lipgloss.NewStyle().Foreground(subtle).Width(18)
	goodStyle  = lipgloss.NewStyle().Foreground(special)
	badStyle   = lipgloss.NewStyle().Foreground(warning).Bold(true)
	panelStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(highlight).Padding(0, 1)
)

// Terminal redraws a dashboard for every snapshot.
type Terminal struct {
	out   io.Writer
	clear bool
}

func NewTerminal(out io.Writer, clear bool) *Terminal {
	return &Terminal{out: out, clear: clear}
}

func (t *Terminal) Name() string { return "terminal" }

func (t *Terminal) Report(_ context.Context, snap engine.Snapshot) error {
	var b strings.Builder
	if t.clear {
		b.WriteString("\033[H\033[2J")
	}
	b.WriteString(Render(snap))
	b.WriteByte('\n')
	_, err := io.WriteString(t.out, b.String())
	return err
}

// Render lays out one snapshot as a panel.
func Render(s engine.Snapshot) string {
	header := titleStyle.Render(fmt.Sprintf("%s basis sim", s.Symbol))
	if s.Degraded {
		header += " " + badStyle.Render("DEGRADED")
	}
	if s.Halted {
		header += " " + badStyle.Render("HALTED")
	}

	rows := []string{
		row("time", s.At.UTC().Format(time.RFC3339)),
		row("spot mid", quote(s.Spot)),
		row("perp mid", quote(s.Perp)),
		row("basis", optionalPct(s.BasisPct, s.HasBasis, 4)),
		row("state", stateText(s.State)),
	}
	if p := s.Position; p != nil {
		rows = append(rows,
			row("quantity", p.Quantity.StringFixed(4)),
			row("entry spot/perp", p.EntrySpotPrice.String()+" / "+p.EntryPerpPrice.String()),
			row("entry time", p.EntryTime.UTC().Format(time.RFC3339)),
		)
	}
	rows = append(rows,
		row("balance", usdt(s.Balance)),
		row("equity", usdt(s.Equity)),
		row("unrealized", signed(s.UnrealizedPnL)),
		row("realized", signed(s.RealizedPnLTotal)),
		row("fees paid", usdt(s.FeesPaidTotal)),
		row("funding", signed(s.FundingAccruedTotal)),
		row("funding rate", fundingText(s)),
		row("liquidation", liqText(s)),
		row("trades", fmt.Sprintf("%d", s.Trades)),
	)
	if s.LastAction != "" {
		rows = append(rows, row("last action", s.LastAction))
	}
	if s.Note != "" {
		rows = append(rows, row("note", badStyle.Render(s.Note)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, panelStyle.Render(strings.Join(rows, "\n")))
}

func row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), value)
}

func quote(q engine.QuoteView) string {
	if !q.Known {
		return "n/a"
	}
	text := q.Mid.String()
	if !q.Fresh {
		return badStyle.Render(text + " (stale)")
	}
	return text
}

func optionalPct(v decimal.Decimal, ok bool, places int32) string {
	if !ok {
		return "n/a"
	}
	return v.StringFixed(places) + "%"
}

func stateText(s strategy.State) string {
	if s == strategy.StateOpen {
		return goodStyle.Render(string(s))
	}
	return string(s)
}

func usdt(v decimal.Decimal) string {
	return v.StringFixed(4) + " USDT"
}

func signed(v decimal.Decimal) string {
	text := usdt(v)
	switch v.Sign() {
	case 1:
		return goodStyle.Render("+" + text)
	case -1:
		return badStyle.Render(text)
	default:
		return text
	}
}

func fundingText(s engine.Snapshot) string {
	if !s.HasFunding {
		return "n/a"
	}
	text := s.FundingRate.Mul(decimal.NewFromInt(100)).StringFixed(4) + "%"
	if !s.NextFundingAt.IsZero() {
		text += " next " + s.NextFundingAt.UTC().Format("15:04:05")
	}
	return text
}

func liqText(s engine.Snapshot) string {
	if !s.HasLiq {
		return "n/a"
	}
	text := fmt.Sprintf("%s (%s%% away)", s.LiqPrice.StringFixed(6), s.LiqDistancePct.StringFixed(2))
	if s.LiqAtRisk {
		return badStyle.Render(text + " AT RISK")
	}
	return text
}
