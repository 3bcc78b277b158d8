package alerts

import (
	"fmt"
	"strings"

	"basis-sim/internal/engine"
)

// Message renders the alert text for a snapshot. Only position changes,
// funding settlements and feed health transitions are worth a message; ticks
// return false. A feed flip that lost the cause to a position or funding
// change is appended to that message.
func Message(s engine.Snapshot) (string, bool) {
	var b strings.Builder
	switch s.Cause {
	case engine.CauseEnter:
		fmt.Fprintf(&b, "[%s] ENTER\n", s.Symbol)
		if s.Position != nil {
			fmt.Fprintf(&b, "qty %s spot %s perp %s\n",
				s.Position.Quantity.StringFixed(4),
				s.Position.EntrySpotPrice.String(),
				s.Position.EntryPerpPrice.String())
		}
		if s.HasBasis {
			fmt.Fprintf(&b, "basis %s%%\n", s.BasisPct.StringFixed(4))
		}
		if s.HasLiq {
			fmt.Fprintf(&b, "liq %s (%s%% away)\n", s.LiqPrice.StringFixed(6), s.LiqDistancePct.StringFixed(2))
		}
	case engine.CauseExit:
		fmt.Fprintf(&b, "[%s] EXIT\n", s.Symbol)
		if t := s.ClosedTrade; t != nil {
			fmt.Fprintf(&b, "reason %s\n", t.Reason)
			fmt.Fprintf(&b, "gross %s fees %s slippage %s funding %s\n",
				t.Gross.StringFixed(4), t.Fees.StringFixed(4), t.Slippage.StringFixed(4), t.Funding.StringFixed(4))
			fmt.Fprintf(&b, "net %s USDT\n", t.Net.StringFixed(4))
		}
		if s.Halted {
			b.WriteString("entries halted\n")
		}
	case engine.CauseFunding:
		fmt.Fprintf(&b, "[%s] FUNDING\n", s.Symbol)
		if s.LastAction != "" {
			b.WriteString(s.LastAction)
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "accrued total %s USDT\n", s.FundingAccruedTotal.StringFixed(4))
	case engine.CauseDegraded, engine.CauseRestored:
		writeFeedHealth(&b, s, s.Cause == engine.CauseDegraded)
	default:
		return "", false
	}
	if s.FeedChanged && s.Cause != engine.CauseDegraded && s.Cause != engine.CauseRestored {
		writeFeedHealth(&b, s, s.Degraded)
	}
	fmt.Fprintf(&b, "equity %s USDT balance %s USDT", s.Equity.StringFixed(4), s.Balance.StringFixed(4))
	return b.String(), true
}

func writeFeedHealth(b *strings.Builder, s engine.Snapshot, degraded bool) {
	if degraded {
		fmt.Fprintf(b, "[%s] feed degraded: spot fresh=%t perp fresh=%t\n", s.Symbol, s.Spot.Fresh, s.Perp.Fresh)
		return
	}
	fmt.Fprintf(b, "[%s] feed restored\n", s.Symbol)
}
