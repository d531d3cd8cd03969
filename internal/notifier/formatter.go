package notifier

import (
	"fmt"
	"strings"

	"LovelyStaking/internal/model"

	"github.com/holiman/uint256"
)

// Formatter renders ledger state as Telegram HTML. Amounts are shown in
// whole tokens.
type Formatter struct {
	Decimals uint8
	Symbol   string
}

func (f Formatter) amount(v uint256.Int) string {
	s := model.FormatTokens(v, f.Decimals)
	if f.Symbol != "" {
		s += " " + f.Symbol
	}
	return s
}

func poolLabel(p *model.Pool) string {
	if p.Flexible() {
		return "flexible"
	}
	return fmt.Sprintf("%dd lock", p.DurationDays)
}

func apyPercent(bps uint64) string {
	return fmt.Sprintf("%d.%02d%%", bps/100, bps%100)
}

// FormatFundStatus formats the reward fund and staking totals.
func (f Formatter) FormatFundStatus(sum *model.Summary) string {
	var b strings.Builder
	b.WriteString("📦 <b>Reward fund</b>\n\n")
	b.WriteString(fmt.Sprintf("Fund: %s\n", f.amount(sum.RewardFund)))
	b.WriteString(fmt.Sprintf("Total staked: %s\n", f.amount(sum.TotalStaked)))
	b.WriteString(fmt.Sprintf("Pools: %d\n", len(sum.Pools)))
	b.WriteString(fmt.Sprintf("Updated: %s\n", sum.UpdatedAt.UTC().Format("2006-01-02 15:04")))
	return b.String()
}

// FormatPoolReport formats the periodic per-pool report.
func (f Formatter) FormatPoolReport(sum *model.Summary) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📊 <b>Staking report</b> | %s\n\n", sum.UpdatedAt.UTC().Format("2006-01-02")))
	for i := range sum.Pools {
		p := &sum.Pools[i]
		b.WriteString(fmt.Sprintf("Pool %d (%s, APY %s): %s\n",
			p.ID, poolLabel(p), apyPercent(p.APY), f.amount(p.TotalStaked)))
	}
	b.WriteString("  ─────────────────\n")
	b.WriteString(fmt.Sprintf("  Total staked: %s\n", f.amount(sum.TotalStaked)))
	b.WriteString(fmt.Sprintf("  Reward fund: %s\n", f.amount(sum.RewardFund)))
	return b.String()
}

// FormatDeferredAlert formats a settlement the fund could not cover.
func (f Formatter) FormatDeferredAlert(evt *model.Event) string {
	var b strings.Builder
	b.WriteString("⚠️ <b>Rewards deferred</b>\n\n")
	b.WriteString(fmt.Sprintf("Account: <code>%s</code>\n", evt.Account.Hex()))
	b.WriteString(fmt.Sprintf("Pool %d, slot %d\n", evt.PoolID, evt.Slot))
	b.WriteString(fmt.Sprintf("Owed: %s\n", f.amount(evt.Amount)))
	b.WriteString("\nThe reward fund needs replenishing.")
	return b.String()
}

// FormatLowFund formats the low-fund warning.
func (f Formatter) FormatLowFund(fund, threshold uint256.Int) string {
	return fmt.Sprintf("🔻 <b>Reward fund low</b>\n\nFund: %s\nThreshold: %s\n",
		f.amount(fund), f.amount(threshold))
}

// FormatEvents formats recent ledger events, newest first.
func (f Formatter) FormatEvents(events []model.Event) string {
	if len(events) == 0 {
		return "No events recorded yet."
	}
	var b strings.Builder
	b.WriteString("🧾 <b>Recent events</b>\n\n")
	for i := range events {
		e := &events[i]
		b.WriteString(fmt.Sprintf("%s %s %s",
			e.Timestamp.UTC().Format("01-02 15:04"), e.Kind, shortAddress(e.Account.Hex())))
		switch e.Kind {
		case model.EventFundReplenished, model.EventFundRescued:
			b.WriteString(fmt.Sprintf(" %s\n", f.amount(e.Amount)))
		case model.EventOwnershipTransferred:
			b.WriteString("\n")
		default:
			b.WriteString(fmt.Sprintf(" p%d/s%d %s\n", e.PoolID, e.Slot, f.amount(e.Amount)))
		}
	}
	return b.String()
}

func shortAddress(hex string) string {
	if len(hex) <= 12 {
		return hex
	}
	return hex[:6] + "…" + hex[len(hex)-4:]
}
