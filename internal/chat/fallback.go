package chat

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"tradeboard/internal/domain"
)

// demoMarker flags canned replies so the UI can show a fallback indicator.
const demoMarker = "\n\n(demo mode: generated locally, AI assistant unavailable)"

// defaultPrice anchors templates when no market snapshot is available.
var defaultPrice = decimal.NewFromInt(43500)

// fallbackReply computes a deterministic canned answer keyed on keyword
// matching in the user's message. The first matching rule wins; the same
// message with the same snapshot always yields the same text.
func fallbackReply(message string, snapshot *domain.Quote) string {
	lower := strings.ToLower(message)

	price := defaultPrice
	change := decimal.NewFromFloat(2.5)
	if snapshot != nil {
		price = snapshot.Price
		change = snapshot.Change24h
	}
	trend := "bullish"
	if change.IsNegative() {
		trend = "bearish"
	}
	support := price.Mul(decimal.NewFromFloat(0.95)).StringFixed(0)
	resistance := price.Mul(decimal.NewFromFloat(1.05)).StringFixed(0)

	switch {
	case containsAny(lower, "btc", "bitcoin"):
		return fmt.Sprintf(
			"Bitcoin analysis\n\nCurrent price: $%s\n24h change: %s%%\n\n"+
				"The %s sentiment suggests watching these levels:\n"+
				"- Support: $%s\n- Resistance: $%s\n\n"+
				"Always use proper risk management and consider dollar-cost averaging for long-term positions.%s",
			price.StringFixed(2), change.StringFixed(2), trend, support, resistance, demoMarker)

	case containsAny(lower, "eth", "ethereum"):
		return "Ethereum analysis\n\nETH remains a cornerstone of DeFi and smart-contract ecosystems.\n" +
			"- Fundamentals: strong development activity and L2 adoption\n" +
			"- Technical: watch the $3,000 support and $3,500 resistance areas\n" +
			"- Strategy: DCA for long-term exposure, monitor gas fees, consider staking yield\n\n" +
			"Past performance does not guarantee future results." + demoMarker

	case containsAny(lower, "strategy", "how to trade"):
		return "Trading strategy framework\n\n" +
			"1. Risk management: never risk more than 1-2% per trade, always use stop-losses\n" +
			"2. Technical analysis: support/resistance, moving averages (20/50/200), volume confirmation\n" +
			"3. Fundamentals: news flow, on-chain metrics, institutional activity\n" +
			"4. Psychology: stick to your plan, avoid FOMO, take profits systematically\n\n" +
			"Start with paper trading to test your approach." + demoMarker

	case containsAny(lower, "analysis", "technical"):
		return fmt.Sprintf(
			"Technical snapshot (price $%s, %s trend)\n\n"+
				"- Entry zone: around $%s\n- Invalidation: below $%s\n- Target: near $%s\n\n"+
				"Confirm with volume before acting; indicators lag price.%s",
			price.StringFixed(2), trend,
			price.Mul(decimal.NewFromFloat(0.98)).StringFixed(0),
			support,
			price.Mul(decimal.NewFromFloat(1.08)).StringFixed(0),
			demoMarker)

	case containsAny(lower, "risk", "management"):
		return "Risk management essentials\n\n" +
			"- Max 1-2% account risk per trade, sized to volatility\n" +
			"- Technical stops at key levels; never average down a losing trade\n" +
			"- Keep cash reserves and rebalance on a schedule\n\n" +
			"Preserve capital first, profits second." + demoMarker
	}

	return fmt.Sprintf(
		"Market overview\n\nCurrent reference price: $%s (%s%% over 24h), sentiment %s.\n\n"+
			"I can help with bitcoin or ethereum analysis, trading strategy, technical levels, "+
			"or risk management. What would you like to look at?%s",
		price.StringFixed(2), change.StringFixed(2), trend, demoMarker)
}

func containsAny(s string, keys ...string) bool {
	for _, k := range keys {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
