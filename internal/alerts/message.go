package alerts

import (
	"fmt"
	"strings"

	"lending-regime-advisor/internal/report"
)

// SuggestionChanged renders the notification sent when the suggestion flips.
func SuggestionChanged(prev string, r report.Report, actionable bool) string {
	var b strings.Builder
	if prev == "" {
		fmt.Fprintf(&b, "Lending regime suggestion: %s", r.Suggestion)
	} else {
		fmt.Fprintf(&b, "Lending regime suggestion changed: %s -> %s", prev, r.Suggestion)
	}
	fmt.Fprintf(&b, "\nconfidence %.3f | conservative %.3f | activity %.3f",
		r.Confidence, r.Scores.Conservative, r.Scores.Activity)
	fmt.Fprintf(&b, "\nrisk-off %.3f | on-chain %.3f | peg %.3f (worst %.2f bps)",
		r.Regime.RiskOff, r.Regime.OnchainActivity, r.Regime.PegStability, r.PegWorstDevBps)
	if !actionable {
		b.WriteString("\nbelow confidence threshold, informational only")
	}
	if r.Attestation != "" {
		fmt.Fprintf(&b, "\nattestation %s", r.Attestation)
	}
	return b.String()
}
