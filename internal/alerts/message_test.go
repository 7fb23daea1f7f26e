package alerts

import (
	"strings"
	"testing"

	"lending-regime-advisor/internal/model"
	"lending-regime-advisor/internal/report"
)

func TestSuggestionChangedMessage(t *testing.T) {
	r := report.Report{
		Recommendation: model.Recommendation{
			Suggestion: model.SuggestionActivity,
			Confidence: 1,
			Scores:     model.Scores{Conservative: 0.445, Activity: 0.934},
		},
		Explanation: model.Explanation{
			PegWorstDevBps: 2,
			Regime:         model.Regime{RiskOff: 0.1, OnchainActivity: 0.929, PegStability: 0.96},
		},
		Attestation: "0xfeed",
	}
	msg := SuggestionChanged("CONSERVATIVE", r, true)
	if !strings.HasPrefix(msg, "Lending regime suggestion changed: CONSERVATIVE -> ACTIVITY") {
		t.Fatalf("unexpected headline: %q", msg)
	}
	if !strings.Contains(msg, "conservative 0.445 | activity 0.934") {
		t.Fatalf("expected scores in message: %q", msg)
	}
	if !strings.Contains(msg, "attestation 0xfeed") {
		t.Fatalf("expected attestation in message: %q", msg)
	}
	if strings.Contains(msg, "informational") {
		t.Fatalf("actionable message must not be marked informational")
	}

	first := SuggestionChanged("", r, false)
	if !strings.HasPrefix(first, "Lending regime suggestion: ACTIVITY") {
		t.Fatalf("unexpected first headline: %q", first)
	}
	if !strings.Contains(first, "informational only") {
		t.Fatalf("expected informational marker: %q", first)
	}
}
