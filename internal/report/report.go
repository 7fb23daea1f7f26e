package report

import (
	"time"

	"lending-regime-advisor/internal/model"
)

// Report is the published form of one evaluation.
type Report struct {
	model.Recommendation
	model.Explanation

	Timestamp      string `json:"timestamp"`
	SourceAPI      string `json:"source_api"`
	InputTimestamp string `json:"input_timestamp"`
	// Attestation is the keccak256 digest of the attested record, set by the daemon.
	Attestation string `json:"attestation,omitempty"`
	// Signature is the advisor key's signature over Attestation, when a key is configured.
	Signature string `json:"signature,omitempty"`
}

// Build assembles a report from an evaluation result. now is rendered in UTC.
func Build(res model.Result, snap model.Snapshot, sourceURL string, now time.Time) Report {
	return Report{
		Recommendation: res.Recommendation,
		Explanation:    res.Explanation,
		Timestamp:      now.UTC().Format(time.RFC3339Nano),
		SourceAPI:      sourceURL,
		InputTimestamp: snap.Timestamp,
	}
}

// ComputedAt parses the report timestamp back into a time.
func (r Report) ComputedAt() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, r.Timestamp)
}
