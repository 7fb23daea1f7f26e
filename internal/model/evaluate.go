package model

// Evaluate runs the full pipeline for one snapshot. It performs no I/O and is
// safe to call concurrently. Either a complete Result or an ErrSchema-wrapped
// error is returned.
func Evaluate(snap Snapshot, p Params) (Result, error) {
	regime, err := DeriveRegime(snap, p)
	if err != nil {
		return Result{}, err
	}
	scores := Score(regime, p)
	return Result{
		Regime:         regime,
		Scores:         scores,
		Recommendation: Decide(scores, p),
		Explanation:    Explain(regime, snap, p),
	}, nil
}
