package state

import (
	"context"
	"encoding/json"
	"strings"
)

const LastSuggestionKey = "advisor:last_suggestion"

// LastSuggestion is what the daemon last announced; it survives restarts so a
// restart does not re-alert on an unchanged suggestion.
type LastSuggestion struct {
	Suggestion  string  `json:"suggestion"`
	Confidence  float64 `json:"confidence"`
	Attestation string  `json:"attestation,omitempty"`
	UpdatedAtMS int64   `json:"updated_at_ms"`
}

func LoadLastSuggestion(ctx context.Context, store Store) (LastSuggestion, bool, error) {
	if store == nil {
		return LastSuggestion{}, false, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	raw, ok, err := store.Get(ctx, LastSuggestionKey)
	if err != nil {
		return LastSuggestion{}, false, err
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return LastSuggestion{}, false, nil
	}
	var last LastSuggestion
	if err := json.Unmarshal([]byte(raw), &last); err != nil {
		return LastSuggestion{}, false, err
	}
	return last, true, nil
}

func SaveLastSuggestion(ctx context.Context, store Store, last LastSuggestion) error {
	if store == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	payload, err := json.Marshal(last)
	if err != nil {
		return err
	}
	return store.Set(ctx, LastSuggestionKey, string(payload))
}
