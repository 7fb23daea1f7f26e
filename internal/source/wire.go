package source

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"lending-regime-advisor/internal/model"
)

// DefaultStablecoins are the stablecoins whose peg is tracked when none are configured.
var DefaultStablecoins = []string{"usdt", "usdc"}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// wireNumber accepts a JSON number or a quoted decimal. The producer passes
// some upstream values through as strings, e.g. "105273842288.2296".
type wireNumber float64

func (n *wireNumber) UnmarshalJSON(data []byte) error {
	raw := bytes.TrimSpace(data)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("value %q is not a finite number", s)
		}
		*n = wireNumber(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	*n = wireNumber(v)
	return nil
}

type wireValue struct {
	Value *wireNumber `json:"value"`
}

type wireVolumes struct {
	CEX *wireNumber `json:"cex_24h_btc"`
	DEX *wireNumber `json:"dex_24h_btc"`
}

type wireStablecoin struct {
	Deviation *string `json:"deviation"`
}

type wireSnapshot struct {
	BTCDominance *wireValue                 `json:"btc_dominance"`
	DefiTVL      *wireValue                 `json:"defi_tvl"`
	Volumes      *wireVolumes               `json:"volumes"`
	Stablecoins  map[string]*wireStablecoin `json:"stablecoins"`
	Timestamp    json.RawMessage            `json:"timestamp"`
}

// ParseSnapshot decodes the data member of the metrics envelope. Any missing or
// mistyped required field is reported as model.ErrSchema.
func ParseSnapshot(data []byte, stablecoins []string) (model.Snapshot, error) {
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return model.Snapshot{}, fmt.Errorf("data missing: %w", model.ErrSchema)
	}
	var wire wireSnapshot
	if err := json.Unmarshal(data, &wire); err != nil {
		return model.Snapshot{}, fmt.Errorf("decode data: %v: %w", err, model.ErrSchema)
	}
	if len(stablecoins) == 0 {
		stablecoins = DefaultStablecoins
	}

	snap := model.Snapshot{Timestamp: rawString(wire.Timestamp)}
	var err error
	if snap.BTCDominancePct, err = requireValue(wire.BTCDominance, "btc_dominance.value"); err != nil {
		return model.Snapshot{}, err
	}
	if snap.DefiTVLUSD, err = requireValue(wire.DefiTVL, "defi_tvl.value"); err != nil {
		return model.Snapshot{}, err
	}
	if wire.Volumes == nil {
		return model.Snapshot{}, missing("volumes")
	}
	if wire.Volumes.CEX == nil {
		return model.Snapshot{}, missing("volumes.cex_24h_btc")
	}
	if wire.Volumes.DEX == nil {
		return model.Snapshot{}, missing("volumes.dex_24h_btc")
	}
	snap.CEXVolume24hBTC = float64(*wire.Volumes.CEX)
	snap.DEXVolume24hBTC = float64(*wire.Volumes.DEX)

	for _, symbol := range stablecoins {
		coin := wire.Stablecoins[symbol]
		if coin == nil || coin.Deviation == nil {
			return model.Snapshot{}, missing("stablecoins." + symbol + ".deviation")
		}
		snap.Stablecoins = append(snap.Stablecoins, model.PegQuote{Symbol: symbol, Deviation: *coin.Deviation})
	}
	return snap, nil
}

func requireValue(v *wireValue, name string) (float64, error) {
	if v == nil || v.Value == nil {
		return 0, missing(name)
	}
	return float64(*v.Value), nil
}

func missing(name string) error {
	return fmt.Errorf("%s missing: %w", name, model.ErrSchema)
}

func rawString(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(trimmed))
}
