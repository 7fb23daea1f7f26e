// Package attest produces the integer-scaled record an on-chain oracle stores
// for a recommendation, and its keccak256 digest.
package attest

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"time"

	"lending-regime-advisor/internal/model"
	"lending-regime-advisor/internal/report"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrNegative marks a report value that cannot be stored as an unsigned integer.
var ErrNegative = errors.New("negative attested value")

// Scale applied to confidence and scores; 500 means 0.5.
const Scale = 1000

type Record struct {
	Suggestion        string
	ConfidenceMilli   int64
	ConservativeMilli int64
	ActivityMilli     int64
	TimestampUnix     int64
	SourceURL         string
}

// FromReport scales a report into its record. The oracle stores the scaled
// values as unsigned integers, so a negative confidence or score is rejected
// with ErrNegative.
func FromReport(r report.Report) (Record, error) {
	if r.Suggestion == "" {
		return Record{}, errors.New("report suggestion is required")
	}
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"confidence", r.Confidence},
		{"scores.conservative", r.Scores.Conservative},
		{"scores.activity", r.Scores.Activity},
	} {
		if f.v < 0 {
			return Record{}, fmt.Errorf("%s is %v: %w", f.name, f.v, ErrNegative)
		}
	}
	at, err := r.ComputedAt()
	if err != nil {
		return Record{}, err
	}
	return Record{
		Suggestion:        string(r.Suggestion),
		ConfidenceMilli:   scaled(r.Confidence),
		ConservativeMilli: scaled(r.Scores.Conservative),
		ActivityMilli:     scaled(r.Scores.Activity),
		TimestampUnix:     at.Unix(),
		SourceURL:         r.SourceAPI,
	}, nil
}

func scaled(v float64) int64 {
	return int64(math.Round(v * Scale))
}

// Encode writes the record as a msgpack map with a fixed key order.
func Encode(rec Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := enc.EncodeMapLen(6); err != nil {
		return nil, err
	}
	if err := encodeString(enc, "suggestion", rec.Suggestion); err != nil {
		return nil, err
	}
	if err := encodeInt(enc, "confidence", rec.ConfidenceMilli); err != nil {
		return nil, err
	}
	if err := encodeInt(enc, "conservativeScore", rec.ConservativeMilli); err != nil {
		return nil, err
	}
	if err := encodeInt(enc, "activityScore", rec.ActivityMilli); err != nil {
		return nil, err
	}
	if err := encodeInt(enc, "timestamp", rec.TimestampUnix); err != nil {
		return nil, err
	}
	if err := encodeString(enc, "source", rec.SourceURL); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeString(enc *msgpack.Encoder, key, val string) error {
	if err := enc.EncodeString(key); err != nil {
		return err
	}
	return enc.EncodeString(val)
}

func encodeInt(enc *msgpack.Encoder, key string, val int64) error {
	if err := enc.EncodeString(key); err != nil {
		return err
	}
	return enc.EncodeInt(val)
}

func Hash(rec Record) (common.Hash, error) {
	payload, err := Encode(rec)
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(payload), nil
}

// Digest returns the keccak256 digest of a report's record. Its Hex form is
// the published attestation and its bytes are what a Signer signs.
func Digest(r report.Report) (common.Hash, error) {
	rec, err := FromReport(r)
	if err != nil {
		return common.Hash{}, err
	}
	return Hash(rec)
}

// ShouldFollow reports whether a report is decisive enough to act on.
func ShouldFollow(r report.Report, minConfidence float64) bool {
	if r.Suggestion == model.SuggestionTie || r.Suggestion == "" {
		return false
	}
	return r.Confidence >= minConfidence
}

// IsFresh reports whether the report was computed within maxAge of now.
// A zero maxAge disables the check.
func IsFresh(r report.Report, now time.Time, maxAge time.Duration) bool {
	if maxAge <= 0 {
		return true
	}
	at, err := r.ComputedAt()
	if err != nil {
		return false
	}
	return now.Sub(at) <= maxAge
}
