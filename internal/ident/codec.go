// Package ident handles activity identifiers: decimal integers of up to
// 19 digits that must survive every hop without precision loss. They are
// treated as opaque exact-precision text; no arithmetic is ever performed
// on them.
package ident

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// MaxDigits is the longest identifier accepted, matching the decimal
// width of an unsigned 64-bit integer class id.
const MaxDigits = 19

// InvalidIdentifierError reports a malformed or precision-risking id.
type InvalidIdentifierError struct {
	Input  string
	Reason string
}

func (e *InvalidIdentifierError) Error() string {
	return fmt.Sprintf("invalid identifier %q: %s", e.Input, e.Reason)
}

// Encode validates id and returns its wire representation. The wire form
// is the digit string itself: identifiers always travel as JSON strings,
// never as numbers.
func Encode(id string) (string, error) {
	return canonical(id)
}

// Decode validates a wire representation and returns the exact digit
// text. Decode(Encode(x)) == x for any digit string of up to 19 digits.
func Decode(wire string) (string, error) {
	return canonical(wire)
}

func canonical(s string) (string, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return "", &InvalidIdentifierError{Input: s, Reason: "empty"}
	}
	if len(trimmed) > MaxDigits {
		return "", &InvalidIdentifierError{Input: s, Reason: fmt.Sprintf("longer than %d digits", MaxDigits)}
	}
	for _, r := range trimmed {
		if r < '0' || r > '9' {
			return "", &InvalidIdentifierError{Input: s, Reason: "contains non-digit characters"}
		}
	}
	return trimmed, nil
}

// NewID mints a fresh activity identifier from the given instant. The
// nanosecond clock yields a 19-digit value, which keeps generated ids in
// the same shape as server-issued ones.
func NewID(now time.Time) string {
	return strconv.FormatInt(now.UnixNano(), 10)
}

// idPattern locates activity id fields in a raw JSON payload. Both the
// quoted (correct) and bare-number (legacy) spellings occur upstream.
var idPattern = regexp.MustCompile(`"id"\s*:\s*"?(\d+)"?`)

// LastActivityID extracts the trailing activity id from the original
// textual payload. Extraction operates on the raw bytes, never on a
// structure already decoded through float64, because that decode has
// already truncated anything above 2^53.
func LastActivityID(raw []byte) (string, error) {
	matches := idPattern.FindAllSubmatch(raw, -1)
	if len(matches) == 0 {
		return "", &InvalidIdentifierError{Input: string(raw), Reason: "no id field found"}
	}
	return canonical(string(matches[len(matches)-1][1]))
}

// CheckRoundTrip re-serializes a decoded payload and compares the id
// digit runs against the original text. A mismatch means upstream
// precision loss has already happened; it is surfaced as a warning, not
// an error, because the damage predates this process.
func CheckRoundTrip(raw []byte, decoded any) bool {
	reserialized, err := json.Marshal(decoded)
	if err != nil {
		zap.L().Warn("ident: round-trip reserialize failed", zap.Error(err))
		return false
	}
	original := idRuns(raw)
	echoed := idRuns(reserialized)
	if len(original) != len(echoed) {
		zap.L().Warn("ident: round-trip id count mismatch",
			zap.Int("original", len(original)),
			zap.Int("reserialized", len(echoed)),
		)
		return false
	}
	for i := range original {
		if original[i] != echoed[i] {
			zap.L().Warn("ident: round-trip precision loss detected",
				zap.String("original", original[i]),
				zap.String("reserialized", echoed[i]),
			)
			return false
		}
	}
	return true
}

func idRuns(raw []byte) []string {
	matches := idPattern.FindAllSubmatch(raw, -1)
	runs := make([]string, 0, len(matches))
	for _, m := range matches {
		runs = append(runs, string(m[1]))
	}
	return runs
}
