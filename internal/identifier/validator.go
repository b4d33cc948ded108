// Package identifier validates and normalizes the item identifiers submitted
// for resolution. Validation is pure and runs before any network work.
package identifier

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	MinBarcodeDigits = 8
	MaxBarcodeDigits = 14
	MaxLength        = 200
)

type Kind string

const (
	KindBarcode Kind = "barcode"
	KindName    Kind = "name"
)

// Identifier is a validated identifier. Query is what providers are asked
// for; Key is the cache key.
type Identifier struct {
	Raw   string `json:"raw"`
	Query string `json:"query"`
	Key   string `json:"key"`
	Kind  Kind   `json:"kind"`
}

func (id Identifier) IsBarcode() bool { return id.Kind == KindBarcode }

func (id Identifier) String() string { return id.Query }

type ValidationError struct {
	Input  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid identifier: %s", e.Reason)
}

func invalid(raw, format string, args ...any) error {
	return &ValidationError{Input: raw, Reason: fmt.Sprintf(format, args...)}
}

// Validate accepts 8-14 digit barcodes and non-empty free-text names.
// Full-width digits are folded to ASCII before classification.
func Validate(raw string) (Identifier, error) {
	if !utf8.ValidString(raw) {
		return Identifier{}, invalid(raw, "not valid UTF-8")
	}

	text := strings.Join(strings.Fields(norm.NFKC.String(raw)), " ")
	if text == "" {
		return Identifier{}, invalid(raw, "identifier is empty")
	}
	if n := utf8.RuneCountInString(text); n > MaxLength {
		return Identifier{}, invalid(raw, "identifier is %d characters, maximum is %d", n, MaxLength)
	}
	for _, r := range text {
		if unicode.IsControl(r) {
			return Identifier{}, invalid(raw, "identifier contains control characters")
		}
	}

	if isDigits(text) {
		if len(text) < MinBarcodeDigits || len(text) > MaxBarcodeDigits {
			return Identifier{}, invalid(raw, "barcode has %d digits, expected %d to %d",
				len(text), MinBarcodeDigits, MaxBarcodeDigits)
		}
		return Identifier{Raw: raw, Query: text, Key: text, Kind: KindBarcode}, nil
	}

	return Identifier{Raw: raw, Query: text, Key: strings.ToLower(text), Kind: KindName}, nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
