package providers

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// number decodes a JSON number, a numeric string, or null/"" (absent).
// Open data sources are not consistent about which one they send. Strings
// that parse to NaN or an infinity are treated as absent.
type number struct {
	Value float64
	Valid bool
}

func (n *number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = number{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
		if s == "" {
			*n = number{}
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || !finite(v) {
			// Free-text values such as "traces" carry no number.
			*n = number{}
			return nil
		}
		*n = number{Value: v, Valid: true}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*n = number{Value: v, Valid: true}
	return nil
}

func (n number) ptr() *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Value
	return &v
}

// scaled returns the value multiplied by factor, or nil when absent or when
// the product is not finite.
func (n number) scaled(factor float64) *float64 {
	if !n.Valid {
		return nil
	}
	v := roundTo(n.Value*factor, 2)
	if !finite(v) {
		return nil
	}
	return &v
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func roundTo(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
