package providers

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIngredients(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{"", nil},
		{"water", []string{"water"}},
		{"Sugar, cocoa butter; milk and salt.", []string{"Sugar", "cocoa butter", "milk", "salt"}},
		{"(water), [sugar], {salt}", []string{"water", "sugar", "salt"}},
		{"*soy*, _milk_", []string{"soy", "milk"}},
		{" , ;, ", nil},
		{"Sand, Candy", []string{"Sand", "Candy"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseIngredients(tt.raw), "ParseIngredients(%q)", tt.raw)
	}
}

func TestNumberUnmarshal(t *testing.T) {
	tests := []struct {
		in    string
		valid bool
		value float64
	}{
		{`12.5`, true, 12.5},
		{`"7"`, true, 7},
		{`"3,2"`, true, 3.2},
		{`null`, false, 0},
		{`""`, false, 0},
		{`"traces"`, false, 0},
		{`"NaN"`, false, 0},
		{`"Inf"`, false, 0},
		{`"-Infinity"`, false, 0},
		{`"1e400"`, false, 0},
	}
	for _, tt := range tests {
		var n number
		require.NoError(t, json.Unmarshal([]byte(tt.in), &n), tt.in)
		assert.Equal(t, tt.valid, n.Valid, tt.in)
		assert.Equal(t, tt.value, n.Value, tt.in)
	}

	var n number
	assert.Error(t, json.Unmarshal([]byte(`true`), &n))
}

func TestNumberScaled(t *testing.T) {
	assert.Nil(t, number{}.scaled(2))
	v := number{Value: 1, Valid: true}.scaled(1.0 / 3)
	require.NotNil(t, v)
	assert.Equal(t, 0.33, *v)

	assert.Nil(t, number{Value: math.MaxFloat64, Valid: true}.scaled(10))
}

func TestHeaderMapSkipsEmpty(t *testing.T) {
	assert.Equal(t, map[string]string{"a": "1"}, headerMap("a", "1", "b", "", "c"))
}
