package identifier

import (
	"errors"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateBarcodeBoundaries(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"1234567", false},
		{"12345678", true},
		{"12345678901234", true},
		{"123456789012345", false},
		{"", false},
		{"   ", false},
		{"049000006346", true},
	}
	for _, tt := range tests {
		_, err := Validate(tt.in)
		if tt.want {
			assert.NoError(t, err, "Validate(%q)", tt.in)
		} else {
			assert.Error(t, err, "Validate(%q)", tt.in)
		}
	}
}

func TestValidateReturnsValidationError(t *testing.T) {
	_, err := Validate("1234567")
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "1234567", verr.Input)
	assert.Contains(t, verr.Reason, "7 digits")
}

func TestValidateNames(t *testing.T) {
	id, err := Validate("  Peanut   Butter\tCups ")
	require.NoError(t, err)
	assert.Equal(t, KindName, id.Kind)
	assert.Equal(t, "Peanut Butter Cups", id.Query)
	assert.Equal(t, "peanut butter cups", id.Key)

	// Mixed digits and letters are names, not barcodes.
	id, err = Validate("7up 355ml")
	require.NoError(t, err)
	assert.Equal(t, KindName, id.Kind)
}

func TestValidateFoldsFullWidthDigits(t *testing.T) {
	id, err := Validate("０４９０００００６３４６")
	require.NoError(t, err)
	assert.True(t, id.IsBarcode())
	assert.Equal(t, "049000006346", id.Key)
}

func TestValidateRejectsLongAndControl(t *testing.T) {
	_, err := Validate(strings.Repeat("a", MaxLength+1))
	assert.Error(t, err)

	_, err = Validate(strings.Repeat("a", MaxLength))
	assert.NoError(t, err)

	_, err = Validate("cola\x00")
	assert.Error(t, err)

	_, err = Validate(string([]byte{0xff, 0xfe}))
	assert.Error(t, err)
}

func TestValidateDigitLengthProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("all-digit strings are valid iff 8-14 long", prop.ForAll(
		func(n int) bool {
			s := strings.Repeat("7", n)
			_, err := Validate(s)
			valid := n >= MinBarcodeDigits && n <= MaxBarcodeDigits
			return (err == nil) == valid
		},
		gen.IntRange(1, 40),
	))

	properties.Property("validation is idempotent on the query", prop.ForAll(
		func(s string) bool {
			id, err := Validate(s)
			if err != nil {
				return true
			}
			again, err := Validate(id.Query)
			return err == nil && again.Key == id.Key && again.Kind == id.Kind
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
