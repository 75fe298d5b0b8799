package validation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChuLiYu/labelmaker/pkg/types"
)

func TestValidateQuantity(t *testing.T) {
	testCases := []struct {
		name    string
		input   interface{}
		want    int
		wantErr error
	}{
		{"zero", 0, 0, nil},
		{"max", 1000, 1000, nil},
		{"string number", "5", 5, nil},
		{"padded string", " 42 ", 42, nil},
		{"empty string is zero", "", 0, nil},
		{"float integral", 7.0, 7, nil},
		{"json number", json.Number("12"), 12, nil},
		{"raw quantity", types.Quantity("3"), 3, nil},
		{"negative", -1, 0, ErrNegative},
		{"fraction", 1000.5, 0, ErrNotInteger},
		{"too large", 1001, 0, ErrTooLarge},
		{"string too large", "1001", 0, ErrTooLarge},
		{"not a number", "abc", 0, ErrInvalidType},
		{"nil", nil, 0, ErrInvalidType},
		{"bool", true, 0, ErrInvalidType},
		{"nan string", "NaN", 0, ErrInvalidType},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ValidateQuantity(tc.input)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestValidateQuantity_DistinctKinds(t *testing.T) {
	_, errNeg := ValidateQuantity(-1)
	_, errFrac := ValidateQuantity(1000.5)
	_, errBig := ValidateQuantity(1001)

	assert.NotEqual(t, errNeg, errFrac)
	assert.NotEqual(t, errFrac, errBig)
	assert.NotEqual(t, errNeg, errBig)
}

func TestQuantityMessages(t *testing.T) {
	assert.Equal(t, "Quantity must be a number", quantityMessage(ErrInvalidType))
	assert.Equal(t, "Quantity can't be negative", quantityMessage(ErrNegative))
	assert.Equal(t, "Quantity must be an integer", quantityMessage(ErrNotInteger))
	assert.Equal(t, "Max quantity is 1000", quantityMessage(ErrTooLarge))
}
