package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumericStringToCents(t *testing.T) {
	tests := []struct {
		input    string
		expected int64
	}{
		{"100", 10000},
		{"100.50", 10050},
		{"0.99", 99},
		{"0.00", 0},
		{"  50.25  ", 5025},
		{"-10.50", -1050},
		{"5.5", 550},
		{"99.994", 9999},
		{"99.995", 10000},
		{"5.555", 556},
		{"9999999999.99", 999999999999},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result, err := numericStringToCents(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestNumericStringToCents_Errors(t *testing.T) {
	for _, input := range []string{"", "abc", "R$100.00", "10.5.5"} {
		t.Run(input, func(t *testing.T) {
			_, err := numericStringToCents(input)
			assert.Error(t, err)
		})
	}
}

func TestCentsToNumericString(t *testing.T) {
	tests := []struct {
		input    int64
		expected string
	}{
		{10000, "100.00"},
		{10050, "100.50"},
		{99, "0.99"},
		{0, "0.00"},
		{1, "0.01"},
		{10, "0.10"},
		{-1050, "-10.50"},
		{-1, "-0.01"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, centsToNumericString(tt.input))
		})
	}
}

func TestMoneyConversion_RoundTrip(t *testing.T) {
	for _, original := range []int64{0, 1, 999, 12345, 999999, -12345} {
		cents, err := numericStringToCents(centsToNumericString(original))
		require.NoError(t, err)
		assert.Equal(t, original, cents)
	}
}
