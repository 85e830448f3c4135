package price

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		want  float64
		found bool
	}{
		{"euro prefix comma", "€1,89", 1.89, true},
		{"euro prefix dot", "€1.89", 1.89, true},
		{"euro prefix spaced", "€ 2,49", 2.49, true},
		{"euro suffix", "9.99 €", 9.99, true},
		{"bare comma decimal", "9,99", 9.99, true},
		{"bare dot decimal", "9.99", 9.99, true},
		{"embedded in text", "nu voor €3,49 per stuk", 3.49, true},
		{"unit size is not a price", "0,75 l", 0, false},
		{"unit size next to price", "fles 0,75 l €4,99", 4.99, true},
		{"upper boundary accepted", "€1000.00", 1000.00, true},
		{"above upper boundary rejected", "€1000.01", 0, false},
		{"zero rejected", "€0.00", 0, false},
		{"lower boundary accepted", "€0.01", 0.01, true},
		{"no digits", "prijs onbekend", 0, false},
		{"empty", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := Parse(tt.text)
			assert.Equal(t, tt.found, found)
			if tt.found {
				assert.InDelta(t, tt.want, got, 0.0001)
			}
		})
	}
}

func TestParsePrecedence(t *testing.T) {
	// The currency-prefixed amount wins over a bare decimal that appears
	// earlier in the text.
	got, found := Parse("2,50 korting nu €1,25")
	assert.True(t, found)
	assert.InDelta(t, 1.25, got, 0.0001)
}

func TestParseNumeric(t *testing.T) {
	got, ok := ParseNumeric("€12,34")
	assert.True(t, ok)
	assert.InDelta(t, 12.34, got, 0.0001)

	_, ok = ParseNumeric("geen prijs")
	assert.False(t, ok)
}
