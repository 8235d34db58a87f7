package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Doe, Jane, Hon.", "Doe, Jane"},
		{"Doe, Hon.. Jane", "Doe, Jane"},
		{"Roe, Richard, Jr.", "Roe, Richard, Jr."},
		{"  Smith ,  Ann  ", "Smith, Ann"},
		{"Hon.", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, CanonicalName(tt.in))
		})
	}
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "DOE JANE", NormalizeName("Doe, Jane, Hon."))
	assert.Equal(t, NormalizeName("Doe, Jane, Hon."), NormalizeName("Doe, Hon.. Jane"))
	assert.Equal(t, "OROURKE BETO", NormalizeName("O'Rourke, Beto"))
	assert.Equal(t, "TAYLOR GREENE MARJORIE", NormalizeName("Taylor-Greene, Marjorie"))
	assert.Equal(t, "", NormalizeName("   "))
}

func TestParseOffice(t *testing.T) {
	tests := []struct {
		in, juris, sub string
	}{
		{"CA12", "CA", "12"},
		{"ny3", "NY", "3"},
		{"TX", "TX", ""},
		{"AK00", "AK", "00"},
		{"FL123", "FL", "12"},
		{"12CA", "", ""},
		{"", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			j, s := ParseOffice(tt.in)
			assert.Equal(t, tt.juris, j)
			assert.Equal(t, tt.sub, s)
		})
	}
}
