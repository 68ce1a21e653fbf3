package fixedpoint

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "geoseal/pkg/domain-errors"
)

func TestParseDecimal(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  int64
	}{
		{"latitude", "40.7128", 40712800},
		{"negative longitude", "-74.006", -74006000},
		{"zero", "0", 0},
		{"negative zero", "-0.0", 0},
		{"whole number", "12", 12000000},
		{"explicit plus", "+3.5", 3500000},
		{"leading dot", ".25", 250000},
		{"negative leading dot", "-.25", -250000},
		{"all six digits", "1.234567", 1234567},
		{"rounds seventh digit up", "1.2345678", 1234568},
		{"rounds seventh digit down", "1.2345674", 1234567},
		{"tie rounds away from zero", "0.0000005", 1},
		{"negative tie rounds away from zero", "-0.0000005", -1},
		{"ignores digits past seventh", "1.23456749999", 1234567},
		{"surrounding whitespace", "  40.7128  ", 40712800},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseDecimal(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseDecimal_Rejects(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		".",
		"-",
		"-.",
		"abc",
		"40.71.28",
		"1e6",
		"0x10",
		"40,7128",
		"--1",
		"9223372036855",
	}

	for _, input := range inputs {
		t.Run("input "+input, func(t *testing.T) {
			_, err := ParseDecimal(input)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation), "expected validation error for %q", input)
		})
	}
}

func TestFromFloat(t *testing.T) {
	got, err := FromFloat(40.7128)
	require.NoError(t, err)
	assert.Equal(t, int64(40712800), got)

	got, err = FromFloat(-74.006)
	require.NoError(t, err)
	assert.Equal(t, int64(-74006000), got)

	_, err = FromFloat(math.MaxFloat64)
	require.Error(t, err)

	_, err = FromFloat(math.NaN())
	require.Error(t, err)

	_, err = FromFloat(math.Inf(1))
	require.Error(t, err)
}

func TestFormat(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{40712800, "40.7128"},
		{-74006000, "-74.006"},
		{0, "0"},
		{12000000, "12"},
		{1, "0.000001"},
		{-1, "-0.000001"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Format(tc.in))
	}
}

func TestRoundTrip(t *testing.T) {
	for _, s := range []string{"40.7128", "-74.006", "0.000001", "89.999999", "-180"} {
		scaled, err := ParseDecimal(s)
		require.NoError(t, err)

		back, err := ParseDecimal(Format(scaled))
		require.NoError(t, err)
		assert.Equal(t, scaled, back, "round trip for %s", s)
	}
}
