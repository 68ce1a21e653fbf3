// Package fixedpoint converts decimal coordinate strings to the scaled
// integer form used in storage and proofs. All coordinate fields travel as
// int64 values scaled by 1,000,000; display layers divide by the same factor.
// Parsing works on the decimal text directly so values never pass through
// float64 on the write path.
package fixedpoint

import (
	"math"
	"strconv"
	"strings"

	dErrors "geoseal/pkg/domain-errors"
)

// Scale is the fixed conversion factor between decimal coordinates and
// their stored integer form.
const Scale = 1_000_000

const maxWhole = math.MaxInt64 / Scale

// ParseDecimal converts a decimal string such as "40.7128" or "-74.006" to
// its scaled integer form. Fractions beyond six digits are rounded to
// nearest, ties away from zero.
func ParseDecimal(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, dErrors.New(dErrors.CodeValidation, "coordinate is required")
	}

	neg := false
	switch s[0] {
	case '+':
		s = s[1:]
	case '-':
		neg = true
		s = s[1:]
	}

	intPart, fracPart, hasDot := strings.Cut(s, ".")
	if intPart == "" && fracPart == "" {
		return 0, dErrors.New(dErrors.CodeValidation, "coordinate is not a number")
	}
	if hasDot && strings.Contains(fracPart, ".") {
		return 0, dErrors.New(dErrors.CodeValidation, "coordinate is not a number")
	}
	if intPart == "" {
		intPart = "0"
	}
	if !digitsOnly(intPart) || !digitsOnly(fracPart) {
		return 0, dErrors.New(dErrors.CodeValidation, "coordinate is not a number")
	}

	whole, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil || whole > maxWhole {
		return 0, dErrors.New(dErrors.CodeValidation, "coordinate is out of range")
	}

	var frac int64
	if fracPart != "" {
		digits := fracPart
		if len(digits) > 6 {
			if digits[6] >= '5' {
				frac = 1
			}
			digits = digits[:6]
		}
		parsed, err := strconv.ParseInt(digits, 10, 64)
		if err != nil {
			return 0, dErrors.New(dErrors.CodeValidation, "coordinate is not a number")
		}
		for i := len(digits); i < 6; i++ {
			parsed *= 10
		}
		frac += parsed
	}

	scaled := whole*Scale + frac
	if scaled < 0 {
		return 0, dErrors.New(dErrors.CodeValidation, "coordinate is out of range")
	}
	if neg {
		scaled = -scaled
	}
	return scaled, nil
}

// FromFloat converts a float64 coordinate to its scaled integer form,
// rounding to nearest with ties away from zero. Prefer ParseDecimal when
// the value originates as text.
func FromFloat(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, dErrors.New(dErrors.CodeValidation, "coordinate is not a number")
	}
	scaled := math.Round(f * Scale)
	if scaled >= math.MaxInt64 || scaled < math.MinInt64 {
		return 0, dErrors.New(dErrors.CodeValidation, "coordinate is out of range")
	}
	return int64(scaled), nil
}

// Format renders a scaled integer back to its canonical decimal string.
// Trailing fraction zeros are trimmed; whole values render without a dot.
func Format(v int64) string {
	neg := v < 0
	abs := uint64(v)
	if neg {
		abs = uint64(-v)
	}

	whole := abs / Scale
	frac := abs % Scale

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteString(strconv.FormatUint(whole, 10))
	if frac != 0 {
		digits := strconv.FormatUint(frac, 10)
		for len(digits) < 6 {
			digits = "0" + digits
		}
		digits = strings.TrimRight(digits, "0")
		b.WriteByte('.')
		b.WriteString(digits)
	}
	return b.String()
}

func digitsOnly(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
