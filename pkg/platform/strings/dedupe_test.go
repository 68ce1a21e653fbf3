package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{
			name:  "nil slice",
			input: nil,
			want:  nil,
		},
		{
			name:  "empty slice",
			input: []string{},
			want:  []string{},
		},
		{
			name:  "single element passes through",
			input: []string{"4f9d31c2"},
			want:  []string{"4f9d31c2"},
		},
		{
			name:  "trims surrounding whitespace",
			input: []string{"  alpha  ", "beta ", " gamma"},
			want:  []string{"alpha", "beta", "gamma"},
		},
		{
			name:  "drops repeats and keeps first-seen order",
			input: []string{"beta", "alpha", "beta", "gamma", "alpha"},
			want:  []string{"beta", "alpha", "gamma"},
		},
		{
			name:  "drops empties and whitespace-only elements",
			input: []string{"alpha", "", "   ", "beta"},
			want:  []string{"alpha", "beta"},
		},
		{
			name:  "repeats that differ only by padding collapse",
			input: []string{" alpha", "alpha ", "  alpha  "},
			want:  []string{"alpha"},
		},
		{
			name:  "case differences are distinct elements",
			input: []string{"Alpha", "alpha", "ALPHA"},
			want:  []string{"Alpha", "alpha", "ALPHA"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DedupeAndTrim(tt.input))
		})
	}
}
