package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeVersionInput(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"1.21.4", "1.21.4"},
		{"  1.21.4  ", "1.21.4"},
		{"1_21_4", "1.21.4"},
		{"version 1.14.4 please", "1.14.4"},
		{"24w14a", "24w14a"},
		{"1.0-rc1", "1.0-rc1"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := NormalizeVersionInput(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeVersionInput_NoToken(t *testing.T) {
	_, err := NormalizeVersionInput("no version here")
	assert.Error(t, err)
}

func TestSanitizePathSegment(t *testing.T) {
	assert.Equal(t, "1.14.4", SanitizePathSegment("1.14.4"))
	assert.Equal(t, "a_b_c", SanitizePathSegment("a b/c"))
	assert.Equal(t, "combat_test", SanitizePathSegment("combat test"))
}
