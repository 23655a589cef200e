package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestZipStates(t *testing.T) {
	zips := NewZipStates()

	tests := []struct {
		zip  string
		want string
	}{
		{"37130", "TN"},
		{"43081", "OH"},
		{"94509", "CA"},
		{"98501", "WA"},
		{"05501", "MA"},
		{"00601", "PR"},
		{"2", ""},
		{"ABCDE", ""},
		{"71501", ""},
	}

	for _, tt := range tests {
		t.Run(tt.zip, func(t *testing.T) {
			assert.Equal(t, tt.want, zips.State(tt.zip))
		})
	}
}

func TestJoinFields(t *testing.T) {
	assert.Equal(t, "123 Main Street Tullahoma TN", JoinFields("", "123 Main Street", " ", "Tullahoma", "TN"))
	assert.Equal(t, "", JoinFields())
}
