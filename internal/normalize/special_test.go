package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandleSpecial(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"123 I 24", "123 Interstate 24"},
		{"123 Int 24", "123 Interstate 24"},
		{"123 Interstate 24", "123 Interstate 24"},
		{"123 I 24 Exit 5", "123 Interstate 24"},
		{"P.O. Box 123", "PO Box 123"},
		{"Po Bx 123", "PO Box 123"},
		{"P O Box 456", "PO Box 456"},
		{"Po B 0 X 456", "PO Box 456"},
		{"123 Main Street", "123 Main Street"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, HandleSpecial(tt.input))
		})
	}
}

func TestIsIntersection(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"US 191 & AZ 264", true},
		{"Hwy 59 & Conde St", true},
		{"I 26 & Hwy 21 South", true},
		{"East Hwy 160 And Warrior Drive", true},
		{"Intersection Of 5th And Main", true},
		{"123 Main Street", false},
		{"PO Box 12", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, IsIntersection(tt.input))
		})
	}
}

func TestContainsStreetSuffix(t *testing.T) {
	tables := DefaultTables()

	assert.True(t, tables.ContainsStreetSuffix("123 Main Street"))
	assert.True(t, tables.ContainsStreetSuffix("123 main street"))
	assert.True(t, tables.ContainsStreetSuffix("1500 Broadway"))
	assert.True(t, tables.ContainsStreetSuffix("12 Calle Sol"))
	assert.True(t, tables.ContainsStreetSuffix("123 South Alloy"))
	assert.False(t, tables.ContainsStreetSuffix("1989 Ehemann"))
}

func TestFirstTokenIsStreetNumber(t *testing.T) {
	assert.True(t, FirstTokenIsStreetNumber("123 Main Street"))
	assert.True(t, FirstTokenIsStreetNumber("N64W1024 Big Road"))
	assert.False(t, FirstTokenIsStreetNumber("Main Street"))
	assert.False(t, FirstTokenIsStreetNumber(""))
}

func TestRemoveGarbageAfterSuffix(t *testing.T) {
	tables := DefaultTables()

	tests := []struct {
		input string
		want  string
	}{
		{"45 Slowpoke Lane Asdfwaf", "45 Slowpoke Lane"},
		{"46 Slowpoke Lane Thisisgarbage", "46 Slowpoke Lane"},
		{"45 Slowpoke Lane", "45 Slowpoke Lane"},
		{"123 South Alloy", "123 South Alloy"},
		{"12 State Road 7 North Extra", "12 State Road 7 North Extra"},
		{"1989 Ehemann", "1989 Ehemann"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, tables.RemoveGarbageAfterSuffix(tt.input))
		})
	}
}

func TestCleanFinalStreet(t *testing.T) {
	tables := DefaultTables()

	tests := []struct {
		input string
		want  string
	}{
		{"490 South 22 Nd Street", "490 South 22nd Street"},
		{"5 Th Avenue", "5th Avenue"},
		{"22 Street Avenue", "22st Avenue"},
		{"3 Road Lane", "3rd Lane"},
		{"123 Main Street", "123 Main Street"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, tables.CleanFinalStreet(tt.input))
		})
	}
}
