package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePIDs(t *testing.T) {
	cases := []struct {
		name string
		args []string
		want []int
	}{
		{"single", []string{"42"}, []int{42}},
		{"range", []string{"100..103"}, []int{100, 101, 102, 103}},
		{"mixed_keeps_order", []string{"9", "3..4", "1"}, []int{9, 3, 4, 1}},
		{"duplicates_once", []string{"5", "4..6", "5"}, []int{5, 4, 6}},
		{"space_separated_arg", []string{"7 8  9"}, []int{7, 8, 9}},
		{"one_element_range", []string{"3..3"}, []int{3}},
		{"empty", nil, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParsePIDs(tc.args)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParsePIDs_Invalid(t *testing.T) {
	for _, arg := range []string{"abc", "-1", "0", "10..5", "1..x", "..4", "1..1000000"} {
		t.Run(arg, func(t *testing.T) {
			_, err := ParsePIDs([]string{arg})
			require.ErrorIs(t, err, ErrBadPID)
		})
	}
}

func TestSystemSummary(t *testing.T) {
	h, k, c, m := SystemSummary()
	for _, v := range []string{h, k, c, m} {
		assert.NotEmpty(t, v)
	}
}

func TestFmtFloat(t *testing.T) {
	assert.Equal(t, "0.2", FmtFloat(0.20))
	assert.Equal(t, "3", FmtFloat(3))
	assert.Equal(t, "1.125", FmtFloat(1.125))
}
