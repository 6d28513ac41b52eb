package proc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextField(t *testing.T) {
	s, pos, err := nextField("12 34\n", 0, ' ', integerLen)
	require.NoError(t, err)
	assert.Equal(t, "12", s)
	assert.Equal(t, 3, pos)

	s, pos, err = nextField("12 34\n", pos, '\n', integerLen)
	require.NoError(t, err)
	assert.Equal(t, "34", s)
	assert.Equal(t, 6, pos)

	t.Run("missing_delimiter", func(t *testing.T) {
		_, p, err := nextField("1234", 0, ' ', integerLen)
		require.ErrorIs(t, err, ErrFieldNotFound)
		assert.Equal(t, 0, p)
	})

	t.Run("truncates_to_max", func(t *testing.T) {
		s, pos, err := nextField("123456789 x", 0, ' ', 4)
		require.NoError(t, err)
		assert.Equal(t, "1234", s)
		assert.Equal(t, 10, pos)
	})

	t.Run("position_past_end", func(t *testing.T) {
		_, _, err := nextField("ab", 5, ' ', 4)
		require.ErrorIs(t, err, ErrFieldNotFound)
	})
}

func TestSkipToken(t *testing.T) {
	buf := "cpu  12 34\n"
	pos := skipToken(buf, 0)
	assert.Equal(t, 5, pos)
	pos = skipToken(buf, pos)
	assert.Equal(t, 8, pos)
	// stops at the line end
	assert.Equal(t, 10, skipToken(buf, pos))
}

func TestLineField(t *testing.T) {
	t.Run("space_before_newline", func(t *testing.T) {
		s, pos, err := lineField("7 8\n", 0, integerLen)
		require.NoError(t, err)
		assert.Equal(t, "7", s)
		assert.Equal(t, 2, pos)
	})
	t.Run("newline_only", func(t *testing.T) {
		s, pos, err := lineField("7\nnext line\n", 0, integerLen)
		require.NoError(t, err)
		assert.Equal(t, "7", s)
		assert.Equal(t, 2, pos)
	})
	t.Run("trailing_space", func(t *testing.T) {
		s, _, err := lineField("7 \n", 0, integerLen)
		require.NoError(t, err)
		assert.Equal(t, "7", s)
	})
	t.Run("unterminated", func(t *testing.T) {
		_, _, err := lineField("7", 0, integerLen)
		require.ErrorIs(t, err, ErrFieldNotFound)
	})
}

func TestCursor_OverlongField(t *testing.T) {
	t.Run("fails_instead_of_cutting", func(t *testing.T) {
		c := cursor{buf: "123456 7\n", name: "test"}
		v := c.toInt("a", c.read("a", ' ', 4))
		assert.Zero(t, v)
		require.ErrorIs(t, c.err, ErrFieldNotFound)
		assert.Contains(t, c.err.Error(), "test a")
	})

	t.Run("exact_bound_fits", func(t *testing.T) {
		c := cursor{buf: "-2147483648 4294967295\n", name: "test"}
		lo := c.toInt("lo", c.read("lo", ' ', integerLen))
		hi := c.toUint32("hi", c.readLine("hi", integerLen))
		require.NoError(t, c.err)
		assert.Equal(t, -2147483648, lo)
		assert.Equal(t, uint32(4294967295), hi)
	})

	t.Run("line_end_field", func(t *testing.T) {
		c := cursor{buf: "123456789012\n", name: "test"}
		c.readLine("a", integerLen)
		require.ErrorIs(t, c.err, ErrFieldNotFound)
	})
}

func TestCursor_FirstErrorWins(t *testing.T) {
	c := cursor{buf: "1 x 3\n", name: "test"}
	a := c.toInt("a", c.read("a", ' ', integerLen))
	b := c.toInt("b", c.read("b", ' ', integerLen))
	d := c.toInt("d", c.readLine("d", integerLen))

	assert.Equal(t, 1, a)
	assert.Zero(t, b)
	assert.Zero(t, d)
	require.ErrorIs(t, c.err, ErrFieldNotFound)
	assert.Contains(t, c.err.Error(), "test b")
}
