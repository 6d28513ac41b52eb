package proc

import (
	"fmt"
	"strconv"
	"strings"
)

// Upper bounds for a single field copy, in bytes.
const (
	integerLen = 11
	bigintLen  = 20
	floatLen   = 20
	labelLen   = 32
	commLen    = 1024
	cmdlineLen = 1024
)

// nextField returns the text between pos and the next delim, truncated to
// max bytes, and the position just past the delimiter.
func nextField(buf string, pos int, delim byte, max int) (string, int, error) {
	if pos > len(buf) {
		return "", pos, ErrFieldNotFound
	}
	i := strings.IndexByte(buf[pos:], delim)
	if i < 0 {
		return "", pos, ErrFieldNotFound
	}
	field := buf[pos : pos+i]
	if len(field) > max {
		field = field[:max]
	}
	return field, pos + i + 1, nil
}

// skipToken steps over leading blanks, one token and the blanks after it.
func skipToken(buf string, pos int) int {
	for pos < len(buf) && buf[pos] == ' ' {
		pos++
	}
	for pos < len(buf) && buf[pos] != ' ' && buf[pos] != '\n' {
		pos++
	}
	for pos < len(buf) && buf[pos] == ' ' {
		pos++
	}
	return pos
}

// lineField reads a field that may be the last one on its line. Kernels
// differ on whether more fields follow, so the delimiter is a space when
// one occurs before the line end and the newline otherwise.
func lineField(buf string, pos int, max int) (string, int, error) {
	if pos > len(buf) {
		return "", pos, ErrFieldNotFound
	}
	rest := buf[pos:]
	nl := strings.IndexByte(rest, '\n')
	if nl < 0 {
		return "", pos, ErrFieldNotFound
	}
	if sp := strings.IndexByte(rest[:nl], ' '); sp >= 0 {
		return nextField(buf, pos, ' ', max)
	}
	return nextField(buf, pos, '\n', max)
}

// terminated makes sure the final line ends with a newline so lineField
// can find it.
func terminated(s string) string {
	if strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}

// cursor walks a buffer field by field and remembers the first failure, so
// positional parsers read as a flat list of assignments.
type cursor struct {
	buf  string
	pos  int
	name string
	err  error
}

func (c *cursor) fail(label string, err error) {
	if c.err == nil {
		c.err = fmt.Errorf("%s %s: %w", c.name, label, err)
	}
}

// read and readLine return whole fields only: a field longer than max fails
// instead of being cut, since a shortened number still parses.
func (c *cursor) read(label string, delim byte, max int) string {
	if c.err != nil {
		return ""
	}
	s, pos, err := nextField(c.buf, c.pos, delim, max+1)
	return c.accept(label, s, pos, max, err)
}

func (c *cursor) readLine(label string, max int) string {
	if c.err != nil {
		return ""
	}
	s, pos, err := lineField(c.buf, c.pos, max+1)
	return c.accept(label, s, pos, max, err)
}

func (c *cursor) accept(label, s string, pos, max int, err error) string {
	if err == nil && len(s) > max {
		err = fmt.Errorf("%w: %q... longer than %d bytes", ErrFieldNotFound, s[:max], max)
	}
	if err != nil {
		c.fail(label, err)
		return ""
	}
	c.pos = pos
	return s
}

func (c *cursor) skip(n int) {
	for range n {
		c.pos = skipToken(c.buf, c.pos)
	}
}

// atLineEnd reports whether nothing but the newline remains on the line.
func (c *cursor) atLineEnd() bool {
	return c.pos >= len(c.buf) || c.buf[c.pos] == '\n'
}

func (c *cursor) toInt(label string, s string) int {
	if c.err != nil {
		return 0
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		c.fail(label, fmt.Errorf("%w: %q", ErrFieldNotFound, s))
	}
	return v
}

func (c *cursor) toInt64(label string, s string) int64 {
	if c.err != nil {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		c.fail(label, fmt.Errorf("%w: %q", ErrFieldNotFound, s))
	}
	return v
}

func (c *cursor) toUint32(label string, s string) uint32 {
	if c.err != nil {
		return 0
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		c.fail(label, fmt.Errorf("%w: %q", ErrFieldNotFound, s))
	}
	return uint32(v)
}

func (c *cursor) toUint64(label string, s string) uint64 {
	if c.err != nil {
		return 0
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		c.fail(label, fmt.Errorf("%w: %q", ErrFieldNotFound, s))
	}
	return v
}

func (c *cursor) toFloat(label string, s string) float64 {
	if c.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		c.fail(label, fmt.Errorf("%w: %q", ErrFieldNotFound, s))
	}
	return v
}
