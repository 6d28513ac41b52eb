// Package mountinfo reads /proc/<pid>/mountinfo.
package mountinfo

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Mount is one mountinfo line.
type Mount struct {
	MountPoint string `json:"mount_point"`
	FSType     string `json:"fstype"`
	Source     string `json:"source"`
	Options    string `json:"options"`
}

// Parse reads mountinfo lines from r.
//
// The line format is "<id> <parent> <maj:min> <root> <mount point> <opts>
// [optional fields] - <fstype> <source> <super opts>"; the optional fields
// vary in number so the part after " - " is located from the end.
func Parse(r io.Reader) ([]Mount, error) {
	var (
		out []Mount
		sc  = bufio.NewScanner(r)
	)
	for sc.Scan() {
		line := sc.Text()
		const sep = " - "
		i := strings.LastIndex(line, sep)
		if i < 0 {
			continue
		}
		tail := strings.Fields(line[i+len(sep):])
		pre := strings.Fields(line[:i])
		if len(tail) < 1 || len(pre) < 5 {
			continue
		}
		m := Mount{
			MountPoint: unescape(pre[4]),
			FSType:     tail[0],
		}
		if len(tail) > 1 {
			m.Source = tail[1]
		}
		if len(tail) > 2 {
			m.Options = tail[2]
		}
		out = append(out, m)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan mountinfo: %w", err)
	}
	return out, nil
}

// Read parses <procRoot>/self/mountinfo.
func Read(procRoot string) ([]Mount, error) {
	f, err := os.Open(filepath.Join(procRoot, "self", "mountinfo"))
	if err != nil {
		return nil, fmt.Errorf("open mountinfo: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	return Parse(f)
}

// ByType returns the mounts whose filesystem type is fstype.
func ByType(ms []Mount, fstype string) []Mount {
	var out []Mount
	for _, m := range ms {
		if m.FSType == fstype {
			out = append(out, m)
		}
	}
	return out
}

// unescape reverses the octal escapes the kernel applies to space, tab,
// newline and backslash in paths.
func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+3 < len(s) && isOctal(s[i+1]) && isOctal(s[i+2]) && isOctal(s[i+3]) {
			b.WriteByte((s[i+1]-'0')<<6 | (s[i+2]-'0')<<3 | (s[i+3] - '0'))
			i += 3
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func isOctal(c byte) bool { return c >= '0' && c <= '7' }
