//go:build linux

package proc

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/sys/unix"
)

// DefaultRoot is where the process filesystem is read from: $HOST_PROC when
// set (containers mounting the host's /proc elsewhere), /proc otherwise.
func DefaultRoot() string {
	if v := os.Getenv("HOST_PROC"); v != "" {
		return v
	}
	return "/proc"
}

// ClockTicks returns the number of clock ticks per second used by the
// time fields of stat. CLK_TCK overrides the usual default of 100.
func ClockTicks() int {
	v, _ := strconv.Atoi(os.Getenv("CLK_TCK"))
	if v > 0 {
		return v
	}
	return 100
}

// PageSize returns the memory page size in bytes, honouring PAGE_SIZE.
func PageSize() int {
	if ps := os.Getenv("PAGE_SIZE"); ps != "" {
		if v, _ := strconv.Atoi(ps); v > 0 {
			return v
		}
	}
	return os.Getpagesize()
}

// IsProcFS returns ErrInterfaceUnavailable unless path is a mounted process
// filesystem.
func IsProcFS(path string) error {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return fmt.Errorf("%w: statfs %s: %w", ErrInterfaceUnavailable, path, err)
	}
	if uint64(st.Type) != unix.PROC_SUPER_MAGIC {
		return fmt.Errorf("%w: %s has filesystem type %#x", ErrInterfaceUnavailable, path, st.Type)
	}
	return nil
}

// FS reads kernel text files below a proc root. It holds no open handles;
// every call opens, reads and closes what it needs.
type FS struct {
	root string
}

// NewFS returns an FS rooted at root, or at DefaultRoot when root is empty.
func NewFS(root string) FS {
	if root == "" {
		root = DefaultRoot()
	}
	return FS{root: root}
}

// Root returns the directory FS reads from.
func (fs FS) Root() string { return fs.root }

func (fs FS) path(elem ...string) string {
	return filepath.Join(append([]string{fs.root}, elem...)...)
}

func (fs FS) pidPath(pid int, name string) string {
	return fs.path(strconv.Itoa(pid), name)
}

// Stat reads and parses <root>/<pid>/stat. Any failure, including a
// malformed line, is a row failure.
func (fs FS) Stat(pid int) (Stat, error) {
	b, err := os.ReadFile(fs.pidPath(pid, "stat"))
	if err != nil {
		return Stat{}, fmt.Errorf("%w: pid %d: %w", ErrRowUnavailable, pid, err)
	}
	st, err := ParseStat(string(b))
	if err != nil {
		return Stat{}, fmt.Errorf("%w: pid %d: %w", ErrRowUnavailable, pid, err)
	}
	return st, nil
}

// IO reads <root>/<pid>/io. When the file cannot be read (kernel threads,
// other users' processes, kernels without task I/O accounting) it returns
// zero counters and ErrOptionalSourceMissing.
func (fs FS) IO(pid int) (IO, error) {
	b, err := os.ReadFile(fs.pidPath(pid, "io"))
	if err != nil {
		return IO{}, fmt.Errorf("%w: pid %d io: %w", ErrOptionalSourceMissing, pid, err)
	}
	v, err := ParseIO(string(b))
	if err != nil {
		return IO{}, fmt.Errorf("%w: pid %d: %w", ErrRowUnavailable, pid, err)
	}
	return v, nil
}

// CmdLine reads at most 1024 bytes of <root>/<pid>/cmdline and joins the
// NUL separated arguments with spaces. Kernel threads and zombies yield an
// empty string.
func (fs FS) CmdLine(pid int) (string, error) {
	f, err := os.Open(fs.pidPath(pid, "cmdline"))
	if err != nil {
		return "", fmt.Errorf("%w: pid %d cmdline: %w", ErrOptionalSourceMissing, pid, err)
	}
	defer func() {
		_ = f.Close()
	}()

	b, err := io.ReadAll(io.LimitReader(f, cmdlineLen))
	if err != nil {
		return "", fmt.Errorf("%w: pid %d cmdline: %w", ErrOptionalSourceMissing, pid, err)
	}
	b = bytes.TrimRight(b, "\x00")
	return string(bytes.ReplaceAll(b, []byte{0}, []byte{' '})), nil
}

// Owner returns the uid owning <root>/<pid>.
func (fs FS) Owner(pid int) (uint32, error) {
	var st unix.Stat_t
	if err := unix.Stat(fs.path(strconv.Itoa(pid)), &st); err != nil {
		return 0, fmt.Errorf("%w: pid %d owner: %w", ErrOptionalSourceMissing, pid, err)
	}
	return st.Uid, nil
}

// LoadAvg reads <root>/loadavg.
func (fs FS) LoadAvg() (SystemLoad, error) {
	b, err := os.ReadFile(fs.path("loadavg"))
	if err != nil {
		return SystemLoad{}, fmt.Errorf("read loadavg: %w", err)
	}
	return ParseLoadAvg(string(b))
}

// MemInfo reads <root>/meminfo.
func (fs FS) MemInfo() (MemoryUsage, error) {
	b, err := os.ReadFile(fs.path("meminfo"))
	if err != nil {
		return MemoryUsage{}, fmt.Errorf("read meminfo: %w", err)
	}
	return ParseMemInfo(string(b))
}

// CPUTime reads the aggregate line of <root>/stat.
func (fs FS) CPUTime() (CPUTime, error) {
	b, err := os.ReadFile(fs.path("stat"))
	if err != nil {
		return CPUTime{}, fmt.Errorf("read stat: %w", err)
	}
	return ParseCPUTime(string(b))
}
