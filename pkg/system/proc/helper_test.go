package proc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	// stat line of a current kernel: fields continue past delayacct_blkio_ticks.
	statModern = "1234 (my (weird) proc) S 1 1234 1234 0 -1 4194560 120 0 3 0 15 7 0 0 20 0 1 0 12345 10485760 256 " +
		"18446744073709551615 1 1 0 0 0 0 0 0 0 0 0 0 17 2 0 0 5 0 0 0 0 0 0 0 0 0 0\n"
	// stat line ending at delayacct_blkio_ticks.
	statBlkioLast = "1234 (bash) R 1 1234 1234 34816 1300 4194304 900 4000 1 2 30 12 8 4 20 -5 1 0 5000 20000000 700 " +
		"18446744073709551615 1 1 0 0 0 0 0 0 0 0 0 0 17 0 0 0 42\n"
	// stat line of a kernel predating delayacct_blkio_ticks.
	statOld = "1234 (bash) S 1 1234 1234 0 -1 0 10 0 0 0 1 1 0 0 20 0 1 0 99 4096 2 " +
		"4294967295 1 1 0 0 0 0 0 0 0 0 0 0 17 0 0 0\n"

	ioSample = "rchar: 323934931\nwchar: 323929600\nsyscr: 632687\nsyscw: 632675\n" +
		"read_bytes: 4096\nwrite_bytes: 323932160\ncancelled_write_bytes: 12\n"

	meminfoSample = "MemTotal:       16384000 kB\nMemFree:         4096000 kB\nMemAvailable:    8000000 kB\n" +
		"Buffers:          100000 kB\nCached:          2000000 kB\nSwapCached:         1000 kB\n" +
		"SwapTotal:       2097148 kB\nSwapFree:        2000000 kB\n"

	cpuSample = "cpu  2255 34 2290 22625563 6290 127 456 0 0 0\ncpu0 1132 34 1441 11311718 3675 127 438 0 0 0\nintr 114930548\n"
)

// writeTree creates files below a fresh directory and returns it. Keys are
// slash separated paths relative to the root.
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, body := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
	return root
}

func noMountCheck(string) error { return nil }
