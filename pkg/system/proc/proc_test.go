//go:build linux

package proc

import (
	"os"
	"strings"
	"testing"

	"github.com/prometheus/procfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClockTicksAndPageSize(t *testing.T) {
	t.Setenv("CLK_TCK", "")
	t.Setenv("PAGE_SIZE", "")
	assert.Greater(t, ClockTicks(), 0)
	assert.Greater(t, PageSize(), 0)

	t.Setenv("CLK_TCK", "250")
	t.Setenv("PAGE_SIZE", "16384")
	assert.Equal(t, 250, ClockTicks())
	assert.Equal(t, 16384, PageSize())
}

func TestDefaultRoot(t *testing.T) {
	t.Setenv("HOST_PROC", "")
	assert.Equal(t, "/proc", DefaultRoot())
	assert.Equal(t, "/proc", NewFS("").Root())

	t.Setenv("HOST_PROC", "/host/proc")
	assert.Equal(t, "/host/proc", DefaultRoot())
	assert.Equal(t, "/elsewhere", NewFS("/elsewhere").Root())
}

func TestIsProcFS(t *testing.T) {
	t.Run("plain_directory", func(t *testing.T) {
		err := IsProcFS(t.TempDir())
		require.ErrorIs(t, err, ErrInterfaceUnavailable)
	})
	t.Run("missing", func(t *testing.T) {
		err := IsProcFS("/definitely/not/here")
		require.ErrorIs(t, err, ErrInterfaceUnavailable)
	})
	t.Run("host_proc", func(t *testing.T) {
		if err := IsProcFS("/proc"); err != nil {
			t.Skipf("skipping: /proc is not procfs here: %v", err)
		}
	})
}

func TestFS_FakeTree(t *testing.T) {
	root := writeTree(t, map[string]string{
		"1234/stat":    statModern,
		"1234/io":      ioSample,
		"1234/cmdline": "/usr/bin/worker\x00--queue\x00high\x00",
		"77/stat":      statOld,
		"77/cmdline":   "",
		"loadavg":      "1.50 0.75 0.25 2/300 4242\n",
		"meminfo":      meminfoSample,
		"stat":         cpuSample,
	})
	fs := NewFS(root)

	st, err := fs.Stat(1234)
	require.NoError(t, err)
	assert.Equal(t, "my (weird) proc", st.Comm)

	pio, err := fs.IO(1234)
	require.NoError(t, err)
	assert.Equal(t, uint64(4096), pio.ReadBytes)

	cmd, err := fs.CmdLine(1234)
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/worker --queue high", cmd)

	t.Run("kernel_thread_cmdline", func(t *testing.T) {
		cmd, err := fs.CmdLine(77)
		require.NoError(t, err)
		assert.Empty(t, cmd)
	})

	t.Run("io_missing_is_optional", func(t *testing.T) {
		pio, err := fs.IO(77)
		require.ErrorIs(t, err, ErrOptionalSourceMissing)
		assert.Equal(t, IO{}, pio)
	})

	t.Run("vanished_pid", func(t *testing.T) {
		_, err := fs.Stat(5)
		require.ErrorIs(t, err, ErrRowUnavailable)
		_, err = fs.CmdLine(5)
		require.ErrorIs(t, err, ErrOptionalSourceMissing)
		_, err = fs.Owner(5)
		require.ErrorIs(t, err, ErrOptionalSourceMissing)
	})

	t.Run("owner", func(t *testing.T) {
		uid, err := fs.Owner(1234)
		require.NoError(t, err)
		assert.Equal(t, uint32(os.Getuid()), uid)
	})

	t.Run("aggregates", func(t *testing.T) {
		l, err := fs.LoadAvg()
		require.NoError(t, err)
		assert.Equal(t, 4242, l.LastPID)

		m, err := fs.MemInfo()
		require.NoError(t, err)
		assert.NotZero(t, m.MemUsed)

		c, err := fs.CPUTime()
		require.NoError(t, err)
		assert.Equal(t, uint64(6290), c.IOWait)
	})
}

func TestFS_CmdLineBounded(t *testing.T) {
	long := strings.Repeat("a\x00", cmdlineLen)
	fs := NewFS(writeTree(t, map[string]string{"9/cmdline": long}))

	cmd, err := fs.CmdLine(9)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(cmd), cmdlineLen)
	assert.NotContains(t, cmd, "\x00")
}

func TestFS_MalformedStatIsRowFailure(t *testing.T) {
	fs := NewFS(writeTree(t, map[string]string{"9/stat": "9 (x\n"}))
	_, err := fs.Stat(9)
	require.ErrorIs(t, err, ErrRowUnavailable)
	require.ErrorIs(t, err, ErrFieldNotFound)
}

func TestFS_Self(t *testing.T) {
	if err := IsProcFS("/proc"); err != nil {
		t.Skipf("skipping: %v", err)
	}
	fs := NewFS("/proc")
	me := os.Getpid()

	st, err := fs.Stat(me)
	require.NoError(t, err)
	assert.Equal(t, me, st.PID)
	assert.Equal(t, os.Getppid(), st.PPID)
	assert.NotEmpty(t, st.Comm)
	assert.GreaterOrEqual(t, st.NumThreads, int64(1))

	if _, err := fs.IO(me); err != nil {
		t.Logf("io unavailable: %v", err)
	}

	_, err = fs.LoadAvg()
	require.NoError(t, err)
	m, err := fs.MemInfo()
	require.NoError(t, err)
	assert.Greater(t, m.MemTotal.Uint64(), uint64(0))
	_, err = fs.CPUTime()
	require.NoError(t, err)
}

func TestParseStat_AgreesWithProcfs(t *testing.T) {
	pfs, err := procfs.NewFS("/proc")
	if err != nil {
		t.Skipf("skipping: %v", err)
	}
	p, err := pfs.Self()
	if err != nil {
		t.Skipf("skipping: %v", err)
	}
	want, err := p.Stat()
	require.NoError(t, err)

	got, err := NewFS("/proc").Stat(p.PID)
	require.NoError(t, err)

	assert.Equal(t, want.PID, got.PID)
	assert.Equal(t, want.Comm, got.Comm)
	assert.Equal(t, want.PPID, got.PPID)
	assert.Equal(t, want.PGRP, got.PGRP)
	assert.Equal(t, want.Session, got.Session)
	assert.Equal(t, want.TTY, got.TTY)
	assert.Equal(t, want.Starttime, got.StartTime)
}
