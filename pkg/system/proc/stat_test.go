package proc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStat_Modern(t *testing.T) {
	st, err := ParseStat(statModern)
	require.NoError(t, err)

	assert.Equal(t, 1234, st.PID)
	assert.Equal(t, "my (weird) proc", st.Comm)
	assert.Equal(t, "S", st.State)
	assert.Equal(t, 1, st.PPID)
	assert.Equal(t, 1234, st.PGRP)
	assert.Equal(t, 1234, st.Session)
	assert.Equal(t, 0, st.TTY)
	assert.Equal(t, -1, st.TPGID)
	assert.Equal(t, uint32(4194560), st.Flags)
	assert.Equal(t, uint64(120), st.MinFlt)
	assert.Equal(t, uint64(3), st.MajFlt)
	assert.Equal(t, uint64(15), st.UTime)
	assert.Equal(t, uint64(7), st.STime)
	assert.Equal(t, int64(20), st.Priority)
	assert.Equal(t, int64(1), st.NumThreads)
	assert.Equal(t, uint64(12345), st.StartTime)
	assert.Equal(t, uint64(10485760), st.VSize)
	assert.Equal(t, int64(256), st.RSS)
	assert.Equal(t, 17, st.ExitSignal)
	assert.Equal(t, 2, st.Processor)
	assert.Equal(t, uint32(0), st.RTPriority)
	assert.Equal(t, uint32(0), st.Policy)
	assert.Equal(t, uint64(5), st.DelayAcctBlkIOTicks)
}

func TestParseStat_KernelVariants(t *testing.T) {
	t.Run("blkio_ends_line", func(t *testing.T) {
		st, err := ParseStat(statBlkioLast)
		require.NoError(t, err)
		assert.Equal(t, "bash", st.Comm)
		assert.Equal(t, "R", st.State)
		assert.Equal(t, 34816, st.TTY)
		assert.Equal(t, 1300, st.TPGID)
		assert.Equal(t, int64(8), st.CUTime)
		assert.Equal(t, int64(4), st.CSTime)
		assert.Equal(t, int64(-5), st.Nice)
		assert.Equal(t, uint64(42), st.DelayAcctBlkIOTicks)
	})

	t.Run("without_blkio", func(t *testing.T) {
		st, err := ParseStat(statOld)
		require.NoError(t, err)
		assert.Equal(t, uint32(0), st.Policy)
		assert.Equal(t, uint64(0), st.DelayAcctBlkIOTicks)
		assert.Equal(t, uint64(4096), st.VSize)
	})

	t.Run("blkio_dropped_keeps_other_fields", func(t *testing.T) {
		withBlkio, err := ParseStat(statBlkioLast)
		require.NoError(t, err)
		line := strings.TrimSuffix(statBlkioLast, " 42\n") + "\n"
		require.NotEqual(t, statBlkioLast, line)

		without, err := ParseStat(line)
		require.NoError(t, err)
		assert.Zero(t, without.DelayAcctBlkIOTicks)
		withBlkio.DelayAcctBlkIOTicks = 0
		assert.Equal(t, withBlkio, without)
	})

	t.Run("no_trailing_newline", func(t *testing.T) {
		a, err := ParseStat(strings.TrimSuffix(statBlkioLast, "\n"))
		require.NoError(t, err)
		b, err := ParseStat(statBlkioLast)
		require.NoError(t, err)
		assert.Equal(t, b, a)
	})
}

func TestParseStat_CommEdgeCases(t *testing.T) {
	cases := []struct {
		name string
		comm string
	}{
		{"spaces", "Web Content"},
		{"close_paren_space", "a) b"},
		{"parens_only", "()"},
		{"empty", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			line := strings.Replace(statOld, "(bash)", "("+tc.comm+")", 1)
			st, err := ParseStat(line)
			require.NoError(t, err)
			assert.Equal(t, tc.comm, st.Comm)
			assert.Equal(t, "S", st.State)
			assert.Equal(t, 1, st.PPID)
		})
	}

	t.Run("bounded", func(t *testing.T) {
		long := strings.Repeat("x", commLen+50)
		st, err := ParseStat(strings.Replace(statOld, "(bash)", "("+long+")", 1))
		require.NoError(t, err)
		assert.Len(t, st.Comm, commLen)
	})
}

func TestParseStat_Malformed(t *testing.T) {
	cases := map[string]string{
		"empty":          "",
		"no_paren":       "1234 bash S 1 1\n",
		"no_close_paren": "1234 (bash S 1 1\n",
		"paren_at_end":   "1234 (bash)\n",
		"truncated":      "1234 (bash) S 1 1234 1234 0 -1\n",
		"non_numeric":    strings.Replace(statOld, "S 1 1234", "S x 1234", 1),
		"missing_policy": "1234 (bash) S 1 1234 1234 0 -1 0 10 0 0 0 1 1 0 0 20 0 1 0 99 4096 2 4294967295 1 1 0 0 0 0 0 0 0 0 0 0 17 0\n",
		"bad_pid":        "abc (bash) S 1\n",
		"overlong_ppid":  strings.Replace(statOld, "S 1 1234", "S 123456789012 1234", 1),
	}
	for name, line := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseStat(line)
			require.ErrorIs(t, err, ErrFieldNotFound)
		})
	}
}

func TestStat_LineRoundTrip(t *testing.T) {
	in := Stat{
		PID: 4242, Comm: "x (y) z", State: "D",
		PPID: 1, PGRP: 4242, Session: 4000, TTY: 34817, TPGID: -1, Flags: 1077936192,
		MinFlt: 1, CMinFlt: 2, MajFlt: 3, CMajFlt: 4, UTime: 5, STime: 6,
		CUTime: 7, CSTime: 8, Priority: -2, Nice: -20, NumThreads: 12, ITRealValue: 0,
		StartTime: 987654321, VSize: 1 << 40, RSS: 1 << 20,
		ExitSignal: 17, Processor: 3, RTPriority: 1, Policy: 2, DelayAcctBlkIOTicks: 99,
	}
	out, err := ParseStat(in.Line())
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
