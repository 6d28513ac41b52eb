package types

import "fmt"

// Bytes is a uint64 wrapper representing a size in bytes.
type Bytes uint64

// ToBytes converts a page or block count of the given size to Bytes.
// Negative counts are treated as zero.
func ToBytes[T ~int | ~int64 | ~uint64](n T, unit int) Bytes {
	if n <= 0 || unit <= 0 {
		return 0
	}
	return Bytes(uint64(n) * uint64(unit))
}

// Humanized returns a human-readable string with automatic unit (B, KB, MB, GB, TB).
func (b Bytes) Humanized() string {
	v := float64(b)
	switch {
	case b >= 1<<40:
		return fmt.Sprintf("%.2f TB", v/(1<<40))
	case b >= 1<<30:
		return fmt.Sprintf("%.2f GB", v/(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.2f MB", v/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.2f KB", v/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

func (b Bytes) Uint64() uint64 { return uint64(b) }

// KB returns the number of kilobytes (1024 base).
func (b Bytes) KB() float64 { return float64(b) / 1024 }

// MB returns the number of megabytes (1024 base).
func (b Bytes) MB() float64 { return float64(b) / (1024 * 1024) }

// GB returns the number of gigabytes (1024 base).
func (b Bytes) GB() float64 { return float64(b) / (1024 * 1024 * 1024) }

// Kilobytes is a size as /proc/meminfo reports it ("kB", 1024 base).
type Kilobytes uint64

// Bytes converts k to Bytes.
func (k Kilobytes) Bytes() Bytes { return Bytes(k) * 1024 }

// Sub returns k - o, or zero when o is larger.
func (k Kilobytes) Sub(o Kilobytes) Kilobytes {
	if o >= k {
		return 0
	}
	return k - o
}

func (k Kilobytes) Uint64() uint64 { return uint64(k) }

// Humanized formats k via Bytes.Humanized.
func (k Kilobytes) Humanized() string { return k.Bytes().Humanized() }
