package proc

import "errors"

var (
	// ErrInterfaceUnavailable indicates that the proc root is missing or is
	// not a process filesystem. Fatal for the whole batch.
	ErrInterfaceUnavailable = errors.New("proc: process filesystem unavailable")

	// ErrRowUnavailable indicates that one process could not be read, usually
	// because it exited between listing and sampling. The row is skipped.
	ErrRowUnavailable = errors.New("proc: process row unavailable")

	// ErrFieldNotFound indicates that an expected field or delimiter was
	// missing from a kernel text file.
	ErrFieldNotFound = errors.New("proc: field not found")

	// ErrOptionalSourceMissing indicates that /proc/<pid>/io could not be
	// opened. Callers substitute zero counters.
	ErrOptionalSourceMissing = errors.New("proc: optional source missing")
)
