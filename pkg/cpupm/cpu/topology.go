package cpu

import (
	"os"
)

// CountCores counts the cpu<N> entries directly below base. Failing to list
// base is fatal for a Manager, so the error is returned rather than degraded.
func CountCores(base string) (int, error) {
	entries, err := os.ReadDir(base)
	if err != nil {
		return 0, opErr("list cpu directory", globalCore, ErrIO, err)
	}

	count := 0
	for _, entry := range entries {
		if isCoreDirName(entry.Name()) {
			count++
		}
	}
	return count, nil
}

// isCoreDirName reports whether name is "cpu" followed by one or more digits.
func isCoreDirName(name string) bool {
	const prefix = "cpu"
	if len(name) <= len(prefix) || name[:len(prefix)] != prefix {
		return false
	}
	for _, c := range name[len(prefix):] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
