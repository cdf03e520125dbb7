// Package history journals profile applications in a Badger database. Each
// entry carries a snapshot of the CPU state taken beforehand, so any apply
// can be undone later.
package history

import "time"

// Operation is the kind of journalled change.
type Operation string

const (
	// OpApply records a profile application.
	OpApply Operation = "apply"
	// OpRestore records a snapshot restore.
	OpRestore Operation = "restore"
)

// Status is the outcome of an operation.
type Status string

const (
	StatusOK     Status = "ok"
	StatusFailed Status = "failed"
	// StatusReverted means the operation failed and the prior state was
	// restored.
	StatusReverted Status = "reverted"
)

// Entry is one journalled operation.
type Entry struct {
	ID        string    `json:"id" yaml:"id"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Operation Operation `json:"operation" yaml:"operation"`
	Status    Status    `json:"status" yaml:"status"`
	// Profile is the applied profile name (OpApply).
	Profile string `json:"profile,omitempty" yaml:"profile,omitempty"`
	// RestoredFrom is the entry whose snapshot was restored (OpRestore).
	RestoredFrom string `json:"restored_from,omitempty" yaml:"restored_from,omitempty"`
	Error        string `json:"error,omitempty" yaml:"error,omitempty"`
	// Source names the process that made the change (cli or daemon).
	Source string `json:"source,omitempty" yaml:"source,omitempty"`
	// Before is the state prior to the operation.
	Before *Snapshot `json:"before,omitempty" yaml:"before,omitempty"`
}
