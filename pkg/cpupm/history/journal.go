package history

import (
	"errors"
	"fmt"

	"github.com/jamesainslie/cpupm/pkg/cpupm/profile"
)

// Recorder persists entries. *Store implements it; a nil Recorder disables
// journalling.
type Recorder interface {
	Record(e *Entry) error
}

// ApplyOptions tunes ApplyProfile.
type ApplyOptions struct {
	// RevertOnFailure restores the captured snapshot when apply fails.
	RevertOnFailure bool
	// Source is stored on the entry (cli, daemon).
	Source string
}

// ApplyProfile captures a snapshot, applies p and journals the outcome.
// The returned entry is non-nil whenever apply was attempted.
func ApplyProfile(ctrl Controller, rec Recorder, p profile.Profile, opts ApplyOptions) (*Entry, error) {
	before, err := Capture(ctrl)
	if err != nil {
		if opts.RevertOnFailure {
			return nil, fmt.Errorf("capturing state before apply: %w", err)
		}
		logger.Warn("could not capture state before apply", "profile", p.Name, "error", err)
	}

	entry := &Entry{
		Operation: OpApply,
		Status:    StatusOK,
		Profile:   p.Name,
		Source:    opts.Source,
		Before:    before,
	}

	applyErr := profile.Apply(ctrl, p)
	if applyErr != nil {
		entry.Status = StatusFailed
		entry.Error = applyErr.Error()

		if opts.RevertOnFailure {
			if err := Restore(ctrl, before); err != nil {
				applyErr = errors.Join(applyErr, fmt.Errorf("reverting: %w", err))
				entry.Error = applyErr.Error()
			} else {
				entry.Status = StatusReverted
				logger.Info("reverted failed apply", "profile", p.Name)
			}
		}
	}

	record(rec, entry)
	return entry, applyErr
}

// RestoreEntry restores the snapshot stored on target and journals the
// restore with the state it replaced.
func RestoreEntry(ctrl Controller, rec Recorder, target *Entry, source string) (*Entry, error) {
	if target.Before == nil {
		return nil, fmt.Errorf("entry %s has no snapshot", ShortID(target.ID))
	}

	before, err := Capture(ctrl)
	if err != nil {
		logger.Warn("could not capture state before restore", "error", err)
	}

	entry := &Entry{
		Operation:    OpRestore,
		Status:       StatusOK,
		Profile:      target.Profile,
		RestoredFrom: target.ID,
		Source:       source,
		Before:       before,
	}

	restoreErr := Restore(ctrl, target.Before)
	if restoreErr != nil {
		entry.Status = StatusFailed
		entry.Error = restoreErr.Error()
	}

	record(rec, entry)
	return entry, restoreErr
}

// record stores e when rec is set. A journal failure never fails the
// hardware operation it describes.
func record(rec Recorder, e *Entry) {
	if rec == nil {
		return
	}
	if err := rec.Record(e); err != nil {
		logger.Warn("could not record history", "operation", e.Operation, "error", err)
	}
}
