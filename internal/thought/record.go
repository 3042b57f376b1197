// Package thought defines the thought record submitted by calling agents
// and the error condition kinds shared across the core.
package thought

import (
	"fmt"
	"time"
)

// Record is one submitted reasoning unit plus its sequencing metadata.
//
// A record plays at most one structural role. When both branch and revision
// markers are set, the branch markers win: BranchFromNumber/BranchID are
// checked before IsRevision/RevisesNumber everywhere in the core. This
// precedence is a documented contract, not an accident of evaluation order.
type Record struct {
	// Content is the thought text.
	Content string `json:"thought"`

	// Number is the 1-based position of this thought in the caller's chain.
	Number int `json:"thought_number"`

	// TotalExpected is the caller's current estimate of chain length.
	TotalExpected int `json:"total_thoughts"`

	// NextNeeded reports whether the caller intends to continue. A record
	// with NextNeeded == false is terminal.
	NextNeeded bool `json:"next_thought_needed"`

	// SessionID groups records into one reasoning session. Optional; the
	// storage layer synthesizes one for anonymous submissions.
	SessionID string `json:"session_id,omitempty"`

	// IsRevision marks this record as a correction of a prior thought.
	IsRevision bool `json:"is_revision,omitempty"`

	// RevisesNumber is the thought number being corrected.
	RevisesNumber int `json:"revises_thought,omitempty"`

	// BranchFromNumber is the thought number this record diverges from.
	BranchFromNumber int `json:"branch_from_thought,omitempty"`

	// BranchID names the alternate continuation this record belongs to.
	BranchID string `json:"branch_id,omitempty"`

	// Timestamp is set by the storage layer on admission.
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// IsBranch reports whether the record carries active branch markers.
func (r *Record) IsBranch() bool {
	return r.BranchFromNumber > 0 && r.BranchID != ""
}

// Revises reports whether the record carries active revision markers.
// Branch markers take precedence; see the Record doc comment.
func (r *Record) Revises() bool {
	return !r.IsBranch() && r.IsRevision && r.RevisesNumber > 0
}

// Validate checks the record's shape. All failures wrap ErrValidation.
func (r *Record) Validate() error {
	if r.Content == "" {
		return fmt.Errorf("%w: thought content is required", ErrValidation)
	}
	if r.Number < 1 {
		return fmt.Errorf("%w: thought number must be >= 1, got %d", ErrValidation, r.Number)
	}
	if r.TotalExpected < 1 {
		return fmt.Errorf("%w: total thoughts must be >= 1, got %d", ErrValidation, r.TotalExpected)
	}
	if r.IsRevision && r.RevisesNumber < 1 {
		return fmt.Errorf("%w: revision must name a thought number >= 1", ErrValidation)
	}
	if r.BranchFromNumber < 0 {
		return fmt.Errorf("%w: branch origin must be >= 1, got %d", ErrValidation, r.BranchFromNumber)
	}
	if r.BranchFromNumber > 0 && r.BranchID == "" {
		return fmt.Errorf("%w: branch origin requires a branch id", ErrValidation)
	}
	if r.BranchID != "" && r.BranchFromNumber == 0 {
		return fmt.Errorf("%w: branch id requires a branch origin", ErrValidation)
	}
	return nil
}

// Clone returns a copy of the record. The core clones on ingest so a
// caller-supplied record is never mutated.
func (r *Record) Clone() *Record {
	cp := *r
	return &cp
}
