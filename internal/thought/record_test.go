package thought

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRecord() *Record {
	return &Record{
		Content:       "consider the base case first",
		Number:        1,
		TotalExpected: 3,
		NextNeeded:    true,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Record)
		wantErr bool
	}{
		{name: "valid plain record", mutate: func(r *Record) {}},
		{
			name:    "empty content",
			mutate:  func(r *Record) { r.Content = "" },
			wantErr: true,
		},
		{
			name:    "zero number",
			mutate:  func(r *Record) { r.Number = 0 },
			wantErr: true,
		},
		{
			name:    "negative number",
			mutate:  func(r *Record) { r.Number = -4 },
			wantErr: true,
		},
		{
			name:    "zero total",
			mutate:  func(r *Record) { r.TotalExpected = 0 },
			wantErr: true,
		},
		{
			name:    "revision without target",
			mutate:  func(r *Record) { r.IsRevision = true },
			wantErr: true,
		},
		{
			name: "valid revision",
			mutate: func(r *Record) {
				r.IsRevision = true
				r.RevisesNumber = 1
			},
		},
		{
			name:    "branch origin without id",
			mutate:  func(r *Record) { r.BranchFromNumber = 1 },
			wantErr: true,
		},
		{
			name:    "branch id without origin",
			mutate:  func(r *Record) { r.BranchID = "alt" },
			wantErr: true,
		},
		{
			name: "valid branch",
			mutate: func(r *Record) {
				r.BranchFromNumber = 1
				r.BranchID = "alt"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRecord()
			tt.mutate(r)
			err := r.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBranchPrecedenceOverRevision(t *testing.T) {
	r := validRecord()
	r.IsRevision = true
	r.RevisesNumber = 1
	r.BranchFromNumber = 1
	r.BranchID = "alt"

	assert.True(t, r.IsBranch())
	// Branch markers suppress the revision role for the same record.
	assert.False(t, r.Revises())
}

func TestCloneIsIndependent(t *testing.T) {
	r := validRecord()
	cp := r.Clone()
	cp.SessionID = "anonymous-deadbeef"
	cp.Content = "changed"

	assert.Empty(t, r.SessionID)
	assert.Equal(t, "consider the base case first", r.Content)
}
