package ring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsBadCapacity(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
	}{
		{name: "zero", capacity: 0},
		{name: "negative", capacity: -1},
		{name: "very negative", capacity: -1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New[int](tt.capacity)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidCapacity)
		})
	}
}

func TestAddOverwritesOldest(t *testing.T) {
	b, err := New[string](3)
	require.NoError(t, err)

	for _, s := range []string{"a", "b", "c", "d", "e"} {
		b.Add(s)
	}

	assert.Equal(t, []string{"c", "d", "e"}, b.Snapshot(-1))
	assert.Equal(t, 3, b.Len())
}

func TestCapacityOneHoldsLatest(t *testing.T) {
	b, err := New[int](1)
	require.NoError(t, err)

	for i := 1; i <= 10; i++ {
		b.Add(i)
		assert.Equal(t, []int{i}, b.Snapshot(-1))
	}
}

func TestSnapshotLimit(t *testing.T) {
	b, err := New[int](5)
	require.NoError(t, err)
	for i := 1; i <= 5; i++ {
		b.Add(i)
	}

	tests := []struct {
		name  string
		limit int
		want  []int
	}{
		{name: "zero limit is empty", limit: 0, want: []int{}},
		{name: "limit below size keeps most recent", limit: 2, want: []int{4, 5}},
		{name: "limit equal to size", limit: 5, want: []int{1, 2, 3, 4, 5}},
		{name: "limit above size", limit: 10, want: []int{1, 2, 3, 4, 5}},
		{name: "negative limit returns all", limit: -1, want: []int{1, 2, 3, 4, 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, b.Snapshot(tt.limit))
		})
	}
}

func TestSnapshotOrderAfterWrap(t *testing.T) {
	b, err := New[int](4)
	require.NoError(t, err)
	for i := 1; i <= 7; i++ {
		b.Add(i)
	}
	assert.Equal(t, []int{4, 5, 6, 7}, b.Snapshot(-1))
	assert.Equal(t, []int{6, 7}, b.Snapshot(2))
}

func TestClearRetainsCapacity(t *testing.T) {
	b, err := New[int](3)
	require.NoError(t, err)
	b.Add(1)
	b.Add(2)

	b.Clear()

	assert.Equal(t, 0, b.Len())
	assert.Equal(t, 3, b.Cap())
	assert.Empty(t, b.Snapshot(-1))

	// Buffer remains usable after Clear.
	b.Add(9)
	assert.Equal(t, []int{9}, b.Snapshot(-1))
}
