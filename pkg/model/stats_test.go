package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsIncrementalMatchesFullRecompute(t *testing.T) {
	// a 4-member cluster, distances listed member by member
	d12 := 3
	d13, d23 := 5, 4
	d14, d24, d34 := 7, 2, 6

	full, err := NewStatsFromDists(4, []int{d12, d13, d23, d14, d24, d34})
	require.NoError(t, err)

	inc, err := NewStatsFromDists(2, []int{d12})
	require.NoError(t, err)
	require.NoError(t, inc.AddMember([]int{d13, d23}))
	require.NoError(t, inc.AddMember([]int{d14, d24, d34}))

	assert.Equal(t, full.Members, inc.Members)
	assert.Equal(t, full.NofDists, inc.NofDists)
	assert.InDelta(t, full.Mean, inc.Mean, 1e-9)
	assert.InDelta(t, full.Stddev, inc.Stddev, 1e-9)
}

func TestStatsGrowFromEmpty(t *testing.T) {
	s := &ClusterStats{}

	require.NoError(t, s.AddMember(nil))
	assert.Equal(t, 1, s.Members)
	assert.False(t, s.HasDists)

	require.NoError(t, s.AddMember([]int{5}))
	assert.Equal(t, 2, s.Members)
	assert.Equal(t, 1, s.NofDists)
	assert.Equal(t, 5.0, s.Mean)
	assert.Equal(t, 0.0, s.Stddev)
	assert.True(t, s.HasDists)
}

func TestStatsCountMismatch(t *testing.T) {
	var cons *ConsistencyError

	_, err := NewStatsFromDists(3, []int{1, 2})
	require.ErrorAs(t, err, &cons)

	s, err := NewStatsFromDists(2, []int{4})
	require.NoError(t, err)
	err = s.AddMember([]int{1})
	require.ErrorAs(t, err, &cons)
}

func TestStatsFromMoments(t *testing.T) {
	s := NewStatsFromMoments(5, 2.0, 0.5)
	assert.Equal(t, 5, s.Members)
	assert.Equal(t, 10, s.NofDists)
	assert.True(t, s.HasDists)

	single := NewStatsFromMoments(1, 0, 0)
	assert.False(t, single.HasDists)
}
