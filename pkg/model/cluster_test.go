package model

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The chain fixture: dist(X,Y)=3, dist(Y,Z)=4, dist(X,Z)=8. The masked
// position 5 on Y is what keeps the X-Y distance at 3.
func TestSingleLinkageChain(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	c := NewClusterer(db, 0)

	x := addTestSample(t, db, "X", seq(1, 8), nil)
	y := addTestSample(t, db, "Y", []uint{1, 2, 3, 4}, []uint{5})
	z := addTestSample(t, db, "Z", nil, nil)

	dXY, err := DistanceBetween(ctx, db, x.ID, y.ID)
	require.NoError(t, err)
	dYZ, err := DistanceBetween(ctx, db, y.ID, z.ID)
	require.NoError(t, err)
	dXZ, err := DistanceBetween(ctx, db, x.ID, z.ID)
	require.NoError(t, err)
	require.Equal(t, []int{3, 4, 8}, []int{dXY, dYZ, dXZ})

	resX := mustCluster(t, c, "X", AssignOptions{})
	assert.Equal(t, SNPAddress{1, 1, 1, 1, 1, 1, 1}, resX.Address)
	assert.Equal(t, []int{0, 5, 10, 25, 50, 100, 250}, resX.NewLevels)

	resY := mustCluster(t, c, "Y", AssignOptions{})
	assert.Equal(t, SNPAddress{2, 1, 1, 1, 1, 1, 1}, resY.Address)
	assert.Equal(t, []int{0}, resY.NewLevels)

	// dist(X,Z) is 8, but Z still chains into the t5 cluster through Y
	resZ := mustCluster(t, c, "Z", AssignOptions{})
	assert.Equal(t, SNPAddress{3, 1, 1, 1, 1, 1, 1}, resZ.Address)
	assert.Equal(t, "1-1-1-1-1-1-3", resZ.SNPAddress)

	stats, err := loadClusterStats(ctx, db, 5, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Members)
	assert.Equal(t, 3, stats.NofDists)
	assert.InDelta(t, 5.0, stats.Mean, 1e-9)

	require.NoError(t, checkNesting(ctx, db))
}

func TestEvaluateIsPureAndRepeatable(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	c := NewClusterer(db, 0)

	addTestSample(t, db, "X", seq(1, 8), nil)
	y := addTestSample(t, db, "Y", []uint{1, 2, 3, 4}, []uint{5})
	mustCluster(t, c, "X", AssignOptions{})

	first, err := c.EvaluateSample(ctx, "Y", AssignOptions{})
	require.NoError(t, err)
	second, err := c.EvaluateSample(ctx, "Y", AssignOptions{})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.True(t, first.DryRun)
	// 0 marks the level where a fresh cluster would be allocated
	assert.Equal(t, SNPAddress{0, 1, 1, 1, 1, 1, 1}, first.Address)
	assert.Equal(t, []int{0}, first.NewLevels)

	// nothing was persisted
	_, err = GetSNPAddress(ctx, db, y.ID)
	assert.ErrorIs(t, err, ErrNotClustered)
}

func TestClusterSampleTwiceRefused(t *testing.T) {
	db := newTestDB(t)
	c := NewClusterer(db, 0)

	addTestSample(t, db, "X", seq(1, 8), nil)
	mustCluster(t, c, "X", AssignOptions{})

	_, err := c.ClusterSample(context.Background(), "X", AssignOptions{})
	assert.ErrorIs(t, err, ErrAlreadyClustered)
}

func TestClusterUnknownSample(t *testing.T) {
	db := newTestDB(t)
	c := NewClusterer(db, 0)

	_, err := c.ClusterSample(context.Background(), "ghost", AssignOptions{})
	assert.ErrorIs(t, err, ErrSampleNotFound)
}

func TestNestingCheckFlagsViolation(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	c := NewClusterer(db, 0)

	x := addTestSample(t, db, "X", seq(1, 8), nil)
	addTestSample(t, db, "Y", []uint{1, 2, 3, 4}, []uint{5})
	mustCluster(t, c, "X", AssignOptions{})
	mustCluster(t, c, "Y", AssignOptions{})

	require.NoError(t, checkNesting(ctx, db))

	// tear X out of the shared t10 cluster while it still shares t5
	_, err := db.ExecContext(ctx,
		`UPDATE sample_clusters SET t10 = 99 WHERE fk_sample_id = ?`, x.ID)
	require.NoError(t, err)

	var cons *ConsistencyError
	require.ErrorAs(t, checkNesting(ctx, db), &cons)
}
