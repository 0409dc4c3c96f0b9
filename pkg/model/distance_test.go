package model

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func variantSetOf(contigID int64, positions map[string][]uint) *VariantSet {
	return NewVariantSet(0, contigID, positions)
}

func TestPairDistanceMasksAmbiguousPositions(t *testing.T) {
	a := variantSetOf(1, map[string][]uint{"A": {1, 2, 3}, "N": {10}})
	b := variantSetOf(1, map[string][]uint{"A": {1, 10}, "-": {3}})

	// 3 is gapped on one side, 10 ambiguous on the other; only 2 counts
	assert.Equal(t, 1, pairDistance(a, b))
	assert.Equal(t, 1, pairDistance(b, a))
}

func TestPairDistanceIdenticalSamples(t *testing.T) {
	a := variantSetOf(1, map[string][]uint{"A": {1}, "C": {2}, "G": {3}, "T": {4}})
	b := variantSetOf(1, map[string][]uint{"A": {1}, "C": {2}, "G": {3}, "T": {4}})
	assert.Equal(t, 0, pairDistance(a, b))
}

func TestPairDistanceCountsAllBases(t *testing.T) {
	a := variantSetOf(1, map[string][]uint{"A": {1}, "C": {2}})
	b := variantSetOf(1, map[string][]uint{"G": {3}, "T": {4}})
	assert.Equal(t, 4, pairDistance(a, b))
}

func TestDistanceOverContigsSums(t *testing.T) {
	a := map[int64]*VariantSet{
		1: variantSetOf(1, map[string][]uint{"A": {1, 2}}),
		2: variantSetOf(2, map[string][]uint{"T": {5}}),
	}
	b := map[int64]*VariantSet{
		1: variantSetOf(1, nil),
		2: variantSetOf(2, nil),
	}

	d, err := distanceOverContigs(a, b, 42)
	require.NoError(t, err)
	assert.Equal(t, 3, d)
}

func TestDistanceOverContigsMismatch(t *testing.T) {
	a := map[int64]*VariantSet{
		1: variantSetOf(1, map[string][]uint{"A": {1}}),
		2: variantSetOf(2, nil),
	}
	b := map[int64]*VariantSet{
		1: variantSetOf(1, nil),
	}

	_, err := distanceOverContigs(a, b, 42)
	var mismatch *ContigMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, int64(42), mismatch.SampleID)
	assert.Equal(t, int64(2), mismatch.ContigID)
}

func TestDistanceBetweenIsSymmetric(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	p := addTestSample(t, db, "P", []uint{1, 2, 3}, nil)
	q := addTestSample(t, db, "Q", []uint{3, 4}, nil)

	d1, err := DistanceBetween(ctx, db, p.ID, q.ID)
	require.NoError(t, err)
	d2, err := DistanceBetween(ctx, db, q.ID, p.ID)
	require.NoError(t, err)

	assert.Equal(t, 3, d1)
	assert.Equal(t, d1, d2)
}

func TestDistancesToManyOrdersByDistanceThenID(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	q := addTestSample(t, db, "Q", nil, nil)
	p1 := addTestSample(t, db, "P1", []uint{1}, nil)
	p2 := addTestSample(t, db, "P2", []uint{2}, nil)
	p3 := addTestSample(t, db, "P3", []uint{1, 2}, nil)

	dists, err := DistancesToMany(ctx, db, q.ID, []int64{p3.ID, p2.ID, p1.ID})
	require.NoError(t, err)

	// P1 and P2 tie at distance 1; the lower id goes first
	assert.Equal(t, []SampleDistance{
		{SampleID: p1.ID, Distance: 1},
		{SampleID: p2.ID, Distance: 1},
		{SampleID: p3.ID, Distance: 2},
	}, dists)
}

func TestDistancesToManyEmptyBatch(t *testing.T) {
	db := newTestDB(t)
	p := addTestSample(t, db, "P", []uint{1}, nil)

	dists, err := DistancesToMany(context.Background(), db, p.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, dists)
}
