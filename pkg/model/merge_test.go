package model

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A and B are 20 apart: separate clusters up to t10, one cluster from
// t25. C sits exactly 10 from both, bridging the two t10 clusters.
func mergeFixture(t *testing.T) (*sql.DB, *Clusterer, *Sample) {
	t.Helper()

	db := newTestDB(t)
	c := NewClusterer(db, 0)

	addTestSample(t, db, "A", seq(1, 10), nil)
	b := addTestSample(t, db, "B", seq(11, 20), nil)
	addTestSample(t, db, "C", append(seq(1, 5), seq(11, 15)...), nil)

	mustCluster(t, c, "A", AssignOptions{})
	resB := mustCluster(t, c, "B", AssignOptions{})
	require.Equal(t, SNPAddress{2, 2, 2, 1, 1, 1, 1}, resB.Address)

	return db, c, b
}

func TestAmbiguousMatchRefusedWithoutForce(t *testing.T) {
	db, c, _ := mergeFixture(t)
	ctx := context.Background()

	_, err := c.ClusterSample(ctx, "C", AssignOptions{})
	var mergeErr *MergeRequiredError
	require.ErrorAs(t, err, &mergeErr)
	assert.Equal(t, 10, mergeErr.Level)
	assert.Equal(t, []int64{1, 2}, mergeErr.Clusters)

	// the refusal left nothing behind
	sample, err := GetSampleByName(ctx, db, "C")
	require.NoError(t, err)
	_, err = GetSNPAddress(ctx, db, sample.ID)
	assert.ErrorIs(t, err, ErrNotClustered)
}

func TestForceMergeReassignsAndAudits(t *testing.T) {
	db, c, b := mergeFixture(t)
	ctx := context.Background()

	resC, err := c.ClusterSample(ctx, "C", AssignOptions{ForceMerge: true})
	require.NoError(t, err)
	assert.Equal(t, SNPAddress{3, 3, 1, 1, 1, 1, 1}, resC.Address)
	require.Len(t, resC.Merges, 1)
	assert.Equal(t, 10, resC.Merges[0].Level)
	assert.Equal(t, int64(1), resC.Merges[0].Survivor())

	// the lowest id survives and absorbs cluster 2's members
	bAddr, err := GetSNPAddress(ctx, db, b.ID)
	require.NoError(t, err)
	assert.Equal(t, SNPAddress{2, 2, 1, 1, 1, 1, 1}, bAddr)

	records, err := GetMergeRecords(ctx, db, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(2), records[0].Source)
	assert.Equal(t, int64(1), records[0].Target)

	hist, err := GetSampleHistory(ctx, db, b.ID)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, SNPAddress{2, 2, 2, 1, 1, 1, 1}, hist[0].Old)
	assert.Equal(t, bAddr, hist[0].New)

	// stats describe the merged membership, the absorbed row is gone
	stats, err := loadClusterStats(ctx, db, 10, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Members)
	assert.InDelta(t, 40.0/3.0, stats.Mean, 1e-9)

	var cons *ConsistencyError
	_, err = loadClusterStats(ctx, db, 10, 2)
	require.ErrorAs(t, err, &cons)

	require.NoError(t, checkNesting(ctx, db))
}

func TestMergeRecordsRejectBadLevel(t *testing.T) {
	db := newTestDB(t)
	_, err := GetMergeRecords(context.Background(), db, 7)
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
}
