package model

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mydb "github.com/bioepi/snapdb/pkg/db"
)

func TestAddSampleRejectsBadDocuments(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	mutated := func(mutate func(m map[string]map[string][]uint)) *VariantsDocument {
		doc := variantsDoc("bad", []uint{1}, nil)
		mutate(doc.Positions)
		return doc
	}

	docs := map[string]*VariantsDocument{
		"no sample name":        {Positions: variantsDoc("", []uint{1}, nil).Positions},
		"no positions":          {SampleName: "bad"},
		"overlapping call sets": variantsDoc("bad", []uint{7}, []uint{7}),
		"unknown contig": mutated(func(m map[string]map[string][]uint) {
			m["chr2"] = m["chr1"]
		}),
		"missing call set": mutated(func(m map[string]map[string][]uint) {
			delete(m["chr1"], "N")
		}),
		"extra call set": mutated(func(m map[string]map[string][]uint) {
			m["chr1"]["X"] = []uint{9}
		}),
		"position zero":          variantsDoc("bad", []uint{0}, nil),
		"position beyond contig": variantsDoc("bad", []uint{10001}, nil),
	}

	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			_, err := AddSample(ctx, db, doc)
			var valErr *ValidationError
			require.ErrorAs(t, err, &valErr)

			// nothing was written
			_, err = GetSampleByName(ctx, db, "bad")
			assert.ErrorIs(t, err, ErrSampleNotFound)
		})
	}
}

func TestAddSampleDuplicateName(t *testing.T) {
	db := newTestDB(t)

	addTestSample(t, db, "dup", []uint{1}, nil)
	_, err := AddSample(context.Background(), db, variantsDoc("dup", []uint{2}, nil))
	assert.ErrorIs(t, err, ErrSampleExists)
}

func TestAddSampleNeedsReference(t *testing.T) {
	db, err := mydb.Open(":memory:")
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()
	require.NoError(t, mydb.InitSchema(ctx, db))

	_, err = AddSample(ctx, db, variantsDoc("first", []uint{1}, nil))
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
}

func TestReferenceIgnorePositionsNeverCount(t *testing.T) {
	db, err := mydb.Open(":memory:")
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()
	require.NoError(t, mydb.InitSchema(ctx, db))

	_, err = AddReference(ctx, db, "ref_v1", []ContigDef{
		{Name: "chr1", Length: 100, IgnorePositions: []uint{5, 6}},
	})
	require.NoError(t, err)

	// positions 5 and 6 are stripped at ingestion; only 7 remains
	p := addTestSample(t, db, "P", []uint{5, 6, 7}, nil)
	q := addTestSample(t, db, "Q", nil, nil)

	d, err := DistanceBetween(ctx, db, p.ID, q.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, d)
}

func TestAddReferenceNeedsContigs(t *testing.T) {
	db, err := mydb.Open(":memory:")
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()
	require.NoError(t, mydb.InitSchema(ctx, db))

	_, err = AddReference(ctx, db, "ref_v1", nil)
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)

	_, err = AddReference(ctx, db, "ref_v1", []ContigDef{{Name: "chr1"}})
	require.ErrorAs(t, err, &valErr)
}

func TestReferenceSampleNeverClusters(t *testing.T) {
	db := newTestDB(t)
	c := NewClusterer(db, 0)

	_, err := c.ClusterSample(context.Background(), "ref_v1", AssignOptions{})
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
}
