package model

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	mydb "github.com/bioepi/snapdb/pkg/db"

	_ "modernc.org/sqlite"
)

// newTestDB opens an in-memory database with the schema and a
// single-contig reference loaded.
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := mydb.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, mydb.InitSchema(context.Background(), db))

	_, err = AddReference(context.Background(), db, "ref_v1", []ContigDef{
		{Name: "chr1", Length: 10000},
	})
	require.NoError(t, err)

	return db
}

// variantsDoc builds an ingestion document for chr1 with the given A
// and N position sets; the other call sets stay empty.
func variantsDoc(name string, apos, npos []uint) *VariantsDocument {
	return &VariantsDocument{
		SampleName: name,
		Positions: map[string]map[string][]uint{
			"chr1": {
				"A": apos,
				"C": {},
				"G": {},
				"T": {},
				"N": npos,
				"-": {},
			},
		},
	}
}

// addTestSample ingests a sample whose distance to others is driven by
// its A call set alone.
func addTestSample(t *testing.T, db *sql.DB, name string, apos, npos []uint) *Sample {
	t.Helper()

	sample, err := AddSample(context.Background(), db, variantsDoc(name, apos, npos))
	require.NoError(t, err)
	return sample
}

// seq returns the positions from..to inclusive.
func seq(from, to uint) []uint {
	var out []uint
	for p := from; p <= to; p++ {
		out = append(out, p)
	}
	return out
}

func mustCluster(t *testing.T, c *Clusterer, name string, opts AssignOptions) *AssignResult {
	t.Helper()

	res, err := c.ClusterSample(context.Background(), name, opts)
	require.NoError(t, err)
	return res
}
