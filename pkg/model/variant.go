package model

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/willf/bitset"

	mydb "github.com/bioepi/snapdb/pkg/db"
)

// VariantSet holds the variant calls of one sample on one contig as six
// pairwise-disjoint position sets. A position in none of them carries
// the reference base. Immutable once written.
type VariantSet struct {
	SampleID int64
	ContigID int64

	A   *bitset.BitSet
	C   *bitset.BitSet
	G   *bitset.BitSet
	T   *bitset.BitSet
	N   *bitset.BitSet
	Gap *bitset.BitSet
}

// baseKeys are the JSON keys of a positions document, in storage column
// order. "-" is the gap/no-call set.
var baseKeys = [6]string{"A", "C", "G", "T", "N", "-"}

func newBitSet(positions []uint) *bitset.BitSet {
	b := bitset.New(0)
	for _, p := range positions {
		b.Set(p)
	}
	return b
}

// sets returns the six position sets in baseKeys order.
func (v *VariantSet) sets() [6]*bitset.BitSet {
	return [6]*bitset.BitSet{v.A, v.C, v.G, v.T, v.N, v.Gap}
}

// ignored returns the union of positions this sample cannot vouch for
// on its contig: ambiguous calls and gaps.
func (v *VariantSet) ignored() *bitset.BitSet {
	u := v.N.Union(v.Gap)
	return u
}

// NewVariantSet builds a variant set from raw position slices keyed by
// base. Disjointness is the caller's problem; ingestion validates it.
func NewVariantSet(sampleID, contigID int64, positions map[string][]uint) *VariantSet {
	return &VariantSet{
		SampleID: sampleID,
		ContigID: contigID,
		A:        newBitSet(positions["A"]),
		C:        newBitSet(positions["C"]),
		G:        newBitSet(positions["G"]),
		T:        newBitSet(positions["T"]),
		N:        newBitSet(positions["N"]),
		Gap:      newBitSet(positions["-"]),
	}
}

// encodePositions renders a bitset as a sorted JSON integer array for
// storage.
func encodePositions(b *bitset.BitSet) (string, error) {
	positions := make([]uint, 0, b.Count())
	for i, ok := b.NextSet(0); ok; i, ok = b.NextSet(i + 1) {
		positions = append(positions, i)
	}
	// NextSet walks in ascending order already; keep the sort as a
	// guard for future encodings.
	sort.Slice(positions, func(i, j int) bool { return positions[i] < positions[j] })

	out, err := json.Marshal(positions)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func decodePositions(s string) (*bitset.BitSet, error) {
	var positions []uint
	if err := json.Unmarshal([]byte(s), &positions); err != nil {
		return nil, fmt.Errorf("corrupt position array: %w", err)
	}
	return newBitSet(positions), nil
}

// InsertVariantSet writes one (sample, contig) call set. Write-once:
// the unique index rejects a second set for the same pair.
func InsertVariantSet(ctx context.Context, q mydb.Querier, v *VariantSet) error {

	cols := make([]string, 0, 6)
	for _, b := range v.sets() {
		enc, err := encodePositions(b)
		if err != nil {
			return err
		}
		cols = append(cols, enc)
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO variants (fk_sample_id, fk_contig_id, a_pos, c_pos, g_pos, t_pos, n_pos, gap_pos)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		v.SampleID, v.ContigID, cols[0], cols[1], cols[2], cols[3], cols[4], cols[5])
	return err
}

// LoadVariantSets reads all call sets of a sample, keyed by contig id.
func LoadVariantSets(ctx context.Context, q mydb.Querier, sampleID int64) (map[int64]*VariantSet, error) {

	rows, err := q.QueryContext(ctx, `
		SELECT fk_contig_id, a_pos, c_pos, g_pos, t_pos, n_pos, gap_pos
		FROM variants WHERE fk_sample_id = ?`, sampleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sets := make(map[int64]*VariantSet)
	for rows.Next() {
		var contigID int64
		var raw [6]string
		if err := rows.Scan(&contigID, &raw[0], &raw[1], &raw[2], &raw[3], &raw[4], &raw[5]); err != nil {
			return nil, err
		}

		v := &VariantSet{SampleID: sampleID, ContigID: contigID}
		dst := []**bitset.BitSet{&v.A, &v.C, &v.G, &v.T, &v.N, &v.Gap}
		for i, r := range raw {
			b, err := decodePositions(r)
			if err != nil {
				return nil, err
			}
			*dst[i] = b
		}
		sets[contigID] = v
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(sets) == 0 {
		return nil, fmt.Errorf("%w: no variants for sample %d", ErrSampleNotFound, sampleID)
	}
	return sets, nil
}

// DeleteVariantSets drops all call sets of a sample. Used by removal
// only; committed variant data is otherwise immutable.
func DeleteVariantSets(ctx context.Context, q mydb.Querier, sampleID int64) error {
	_, err := q.ExecContext(ctx, `DELETE FROM variants WHERE fk_sample_id = ?`, sampleID)
	return err
}
