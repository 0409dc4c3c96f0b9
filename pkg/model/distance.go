package model

import (
	"context"
	"sort"
	"sync"

	"github.com/exascience/pargo/parallel"

	mydb "github.com/bioepi/snapdb/pkg/db"
)

// SampleDistance is one (sample, distance) result of a batch distance
// computation.
type SampleDistance struct {
	SampleID int64 `json:"sample_id"`
	Distance int   `json:"distance"`
}

// pairDistance counts the positions where the two samples call
// different true bases on one contig and neither of them calls the
// position ambiguous or absent. Bitset algebra keeps it linear in the
// number of set positions.
func pairDistance(a, b *VariantSet) int {

	diff := a.A.SymmetricDifference(b.A)
	diff.InPlaceUnion(a.C.SymmetricDifference(b.C))
	diff.InPlaceUnion(a.G.SymmetricDifference(b.G))
	diff.InPlaceUnion(a.T.SymmetricDifference(b.T))

	diff.InPlaceDifference(a.ignored())
	diff.InPlaceDifference(b.ignored())

	return int(diff.Count())
}

// distanceOverContigs sums per-contig distances into the total sample
// distance. Every contig the query sample has data for must be present
// on the other side.
func distanceOverContigs(a, b map[int64]*VariantSet, otherID int64) (int, error) {
	total := 0
	for contigID, av := range a {
		bv, ok := b[contigID]
		if !ok {
			return 0, &ContigMismatchError{SampleID: otherID, ContigID: contigID}
		}
		total += pairDistance(av, bv)
	}
	return total, nil
}

// DistanceBetween computes the SNP distance between two samples by id.
func DistanceBetween(ctx context.Context, q mydb.Querier, s1, s2 int64) (int, error) {
	a, err := LoadVariantSets(ctx, q, s1)
	if err != nil {
		return 0, err
	}
	b, err := LoadVariantSets(ctx, q, s2)
	if err != nil {
		return 0, err
	}
	return distanceOverContigs(a, b, s2)
}

// DistancesToMany computes the distance from one sample to a batch of
// others. Results come back ascending by distance, ties broken by
// ascending sample id. The per-pair work is independent, so the batch
// runs data-parallel.
func DistancesToMany(ctx context.Context, q mydb.Querier, sampleID int64, others []int64) ([]SampleDistance, error) {

	if len(others) == 0 {
		return nil, nil
	}

	query, err := LoadVariantSets(ctx, q, sampleID)
	if err != nil {
		return nil, err
	}

	// Variant sets are read up front on the single db connection; only
	// the set algebra itself runs in parallel.
	batch := make([]map[int64]*VariantSet, len(others))
	for i, id := range others {
		sets, err := LoadVariantSets(ctx, q, id)
		if err != nil {
			return nil, err
		}
		batch[i] = sets
	}

	dists := make([]SampleDistance, len(others))
	var mu sync.Mutex
	var firstErr error

	parallel.Range(0, len(others), 0, func(low, high int) {
		for i := low; i < high; i++ {
			d, err := distanceOverContigs(query, batch[i], others[i])
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			dists[i] = SampleDistance{SampleID: others[i], Distance: d}
		}
	})
	if firstErr != nil {
		return nil, firstErr
	}

	sort.Slice(dists, func(i, j int) bool {
		if dists[i].Distance != dists[j].Distance {
			return dists[i].Distance < dists[j].Distance
		}
		return dists[i].SampleID < dists[j].SampleID
	})
	return dists, nil
}

// relevantSampleIDs returns all clustered, non-ignored samples except
// the one given. These are the candidate peers for an assignment.
func relevantSampleIDs(ctx context.Context, q mydb.Querier, sampleID int64) ([]int64, error) {

	rows, err := q.QueryContext(ctx, `
		SELECT c.fk_sample_id
		FROM sample_clusters c, samples s
		WHERE s.pk_id = c.fk_sample_id AND s.ignore_sample = 0 AND c.fk_sample_id != ?
		ORDER BY c.fk_sample_id`, sampleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RelevantDistances computes the distances from a sample to every
// clustered, non-ignored sample in the database.
func RelevantDistances(ctx context.Context, q mydb.Querier, sampleID int64) ([]SampleDistance, error) {
	ids, err := relevantSampleIDs(ctx, q, sampleID)
	if err != nil {
		return nil, err
	}
	return DistancesToMany(ctx, q, sampleID, ids)
}

// AllPairwiseDistances computes every pairwise distance within a set of
// samples. Cost is quadratic in the set size; callers only pass cluster
// members.
func AllPairwiseDistances(ctx context.Context, q mydb.Querier, ids []int64) ([]int, error) {

	sets := make(map[int64]map[int64]*VariantSet, len(ids))
	for _, id := range ids {
		s, err := LoadVariantSets(ctx, q, id)
		if err != nil {
			return nil, err
		}
		sets[id] = s
	}

	var dists []int
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			d, err := distanceOverContigs(sets[ids[i]], sets[ids[j]], ids[j])
			if err != nil {
				return nil, err
			}
			dists = append(dists, d)
		}
	}
	return dists, nil
}
