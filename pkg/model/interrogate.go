package model

import (
	"context"
	"fmt"

	mydb "github.com/bioepi/snapdb/pkg/db"
)

// NamedDistance pairs a sample name with its distance to the query
// sample.
type NamedDistance struct {
	Sample   string `json:"sample"`
	Distance int    `json:"distance"`
}

// GetSNPAddressByName renders the 7-level address of a sample. Pure
// read; fails with ErrNotClustered for uncommitted samples.
func GetSNPAddressByName(ctx context.Context, q mydb.Querier, name string) (SNPAddress, error) {
	sample, err := GetSampleByName(ctx, q, name)
	if err != nil {
		return SNPAddress{}, err
	}
	return GetSNPAddress(ctx, q, sample.ID)
}

// GetClosest returns the n nearest samples by SNP distance, closest
// first. Samples tying with the n-th distance are included, so the
// result can be longer than n. The search widens cluster by cluster
// before falling back to a full scan, so a tight neighbourhood never
// pays for the whole database.
func GetClosest(ctx context.Context, q mydb.Querier, name string, n int) ([]NamedDistance, error) {

	if n < 1 {
		return nil, &ValidationError{Msg: fmt.Sprintf("need at least 1 neighbour, got %d", n)}
	}

	sample, err := GetSampleByName(ctx, q, name)
	if err != nil {
		return nil, err
	}
	snad, err := GetSNPAddress(ctx, q, sample.ID)
	if err != nil {
		return nil, err
	}

	neighbourhood := make(map[int64]bool)
	for i, level := range Levels {
		members, err := clusterMembers(ctx, q, level, snad[i], false)
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			if m != sample.ID {
				neighbourhood[m] = true
			}
		}
		if len(neighbourhood) >= n {
			break
		}
	}

	var distances []SampleDistance
	if len(neighbourhood) < n {
		distances, err = RelevantDistances(ctx, q, sample.ID)
	} else {
		ids := make([]int64, 0, len(neighbourhood))
		for id := range neighbourhood {
			ids = append(ids, id)
		}
		distances, err = DistancesToMany(ctx, q, sample.ID, ids)
	}
	if err != nil {
		return nil, err
	}

	if len(distances) > n {
		cut := n
		for cut < len(distances) && distances[cut].Distance == distances[n-1].Distance {
			cut++
		}
		distances = distances[:cut]
	}

	return resolveNames(ctx, q, distances)
}

// GetNearest returns the single nearest sample and its distance.
func GetNearest(ctx context.Context, q mydb.Querier, name string) (*NamedDistance, error) {
	closest, err := GetClosest(ctx, q, name, 1)
	if err != nil {
		return nil, err
	}
	if len(closest) == 0 {
		return nil, fmt.Errorf("%w: no other clustered samples", ErrSampleNotFound)
	}
	return &closest[0], nil
}

// GetSamplesBelowThreshold returns every sample within the given
// distance, closest first. For distances inside the hierarchy the
// candidates are scoped to the enclosing cluster at the tightest level
// that still covers the distance; beyond the coarsest level it falls
// back to all clustered samples.
func GetSamplesBelowThreshold(ctx context.Context, q mydb.Querier, name string, dist int) ([]NamedDistance, error) {

	if dist < 0 {
		return nil, &ValidationError{Msg: fmt.Sprintf("negative distance %d", dist)}
	}

	sample, err := GetSampleByName(ctx, q, name)
	if err != nil {
		return nil, err
	}
	snad, err := GetSNPAddress(ctx, q, sample.ID)
	if err != nil {
		return nil, err
	}

	var distances []SampleDistance
	if level, ok := closestLevel(dist); ok {
		members, err := clusterMembers(ctx, q, level, snad[levelIndex(level)], false)
		if err != nil {
			return nil, err
		}
		others := make([]int64, 0, len(members))
		for _, m := range members {
			if m != sample.ID {
				others = append(others, m)
			}
		}
		distances, err = DistancesToMany(ctx, q, sample.ID, others)
		if err != nil {
			return nil, err
		}
	} else {
		distances, err = RelevantDistances(ctx, q, sample.ID)
		if err != nil {
			return nil, err
		}
	}

	within := distances[:0:0]
	for _, d := range distances {
		if d.Distance <= dist {
			within = append(within, d)
		}
	}
	return resolveNames(ctx, q, within)
}

// GetSampleHistoryByName returns the rename audit trail of a sample.
func GetSampleHistoryByName(ctx context.Context, q mydb.Querier, name string) ([]HistoryEntry, error) {
	sample, err := GetSampleByName(ctx, q, name)
	if err != nil {
		return nil, err
	}
	return GetSampleHistory(ctx, q, sample.ID)
}

func resolveNames(ctx context.Context, q mydb.Querier, distances []SampleDistance) ([]NamedDistance, error) {

	out := make([]NamedDistance, 0, len(distances))
	for _, d := range distances {
		var name string
		row := q.QueryRowContext(ctx, `SELECT sample_name FROM samples WHERE pk_id = ?`, d.SampleID)
		if err := row.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, NamedDistance{Sample: name, Distance: d.Distance})
	}
	return out, nil
}
