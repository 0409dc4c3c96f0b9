package model

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	mydb "github.com/bioepi/snapdb/pkg/db"
)

// ClusterStats aggregates the intra-cluster distance distribution of
// one (level, cluster): member count, number of pairwise distances,
// their mean and standard deviation. Mean and stddev are undefined
// (HasDists false) while the cluster has fewer than two members.
type ClusterStats struct {
	Members  int
	NofDists int
	Mean     float64
	Stddev   float64
	variance float64
	HasDists bool
}

// NewStatsFromDists builds stats from a full list of pairwise
// distances. The distance count must be members*(members-1)/2 or the
// object is inconsistent with the membership it claims to describe.
func NewStatsFromDists(members int, dists []int) (*ClusterStats, error) {

	if len(dists) != members*(members-1)/2 {
		return nil, &ConsistencyError{
			Msg: fmt.Sprintf("%d members but %d pairwise distances", members, len(dists)),
		}
	}

	s := &ClusterStats{Members: members, NofDists: len(dists)}
	if len(dists) == 0 {
		return s, nil
	}

	fd := make([]float64, len(dists))
	for i, d := range dists {
		fd[i] = float64(d)
	}
	s.Mean = stat.Mean(fd, nil)
	// Population variance: the cluster is the whole population, not a
	// sample from one.
	s.variance = stat.MomentAbout(2, fd, s.Mean, nil)
	s.Stddev = math.Sqrt(s.variance)
	s.HasDists = true
	return s, nil
}

// NewStatsFromMoments rebuilds a stats object from stored aggregates.
func NewStatsFromMoments(members int, mean, stddev float64) *ClusterStats {
	return &ClusterStats{
		Members:  members,
		NofDists: members * (members - 1) / 2,
		Mean:     mean,
		Stddev:   stddev,
		variance: stddev * stddev,
		HasDists: members > 1,
	}
}

// AddMember folds one new member into the aggregates given its
// distances to every current member. The mean and variance update one
// distance at a time with the standard incremental recurrence, so a
// growing cluster never needs its full distance list again.
func (s *ClusterStats) AddMember(dists []int) error {

	if len(dists) != s.Members {
		return &ConsistencyError{
			Msg: fmt.Sprintf("new member has %d distances for a %d-member cluster", len(dists), s.Members),
		}
	}

	switch {
	case s.Members == 0:
		// first counted member, no distances yet

	case s.Members == 1:
		s.NofDists = 1
		s.Mean = float64(dists[0])
		s.Stddev = 0.0
		s.variance = 0.0
		s.HasDists = true

	default:
		for _, d := range dists {
			nd := float64(d)
			prevMean := s.Mean

			sum := s.Mean*float64(s.NofDists) + nd
			s.NofDists++
			s.Mean = sum / float64(s.NofDists)

			// see https://math.stackexchange.com/questions/775391
			n := float64(s.NofDists)
			s.variance = ((n-1)*s.variance + (nd-s.Mean)*(nd-prevMean)) / n
			s.Stddev = math.Sqrt(s.variance)
		}
		s.HasDists = true
	}

	s.Members++
	return nil
}

// loadClusterStats reads the stored aggregates for (level, cluster).
func loadClusterStats(ctx context.Context, q mydb.Querier, level int, cluster int64) (*ClusterStats, error) {

	row := q.QueryRowContext(ctx, `
		SELECT nof_members, nof_pairwise_dists, mean_pwise_dist, stddev
		FROM cluster_stats WHERE cluster_level = ? AND cluster_name = ?`, level, cluster)

	var members, nofDists int
	var mean, stddev sql.NullFloat64
	if err := row.Scan(&members, &nofDists, &mean, &stddev); err != nil {
		if err == sql.ErrNoRows {
			return nil, &ConsistencyError{
				Msg: fmt.Sprintf("no stats for cluster %d at t%d", cluster, level),
			}
		}
		return nil, err
	}

	s := &ClusterStats{Members: members, NofDists: nofDists}
	if mean.Valid && stddev.Valid {
		s.Mean = mean.Float64
		s.Stddev = stddev.Float64
		s.variance = stddev.Float64 * stddev.Float64
		s.HasDists = true
	}
	return s, nil
}

// saveClusterStats upserts the aggregates for (level, cluster).
func saveClusterStats(ctx context.Context, q mydb.Querier, level int, cluster int64, s *ClusterStats) error {

	var mean, stddev any
	if s.HasDists {
		mean, stddev = s.Mean, s.Stddev
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO cluster_stats (cluster_level, cluster_name, nof_members, nof_pairwise_dists, mean_pwise_dist, stddev)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (cluster_level, cluster_name)
		DO UPDATE SET nof_members = excluded.nof_members,
			nof_pairwise_dists = excluded.nof_pairwise_dists,
			mean_pwise_dist = excluded.mean_pwise_dist,
			stddev = excluded.stddev`,
		level, cluster, s.Members, s.NofDists, mean, stddev)
	return err
}

func deleteClusterStats(ctx context.Context, q mydb.Querier, level int, cluster int64) error {
	_, err := q.ExecContext(ctx,
		`DELETE FROM cluster_stats WHERE cluster_level = ? AND cluster_name = ?`, level, cluster)
	return err
}

// recomputeClusterStats rebuilds the aggregates of (level, cluster)
// from scratch and refreshes every member's stored mean distance to the
// rest of the cluster. Used after merges and removals, where the
// membership changed in ways the incremental update cannot track.
func recomputeClusterStats(ctx context.Context, q mydb.Querier, level int, cluster int64) error {

	members, err := clusterMembers(ctx, q, level, cluster, true)
	if err != nil {
		return err
	}

	dists, err := AllPairwiseDistances(ctx, q, members)
	if err != nil {
		return err
	}
	s, err := NewStatsFromDists(len(members), dists)
	if err != nil {
		return err
	}
	if err := saveClusterStats(ctx, q, level, cluster, s); err != nil {
		return err
	}

	for _, m := range members {
		others := make([]int64, 0, len(members)-1)
		for _, o := range members {
			if o != m {
				others = append(others, o)
			}
		}
		if len(others) == 0 {
			continue
		}
		d, err := DistancesToMany(ctx, q, m, others)
		if err != nil {
			return err
		}
		sum := 0
		for _, sd := range d {
			sum += sd.Distance
		}
		if err := setMemberMean(ctx, q, level, m, float64(sum)/float64(len(others))); err != nil {
			return err
		}
	}
	return nil
}
