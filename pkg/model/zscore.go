package model

import (
	"context"
	"fmt"

	mydb "github.com/bioepi/snapdb/pkg/db"
)

// checkOutliers validates every proposed join of a changeset against
// the distance distribution of the target cluster. The candidate's
// distances are first folded into a copy of the stats, so the z-score
// is measured against the distribution as it would be after the join.
// A candidate whose mean distance sits more than cutoff standard
// deviations above that mean is rejected; so is an assignment that
// would push an existing member that far out. New clusters have no
// distribution to check against.
func checkOutliers(ctx context.Context, q mydb.Querier, cs *Changeset, cutoff float64) error {

	for i := range cs.proposals {
		p := &cs.proposals[i]
		if p.newCluster || len(p.members) < 2 {
			// single-member clusters have no pairwise distances yet
			continue
		}

		stats, err := proposalStats(ctx, q, p)
		if err != nil {
			return err
		}
		if stats.Members != len(p.members) {
			return &ConsistencyError{
				Msg: fmt.Sprintf("cluster %d at t%d: stats claim %d members, found %d",
					p.cluster, p.level, stats.Members, len(p.members)),
			}
		}

		updated := *stats
		dists := make([]int, 0, len(p.members))
		for _, m := range p.members {
			dists = append(dists, p.memberDists[m])
		}
		if err := updated.AddMember(dists); err != nil {
			return err
		}
		if !updated.HasDists {
			continue
		}

		var failures []string

		if z, outlier := zscore(p.mean, &updated, cutoff); outlier {
			failures = append(failures,
				fmt.Sprintf("candidate mean %.2f vs cluster %d at t%d (mean %.2f, stddev %.2f): z=%.2f",
					p.mean, p.cluster, p.level, updated.Mean, updated.Stddev, z))
		}

		// Adding the candidate moves every member's mean distance; any
		// member pushed past the cutoff also blocks the assignment.
		n := float64(len(p.members))
		for _, m := range p.members {
			oldMean, err := proposalMemberMean(ctx, q, p, m)
			if err != nil {
				return err
			}
			newMean := (oldMean*(n-1) + float64(p.memberDists[m])) / n
			if z, outlier := zscore(newMean, &updated, cutoff); outlier {
				failures = append(failures,
					fmt.Sprintf("member %d mean %.2f vs cluster %d at t%d: z=%.2f",
						m, newMean, p.cluster, p.level, z))
			}
		}

		if len(failures) > 0 {
			return &OutlierRejection{Level: p.level, Cluster: p.cluster, ZScores: failures}
		}
	}
	return nil
}

// zscore reports how far a mean distance sits above the cluster
// distribution and whether that exceeds the cutoff. A zero-spread
// distribution rejects anything above its mean.
func zscore(mean float64, stats *ClusterStats, cutoff float64) (float64, bool) {
	if stats.Stddev == 0 {
		return 0, mean > stats.Mean
	}
	z := (mean - stats.Mean) / stats.Stddev
	return z, z > cutoff
}

// proposalStats returns the distance distribution the candidate is
// checked against: the stored aggregates for a plain join, a fresh
// recomputation over the united membership when the join forces a
// merge (the stored per-cluster rows describe clusters that are about
// to stop existing).
func proposalStats(ctx context.Context, q mydb.Querier, p *levelProposal) (*ClusterStats, error) {

	if p.merge == nil {
		return loadClusterStats(ctx, q, p.level, p.cluster)
	}

	dists, err := AllPairwiseDistances(ctx, q, p.members)
	if err != nil {
		return nil, err
	}
	return NewStatsFromDists(len(p.members), dists)
}

// proposalMemberMean returns a member's mean distance to the rest of
// the target cluster, recomputed over the united membership when a
// merge is in play.
func proposalMemberMean(ctx context.Context, q mydb.Querier, p *levelProposal, member int64) (float64, error) {

	if p.merge == nil {
		mean, ok, err := memberMean(ctx, q, p.level, member)
		if err != nil {
			return 0, err
		}
		if !ok {
			// single-member cluster before this join
			return 0, nil
		}
		return mean, nil
	}

	others := make([]int64, 0, len(p.members)-1)
	for _, o := range p.members {
		if o != member {
			others = append(others, o)
		}
	}
	if len(others) == 0 {
		return 0, nil
	}
	dists, err := DistancesToMany(ctx, q, member, others)
	if err != nil {
		return 0, err
	}
	sum := 0
	for _, d := range dists {
		sum += d.Distance
	}
	return float64(sum) / float64(len(others)), nil
}
