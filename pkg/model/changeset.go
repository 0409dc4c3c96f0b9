package model

import (
	"context"
	"fmt"
	"time"

	mydb "github.com/bioepi/snapdb/pkg/db"
)

// commitChangeset applies an evaluated changeset inside the caller's
// transaction: allocates new cluster ids, executes forced merges,
// updates statistics and inserts the sample's cluster row. The nesting
// invariant is verified last; any violation aborts the transaction.
func commitChangeset(ctx context.Context, q mydb.Querier, cs *Changeset, now time.Time) (SNPAddress, error) {

	var snad SNPAddress
	var means [NofLevels]any
	var recomputeLevels []int

	// A bypassed sample must be flagged before any stats recompute so
	// it never enters a distribution.
	countsForStats := !cs.Sample.IgnoreZScore && !cs.Options.NoZScore
	if cs.Options.NoZScore && !cs.Sample.IgnoreZScore {
		if _, err := q.ExecContext(ctx,
			`UPDATE samples SET ignore_zscore = 1 WHERE pk_id = ?`, cs.Sample.ID); err != nil {
			return snad, err
		}
	}

	for i := range cs.proposals {
		p := &cs.proposals[i]

		switch {
		case p.newCluster:
			max, err := maxClusterID(ctx, q, p.level)
			if err != nil {
				return snad, err
			}
			snad[i] = max + 1
			stats := &ClusterStats{}
			if countsForStats {
				stats.Members = 1
			}
			if err := saveClusterStats(ctx, q, p.level, snad[i], stats); err != nil {
				return snad, err
			}

		case p.merge != nil:
			if err := executeMerge(ctx, q, p.merge, now); err != nil {
				return snad, err
			}
			snad[i] = p.merge.Survivor()
			if p.hasMean {
				means[i] = p.mean
			}
			// topology changed non-locally; incremental update is
			// unsafe, recompute from scratch below
			recomputeLevels = append(recomputeLevels, p.level)

		default:
			snad[i] = p.cluster
			if p.hasMean {
				means[i] = p.mean
			}
			if countsForStats {
				if err := applyIncrementalJoin(ctx, q, p); err != nil {
					return snad, err
				}
			}
		}
	}

	if _, err := q.ExecContext(ctx, `
		INSERT INTO sample_clusters (fk_sample_id, t0, t5, t10, t25, t50, t100, t250,
			t0_mean, t5_mean, t10_mean, t25_mean, t50_mean, t100_mean, t250_mean)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cs.Sample.ID,
		snad[0], snad[1], snad[2], snad[3], snad[4], snad[5], snad[6],
		means[0], means[1], means[2], means[3], means[4], means[5], means[6]); err != nil {
		return snad, err
	}

	for _, level := range recomputeLevels {
		idx := levelIndex(level)
		if err := recomputeClusterStats(ctx, q, level, snad[idx]); err != nil {
			return snad, err
		}
	}

	if err := checkNesting(ctx, q); err != nil {
		return snad, err
	}
	return snad, nil
}

// applyIncrementalJoin folds the candidate into the stored aggregates
// of the cluster it joins and shifts every member's stored mean by the
// one new distance. No distances are recomputed.
func applyIncrementalJoin(ctx context.Context, q mydb.Querier, p *levelProposal) error {

	stats, err := loadClusterStats(ctx, q, p.level, p.cluster)
	if err != nil {
		return err
	}

	dists := make([]int, 0, len(p.members))
	for _, m := range p.members {
		dists = append(dists, p.memberDists[m])
	}
	if err := stats.AddMember(dists); err != nil {
		return err
	}
	if err := saveClusterStats(ctx, q, p.level, p.cluster, stats); err != nil {
		return err
	}

	n := float64(len(p.members))
	for _, m := range p.members {
		oldMean, ok, err := memberMean(ctx, q, p.level, m)
		if err != nil {
			return err
		}
		if !ok {
			oldMean = 0.0
		}
		newMean := (oldMean*(n-1) + float64(p.memberDists[m])) / n
		if err := setMemberMean(ctx, q, p.level, m, newMean); err != nil {
			return err
		}
	}
	return nil
}

// checkNesting verifies the hierarchy invariant across the whole table:
// every cluster at a finer level maps into exactly one cluster at the
// next coarser level. Checking adjacent pairs covers all pairs by
// transitivity.
func checkNesting(ctx context.Context, q mydb.Querier) error {

	for i := 0; i < NofLevels-1; i++ {
		finer, coarser := tcol(Levels[i]), tcol(Levels[i+1])

		row := q.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM (
				SELECT `+finer+` FROM sample_clusters
				GROUP BY `+finer+`
				HAVING COUNT(DISTINCT `+coarser+`) > 1
			)`)
		var violations int
		if err := row.Scan(&violations); err != nil {
			return err
		}
		if violations > 0 {
			return &ConsistencyError{
				Msg: fmt.Sprintf("%d %s clusters span several %s clusters", violations, finer, coarser),
			}
		}
	}
	return nil
}
