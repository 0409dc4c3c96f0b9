package model

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bioepi/snapdb/logger"
	mydb "github.com/bioepi/snapdb/pkg/db"
)

// RemoveMode selects what remains of a sample after removal.
type RemoveMode int

const (
	// RemoveFully deletes the sample and its variants; it can be added
	// and clustered again later.
	RemoveFully RemoveMode = iota
	// RemoveIgnoreOnly keeps the sample and variant rows but flags the
	// sample ignored; only the clustering effects are reversed.
	RemoveIgnoreOnly
)

// RemoveSample reverses the clustering effects of one sample. At every
// threshold the remaining members of its cluster are re-checked for
// connectivity without it; a cluster that falls apart is partitioned
// into its connected components, each under a freshly allocated id.
// Quadratic in the cluster size per level, which is the accepted price
// of a correct split.
func (c *Clusterer) RemoveSample(ctx context.Context, name string, mode RemoveMode) error {

	c.mu.Lock()
	defer c.mu.Unlock()

	return mydb.WithTx(ctx, c.db, func(tx *sql.Tx) error {
		return removeSample(ctx, tx, name, mode, time.Now().UTC())
	})
}

func removeSample(ctx context.Context, q mydb.Querier, name string, mode RemoveMode, now time.Time) error {

	sample, err := GetSampleByName(ctx, q, name)
	if err != nil {
		return err
	}

	snad, err := GetSNPAddress(ctx, q, sample.ID)
	switch {
	case err == nil:
		// clustered; unwind below
	case errorsIsNotClustered(err):
		// ignored or never committed; nothing clustered to unwind
		return finishRemoval(ctx, q, sample, mode)
	default:
		return err
	}

	// The sample's own row goes first so every membership query below
	// sees the world without it.
	if _, err := q.ExecContext(ctx,
		`DELETE FROM sample_clusters WHERE fk_sample_id = ?`, sample.ID); err != nil {
		return err
	}

	// Everyone who shared any cluster with the removed sample may end
	// up renamed; capture their addresses before touching anything.
	oldAddrs := make(map[int64]SNPAddress)
	for i, level := range Levels {
		members, err := clusterMembers(ctx, q, level, snad[i], false)
		if err != nil {
			return err
		}
		for _, m := range members {
			if _, seen := oldAddrs[m]; !seen {
				addr, err := GetSNPAddress(ctx, q, m)
				if err != nil {
					return err
				}
				oldAddrs[m] = addr
			}
		}
	}

	for i, level := range Levels {
		if err := rebuildClusterAtLevel(ctx, q, level, snad[i]); err != nil {
			return err
		}
	}

	for memberID, old := range oldAddrs {
		updated, err := GetSNPAddress(ctx, q, memberID)
		if err != nil {
			return err
		}
		if updated != old {
			if err := insertHistoryRow(ctx, q, memberID, old, updated, now); err != nil {
				return err
			}
		}
	}

	if err := checkNesting(ctx, q); err != nil {
		return err
	}

	logger.Info("Sample removed from clustering",
		zap.String("sample", sample.Name),
		zap.String("snp_address", snad.String()),
		zap.Bool("ignore_only", mode == RemoveIgnoreOnly))

	return finishRemoval(ctx, q, sample, mode)
}

// rebuildClusterAtLevel re-derives the structure of one cluster after a
// member left: recompute stats if it stayed connected, split it into
// components under fresh ids if not.
func rebuildClusterAtLevel(ctx context.Context, q mydb.Querier, level int, cluster int64) error {

	members, err := clusterMembers(ctx, q, level, cluster, false)
	if err != nil {
		return err
	}
	if len(members) == 0 {
		return deleteClusterStats(ctx, q, level, cluster)
	}

	components, err := connectedComponents(ctx, q, members, level)
	if err != nil {
		return err
	}

	if len(components) == 1 {
		return recomputeClusterStats(ctx, q, level, cluster)
	}

	// Disconnected: every component gets a new id, none inherits the
	// old one.
	for _, comp := range components {
		max, err := maxClusterID(ctx, q, level)
		if err != nil {
			return err
		}
		newID := max + 1
		for _, m := range comp {
			if _, err := q.ExecContext(ctx,
				`UPDATE sample_clusters SET `+tcol(level)+` = ? WHERE fk_sample_id = ?`, newID, m); err != nil {
				return err
			}
		}
		if err := recomputeClusterStats(ctx, q, level, newID); err != nil {
			return err
		}
	}
	return deleteClusterStats(ctx, q, level, cluster)
}

// connectedComponents partitions samples into groups connected by
// "distance <= level" edges. Single linkage: one qualifying edge joins
// two groups.
func connectedComponents(ctx context.Context, q mydb.Querier, ids []int64, level int) ([][]int64, error) {

	sets := make(map[int64]map[int64]*VariantSet, len(ids))
	for _, id := range ids {
		s, err := LoadVariantSets(ctx, q, id)
		if err != nil {
			return nil, err
		}
		sets[id] = s
	}

	adj := make(map[int64][]int64, len(ids))
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			d, err := distanceOverContigs(sets[ids[i]], sets[ids[j]], ids[j])
			if err != nil {
				return nil, err
			}
			if d <= level {
				adj[ids[i]] = append(adj[ids[i]], ids[j])
				adj[ids[j]] = append(adj[ids[j]], ids[i])
			}
		}
	}

	visited := make(map[int64]bool, len(ids))
	var components [][]int64
	for _, start := range ids {
		if visited[start] {
			continue
		}
		var comp []int64
		queue := []int64{start}
		visited[start] = true
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			comp = append(comp, cur)
			for _, next := range adj[cur] {
				if !visited[next] {
					visited[next] = true
					queue = append(queue, next)
				}
			}
		}
		components = append(components, comp)
	}
	return components, nil
}

// finishRemoval applies the removal mode to the sample and variant
// rows themselves.
func finishRemoval(ctx context.Context, q mydb.Querier, sample *Sample, mode RemoveMode) error {

	if mode == RemoveIgnoreOnly {
		_, err := q.ExecContext(ctx,
			`UPDATE samples SET ignore_sample = 1 WHERE pk_id = ?`, sample.ID)
		return err
	}

	if err := DeleteVariantSets(ctx, q, sample.ID); err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM samples WHERE pk_id = ?`, sample.ID); err != nil {
		return fmt.Errorf("failed to delete sample %s: %w", sample.Name, err)
	}
	return nil
}

func errorsIsNotClustered(err error) bool {
	return errors.Is(err, ErrNotClustered)
}
