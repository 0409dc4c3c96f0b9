package model

import (
	"context"
	"fmt"
	"strings"
	"time"

	mydb "github.com/bioepi/snapdb/pkg/db"
)

// executeMerge reassigns every member of the non-surviving clusters to
// the survivor at the plan's level, appends one cluster_merges row per
// absorbed cluster and one full-width sample_history row per moved
// sample, and drops the absorbed clusters' stats rows. The survivor's
// stats are not touched here; the caller recomputes them once the
// triggering sample is in place.
func executeMerge(ctx context.Context, q mydb.Querier, plan *MergePlan, now time.Time) error {

	survivor := plan.Survivor()
	sources := plan.Clusters[1:]

	// Old addresses first; the history row wants the pre-merge state.
	affected := make(map[int64]SNPAddress)
	for _, src := range sources {
		members, err := clusterMembers(ctx, q, plan.Level, src, false)
		if err != nil {
			return err
		}
		for _, m := range members {
			snad, err := GetSNPAddress(ctx, q, m)
			if err != nil {
				return err
			}
			affected[m] = snad
		}
	}

	ph := strings.TrimSuffix(strings.Repeat("?,", len(sources)), ",")
	args := []any{survivor}
	for _, src := range sources {
		args = append(args, src)
	}
	if _, err := q.ExecContext(ctx,
		`UPDATE sample_clusters SET `+tcol(plan.Level)+` = ? WHERE `+tcol(plan.Level)+` IN (`+ph+`)`,
		args...); err != nil {
		return err
	}

	for _, src := range sources {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO cluster_merges (cluster_level, source_cluster, target_cluster, time_of_merge)
			VALUES (?, ?, ?, ?)`,
			plan.Level, src, survivor, now.Format(timeLayout)); err != nil {
			return err
		}
		if err := deleteClusterStats(ctx, q, plan.Level, src); err != nil {
			return err
		}
	}

	for sampleID, old := range affected {
		updated, err := GetSNPAddress(ctx, q, sampleID)
		if err != nil {
			return err
		}
		if err := insertHistoryRow(ctx, q, sampleID, old, updated, now); err != nil {
			return err
		}
	}

	return nil
}

// insertHistoryRow appends one rename record. Rows carry the full
// 7-level old and new address even when a single level changed.
func insertHistoryRow(ctx context.Context, q mydb.Querier, sampleID int64, old, updated SNPAddress, now time.Time) error {

	_, err := q.ExecContext(ctx, `
		INSERT INTO sample_history (fk_sample_id,
			t0_old, t5_old, t10_old, t25_old, t50_old, t100_old, t250_old,
			t0_new, t5_new, t10_new, t25_new, t50_new, t100_new, t250_new,
			renamed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sampleID,
		old[0], old[1], old[2], old[3], old[4], old[5], old[6],
		updated[0], updated[1], updated[2], updated[3], updated[4], updated[5], updated[6],
		now.Format(timeLayout))
	return err
}

// GetSampleHistory returns the rename audit trail of a sample, oldest
// first.
func GetSampleHistory(ctx context.Context, q mydb.Querier, sampleID int64) ([]HistoryEntry, error) {

	rows, err := q.QueryContext(ctx, `
		SELECT fk_sample_id,
			t0_old, t5_old, t10_old, t25_old, t50_old, t100_old, t250_old,
			t0_new, t5_new, t10_new, t25_new, t50_new, t100_new, t250_new,
			renamed_at
		FROM sample_history WHERE fk_sample_id = ? ORDER BY pk_id`, sampleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var at string
		if err := rows.Scan(&e.SampleID,
			&e.Old[0], &e.Old[1], &e.Old[2], &e.Old[3], &e.Old[4], &e.Old[5], &e.Old[6],
			&e.New[0], &e.New[1], &e.New[2], &e.New[3], &e.New[4], &e.New[5], &e.New[6],
			&at); err != nil {
			return nil, err
		}
		var perr error
		if e.RenamedAt, perr = time.Parse(timeLayout, at); perr != nil {
			return nil, perr
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// GetMergeRecords returns the merge audit log at one level, oldest
// first.
func GetMergeRecords(ctx context.Context, q mydb.Querier, level int) ([]MergeRecord, error) {

	if levelIndex(level) < 0 {
		return nil, &ValidationError{Msg: fmt.Sprintf("t%d is not a cluster level", level)}
	}

	rows, err := q.QueryContext(ctx, `
		SELECT cluster_level, source_cluster, target_cluster, time_of_merge
		FROM cluster_merges WHERE cluster_level = ? ORDER BY pk_id`, level)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []MergeRecord
	for rows.Next() {
		var r MergeRecord
		var at string
		if err := rows.Scan(&r.Level, &r.Source, &r.Target, &at); err != nil {
			return nil, err
		}
		var perr error
		if r.TimeOfMerge, perr = time.Parse(timeLayout, at); perr != nil {
			return nil, perr
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
