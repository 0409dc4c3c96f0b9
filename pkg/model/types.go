package model

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	mydb "github.com/bioepi/snapdb/pkg/db"
)

// Sample is one row of the samples table.
type Sample struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	LabID        string    `json:"lab_id"`
	IsReference  bool      `json:"is_reference"`
	IgnoreSample bool      `json:"ignore_sample"`
	IgnoreZScore bool      `json:"ignore_zscore"`
	DateAdded    time.Time `json:"date_added"`
}

// SNPAddress is the cluster id at every level, finest first
// (same order as Levels).
type SNPAddress [NofLevels]int64

// String renders the address coarse to fine, the way it is reported to
// users: t250-t100-t50-t25-t10-t5-t0.
func (a SNPAddress) String() string {
	parts := make([]string, 0, NofLevels)
	for i := NofLevels - 1; i >= 0; i-- {
		parts = append(parts, fmt.Sprintf("%d", a[i]))
	}
	return strings.Join(parts, "-")
}

// Contig is a reference coordinate space for one chromosome or segment.
type Contig struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Length int    `json:"length"`
}

// HistoryEntry is one append-only rename record from sample_history.
type HistoryEntry struct {
	SampleID  int64      `json:"sample_id"`
	Old       SNPAddress `json:"old"`
	New       SNPAddress `json:"new"`
	RenamedAt time.Time  `json:"renamed_at"`
}

// MergeRecord is one append-only row from cluster_merges.
type MergeRecord struct {
	Level       int       `json:"level"`
	Source      int64     `json:"source"`
	Target      int64     `json:"target"`
	TimeOfMerge time.Time `json:"time_of_merge"`
}

const timeLayout = time.RFC3339Nano

// GetSampleByName looks a sample up by its unique name.
func GetSampleByName(ctx context.Context, q mydb.Querier, name string) (*Sample, error) {

	row := q.QueryRowContext(ctx, `
		SELECT pk_id, sample_name, lab_id, is_reference, ignore_sample, ignore_zscore, date_added
		FROM samples WHERE sample_name = ?`, name)

	var s Sample
	var added string
	err := row.Scan(&s.ID, &s.Name, &s.LabID, &s.IsReference, &s.IgnoreSample, &s.IgnoreZScore, &added)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrSampleNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	if s.DateAdded, err = time.Parse(timeLayout, added); err != nil {
		return nil, err
	}
	return &s, nil
}

// GetSNPAddress returns the stored 7-level address of a clustered
// sample, ErrNotClustered when it has never been committed.
func GetSNPAddress(ctx context.Context, q mydb.Querier, sampleID int64) (SNPAddress, error) {

	var snad SNPAddress
	row := q.QueryRowContext(ctx, `
		SELECT t0, t5, t10, t25, t50, t100, t250
		FROM sample_clusters WHERE fk_sample_id = ?`, sampleID)

	err := row.Scan(&snad[0], &snad[1], &snad[2], &snad[3], &snad[4], &snad[5], &snad[6])
	if err == sql.ErrNoRows {
		return snad, fmt.Errorf("%w: sample %d", ErrNotClustered, sampleID)
	}
	if err != nil {
		return snad, err
	}
	return snad, nil
}

// clusterMembers returns the sample ids assigned to a cluster at a
// level. With excludeNoStats set, samples flagged ignore_zscore are
// left out, which is what every statistics path wants.
func clusterMembers(ctx context.Context, q mydb.Querier, level int, cluster int64, excludeNoStats bool) ([]int64, error) {

	qs := `
		SELECT c.fk_sample_id
		FROM sample_clusters c, samples s
		WHERE c.` + tcol(level) + ` = ? AND s.pk_id = c.fk_sample_id`
	if excludeNoStats {
		qs += ` AND s.ignore_zscore = 0`
	}
	qs += ` ORDER BY c.fk_sample_id`

	rows, err := q.QueryContext(ctx, qs, cluster)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		members = append(members, id)
	}
	return members, rows.Err()
}

// maxClusterID returns the highest cluster id in use at a level, 0 when
// the level is still empty. The next free id is always max+1.
func maxClusterID(ctx context.Context, q mydb.Querier, level int) (int64, error) {
	var m sql.NullInt64
	row := q.QueryRowContext(ctx, `SELECT MAX(`+tcol(level)+`) FROM sample_clusters`)
	if err := row.Scan(&m); err != nil {
		return 0, err
	}
	if !m.Valid {
		return 0, nil
	}
	return m.Int64, nil
}

// memberMean reads the stored mean distance of a sample to the other
// members of its cluster at a level. NULL (single-member cluster) reads
// as ok=false.
func memberMean(ctx context.Context, q mydb.Querier, level int, sampleID int64) (float64, bool, error) {
	var m sql.NullFloat64
	row := q.QueryRowContext(ctx,
		`SELECT `+tmeanCol(level)+` FROM sample_clusters WHERE fk_sample_id = ?`, sampleID)
	if err := row.Scan(&m); err != nil {
		if err == sql.ErrNoRows {
			return 0, false, fmt.Errorf("%w: sample %d", ErrNotClustered, sampleID)
		}
		return 0, false, err
	}
	return m.Float64, m.Valid, nil
}

func setMemberMean(ctx context.Context, q mydb.Querier, level int, sampleID int64, mean float64) error {
	_, err := q.ExecContext(ctx,
		`UPDATE sample_clusters SET `+tmeanCol(level)+` = ? WHERE fk_sample_id = ?`, mean, sampleID)
	return err
}
