package db

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema for the clustering database. Position sets are stored as JSON
// integer arrays, one column per call type, mirroring the per-base
// layout of the variants data model. cluster_merges and sample_history
// are append-only audit logs.
const schema = `
CREATE TABLE IF NOT EXISTS samples (
	pk_id INTEGER PRIMARY KEY AUTOINCREMENT,
	sample_name TEXT NOT NULL UNIQUE,
	lab_id TEXT NOT NULL,
	is_reference INTEGER NOT NULL DEFAULT 0,
	ignore_sample INTEGER NOT NULL DEFAULT 0,
	ignore_zscore INTEGER NOT NULL DEFAULT 0,
	date_added TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS contigs (
	pk_id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	length INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS variants (
	pk_id INTEGER PRIMARY KEY AUTOINCREMENT,
	fk_sample_id INTEGER NOT NULL REFERENCES samples(pk_id) ON DELETE CASCADE,
	fk_contig_id INTEGER NOT NULL REFERENCES contigs(pk_id),
	a_pos TEXT NOT NULL DEFAULT '[]',
	c_pos TEXT NOT NULL DEFAULT '[]',
	g_pos TEXT NOT NULL DEFAULT '[]',
	t_pos TEXT NOT NULL DEFAULT '[]',
	n_pos TEXT NOT NULL DEFAULT '[]',
	gap_pos TEXT NOT NULL DEFAULT '[]',
	UNIQUE (fk_sample_id, fk_contig_id)
);

CREATE TABLE IF NOT EXISTS sample_clusters (
	fk_sample_id INTEGER PRIMARY KEY REFERENCES samples(pk_id),
	t0 INTEGER NOT NULL,
	t5 INTEGER NOT NULL,
	t10 INTEGER NOT NULL,
	t25 INTEGER NOT NULL,
	t50 INTEGER NOT NULL,
	t100 INTEGER NOT NULL,
	t250 INTEGER NOT NULL,
	t0_mean REAL,
	t5_mean REAL,
	t10_mean REAL,
	t25_mean REAL,
	t50_mean REAL,
	t100_mean REAL,
	t250_mean REAL
);

CREATE TABLE IF NOT EXISTS cluster_stats (
	cluster_level INTEGER NOT NULL,
	cluster_name INTEGER NOT NULL,
	nof_members INTEGER NOT NULL,
	nof_pairwise_dists INTEGER NOT NULL,
	mean_pwise_dist REAL,
	stddev REAL,
	PRIMARY KEY (cluster_level, cluster_name)
);

CREATE TABLE IF NOT EXISTS cluster_merges (
	pk_id INTEGER PRIMARY KEY AUTOINCREMENT,
	cluster_level INTEGER NOT NULL,
	source_cluster INTEGER NOT NULL,
	target_cluster INTEGER NOT NULL,
	time_of_merge TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sample_history (
	pk_id INTEGER PRIMARY KEY AUTOINCREMENT,
	fk_sample_id INTEGER NOT NULL,
	t0_old INTEGER NOT NULL, t5_old INTEGER NOT NULL, t10_old INTEGER NOT NULL,
	t25_old INTEGER NOT NULL, t50_old INTEGER NOT NULL, t100_old INTEGER NOT NULL,
	t250_old INTEGER NOT NULL,
	t0_new INTEGER NOT NULL, t5_new INTEGER NOT NULL, t10_new INTEGER NOT NULL,
	t25_new INTEGER NOT NULL, t50_new INTEGER NOT NULL, t100_new INTEGER NOT NULL,
	t250_new INTEGER NOT NULL,
	renamed_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_variants_sample ON variants(fk_sample_id);
CREATE INDEX IF NOT EXISTS idx_history_sample ON sample_history(fk_sample_id);
`

// InitSchema creates all tables when missing. Safe to call on every
// startup.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialise schema: %w", err)
	}
	return nil
}
