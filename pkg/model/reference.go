package model

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/willf/bitset"

	mydb "github.com/bioepi/snapdb/pkg/db"
)

// ContigDef describes one contig of the reference genome, plus the
// positions that must never count towards a distance (phage regions,
// repeats, whatever the reference curators excluded).
type ContigDef struct {
	Name            string `json:"name"`
	Length          int    `json:"length"`
	IgnorePositions []uint `json:"ignore_positions,omitempty"`
}

// AddReference registers the reference genome: its contigs and a
// reference pseudo-sample whose N set carries the global ignore
// positions. The reference sample is flagged ignored so it never
// clusters. Must run before any sample ingestion.
func AddReference(ctx context.Context, sqldb *sql.DB, name string, contigs []ContigDef) (*Sample, error) {

	if len(contigs) == 0 {
		return nil, &ValidationError{Msg: "reference needs at least one contig"}
	}

	sample := &Sample{
		Name:         name,
		LabID:        uuid.New().String(),
		IsReference:  true,
		IgnoreSample: true,
		DateAdded:    time.Now().UTC(),
	}

	err := mydb.WithTx(ctx, sqldb, func(tx *sql.Tx) error {

		res, err := tx.ExecContext(ctx, `
			INSERT INTO samples (sample_name, lab_id, is_reference, ignore_sample, ignore_zscore, date_added)
			VALUES (?, ?, 1, 1, 0, ?)`,
			sample.Name, sample.LabID, sample.DateAdded.Format(timeLayout))
		if err != nil {
			return err
		}
		if sample.ID, err = res.LastInsertId(); err != nil {
			return err
		}

		for _, c := range contigs {
			if c.Length <= 0 {
				return &ValidationError{Msg: "contig " + c.Name + " has no length"}
			}
			res, err := tx.ExecContext(ctx,
				`INSERT INTO contigs (name, length) VALUES (?, ?)`, c.Name, c.Length)
			if err != nil {
				return err
			}
			contigID, err := res.LastInsertId()
			if err != nil {
				return err
			}

			v := NewVariantSet(sample.ID, contigID, map[string][]uint{
				"N": c.IgnorePositions,
			})
			if err := InsertVariantSet(ctx, tx, v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sample, nil
}

// GetContigs lists the reference contigs.
func GetContigs(ctx context.Context, q mydb.Querier) ([]Contig, error) {

	rows, err := q.QueryContext(ctx, `SELECT pk_id, name, length FROM contigs ORDER BY pk_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contigs []Contig
	for rows.Next() {
		var c Contig
		if err := rows.Scan(&c.ID, &c.Name, &c.Length); err != nil {
			return nil, err
		}
		contigs = append(contigs, c)
	}
	return contigs, rows.Err()
}

// referenceIgnores returns the reference's per-contig ignore positions,
// empty sets when no reference sample exists.
func referenceIgnores(ctx context.Context, q mydb.Querier) (map[int64]*bitset.BitSet, error) {

	var refID int64
	row := q.QueryRowContext(ctx, `SELECT pk_id FROM samples WHERE is_reference = 1`)
	if err := row.Scan(&refID); err != nil {
		if err == sql.ErrNoRows {
			return map[int64]*bitset.BitSet{}, nil
		}
		return nil, err
	}

	sets, err := LoadVariantSets(ctx, q, refID)
	if err != nil {
		return nil, err
	}

	ignores := make(map[int64]*bitset.BitSet, len(sets))
	for contigID, v := range sets {
		ignores[contigID] = v.ignored()
	}
	return ignores, nil
}
