package model

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	mydb "github.com/bioepi/snapdb/pkg/db"
)

// VariantsDocument is the ingestion payload for one sample: per contig,
// the positions where each call differs from the reference. The
// upstream pipeline has already applied its coverage gate; what arrives
// here is trusted to have passed it.
type VariantsDocument struct {
	SampleName string `json:"sample_name"`
	// Positions maps contig name -> base key -> positions. The base
	// keys are exactly A, C, G, T, N and "-" (gap).
	Positions map[string]map[string][]uint `json:"positions"`
}

// validate checks the document shape before anything touches the
// database: all six call sets present per contig, pairwise disjoint,
// every position inside the contig.
func (doc *VariantsDocument) validate(contigs map[string]Contig) error {

	if doc.SampleName == "" {
		return &ValidationError{Msg: "missing sample_name"}
	}
	if len(doc.Positions) == 0 {
		return &ValidationError{Msg: "no positions for any contig"}
	}
	for name := range contigs {
		if _, ok := doc.Positions[name]; !ok {
			return &ValidationError{Msg: fmt.Sprintf("no call sets for contig %q", name)}
		}
	}

	for contigName, byBase := range doc.Positions {
		contig, ok := contigs[contigName]
		if !ok {
			return &ValidationError{Msg: fmt.Sprintf("unknown contig %q", contigName)}
		}

		seen := make(map[uint]string)
		for _, key := range baseKeys {
			positions, ok := byBase[key]
			if !ok {
				return &ValidationError{
					Msg: fmt.Sprintf("contig %q is missing the %q call set", contigName, key),
				}
			}
			for _, p := range positions {
				if p < 1 || p > uint(contig.Length) {
					return &ValidationError{
						Msg: fmt.Sprintf("position %d outside contig %q (length %d)", p, contigName, contig.Length),
					}
				}
				if prev, dup := seen[p]; dup {
					return &ValidationError{
						Msg: fmt.Sprintf("position %d on contig %q in both %q and %q", p, contigName, prev, key),
					}
				}
				seen[p] = key
			}
		}
		if len(byBase) != len(baseKeys) {
			return &ValidationError{
				Msg: fmt.Sprintf("contig %q carries unexpected call sets", contigName),
			}
		}
	}
	return nil
}

// AddSample validates and persists one sample's variants. The
// reference's ignore positions are subtracted from every call set, so
// distances never see them. Nothing is written on any validation
// failure.
func AddSample(ctx context.Context, sqldb *sql.DB, doc *VariantsDocument) (*Sample, error) {

	sample := &Sample{
		Name:      doc.SampleName,
		LabID:     uuid.New().String(),
		DateAdded: time.Now().UTC(),
	}

	err := mydb.WithTx(ctx, sqldb, func(tx *sql.Tx) error {

		contigList, err := GetContigs(ctx, tx)
		if err != nil {
			return err
		}
		if len(contigList) == 0 {
			return &ValidationError{Msg: "no reference loaded; add a reference first"}
		}
		contigs := make(map[string]Contig, len(contigList))
		for _, c := range contigList {
			contigs[c.Name] = c
		}

		if err := doc.validate(contigs); err != nil {
			return err
		}
		if _, err := GetSampleByName(ctx, tx, doc.SampleName); err == nil {
			return fmt.Errorf("%w: %s", ErrSampleExists, doc.SampleName)
		}

		ignores, err := referenceIgnores(ctx, tx)
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO samples (sample_name, lab_id, is_reference, ignore_sample, ignore_zscore, date_added)
			VALUES (?, ?, 0, 0, 0, ?)`,
			sample.Name, sample.LabID, sample.DateAdded.Format(timeLayout))
		if err != nil {
			return err
		}
		if sample.ID, err = res.LastInsertId(); err != nil {
			return err
		}

		for contigName, byBase := range doc.Positions {
			contig := contigs[contigName]
			v := NewVariantSet(sample.ID, contig.ID, byBase)

			if ign, ok := ignores[contig.ID]; ok {
				for _, b := range v.sets() {
					b.InPlaceDifference(ign)
				}
			}
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
