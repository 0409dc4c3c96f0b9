package model

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bioepi/snapdb/logger"
	mydb "github.com/bioepi/snapdb/pkg/db"
)

// Clusterer owns the write path of the clustering database. All
// mutating operations (assignment, merge, removal) run under one
// mutex: concurrent merges touching overlapping clusters could race
// and break the nesting invariant, so they are serialized per
// database. Read-only queries go around it.
type Clusterer struct {
	db     *sql.DB
	cutoff float64
	mu     sync.Mutex
}

// NewClusterer wires a clusterer over an open database. cutoff <= 0
// selects the default z-score bound.
func NewClusterer(db *sql.DB, cutoff float64) *Clusterer {
	if cutoff <= 0 {
		cutoff = DefaultZScoreCutoff
	}
	return &Clusterer{db: db, cutoff: cutoff}
}

// DB exposes the underlying handle for read-only queries.
func (c *Clusterer) DB() *sql.DB {
	return c.db
}

// AssignResult is what a committed (or dry-run) assignment reports
// back.
type AssignResult struct {
	Sample      string       `json:"sample"`
	Address     SNPAddress   `json:"address"`
	SNPAddress  string       `json:"snp_address"`
	NewLevels   []int        `json:"new_levels,omitempty"`
	Merges      []*MergePlan `json:"merges,omitempty"`
	DryRun      bool         `json:"dry_run,omitempty"`
}

// EvaluateSample runs the assignment evaluation without committing
// anything. The proposed address reports 0 at levels where a new
// cluster would be allocated.
func (c *Clusterer) EvaluateSample(ctx context.Context, name string, opts AssignOptions) (*AssignResult, error) {

	c.mu.Lock()
	defer c.mu.Unlock()

	opts = c.withCutoff(opts)
	cs, err := Evaluate(ctx, c.db, name, opts)
	if err != nil {
		return nil, err
	}

	res := resultFromChangeset(cs, cs.ProposedAddress())
	res.DryRun = true
	return res, nil
}

// ClusterSample evaluates and commits the assignment of one sample as
// a single serialized transaction. On any error the database is left
// untouched.
func (c *Clusterer) ClusterSample(ctx context.Context, name string, opts AssignOptions) (*AssignResult, error) {

	c.mu.Lock()
	defer c.mu.Unlock()

	opts = c.withCutoff(opts)
	cs, err := Evaluate(ctx, c.db, name, opts)
	if err != nil {
		return nil, err
	}
	return c.commit(ctx, cs)
}

// Commit applies a previously evaluated changeset. Discarding a
// changeset instead needs no call at all; an uncommitted changeset has
// no persisted effect.
func (c *Clusterer) Commit(ctx context.Context, cs *Changeset) (*AssignResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commit(ctx, cs)
}

func (c *Clusterer) commit(ctx context.Context, cs *Changeset) (*AssignResult, error) {

	var snad SNPAddress
	err := mydb.WithTx(ctx, c.db, func(tx *sql.Tx) error {
		var err error
		snad, err = commitChangeset(ctx, tx, cs, time.Now().UTC())
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Sample clustered",
		zap.String("sample", cs.Sample.Name),
		zap.String("snp_address", snad.String()),
		zap.Int("merges", len(cs.Merges())))

	return resultFromChangeset(cs, snad), nil
}

func (c *Clusterer) withCutoff(opts AssignOptions) AssignOptions {
	if opts.ZScoreCutoff <= 0 {
		opts.ZScoreCutoff = c.cutoff
	}
	return opts
}

func resultFromChangeset(cs *Changeset, snad SNPAddress) *AssignResult {

	res := &AssignResult{
		Sample:     cs.Sample.Name,
		Address:    snad,
		SNPAddress: snad.String(),
		Merges:     cs.Merges(),
	}
	for i := range cs.proposals {
		if cs.proposals[i].newCluster {
			res.NewLevels = append(res.NewLevels, Levels[i])
		}
	}
	return res
}
