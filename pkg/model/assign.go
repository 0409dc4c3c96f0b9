package model

import (
	"context"
	"fmt"
	"strings"

	mydb "github.com/bioepi/snapdb/pkg/db"
)

// AssignOptions control one clustering request.
type AssignOptions struct {
	// ForceMerge executes cluster merges instead of refusing ambiguous
	// multi-cluster matches.
	ForceMerge bool
	// NoZScore skips the outlier check. The sample is then flagged
	// ignore_zscore on commit so it can never pollute later checks.
	NoZScore bool
	// ZScoreCutoff overrides the configured rejection bound when > 0.
	ZScoreCutoff float64
}

// MergePlan names the clusters that would have to become one for an
// assignment to go through at a level. Clusters is sorted ascending;
// the numerically lowest id survives a forced merge.
type MergePlan struct {
	Level    int     `json:"level"`
	Clusters []int64 `json:"clusters"`
}

// Survivor is the cluster id that remains after the merge.
func (p *MergePlan) Survivor() int64 {
	return p.Clusters[0]
}

// levelProposal is the evaluated outcome for one threshold.
type levelProposal struct {
	level      int
	newCluster bool
	cluster    int64      // joined cluster (or merge survivor); unset for new clusters
	merge      *MergePlan // non-nil when >1 cluster matched

	// members of the (possibly merged) target cluster that count for
	// statistics, and the candidate's distances to them.
	members     []int64
	memberDists map[int64]int
	mean        float64
	hasMean     bool
}

// Changeset is the evaluated, not-yet-persisted outcome of clustering
// one sample. Produced by Evaluate, applied by Commit. Discarding one
// is a no-op; nothing is written until Commit.
type Changeset struct {
	Sample    *Sample
	Distances []SampleDistance
	Options   AssignOptions

	proposals [NofLevels]levelProposal
}

// ProposedAddress reports the evaluated cluster per level; 0 marks a
// new cluster whose id is only allocated at commit.
func (cs *Changeset) ProposedAddress() SNPAddress {
	var snad SNPAddress
	for i, p := range cs.proposals {
		if !p.newCluster {
			snad[i] = p.cluster
		}
	}
	return snad
}

// Merges lists the merge plans the changeset carries, finest level
// first.
func (cs *Changeset) Merges() []*MergePlan {
	var out []*MergePlan
	for _, p := range cs.proposals {
		if p.merge != nil {
			out = append(out, p.merge)
		}
	}
	return out
}

// matchingClusters returns the distinct cluster ids at a level that
// contain any of the given samples, ascending.
func matchingClusters(ctx context.Context, q mydb.Querier, level int, samples []int64) ([]int64, error) {

	if len(samples) == 0 {
		return nil, nil
	}

	ph := strings.TrimSuffix(strings.Repeat("?,", len(samples)), ",")
	args := make([]any, len(samples))
	for i, s := range samples {
		args[i] = s
	}

	rows, err := q.QueryContext(ctx,
		`SELECT DISTINCT `+tcol(level)+` FROM sample_clusters WHERE fk_sample_id IN (`+ph+`) ORDER BY 1`,
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clusters []int64
	for rows.Next() {
		var c int64
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		clusters = append(clusters, c)
	}
	return clusters, rows.Err()
}

// Evaluate determines, without side effects, which cluster the sample
// joins at every threshold. Re-running it before commit always yields
// the same proposal. It fails with MergeRequiredError when a level
// matches several clusters and ForceMerge is off, and with
// OutlierRejection when the z-score check fails.
func Evaluate(ctx context.Context, q mydb.Querier, sampleName string, opts AssignOptions) (*Changeset, error) {

	sample, err := GetSampleByName(ctx, q, sampleName)
	if err != nil {
		return nil, err
	}
	if sample.IgnoreSample {
		return nil, &ValidationError{Msg: fmt.Sprintf("sample %s is flagged ignored", sampleName)}
	}
	if _, err := GetSNPAddress(ctx, q, sample.ID); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyClustered, sampleName)
	}

	distances, err := RelevantDistances(ctx, q, sample.ID)
	if err != nil {
		return nil, err
	}
	distByID := make(map[int64]int, len(distances))
	for _, d := range distances {
		distByID[d.SampleID] = d.Distance
	}

	cs := &Changeset{Sample: sample, Distances: distances, Options: opts}

	for i, level := range Levels {

		var within []int64
		for _, d := range distances {
			if d.Distance <= level {
				within = append(within, d.SampleID)
			}
		}

		clusters, err := matchingClusters(ctx, q, level, within)
		if err != nil {
			return nil, err
		}

		p := levelProposal{level: level}
		switch len(clusters) {
		case 0:
			p.newCluster = true

		case 1:
			p.cluster = clusters[0]
			if err := fillJoinProposal(ctx, q, &p, distByID); err != nil {
				return nil, err
			}

		default:
			if !opts.ForceMerge {
				return nil, &MergeRequiredError{Level: level, Clusters: clusters}
			}
			p.merge = &MergePlan{Level: level, Clusters: clusters}
			p.cluster = p.merge.Survivor()
			if err := fillMergeProposal(ctx, q, &p, distByID); err != nil {
				return nil, err
			}
		}
		cs.proposals[i] = p
	}

	if !opts.NoZScore && !sample.IgnoreZScore {
		cutoff := opts.ZScoreCutoff
		if cutoff <= 0 {
			cutoff = DefaultZScoreCutoff
		}
		if err := checkOutliers(ctx, q, cs, cutoff); err != nil {
			return nil, err
		}
	}

	return cs, nil
}

// fillJoinProposal loads the statistics-relevant members of the matched
// cluster and the candidate's mean distance to them.
func fillJoinProposal(ctx context.Context, q mydb.Querier, p *levelProposal, distByID map[int64]int) error {

	members, err := clusterMembers(ctx, q, p.level, p.cluster, true)
	if err != nil {
		return err
	}
	return fillMemberDists(p, members, distByID)
}

// fillMergeProposal does the same over the union of the colliding
// clusters' members, since that union is the cluster being joined.
func fillMergeProposal(ctx context.Context, q mydb.Querier, p *levelProposal, distByID map[int64]int) error {

	var members []int64
	for _, c := range p.merge.Clusters {
		mems, err := clusterMembers(ctx, q, p.level, c, true)
		if err != nil {
			return err
		}
		members = append(members, mems...)
	}
	return fillMemberDists(p, members, distByID)
}

func fillMemberDists(p *levelProposal, members []int64, distByID map[int64]int) error {

	p.members = members
	p.memberDists = make(map[int64]int, len(members))

	sum := 0
	for _, m := range members {
		d, ok := distByID[m]
		if !ok {
			return &ConsistencyError{
				Msg: fmt.Sprintf("no distance to cluster member %d", m),
			}
		}
		p.memberDists[m] = d
		sum += d
	}
	if len(members) > 0 {
		p.mean = float64(sum) / float64(len(members))
		p.hasMean = true
	}
	return nil
}
