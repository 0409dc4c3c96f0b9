package model

import (
	"errors"
	"fmt"
)

// Sentinel errors for callers that only need to branch on the class.
var (
	ErrSampleNotFound   = errors.New("sample not found")
	ErrSampleExists     = errors.New("sample already exists")
	ErrNotClustered     = errors.New("no clustering information for sample")
	ErrAlreadyClustered = errors.New("sample already clustered")
)

// ValidationError covers malformed or insufficient variant data,
// rejected before anything is written.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s", e.Msg)
}

// ContigMismatchError is returned when a distance is requested between
// samples that do not share variant data for a contig.
type ContigMismatchError struct {
	SampleID int64
	ContigID int64
}

func (e *ContigMismatchError) Error() string {
	return fmt.Sprintf("sample %d has no variant data for contig %d", e.SampleID, e.ContigID)
}

// OutlierRejection aborts a commit when the candidate (or an existing
// member) ends up too far from the cluster's distance distribution.
// Retriable with the no-check mode.
type OutlierRejection struct {
	Level   int
	Cluster int64
	ZScores []string
}

func (e *OutlierRejection) Error() string {
	return fmt.Sprintf("z-score check failed for cluster %d at t%d", e.Cluster, e.Level)
}

// MergeRequiredError aborts a commit when the sample matches more than
// one cluster at a threshold. Retriable with force-merge.
type MergeRequiredError struct {
	Level    int
	Clusters []int64
}

func (e *MergeRequiredError) Error() string {
	return fmt.Sprintf("sample matches clusters %v at t%d, merge required", e.Clusters, e.Level)
}

// ConsistencyError flags an internal invariant violation. Fatal: the
// enclosing transaction must roll back, never repair silently.
type ConsistencyError struct {
	Msg string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("consistency error: %s", e.Msg)
}
