package service

import (
	"errors"
	"fmt"
)

// Sentinel errors for pipeline-level failures.
var (
	ErrIngestion      = errors.New("ingestion failed")
	ErrNoVenueSource  = errors.New("no venue source configured")
	ErrNoEventSources = errors.New("no event sources configured")
)

// Stage is a state of the ingestion pass.
type Stage string

// Pass stages in execution order. StageTimeout marks a pass cut short by
// its deadline.
const (
	StageFetching   Stage = "fetching"
	StageValidating Stage = "validating"
	StageResolving  Stage = "resolving"
	StageMerging    Stage = "merging"
	StageDone       Stage = "done"
	StageTimeout    Stage = "timeout"
)

// IngestionError reports a failed pass. No partial result accompanies it.
type IngestionError struct {
	PassID string
	Stage  Stage
	Err    error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingestion pass %s failed at %s: %v", e.PassID, e.Stage, e.Err)
}

func (e *IngestionError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrIngestion) hold for every IngestionError.
func (e *IngestionError) Is(target error) bool { return target == ErrIngestion }
