package service

import (
	"errors"
	"fmt"
)

// Stage is a state of the cycle state machine.
type Stage string

const (
	StageFetching      Stage = "FETCHING"
	StageMemoryDone    Stage = "MEMORY_DONE"
	StageOracleDone    Stage = "ORACLE_DONE"
	StageCuriosityDone Stage = "CURIOSITY_DONE"
	StagePersisted     Stage = "PERSISTED"
)

// ErrCycleInProgress means another process holds the organization's lock.
var ErrCycleInProgress = errors.New("cycle already in progress")

// StageError aborts a cycle. Stage is the state the cycle was working
// towards when it failed; nothing of the cycle has been persisted.
type StageError struct {
	Stage          Stage
	OrganizationID string
	Err            error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("cycle %s failed at %s: %v", e.OrganizationID, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// FailedStage extracts the failing stage from err, if any.
func FailedStage(err error) (Stage, bool) {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Stage, true
	}
	return "", false
}
