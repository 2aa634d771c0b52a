package pipeline

import (
	"errors"
	"fmt"
)

// Stage identifies a step of the per-unit state machine. Transitions
// are strictly ordered; no stage runs before its predecessor artifacts
// exist, and a failure terminates only its own unit.
type Stage int

const (
	StageRawMask Stage = iota
	StageResampled
	StageBinarized
	StageDilated
	StageLocalMaskDerived
	StageSignalExtracted
	StageConfoundAugmented
	StageCleaned
)

var stageNames = map[Stage]string{
	StageRawMask:           "raw-mask",
	StageResampled:         "resampled",
	StageBinarized:         "binarized",
	StageDilated:           "dilated",
	StageLocalMaskDerived:  "local-mask-derived",
	StageSignalExtracted:   "signal-extracted",
	StageConfoundAugmented: "confound-augmented",
	StageCleaned:           "cleaned",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// StageError names the stage and operation where a unit failed.
type StageError struct {
	Stage Stage
	Op    string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Op, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// FailedStage extracts the stage from an error chain, defaulting to
// StageRawMask when no stage was recorded.
func FailedStage(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return StageRawMask
}

// Unit is one (subject, ROI, run) processing unit.
type Unit struct {
	Subject string
	ROI     string
	Run     string
}

func (u Unit) String() string {
	return fmt.Sprintf("%s/%s/%s", u.Subject, u.ROI, u.Run)
}

// Result is the terminal outcome of one unit. Stage records how far
// the unit progressed; Err is nil for a unit that reached Cleaned.
type Result struct {
	Unit  Unit
	Stage Stage
	Err   error
}

// OK reports whether the unit completed the full chain.
func (r Result) OK() bool { return r.Err == nil }
