package volume

import "errors"

// Sentinel errors shared by the pipeline stages. Stages wrap these with
// the offending operation and operands; callers match with errors.Is.
var (
	// ErrInputNotFound indicates a referenced artifact path is absent.
	ErrInputNotFound = errors.New("volume: referenced artifact not found")

	// ErrConfiguration indicates a parameter outside its valid domain.
	ErrConfiguration = errors.New("volume: parameter outside valid domain")

	// ErrGridMismatch indicates two grids required to be identical differ.
	ErrGridMismatch = errors.New("volume: grid mismatch between required-identical volumes")

	// ErrEmptyResult indicates a derived mask selects zero voxels.
	ErrEmptyResult = errors.New("volume: derived mask selects zero voxels")
)
