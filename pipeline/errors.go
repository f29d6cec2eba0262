package pipeline

import (
	"errors"
	"fmt"
)

var (
	ErrIncompatiblePair   = errors.New("incompatible detector/descriptor pair")
	ErrDescriptorMismatch = errors.New("descriptor sets are not comparable")
	ErrEmptyImage         = errors.New("empty image")
	ErrFrameLoad          = errors.New("failed to load frame")
	ErrProviderPanic      = errors.New("vision provider panicked")
	ErrEmptySweep         = errors.New("sweep has no candidates")
)

type Stage int

const (
	StageDetect Stage = iota + 1
	StageDescribe
	StageMatch
)

func (s Stage) String() string {
	switch s {
	case StageDetect:
		return "detect"
	case StageDescribe:
		return "describe"
	case StageMatch:
		return "match"
	}
	return "unknown"
}

// StageError is a recovered per-frame failure. The frame's remaining stages are
// skipped, later frames are unaffected.
type StageError struct {
	Stage Stage
	Frame int
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed on frame %d: %v", e.Stage, e.Frame, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
