package pipeline

import "time"

// Observer receives progress from a Runner. Calls happen on the run's
// goroutine, implementations must not block for long.
type Observer interface {
	StageDone(c Combination, stage Stage, elapsed time.Duration, points int)
	StageFailed(c Combination, err *StageError)
	FrameDone(runID string, c Combination, index int, stats RunStatistics)
	RunDone(summary RunSummary)
}

type Observers []Observer

func (o Observers) StageDone(c Combination, stage Stage, elapsed time.Duration, points int) {
	for _, ob := range o {
		ob.StageDone(c, stage, elapsed, points)
	}
}

func (o Observers) StageFailed(c Combination, err *StageError) {
	for _, ob := range o {
		ob.StageFailed(c, err)
	}
}

func (o Observers) FrameDone(runID string, c Combination, index int, stats RunStatistics) {
	for _, ob := range o {
		ob.FrameDone(runID, c, index, stats)
	}
}

func (o Observers) RunDone(summary RunSummary) {
	for _, ob := range o {
		ob.RunDone(summary)
	}
}
