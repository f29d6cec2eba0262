package pipeline

import (
	"FeatureBench/logger"
	"fmt"

	"go.uber.org/zap"
)

type SweepConfig struct {
	Detectors   []string `yaml:"detectors" json:"detectors" mapstructure:"detectors"`
	Descriptors []string `yaml:"descriptors" json:"descriptors" mapstructure:"descriptors"`
	Matchers    []string `yaml:"matchers" json:"matchers" mapstructure:"matchers"`
	Selectors   []string `yaml:"selectors" json:"selectors" mapstructure:"selectors"`
}

// Combinations enumerates detector x descriptor x matcher x selector in that
// nesting order, leaving out incompatible detector/descriptor pairs.
func (cfg SweepConfig) Combinations() []Combination {
	var out []Combination
	for _, det := range cfg.Detectors {
		for _, des := range cfg.Descriptors {
			if !Compatible(det, des) {
				continue
			}
			for _, mat := range cfg.Matchers {
				for _, sel := range cfg.Selectors {
					out = append(out, Combination{Detector: det, Descriptor: des, Matcher: mat, Selector: sel})
				}
			}
		}
	}
	return out
}

type Sweeper struct {
	runner *Runner
	log    *zap.Logger
}

func NewSweeper(runner *Runner) *Sweeper {
	return &Sweeper{runner: runner, log: logger.Log()}
}

// Sweep runs every valid combination once over the same frame sequence. A
// configuration error in any combination aborts the sweep.
func (s *Sweeper) Sweep(cfg SweepConfig) ([]RunSummary, error) {
	combos := cfg.Combinations()
	if len(combos) == 0 {
		return nil, ErrEmptySweep
	}
	s.log.Info("Sweep started", zap.Int("combinations", len(combos)))
	summaries := make([]RunSummary, 0, len(combos))
	for _, c := range combos {
		summary, err := s.runner.Run(c)
		if err != nil {
			return summaries, fmt.Errorf("sweep point %s: %w", c, err)
		}
		summaries = append(summaries, summary)
	}
	s.log.Info("Sweep finished", zap.Int("summaries", len(summaries)))
	return summaries, nil
}
