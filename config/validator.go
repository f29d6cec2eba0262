package config

import (
	"FeatureBench/pipeline"
	"fmt"
	"slices"
)

// Validate checks the configuration and fills defaults for omitted values.
func Validate(cfg *Config) error {
	if cfg.Log.Mode == "" {
		cfg.Log.Mode = "production"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	if cfg.Frames.List == "" {
		if cfg.Frames.Fill < 0 {
			return fmt.Errorf("frames.fill must be >= 0")
		}
		if cfg.Frames.Last < cfg.Frames.First {
			return fmt.Errorf("frames.last (%d) before frames.first (%d)", cfg.Frames.Last, cfg.Frames.First)
		}
	}

	// a negative window is rejected by the runner as a configuration error
	if cfg.Run.BufferSize == 0 {
		cfg.Run.BufferSize = 2
	}
	if cfg.Run.Ratio == 0 {
		cfg.Run.Ratio = pipeline.DefaultRatio
	}
	if cfg.Run.Ratio < 0 || cfg.Run.Ratio > 1 {
		return fmt.Errorf("run.ratio must be in (0, 1], got %v", cfg.Run.Ratio)
	}
	if cfg.Run.MaxKeypoints == 0 {
		cfg.Run.MaxKeypoints = pipeline.DefaultMaxKeypoints
	}
	if cfg.Run.VehicleRect.Empty() {
		cfg.Run.VehicleRect = pipeline.VehicleRect
	}

	if err := validateSweep(&cfg.Sweep); err != nil {
		return fmt.Errorf("sweep validation failed: %w", err)
	}

	if cfg.Report.CSV == "" {
		cfg.Report.CSV = "stats.csv"
	}

	if cfg.Server.HTTPPort == 0 {
		cfg.Server.HTTPPort = 8080
	}
	if cfg.Server.RPCPort == 0 {
		cfg.Server.RPCPort = 50051
	}
	if cfg.Server.MetricsPort == 0 {
		cfg.Server.MetricsPort = 50052
	}
	if cfg.Server.QueueSize <= 0 {
		cfg.Server.QueueSize = 8
	}
	return nil
}

// validateSweep fills empty lists with every known tag. Unknown tags are left
// for the runner to reject, so one bad entry aborts only when it is reached.
func validateSweep(s *pipeline.SweepConfig) error {
	if len(s.Detectors) == 0 {
		s.Detectors = slices.Clone(pipeline.AllDetectors)
	}
	if len(s.Descriptors) == 0 {
		// BRIEF and FREAK need opencv_contrib's xfeatures2d
		s.Descriptors = slices.DeleteFunc(slices.Clone(pipeline.AllDescriptors), func(d string) bool {
			return d == pipeline.DesBRIEF || d == pipeline.DesFREAK
		})
	}
	if len(s.Matchers) == 0 {
		s.Matchers = slices.Clone(pipeline.AllMatchers)
	}
	if len(s.Selectors) == 0 {
		s.Selectors = slices.Clone(pipeline.AllSelectors)
	}
	if len(s.Combinations()) == 0 {
		return pipeline.ErrEmptySweep
	}
	return nil
}
