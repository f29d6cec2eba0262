package pipeline

import (
	"FeatureBench/buffer"
	iface "FeatureBench/interface"
	"FeatureBench/logger"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Options are the per-run flags and constants.
type Options struct {
	BufferSize     int
	Visualize      bool
	FocusOnVehicle bool
	LimitKeypoints bool
	VehicleRect    Rect
	MaxKeypoints   int
	RatioThreshold float64
}

func DefaultOptions() Options {
	return Options{
		BufferSize:     2,
		VehicleRect:    VehicleRect,
		MaxKeypoints:   DefaultMaxKeypoints,
		RatioThreshold: DefaultRatio,
	}
}

type Runner struct {
	backend  iface.Backend
	source   iface.FrameSource
	opts     Options
	vis      iface.Visualizer
	observer Observer
	log      *zap.Logger
}

type RunnerOption func(*Runner)

func WithVisualizer(v iface.Visualizer) RunnerOption {
	return func(r *Runner) { r.vis = v }
}

func WithObserver(o Observer) RunnerOption {
	return func(r *Runner) { r.observer = o }
}

func WithLogger(l *zap.Logger) RunnerOption {
	return func(r *Runner) { r.log = l }
}

func NewRunner(backend iface.Backend, source iface.FrameSource, opts Options, options ...RunnerOption) *Runner {
	r := &Runner{
		backend:  backend,
		source:   source,
		opts:     opts,
		observer: Observers(nil),
		log:      logger.Log(),
	}
	for _, o := range options {
		o(r)
	}
	return r
}

func (r *Runner) Options() Options {
	return r.opts
}

type strategies struct {
	detector   Detector
	descriptor *Descriptor
	matcher    *Matcher
}

func (s *strategies) Close() error {
	var errs []error
	if s.detector != nil {
		errs = append(errs, s.detector.Close())
	}
	if s.descriptor != nil {
		errs = append(errs, s.descriptor.Close())
	}
	if s.matcher != nil {
		errs = append(errs, s.matcher.Close())
	}
	return errors.Join(errs...)
}

// resolve turns the algorithm names into strategies. Any error here is a
// configuration error and no frame is processed.
func (r *Runner) resolve(c Combination) (*strategies, error) {
	if !Compatible(c.Detector, c.Descriptor) {
		return nil, fmt.Errorf("%w: %s with %s", ErrIncompatiblePair, c.Detector, c.Descriptor)
	}
	s := &strategies{}
	var err error
	if s.detector, err = NewDetector(c.Detector, r.backend); err != nil {
		return nil, err
	}
	if s.descriptor, err = NewDescriptor(c.Descriptor, r.backend); err != nil {
		_ = s.Close()
		return nil, err
	}
	if s.matcher, err = NewMatcher(c.Matcher, c.Selector, s.descriptor.Norm(), r.backend, r.opts.RatioThreshold); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Run processes the whole frame sequence for one combination. Stage failures
// are counted and recorded as zero statistics, only configuration and frame
// loading errors abort the run.
func (r *Runner) Run(c Combination) (RunSummary, error) {
	s, err := r.resolve(c)
	if err != nil {
		return RunSummary{}, err
	}
	defer func() {
		if err := s.Close(); err != nil {
			r.log.Warn("failed to release strategies", zap.String("combination", c.String()), zap.Error(err))
		}
	}()
	window, err := buffer.New[*iface.Frame](r.opts.BufferSize)
	if err != nil {
		return RunSummary{}, err
	}

	n := r.source.Len()
	summary := RunSummary{
		ID:             uuid.NewString(),
		Combination:    c,
		FocusOnVehicle: r.opts.FocusOnVehicle,
		LimitKeypoints: r.opts.LimitKeypoints,
		Stats:          make([]RunStatistics, n),
		StartedAt:      time.Now(),
	}
	r.log.Info("Run started", zap.String("id", summary.ID), zap.String("combination", c.String()), zap.Int("frames", n))

	for i := 0; i < n; i++ {
		img, err := r.source.Load(i)
		if err != nil {
			return RunSummary{}, fmt.Errorf("%w %d: %w", ErrFrameLoad, i, err)
		}
		window.Push(&iface.Frame{Image: img})
		if serr := r.processFrame(i, window, s, &summary); serr != nil {
			r.log.Warn("Stage failed", zap.String("combination", c.String()), zap.Stringer("stage", serr.Stage),
				zap.Int("frame", i), zap.Error(serr.Err))
			r.observer.StageFailed(c, serr)
		}
		r.observer.FrameDone(summary.ID, c, i, summary.Stats[i])
	}

	summary.FinishedAt = time.Now()
	r.log.Info("Run finished", zap.String("id", summary.ID), zap.String("combination", c.String()),
		zap.Int("detectErrors", summary.DetectErrors), zap.Int("describeErrors", summary.DescribeErrors),
		zap.Int("matchErrors", summary.MatchErrors))
	r.observer.RunDone(summary)
	return summary, nil
}

func (r *Runner) processFrame(i int, window *buffer.Ring[*iface.Frame], s *strategies, summary *RunSummary) *StageError {
	c := summary.Combination
	st := &summary.Stats[i]
	cur, _ := window.MostRecent()

	kps, elapsed, err := s.detector.Detect(cur.Image)
	if err != nil {
		summary.DetectErrors++
		*st = RunStatistics{}
		return &StageError{Stage: StageDetect, Frame: i, Err: err}
	}
	st.DetectTime = elapsed
	st.DetectPoints = len(kps)
	r.observer.StageDone(c, StageDetect, elapsed, len(kps))
	r.log.Debug("Keypoints detected", zap.String("detector", c.Detector), zap.Int("n", len(kps)),
		zap.Float64("ms", ms(elapsed)))
	if r.opts.Visualize && r.vis != nil {
		if err := r.vis.ShowKeypoints(c.Detector+" Detector Results", cur.Image, kps); err != nil {
			r.log.Warn("Keypoint visualization failed", zap.Error(err))
		}
	}

	if r.opts.FocusOnVehicle {
		total := len(kps)
		kps = FilterROI(kps, r.opts.VehicleRect)
		st.FilteredPoints = len(kps)
		r.log.Debug("Using vehicle keypoints", zap.Int("kept", len(kps)), zap.Int("of", total))
	}
	if r.opts.LimitKeypoints {
		kps = RetainBest(kps, r.opts.MaxKeypoints)
		r.log.Debug("Keypoints have been limited", zap.Int("max", r.opts.MaxKeypoints))
	}
	cur.Keypoints = kps

	kept, desc, elapsed, err := s.descriptor.Describe(cur.Image, cur.Keypoints)
	if err != nil {
		summary.DescribeErrors++
		st.DescribeTime = 0
		return &StageError{Stage: StageDescribe, Frame: i, Err: err}
	}
	cur.Keypoints = kept
	cur.Descriptors = desc
	st.DescribeTime = elapsed
	r.observer.StageDone(c, StageDescribe, elapsed, desc.Rows)
	r.log.Debug("Descriptors extracted", zap.String("descriptor", c.Descriptor), zap.Int("rows", desc.Rows),
		zap.Float64("ms", ms(elapsed)))

	if window.Len() < 2 {
		return nil
	}
	prev, _ := window.SecondMostRecent()
	matches, elapsed, err := s.matcher.Match(prev.Descriptors, cur.Descriptors)
	if err != nil {
		summary.MatchErrors++
		st.MatchTime = 0
		st.MatchPoints = 0
		return &StageError{Stage: StageMatch, Frame: i, Err: err}
	}
	cur.Matches = matches
	st.MatchTime = elapsed
	st.MatchPoints = len(matches)
	r.observer.StageDone(c, StageMatch, elapsed, len(matches))
	r.log.Debug("Descriptors matched", zap.String("matcher", s.matcher.Name()), zap.Int("n", len(matches)),
		zap.Float64("ms", ms(elapsed)))

	if r.opts.Visualize && r.vis != nil {
		err := r.vis.ShowMatches("Matching keypoints between two camera images",
			prev.Image, prev.Keypoints, cur.Image, cur.Keypoints, matches)
		if err != nil {
			r.log.Warn("Match visualization failed", zap.Error(err))
		}
	}
	return nil
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
