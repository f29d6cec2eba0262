package service

import (
	"FeatureBench/logger"
	"FeatureBench/pipeline"
	"FeatureBench/report"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrQueueFull   = errors.New("job queue is full")
	ErrJobNotFound = errors.New("job not found")
	ErrClosed      = errors.New("service closed")
)

type Kind string

const (
	KindRun   Kind = "run"
	KindSweep Kind = "sweep"
)

type Status string

const (
	StatusQueued  Status = "queued"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Job is a queued single run or sweep and, once finished, its results.
type Job struct {
	ID          string                `json:"id"`
	Kind        Kind                  `json:"kind"`
	Combination pipeline.Combination  `json:"combination"`
	Sweep       pipeline.SweepConfig  `json:"sweep"`
	Status      Status                `json:"status"`
	Error       string                `json:"error,omitempty"`
	Summaries   []pipeline.RunSummary `json:"summaries,omitempty"`
	Aggregates  []pipeline.Aggregate  `json:"aggregates,omitempty"`
	SubmittedAt time.Time             `json:"submittedAt"`
	StartedAt   time.Time             `json:"startedAt"`
	FinishedAt  time.Time             `json:"finishedAt"`

	done chan struct{}
}

func (j *Job) Finished() bool {
	return j.Status == StatusDone || j.Status == StatusFailed
}

// Service serialises benchmark jobs on one worker: timings of concurrent runs
// would disturb each other.
type Service struct {
	queue chan *Job
	sinks report.Sink
	log   *zap.Logger

	mu      sync.RWMutex
	jobs    map[string]*Job
	current string
	closed  bool

	events *hub
	wg     sync.WaitGroup
}

func New(queueSize int, sinks report.Sink) *Service {
	if queueSize < 1 {
		queueSize = 1
	}
	if sinks == nil {
		sinks = report.Sinks{}
	}
	return &Service{
		queue:  make(chan *Job, queueSize),
		sinks:  sinks,
		log:    logger.Log(),
		jobs:   map[string]*Job{},
		events: newHub(),
	}
}

// Start launches the worker. runner must report to this Service as an
// observer for progress events to be published.
func (s *Service) Start(runner *pipeline.Runner) {
	s.wg.Add(1)
	go s.runWorker(runner)
}

func (s *Service) runWorker(runner *pipeline.Runner) {
	defer s.wg.Done()
	for job := range s.queue {
		s.execute(runner, job)
	}
}

func (s *Service) execute(runner *pipeline.Runner, job *Job) {
	s.mu.Lock()
	job.Status = StatusRunning
	job.StartedAt = time.Now()
	s.current = job.ID
	s.mu.Unlock()
	s.events.publish(Event{Type: EventJob, JobID: job.ID, Status: StatusRunning})
	s.log.Info("Job started", zap.String("id", job.ID), zap.String("kind", string(job.Kind)))

	summaries, err := s.safeRun(runner, job)

	var sinkErr error
	if len(summaries) > 0 {
		sinkErr = s.sinks.Write(context.Background(), report.NewDocument(summaries))
		if sinkErr != nil {
			s.log.Error("Report sinks failed", zap.String("id", job.ID), zap.Error(sinkErr))
		}
	}

	s.mu.Lock()
	job.Summaries = summaries
	job.Aggregates = pipeline.SummarizeAll(summaries)
	job.FinishedAt = time.Now()
	if err != nil {
		job.Status = StatusFailed
		job.Error = err.Error()
	} else {
		job.Status = StatusDone
	}
	s.current = ""
	status := job.Status
	close(job.done)
	s.mu.Unlock()

	s.events.publish(Event{Type: EventJob, JobID: job.ID, Status: status, Error: job.Error})
	s.log.Info("Job finished", zap.String("id", job.ID), zap.String("status", string(status)),
		zap.Int("summaries", len(summaries)))
}

// safeRun turns a panic inside a job into a failed job, the worker keeps going.
func (s *Service) safeRun(runner *pipeline.Runner, job *Job) (summaries []pipeline.RunSummary, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Job panic recovered", zap.String("id", job.ID), zap.Any("panic", r))
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	switch job.Kind {
	case KindSweep:
		return pipeline.NewSweeper(runner).Sweep(job.Sweep)
	default:
		summary, err := runner.Run(job.Combination)
		if err != nil {
			return nil, err
		}
		return []pipeline.RunSummary{summary}, nil
	}
}

func (s *Service) submit(job *Job) (Job, error) {
	job.ID = uuid.New().String()
	job.Status = StatusQueued
	job.SubmittedAt = time.Now()
	job.done = make(chan struct{})

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Job{}, ErrClosed
	}
	select {
	case s.queue <- job:
	default:
		return Job{}, ErrQueueFull
	}
	s.jobs[job.ID] = job
	s.log.Info("Job queued", zap.String("id", job.ID), zap.String("kind", string(job.Kind)))
	return *job, nil
}

func (s *Service) SubmitRun(c pipeline.Combination) (Job, error) {
	if !pipeline.Compatible(c.Detector, c.Descriptor) {
		return Job{}, fmt.Errorf("%w: %s with %s", pipeline.ErrIncompatiblePair, c.Detector, c.Descriptor)
	}
	return s.submit(&Job{Kind: KindRun, Combination: c})
}

func (s *Service) SubmitSweep(cfg pipeline.SweepConfig) (Job, error) {
	if len(cfg.Combinations()) == 0 {
		return Job{}, pipeline.ErrEmptySweep
	}
	return s.submit(&Job{Kind: KindSweep, Sweep: cfg})
}

func (s *Service) Get(id string) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return *job, nil
}

// List returns every known job, oldest submission first.
func (s *Service) List() []Job {
	s.mu.RLock()
	all := maps.Clone(s.jobs)
	out := make([]Job, 0, len(all))
	for _, job := range all {
		out = append(out, *job)
	}
	s.mu.RUnlock()
	slices.SortFunc(out, func(a, b Job) int { return a.SubmittedAt.Compare(b.SubmittedAt) })
	return out
}

// Wait blocks until the job finished or ctx is done.
func (s *Service) Wait(ctx context.Context, id string) (Job, error) {
	s.mu.RLock()
	job, ok := s.jobs[id]
	s.mu.RUnlock()
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	select {
	case <-job.done:
		return s.Get(id)
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}
}

// Subscribe returns a stream of progress events and a function that ends the
// subscription.
func (s *Service) Subscribe() (<-chan Event, func()) {
	return s.events.subscribe()
}

// Close stops accepting jobs, lets the worker drain the queue and waits for it.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()
	s.wg.Wait()
	s.events.close()
}

func (s *Service) currentJob() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *Service) StageDone(c pipeline.Combination, stage pipeline.Stage, elapsed time.Duration, points int) {
}

func (s *Service) StageFailed(c pipeline.Combination, err *pipeline.StageError) {
	s.events.publish(Event{Type: EventStageFailed, JobID: s.currentJob(), Combination: c,
		Frame: err.Frame, Stage: err.Stage.String(), Error: err.Err.Error()})
}

func (s *Service) FrameDone(runID string, c pipeline.Combination, index int, stats pipeline.RunStatistics) {
	st := stats
	s.events.publish(Event{Type: EventFrame, JobID: s.currentJob(), RunID: runID, Combination: c,
		Frame: index, Stats: &st})
}

func (s *Service) RunDone(summary pipeline.RunSummary) {
	agg := pipeline.Summarize(summary)
	s.events.publish(Event{Type: EventRun, JobID: s.currentJob(), RunID: summary.ID,
		Combination: summary.Combination, Aggregate: &agg})
}
