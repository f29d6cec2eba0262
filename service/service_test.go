package service

import (
	"FeatureBench/mock"
	"FeatureBench/pipeline"
	"FeatureBench/report"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var orb = pipeline.Combination{Detector: "ORB", Descriptor: "ORB", Matcher: "MAT_BF", Selector: "SEL_NN"}

type recordingSink struct {
	mu   sync.Mutex
	docs []report.Document
}

func (r *recordingSink) Write(ctx context.Context, doc report.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs = append(r.docs, doc)
	return nil
}

func start(t *testing.T, queue int, sink report.Sink) *Service {
	t.Helper()
	svc := New(queue, sink)
	runner := pipeline.NewRunner(&mock.Backend{}, mock.Source{N: 5, W: 120, H: 60}, pipeline.DefaultOptions(),
		pipeline.WithObserver(svc))
	svc.Start(runner)
	t.Cleanup(svc.Close)
	return svc
}

func waitCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestService_Run(t *testing.T) {
	sink := &recordingSink{}
	svc := start(t, 4, sink)
	events, stop := svc.Subscribe()
	defer stop()

	job, err := svc.SubmitRun(orb)
	require.NoError(t, err)
	assert.Equal(t, KindRun, job.Kind)
	assert.NotEmpty(t, job.ID)

	done, err := svc.Wait(waitCtx(t), job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDone, done.Status)
	require.Len(t, done.Summaries, 1)
	assert.Len(t, done.Summaries[0].Stats, 5)
	require.Len(t, done.Aggregates, 1)
	assert.Equal(t, 20.0, done.Aggregates[0].Points)

	sink.mu.Lock()
	assert.Len(t, sink.docs, 1)
	sink.mu.Unlock()

	var frames, runs int
	for frames < 5 || runs < 1 {
		select {
		case e := <-events:
			switch e.Type {
			case EventFrame:
				frames++
				assert.Equal(t, job.ID, e.JobID)
			case EventRun:
				runs++
				require.NotNil(t, e.Aggregate)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("missing events: %d frames, %d runs", frames, runs)
		}
	}
}

func TestService_SweepAndList(t *testing.T) {
	svc := start(t, 4, nil)
	first, err := svc.SubmitRun(orb)
	require.NoError(t, err)
	sweep, err := svc.SubmitSweep(pipeline.SweepConfig{
		Detectors:   []string{"SHITOMASI", "AKAZE"},
		Descriptors: []string{"AKAZE", "SIFT"},
		Matchers:    []string{"MAT_BF", "MAT_FLANN"},
		Selectors:   []string{"SEL_KNN"},
	})
	require.NoError(t, err)

	done, err := svc.Wait(waitCtx(t), sweep.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDone, done.Status)
	assert.Len(t, done.Summaries, 4)

	all := svc.List()
	require.Len(t, all, 2)
	assert.Equal(t, first.ID, all[0].ID)
	assert.Equal(t, sweep.ID, all[1].ID)
}

func TestService_FailedJob(t *testing.T) {
	svc := start(t, 4, nil)
	job, err := svc.SubmitRun(pipeline.Combination{Detector: "ORB", Descriptor: "BRIEF", Matcher: "MAT_BF", Selector: "SEL_NN"})
	require.NoError(t, err)
	done, err := svc.Wait(waitCtx(t), job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, done.Status)
	assert.Contains(t, done.Error, "BRIEF")
}

func TestService_Rejects(t *testing.T) {
	svc := New(1, nil)
	_, err := svc.SubmitRun(pipeline.Combination{Detector: "ORB", Descriptor: "AKAZE"})
	assert.ErrorIs(t, err, pipeline.ErrIncompatiblePair)
	_, err = svc.SubmitSweep(pipeline.SweepConfig{})
	assert.ErrorIs(t, err, pipeline.ErrEmptySweep)

	// no worker: the second job does not fit
	_, err = svc.SubmitRun(orb)
	require.NoError(t, err)
	_, err = svc.SubmitRun(orb)
	assert.ErrorIs(t, err, ErrQueueFull)

	_, err = svc.Get("nope")
	assert.ErrorIs(t, err, ErrJobNotFound)
	_, err = svc.Wait(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrJobNotFound)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	queued := svc.List()[0]
	_, err = svc.Wait(ctx, queued.ID)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestService_Close(t *testing.T) {
	svc := start(t, 2, nil)
	events, _ := svc.Subscribe()
	svc.Close()
	_, err := svc.SubmitRun(orb)
	assert.ErrorIs(t, err, ErrClosed)
	_, open := <-events
	assert.False(t, open)
}
