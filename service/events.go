package service

import (
	"FeatureBench/pipeline"
	"sync"
)

type EventType string

const (
	EventJob         EventType = "job"
	EventFrame       EventType = "frame"
	EventRun         EventType = "run"
	EventStageFailed EventType = "stage_failed"
)

type Event struct {
	Type        EventType               `json:"type"`
	JobID       string                  `json:"jobId,omitempty"`
	RunID       string                  `json:"runId,omitempty"`
	Status      Status                  `json:"status,omitempty"`
	Combination pipeline.Combination    `json:"combination"`
	Frame       int                     `json:"frame"`
	Stage       string                  `json:"stage,omitempty"`
	Stats       *pipeline.RunStatistics `json:"stats,omitempty"`
	Aggregate   *pipeline.Aggregate     `json:"aggregate,omitempty"`
	Error       string                  `json:"error,omitempty"`
}

const subscriberBuffer = 256

// hub fans events out to subscribers. A subscriber that falls behind loses
// events rather than stalling the benchmark.
type hub struct {
	mu     sync.Mutex
	subs   map[chan Event]struct{}
	closed bool
}

func newHub() *hub {
	return &hub{subs: map[chan Event]struct{}{}}
}

func (h *hub) subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	h.subs[ch] = struct{}{}
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[ch]; ok {
				delete(h.subs, ch)
				close(ch)
			}
		})
	}
}

func (h *hub) publish(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
}
