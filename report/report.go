package report

import (
	"FeatureBench/pipeline"
	"context"
	"errors"
	"time"
)

// Document is everything one benchmark invocation produced.
type Document struct {
	GeneratedAt time.Time             `json:"generatedAt" msgpack:"generated_at"`
	Summaries   []pipeline.RunSummary `json:"summaries" msgpack:"summaries"`
	Aggregates  []pipeline.Aggregate  `json:"aggregates" msgpack:"aggregates"`
}

func NewDocument(summaries []pipeline.RunSummary) Document {
	return Document{
		GeneratedAt: time.Now(),
		Summaries:   summaries,
		Aggregates:  pipeline.SummarizeAll(summaries),
	}
}

// Sink receives a finished Document.
type Sink interface {
	Write(ctx context.Context, doc Document) error
}

// Sinks writes to every sink and joins their errors.
type Sinks []Sink

func (s Sinks) Write(ctx context.Context, doc Document) error {
	var errs []error
	for _, sink := range s {
		if err := sink.Write(ctx, doc); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func ms(seconds float64) float64 {
	return seconds * 1000
}
