package report

import (
	"FeatureBench/pipeline"
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"
)

// Console prints a per-frame report for a single run and one line per
// combination for a sweep.
type Console struct {
	W io.Writer
}

func (c Console) Write(ctx context.Context, doc Document) error {
	if len(doc.Summaries) == 1 {
		return PrintRun(c.W, doc.Summaries[0])
	}
	return PrintAggregates(c.W, doc.Aggregates)
}

func msOf(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// PrintRun lists every frame's detection and matching figures followed by the
// mean detection and matching time.
func PrintRun(w io.Writer, s pipeline.RunSummary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "run %s\t%s\n", s.ID, s.Combination)
	fmt.Fprintln(tw, "frame\tdet[ms]\tkeypoints\tdesc[ms]\tmatch[ms]\tmatches")
	for i, st := range s.Stats {
		points := st.DetectPoints
		if s.FocusOnVehicle {
			points = st.FilteredPoints
		}
		fmt.Fprintf(tw, "%d\t%.3f\t%d\t%.3f\t%.3f\t%d\n", i, msOf(st.DetectTime), points,
			msOf(st.DescribeTime), msOf(st.MatchTime), st.MatchPoints)
	}
	agg := pipeline.Summarize(s)
	fmt.Fprintf(tw, "average detection time\t%.3f ms\n", ms(agg.DetectTime))
	fmt.Fprintf(tw, "average matching time\t%.3f ms\n", ms(agg.MatchTime))
	fmt.Fprintf(tw, "errors\tdetect %d, describe %d, match %d\n", s.DetectErrors, s.DescribeErrors, s.MatchErrors)
	return tw.Flush()
}

func PrintAggregates(w io.Writer, aggs []pipeline.Aggregate) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "combination\tdet[ms]\tkeypoints\tdesc[ms]\tmatch[ms]\tmatches\terrors")
	for _, a := range aggs {
		fmt.Fprintf(tw, "%s\t%.3f\t%.1f\t%.3f\t%.3f\t%.1f\t%d/%d/%d\n", a.Combination,
			ms(a.DetectTime), a.Points, ms(a.DescribeTime), ms(a.MatchTime), a.MatchPoints,
			a.DetectErrors, a.DescribeErrors, a.MatchErrors)
	}
	return tw.Flush()
}
