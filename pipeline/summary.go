package pipeline

import (
	"time"

	"gonum.org/v1/gonum/floats"
)

// RunStatistics is one frame's measurements. Stages that were not reached keep
// their zero values. FilteredPoints stays 0 unless region filtering is on.
type RunStatistics struct {
	DetectTime     time.Duration `json:"detectTime" msgpack:"detect_time"`
	DetectPoints   int           `json:"detectPoints" msgpack:"detect_points"`
	FilteredPoints int           `json:"filteredPoints" msgpack:"filtered_points"`
	DescribeTime   time.Duration `json:"describeTime" msgpack:"describe_time"`
	MatchTime      time.Duration `json:"matchTime" msgpack:"match_time"`
	MatchPoints    int           `json:"matchPoints" msgpack:"match_points"`
}

// RunSummary holds one sweep point. Stats has one entry per frame index;
// index 0 has no predecessor and is left out of every mean.
type RunSummary struct {
	ID             string          `json:"id" msgpack:"id"`
	Combination    Combination     `json:"combination" msgpack:"combination"`
	FocusOnVehicle bool            `json:"focusOnVehicle" msgpack:"focus_on_vehicle"`
	LimitKeypoints bool            `json:"limitKeypoints" msgpack:"limit_keypoints"`
	Stats          []RunStatistics `json:"stats" msgpack:"stats"`
	DetectErrors   int             `json:"detectErrors" msgpack:"detect_errors"`
	DescribeErrors int             `json:"describeErrors" msgpack:"describe_errors"`
	MatchErrors    int             `json:"matchErrors" msgpack:"match_errors"`
	StartedAt      time.Time       `json:"startedAt" msgpack:"started_at"`
	FinishedAt     time.Time       `json:"finishedAt" msgpack:"finished_at"`
}

// Aggregate is the per-combination mean over frames 1..n-1. Times are in
// seconds.
type Aggregate struct {
	Combination    Combination `json:"combination"`
	DetectTime     float64     `json:"detectTime"`
	Points         float64     `json:"points"`
	DescribeTime   float64     `json:"describeTime"`
	MatchTime      float64     `json:"matchTime"`
	MatchPoints    float64     `json:"matchPoints"`
	DetectErrors   int         `json:"detectErrors"`
	DescribeErrors int         `json:"describeErrors"`
	MatchErrors    int         `json:"matchErrors"`
}

func Summarize(s RunSummary) Aggregate {
	agg := Aggregate{
		Combination:    s.Combination,
		DetectErrors:   s.DetectErrors,
		DescribeErrors: s.DescribeErrors,
		MatchErrors:    s.MatchErrors,
	}
	if len(s.Stats) < 2 {
		return agg
	}
	frames := s.Stats[1:]
	n := float64(len(frames))
	detect := make([]float64, len(frames))
	describe := make([]float64, len(frames))
	match := make([]float64, len(frames))
	points := make([]float64, len(frames))
	matchPts := make([]float64, len(frames))
	for i, st := range frames {
		detect[i] = st.DetectTime.Seconds()
		describe[i] = st.DescribeTime.Seconds()
		match[i] = st.MatchTime.Seconds()
		if s.FocusOnVehicle {
			points[i] = float64(st.FilteredPoints)
		} else {
			points[i] = float64(st.DetectPoints)
		}
		matchPts[i] = float64(st.MatchPoints)
	}
	agg.DetectTime = floats.Sum(detect) / n
	agg.DescribeTime = floats.Sum(describe) / n
	agg.MatchTime = floats.Sum(match) / n
	agg.Points = floats.Sum(points) / n
	agg.MatchPoints = floats.Sum(matchPts) / n
	return agg
}

func SummarizeAll(summaries []RunSummary) []Aggregate {
	out := make([]Aggregate, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, Summarize(s))
	}
	return out
}
