package report

import (
	"FeatureBench/pipeline"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
)

var csvHeader = []string{
	"detector", "descriptor", "matcher", "selector",
	"det[ms]", "num_keypoints", "desc[ms]", "match[ms]", "num_matchpts",
	"det_err", "des_err", "mat_err",
}

// WriteCSV writes one row per aggregate, times in milliseconds.
func WriteCSV(w io.Writer, aggs []pipeline.Aggregate) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 4, 64) }
	for _, a := range aggs {
		c := a.Combination
		row := []string{
			c.Detector, c.Descriptor, c.Matcher, c.Selector,
			f(ms(a.DetectTime)), f(a.Points), f(ms(a.DescribeTime)), f(ms(a.MatchTime)), f(a.MatchPoints),
			strconv.Itoa(a.DetectErrors), strconv.Itoa(a.DescribeErrors), strconv.Itoa(a.MatchErrors),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// CSVFile writes the aggregates of a Document to Path, replacing the file.
type CSVFile struct {
	Path string
}

func (c CSVFile) Write(ctx context.Context, doc Document) error {
	f, err := os.Create(c.Path)
	if err != nil {
		return fmt.Errorf("create %s: %w", c.Path, err)
	}
	if err := WriteCSV(f, doc.Aggregates); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", c.Path, err)
	}
	return f.Close()
}
