package pipeline

import (
	iface "FeatureBench/interface"
	"fmt"
	"time"
)

const DefaultRatio = 0.8

// IndexParamsFor picks the approximate index for a descriptor norm: a KD-tree
// for L2, locality sensitive hashing for Hamming.
func IndexParamsFor(norm iface.NormType) (iface.IndexParams, error) {
	switch norm {
	case iface.NormL2:
		return iface.IndexParams{Kind: iface.KDTreeIndex, Trees: 4}, nil
	case iface.NormHamming:
		return iface.IndexParams{Kind: iface.LSHIndex, Tables: 20, KeySize: 15, MultiProbe: 2}, nil
	}
	return iface.IndexParams{}, fmt.Errorf("%w: %s", iface.ErrUnsupportedNormType, norm)
}

type Matcher struct {
	matcherType  string
	selectorType string
	ratio        float64
	backend      iface.MatchBackend
}

func NewMatcher(matcherType, selectorType string, norm iface.NormType, backend iface.Backend, ratio float64) (*Matcher, error) {
	if selectorType != SelNN && selectorType != SelKNN {
		return nil, fmt.Errorf("selector %q: %w", selectorType, iface.ErrUnsupportedSelectorType)
	}
	if ratio <= 0 {
		ratio = DefaultRatio
	}
	m := &Matcher{matcherType: matcherType, selectorType: selectorType, ratio: ratio}
	var err error
	switch matcherType {
	case MatBF:
		if norm != iface.NormHamming && norm != iface.NormL2 {
			return nil, fmt.Errorf("%w: %s", iface.ErrUnsupportedNormType, norm)
		}
		// cross-check only applies to single best matches, the ratio test
		// disambiguates k-nearest candidates
		m.backend, err = backend.BruteForce(norm, selectorType == SelNN)
	case MatFLANN:
		var params iface.IndexParams
		params, err = IndexParamsFor(norm)
		if err != nil {
			return nil, err
		}
		m.backend, err = backend.Indexed(norm, params)
	default:
		return nil, fmt.Errorf("matcher %q: %w", matcherType, iface.ErrUnsupportedMatcherType)
	}
	if err != nil {
		return nil, fmt.Errorf("matcher %q: %w", matcherType, err)
	}
	return m, nil
}

func (m *Matcher) Name() string {
	return m.matcherType + "/" + m.selectorType
}

// Match compares the previous frame's descriptors (source) with the current
// frame's (reference). The elapsed time covers the backend call only.
func (m *Matcher) Match(src, ref iface.Descriptors) ([]iface.Match, time.Duration, error) {
	if src.Empty() || ref.Empty() {
		return nil, 0, nil
	}
	if src.Kind != ref.Kind || src.Cols != ref.Cols {
		return nil, 0, fmt.Errorf("%w: %s[%d] vs %s[%d]", ErrDescriptorMismatch, src.Kind, src.Cols, ref.Kind, ref.Cols)
	}
	if m.backend.FloatInput() {
		src, ref = src.Widen(), ref.Widen()
	}

	if m.selectorType == SelNN {
		res := timed(func() ([]iface.Match, error) {
			return m.backend.Match(src, ref)
		})
		if res.err != nil {
			return nil, 0, res.err
		}
		return res.value, res.elapsed, nil
	}

	res := timed(func() ([][]iface.Match, error) {
		return m.backend.KnnMatch(src, ref, 2)
	})
	if res.err != nil {
		return nil, 0, res.err
	}
	return RatioFilter(res.value, m.ratio), res.elapsed, nil
}

// RatioFilter keeps the best candidate of each group when it is strictly
// closer than ratio times the second best. Groups with fewer than two
// candidates are dropped.
func RatioFilter(knn [][]iface.Match, ratio float64) []iface.Match {
	out := make([]iface.Match, 0, len(knn))
	for _, cand := range knn {
		if len(cand) >= 2 && cand[0].Distance < ratio*cand[1].Distance {
			out = append(out, cand[0])
		}
	}
	return out
}

func (m *Matcher) Close() error {
	return m.backend.Close()
}
