package engine

import (
	iface "FeatureBench/interface"

	"gocv.io/x/gocv"
)

// withMats converts both descriptor sets for the duration of fn.
func withMats(query, train iface.Descriptors, fn func(q, t gocv.Mat)) error {
	q, err := matFromDescriptors(query)
	if err != nil {
		return err
	}
	defer q.Close()
	t, err := matFromDescriptors(train)
	if err != nil {
		return err
	}
	defer t.Close()
	fn(q, t)
	return nil
}

func knnMatches(knn [][]gocv.DMatch) [][]iface.Match {
	out := make([][]iface.Match, 0, len(knn))
	for _, cand := range knn {
		out = append(out, toMatches(cand))
	}
	return out
}

type bruteForce struct {
	m *gocv.BFMatcher
}

func (b *bruteForce) Match(query, train iface.Descriptors) ([]iface.Match, error) {
	var out []iface.Match
	err := withMats(query, train, func(q, t gocv.Mat) {
		out = toMatches(b.m.Match(q, t))
	})
	return out, err
}

func (b *bruteForce) KnnMatch(query, train iface.Descriptors, k int) ([][]iface.Match, error) {
	var out [][]iface.Match
	err := withMats(query, train, func(q, t gocv.Mat) {
		out = knnMatches(b.m.KnnMatch(q, t, k))
	})
	return out, err
}

func (b *bruteForce) FloatInput() bool { return false }

func (b *bruteForce) Close() error {
	return b.m.Close()
}

type flann struct {
	m *gocv.FlannBasedMatcher
}

// Match takes the single nearest neighbour of every query row.
func (f *flann) Match(query, train iface.Descriptors) ([]iface.Match, error) {
	knn, err := f.KnnMatch(query, train, 1)
	if err != nil {
		return nil, err
	}
	out := make([]iface.Match, 0, len(knn))
	for _, cand := range knn {
		if len(cand) > 0 {
			out = append(out, cand[0])
		}
	}
	return out, nil
}

func (f *flann) KnnMatch(query, train iface.Descriptors, k int) ([][]iface.Match, error) {
	var out [][]iface.Match
	err := withMats(query, train, func(q, t gocv.Mat) {
		out = knnMatches(f.m.KnnMatch(q, t, k))
	})
	return out, err
}

func (f *flann) FloatInput() bool { return true }

func (f *flann) Close() error {
	return f.m.Close()
}
