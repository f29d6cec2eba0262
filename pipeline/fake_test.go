package pipeline

import (
	iface "FeatureBench/interface"
	"errors"
	"fmt"
	"image"
	"math"
	"sort"
	"time"
)

var errFake = errors.New("fake provider failure")

// frameID reads the frame index stamped into the first pixel by fakeSource.
func frameID(img *image.Gray) int {
	return int(img.Pix[0])
}

type fakeSource struct {
	n       int
	w, h    int
	loadErr map[int]bool
}

func (s *fakeSource) Len() int { return s.n }

func (s *fakeSource) Load(i int) (*image.Gray, error) {
	if s.loadErr[i] {
		return nil, fmt.Errorf("frame %d: %w", i, errFake)
	}
	img := image.NewGray(image.Rect(0, 0, s.w, s.h))
	img.Pix[0] = uint8(i)
	return img, nil
}

func newSource(n int) *fakeSource {
	return &fakeSource{n: n, w: 100, h: 50}
}

type fakeBackend struct {
	failDetect    map[int]bool
	panicDescribe map[int]bool
	failMatch     bool

	cornerCalls  []iface.CornerParams
	crossChecks  []bool
	indexed      []iface.IndexParams
	matchedKinds []iface.DescriptorKind
	closed       int
}

func positions(id int) []iface.Position {
	n := 30 + id
	out := make([]iface.Position, 0, n)
	for j := 0; j < n; j++ {
		out = append(out, iface.Position{
			X: float64(5 + (j*7+id)%90),
			Y: float64(5 + (j*13)%40),
		})
	}
	return out
}

func (b *fakeBackend) GoodFeatures(img *image.Gray, params iface.CornerParams) ([]iface.Position, error) {
	b.cornerCalls = append(b.cornerCalls, params)
	if b.failDetect[frameID(img)] {
		return nil, errFake
	}
	return positions(frameID(img)), nil
}

func (b *fakeBackend) FeatureDetector(name string) (iface.Detector, error) {
	switch name {
	case DetFAST, DetBRISK, DetORB, DetAKAZE, DetSIFT:
		return &fakeDetector{b: b}, nil
	}
	return nil, iface.ErrUnsupportedDetectorType
}

func (b *fakeBackend) Extractor(name string) (iface.Extractor, error) {
	switch name {
	case DesBRISK, DesORB, DesAKAZE:
		return &fakeExtractor{b: b, kind: iface.BinaryDescriptor}, nil
	case DesSIFT:
		return &fakeExtractor{b: b, kind: iface.FloatDescriptor}, nil
	}
	return nil, iface.ErrUnsupportedDescriptorType
}

func (b *fakeBackend) BruteForce(norm iface.NormType, crossCheck bool) (iface.MatchBackend, error) {
	b.crossChecks = append(b.crossChecks, crossCheck)
	return &fakeMatcher{b: b, crossCheck: crossCheck}, nil
}

func (b *fakeBackend) Indexed(norm iface.NormType, params iface.IndexParams) (iface.MatchBackend, error) {
	b.indexed = append(b.indexed, params)
	return &fakeMatcher{b: b, floatInput: true}, nil
}

type fakeDetector struct {
	b *fakeBackend
}

func (d *fakeDetector) Detect(img *image.Gray) ([]iface.Keypoint, error) {
	if d.b.failDetect[frameID(img)] {
		return nil, errFake
	}
	pos := positions(frameID(img))
	kps := make([]iface.Keypoint, 0, len(pos))
	for j, p := range pos {
		kps = append(kps, iface.Keypoint{X: p.X, Y: p.Y, Size: 7, Response: float64(j), Scored: true})
	}
	return kps, nil
}

func (d *fakeDetector) Close() error {
	d.b.closed++
	return nil
}

type fakeExtractor struct {
	b    *fakeBackend
	kind iface.DescriptorKind
}

func (e *fakeExtractor) Compute(img *image.Gray, kps []iface.Keypoint) ([]iface.Keypoint, iface.Descriptors, error) {
	if e.b.panicDescribe[frameID(img)] {
		panic("fake extractor blew up")
	}
	d := iface.Descriptors{Rows: len(kps), Cols: 2, Kind: e.kind}
	for _, kp := range kps {
		if e.kind == iface.BinaryDescriptor {
			d.Bytes = append(d.Bytes, uint8(kp.X), uint8(kp.Y))
		} else {
			d.Floats = append(d.Floats, float32(kp.X), float32(kp.Y))
		}
	}
	return kps, d, nil
}

func (e *fakeExtractor) Norm() iface.NormType {
	if e.kind == iface.FloatDescriptor {
		return iface.NormL2
	}
	return iface.NormHamming
}

func (e *fakeExtractor) Close() error {
	e.b.closed++
	return nil
}

type fakeMatcher struct {
	b          *fakeBackend
	crossCheck bool
	floatInput bool
}

func row(d iface.Descriptors, i int) []float64 {
	out := make([]float64, d.Cols)
	for c := 0; c < d.Cols; c++ {
		if d.Kind == iface.BinaryDescriptor {
			out[c] = float64(d.Bytes[i*d.Cols+c])
		} else {
			out[c] = float64(d.Floats[i*d.Cols+c])
		}
	}
	return out
}

func dist(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += math.Abs(a[i] - b[i])
	}
	return s
}

func (m *fakeMatcher) ranked(q []float64, train iface.Descriptors) []iface.Match {
	out := make([]iface.Match, 0, train.Rows)
	for t := 0; t < train.Rows; t++ {
		out = append(out, iface.Match{ReferenceIdx: t, Distance: dist(q, row(train, t))})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return out
}

func (m *fakeMatcher) Match(query, train iface.Descriptors) ([]iface.Match, error) {
	m.b.matchedKinds = append(m.b.matchedKinds, query.Kind)
	if m.b.failMatch {
		return nil, errFake
	}
	var out []iface.Match
	for q := 0; q < query.Rows; q++ {
		best := m.ranked(row(query, q), train)[0]
		best.SourceIdx = q
		if m.crossCheck {
			back := m.ranked(row(train, best.ReferenceIdx), query)[0]
			if back.ReferenceIdx != q {
				continue
			}
		}
		out = append(out, best)
	}
	return out, nil
}

func (m *fakeMatcher) KnnMatch(query, train iface.Descriptors, k int) ([][]iface.Match, error) {
	m.b.matchedKinds = append(m.b.matchedKinds, query.Kind)
	if m.b.failMatch {
		return nil, errFake
	}
	out := make([][]iface.Match, 0, query.Rows)
	for q := 0; q < query.Rows; q++ {
		r := m.ranked(row(query, q), train)
		if len(r) > k {
			r = r[:k]
		}
		for i := range r {
			r[i].SourceIdx = q
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *fakeMatcher) FloatInput() bool { return m.floatInput }

func (m *fakeMatcher) Close() error {
	m.b.closed++
	return nil
}

type recordingObserver struct {
	frames   []int
	failures []*StageError
	runs     int
	stages   map[Stage]int
}

func (o *recordingObserver) StageDone(c Combination, stage Stage, elapsed time.Duration, points int) {
	if o.stages == nil {
		o.stages = map[Stage]int{}
	}
	o.stages[stage]++
}

func (o *recordingObserver) StageFailed(c Combination, err *StageError) {
	o.failures = append(o.failures, err)
}

func (o *recordingObserver) FrameDone(runID string, c Combination, index int, stats RunStatistics) {
	o.frames = append(o.frames, index)
}

func (o *recordingObserver) RunDone(summary RunSummary) {
	o.runs++
}
