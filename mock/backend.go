// Package mock provides a deterministic in-memory vision backend and frame
// source for tests of the packages built on top of the pipeline.
package mock

import (
	iface "FeatureBench/interface"
	"fmt"
	"image"
	"math"
	"sync"
)

// Source serves N blank frames of W x H with the frame index stamped into the
// first pixel.
type Source struct {
	N, W, H int
}

func (s Source) Len() int { return s.N }

func (s Source) Load(i int) (*image.Gray, error) {
	if i < 0 || i >= s.N {
		return nil, fmt.Errorf("frame %d out of range", i)
	}
	img := image.NewGray(image.Rect(0, 0, s.W, s.H))
	img.Pix[0] = uint8(i)
	return img, nil
}

// Backend places 20 keypoints per frame on a grid drifting one pixel per
// frame. Descriptors are the rounded keypoint coordinates.
type Backend struct {
	mu     sync.Mutex
	Closed int
}

func points(img *image.Gray) []iface.Position {
	id := float64(img.Pix[0])
	b := img.Bounds()
	out := make([]iface.Position, 0, 20)
	for j := 0; j < 20; j++ {
		x := math.Mod(float64(3+j*11)+id, float64(b.Dx()))
		y := math.Mod(float64(3+j*7), float64(b.Dy()))
		out = append(out, iface.Position{X: x, Y: y})
	}
	return out
}

func (b *Backend) GoodFeatures(img *image.Gray, params iface.CornerParams) ([]iface.Position, error) {
	return points(img), nil
}

func (b *Backend) FeatureDetector(name string) (iface.Detector, error) {
	switch name {
	case "FAST", "BRISK", "ORB", "AKAZE", "SIFT":
		return &detector{b: b}, nil
	}
	return nil, fmt.Errorf("%w: %s", iface.ErrUnsupportedDetectorType, name)
}

func (b *Backend) Extractor(name string) (iface.Extractor, error) {
	switch name {
	case "BRISK", "ORB", "AKAZE":
		return &extractor{b: b, kind: iface.BinaryDescriptor}, nil
	case "SIFT":
		return &extractor{b: b, kind: iface.FloatDescriptor}, nil
	}
	return nil, fmt.Errorf("%w: %s", iface.ErrUnsupportedDescriptorType, name)
}

func (b *Backend) BruteForce(norm iface.NormType, crossCheck bool) (iface.MatchBackend, error) {
	return &matcher{b: b}, nil
}

func (b *Backend) Indexed(norm iface.NormType, params iface.IndexParams) (iface.MatchBackend, error) {
	return &matcher{b: b, float: true}, nil
}

func (b *Backend) closed() error {
	b.mu.Lock()
	b.Closed++
	b.mu.Unlock()
	return nil
}

type detector struct{ b *Backend }

func (d *detector) Detect(img *image.Gray) ([]iface.Keypoint, error) {
	pos := points(img)
	kps := make([]iface.Keypoint, len(pos))
	for i, p := range pos {
		kps[i] = iface.Keypoint{X: p.X, Y: p.Y, Size: 7, Response: float64(i), Scored: true}
	}
	return kps, nil
}

func (d *detector) Close() error { return d.b.closed() }

type extractor struct {
	b    *Backend
	kind iface.DescriptorKind
}

func (e *extractor) Compute(img *image.Gray, kps []iface.Keypoint) ([]iface.Keypoint, iface.Descriptors, error) {
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

func (e *extractor) Norm() iface.NormType {
	if e.kind == iface.FloatDescriptor {
		return iface.NormL2
	}
	return iface.NormHamming
}

func (e *extractor) Close() error { return e.b.closed() }

type matcher struct {
	b     *Backend
	float bool
}

func value(d iface.Descriptors, i int) float64 {
	if d.Kind == iface.BinaryDescriptor {
		return float64(d.Bytes[i])
	}
	return float64(d.Floats[i])
}

func (m *matcher) KnnMatch(query, train iface.Descriptors, k int) ([][]iface.Match, error) {
	out := make([][]iface.Match, 0, query.Rows)
	for q := 0; q < query.Rows; q++ {
		var cand []iface.Match
		for t := 0; t < train.Rows; t++ {
			dist := 0.0
			for c := 0; c < query.Cols; c++ {
				dist += math.Abs(value(query, q*query.Cols+c) - value(train, t*train.Cols+c))
			}
			cand = append(cand, iface.Match{SourceIdx: q, ReferenceIdx: t, Distance: dist})
		}
		// insertion sort keeps equal distances in train order
		for i := 1; i < len(cand); i++ {
			for j := i; j > 0 && cand[j].Distance < cand[j-1].Distance; j-- {
				cand[j], cand[j-1] = cand[j-1], cand[j]
			}
		}
		if len(cand) > k {
			cand = cand[:k]
		}
		out = append(out, cand)
	}
	return out, nil
}

func (m *matcher) Match(query, train iface.Descriptors) ([]iface.Match, error) {
	knn, err := m.KnnMatch(query, train, 1)
	if err != nil {
		return nil, err
	}
	out := make([]iface.Match, 0, len(knn))
	for _, c := range knn {
		if len(c) > 0 {
			out = append(out, c[0])
		}
	}
	return out, nil
}

func (m *matcher) FloatInput() bool { return m.float }

func (m *matcher) Close() error { return m.b.closed() }
