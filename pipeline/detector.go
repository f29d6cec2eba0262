package pipeline

import (
	iface "FeatureBench/interface"
	"fmt"
	"image"
	"math"
	"time"
)

const (
	cornerBlockSize    = 4
	cornerMaxOverlap   = 0.0
	cornerQualityLevel = 0.01
	harrisK            = 0.04
)

// Detector is the keypoint detection step, resolved once per run.
type Detector interface {
	Name() string
	Detect(img *image.Gray) ([]iface.Keypoint, time.Duration, error)
	Close() error
}

func NewDetector(name string, backend iface.Backend) (Detector, error) {
	switch name {
	case DetShiTomasi:
		return &cornerDetector{name: name, backend: backend}, nil
	case DetHarris:
		return &cornerDetector{name: name, backend: backend, harris: true}, nil
	}
	d, err := backend.FeatureDetector(name)
	if err != nil {
		return nil, fmt.Errorf("detector %q: %w", name, err)
	}
	return &featureDetector{name: name, detector: d}, nil
}

// CornerParams derives the corner detector settings from the image size.
func CornerParams(bounds image.Rectangle, harris bool) iface.CornerParams {
	minDistance := (1.0 - cornerMaxOverlap) * cornerBlockSize
	area := float64(bounds.Dx() * bounds.Dy())
	return iface.CornerParams{
		MaxCorners:   int(area / math.Max(1.0, minDistance)),
		QualityLevel: cornerQualityLevel,
		MinDistance:  minDistance,
		BlockSize:    cornerBlockSize,
		UseHarris:    harris,
		K:            harrisK,
	}
}

type cornerDetector struct {
	name    string
	backend iface.Backend
	harris  bool
}

func (c *cornerDetector) Name() string { return c.name }

func (c *cornerDetector) Detect(img *image.Gray) ([]iface.Keypoint, time.Duration, error) {
	if emptyImage(img) {
		return nil, 0, ErrEmptyImage
	}
	params := CornerParams(img.Bounds(), c.harris)
	res := timed(func() ([]iface.Keypoint, error) {
		corners, err := c.backend.GoodFeatures(img, params)
		if err != nil {
			return nil, err
		}
		kps := make([]iface.Keypoint, 0, len(corners))
		for _, p := range corners {
			kps = append(kps, iface.Keypoint{X: p.X, Y: p.Y, Size: cornerBlockSize, Angle: -1})
		}
		return kps, nil
	})
	if res.err != nil {
		return nil, 0, res.err
	}
	return withinBounds(res.value, img.Bounds()), res.elapsed, nil
}

func (c *cornerDetector) Close() error { return nil }

type featureDetector struct {
	name     string
	detector iface.Detector
}

func (f *featureDetector) Name() string { return f.name }

func (f *featureDetector) Detect(img *image.Gray) ([]iface.Keypoint, time.Duration, error) {
	if emptyImage(img) {
		return nil, 0, ErrEmptyImage
	}
	res := timed(func() ([]iface.Keypoint, error) {
		return f.detector.Detect(img)
	})
	if res.err != nil {
		return nil, 0, res.err
	}
	return withinBounds(res.value, img.Bounds()), res.elapsed, nil
}

func (f *featureDetector) Close() error {
	return f.detector.Close()
}

func emptyImage(img *image.Gray) bool {
	return img == nil || img.Bounds().Empty()
}

// withinBounds drops keypoints a provider placed outside the image.
func withinBounds(kps []iface.Keypoint, b image.Rectangle) []iface.Keypoint {
	out := kps[:0]
	for _, kp := range kps {
		if kp.X >= float64(b.Min.X) && kp.X < float64(b.Max.X) &&
			kp.Y >= float64(b.Min.Y) && kp.Y < float64(b.Max.Y) {
			out = append(out, kp)
		}
	}
	return out
}
