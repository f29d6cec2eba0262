package engine

import (
	iface "FeatureBench/interface"
	"FeatureBench/logger"
	"fmt"
	"image"
	"sync"

	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

const (
	fastThreshold = 30
	orbFeatures   = 500
)

// Backend provides detectors, extractors and matchers from OpenCV through gocv.
// It holds no OpenCV state itself; every strategy it hands out owns its
// handle and must be closed.
type Backend struct {
	log        *zap.Logger
	harrisOnce sync.Once
}

func NewBackend() *Backend {
	return &Backend{log: logger.Log()}
}

// GoodFeatures runs OpenCV's goodFeaturesToTrack. gocv does not expose the
// Harris switch, so Harris requests fall back to the minimum eigenvalue
// response.
func (b *Backend) GoodFeatures(img *image.Gray, params iface.CornerParams) ([]iface.Position, error) {
	if params.UseHarris {
		b.harrisOnce.Do(func() {
			b.log.Warn("Harris response not available through gocv, using minimum eigenvalue corners")
		})
	}
	m, err := grayMat(img)
	if err != nil {
		return nil, err
	}
	defer m.Close()

	corners := gocv.NewMat()
	defer corners.Close()
	gocv.GoodFeaturesToTrack(m, &corners, params.MaxCorners, params.QualityLevel, params.MinDistance)

	out := make([]iface.Position, 0, corners.Rows())
	for i := 0; i < corners.Rows(); i++ {
		v := corners.GetVecfAt(i, 0)
		out = append(out, iface.Position{X: float64(v[0]), Y: float64(v[1])})
	}
	return out, nil
}

type cvDetector interface {
	Detect(src gocv.Mat) []gocv.KeyPoint
	Close() error
}

type cvExtractor interface {
	Compute(src gocv.Mat, mask gocv.Mat, kps []gocv.KeyPoint) ([]gocv.KeyPoint, gocv.Mat)
	Close() error
}

// FeatureDetector returns one of FAST, BRISK, ORB, AKAZE or SIFT.
func (b *Backend) FeatureDetector(name string) (iface.Detector, error) {
	var det cvDetector
	switch name {
	case "FAST":
		d := gocv.NewFastFeatureDetectorWithParams(fastThreshold, true, gocv.FastFeatureDetectorType9_16)
		det = &d
	case "BRISK":
		d := gocv.NewBRISK()
		det = &d
	case "ORB":
		d := gocv.NewORBWithParams(orbFeatures, 1.2, 8, 31, 0, 2, gocv.ORBScoreTypeHarris, 31, 20)
		det = &d
	case "AKAZE":
		d := gocv.NewAKAZE()
		det = &d
	case "SIFT":
		d := gocv.NewSIFT()
		det = &d
	default:
		return nil, fmt.Errorf("%w: %s", iface.ErrUnsupportedDetectorType, name)
	}
	return &featureDetector{det: det}, nil
}

// Extractor returns a descriptor extractor. BRIEF and FREAK live in
// opencv_contrib's xfeatures2d, which gocv's core package does not bind.
func (b *Backend) Extractor(name string) (iface.Extractor, error) {
	switch name {
	case "BRISK":
		e := gocv.NewBRISK()
		return &extractor{ext: &e, norm: iface.NormHamming}, nil
	case "ORB":
		e := gocv.NewORB()
		return &extractor{ext: &e, norm: iface.NormHamming}, nil
	case "AKAZE":
		e := gocv.NewAKAZE()
		return &extractor{ext: &e, norm: iface.NormHamming}, nil
	case "SIFT":
		e := gocv.NewSIFT()
		return &extractor{ext: &e, norm: iface.NormL2}, nil
	}
	return nil, fmt.Errorf("%w: %s", iface.ErrUnsupportedDescriptorType, name)
}

func (b *Backend) BruteForce(norm iface.NormType, crossCheck bool) (iface.MatchBackend, error) {
	cvNorm, err := toNorm(norm)
	if err != nil {
		return nil, err
	}
	m := gocv.NewBFMatcherWithParams(cvNorm, crossCheck)
	return &bruteForce{m: &m}, nil
}

// Indexed returns a FLANN matcher. gocv builds it with the default KD-tree
// index, so LSH parameters are accepted but descriptors are matched as floats.
func (b *Backend) Indexed(norm iface.NormType, params iface.IndexParams) (iface.MatchBackend, error) {
	if _, err := toNorm(norm); err != nil {
		return nil, err
	}
	if params.Kind == iface.LSHIndex {
		b.log.Debug("LSH index requested, using KD-tree over widened descriptors",
			zap.Int("tables", params.Tables), zap.Int("keySize", params.KeySize))
	}
	m := gocv.NewFlannBasedMatcher()
	return &flann{m: &m}, nil
}

func toNorm(norm iface.NormType) (gocv.NormType, error) {
	switch norm {
	case iface.NormHamming:
		return gocv.NormHamming, nil
	case iface.NormL2:
		return gocv.NormL2, nil
	}
	return 0, fmt.Errorf("%w: %s", iface.ErrUnsupportedNormType, norm)
}

type featureDetector struct {
	det cvDetector
}

func (f *featureDetector) Detect(img *image.Gray) ([]iface.Keypoint, error) {
	m, err := grayMat(img)
	if err != nil {
		return nil, err
	}
	defer m.Close()
	return toKeypoints(f.det.Detect(m)), nil
}

func (f *featureDetector) Close() error {
	return f.det.Close()
}

type extractor struct {
	ext  cvExtractor
	norm iface.NormType
}

func (e *extractor) Compute(img *image.Gray, kps []iface.Keypoint) ([]iface.Keypoint, iface.Descriptors, error) {
	m, err := grayMat(img)
	if err != nil {
		return nil, iface.Descriptors{}, err
	}
	defer m.Close()
	mask := gocv.NewMat()
	defer mask.Close()

	kept, desc := e.ext.Compute(m, mask, fromKeypoints(kps))
	defer desc.Close()
	d, err := descriptorsFromMat(desc)
	if err != nil {
		return nil, iface.Descriptors{}, err
	}
	out := toKeypoints(kept)
	// preserve the unscored marker of corner keypoints
	if len(kps) > 0 && !kps[0].Scored {
		for i := range out {
			out[i].Scored = false
		}
	}
	return out, d, nil
}

func (e *extractor) Norm() iface.NormType { return e.norm }

func (e *extractor) Close() error {
	return e.ext.Close()
}
