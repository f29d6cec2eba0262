package iface

import "image"

type Detector interface {
	Detect(img *image.Gray) ([]Keypoint, error)
	Close() error
}

// Extractor computes descriptors. It may drop keypoints it cannot describe, the
// returned keypoints line up 1:1 with the descriptor rows.
type Extractor interface {
	Compute(img *image.Gray, kps []Keypoint) ([]Keypoint, Descriptors, error)
	Norm() NormType
	Close() error
}

type MatchBackend interface {
	Match(query, train Descriptors) ([]Match, error)
	KnnMatch(query, train Descriptors, k int) ([][]Match, error)
	// FloatInput reports whether binary descriptors must be widened first.
	FloatInput() bool
	Close() error
}

// Backend is the vision-algorithms provider.
type Backend interface {
	GoodFeatures(img *image.Gray, params CornerParams) ([]Position, error)
	FeatureDetector(name string) (Detector, error)
	Extractor(name string) (Extractor, error)
	BruteForce(norm NormType, crossCheck bool) (MatchBackend, error)
	Indexed(norm NormType, params IndexParams) (MatchBackend, error)
}

type Visualizer interface {
	ShowKeypoints(title string, img *image.Gray, kps []Keypoint) error
	ShowMatches(title string, imgA *image.Gray, kpsA []Keypoint, imgB *image.Gray, kpsB []Keypoint, matches []Match) error
}

// FrameSource supplies the grayscale frames of one sequence.
type FrameSource interface {
	Len() int
	Load(index int) (*image.Gray, error)
}
