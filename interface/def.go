package iface

import (
	"errors"
	"image"
)

var (
	ErrUnsupportedDetectorType   = errors.New("unsupported detector type")
	ErrUnsupportedDescriptorType = errors.New("unsupported descriptor type")
	ErrUnsupportedMatcherType    = errors.New("unsupported matcher type")
	ErrUnsupportedSelectorType   = errors.New("unsupported selector type")
	ErrUnsupportedNormType       = errors.New("unsupported norm type")
)

type Position struct {
	X, Y float64
}

// Keypoint is a detected point of interest. Scored is false when the detector
// provides no response value (corner detectors).
type Keypoint struct {
	X, Y     float64
	Size     float64
	Angle    float64
	Response float64
	Octave   int
	Scored   bool
}

func (k Keypoint) Pos() Position {
	return Position{X: k.X, Y: k.Y}
}

type Match struct {
	SourceIdx    int
	ReferenceIdx int
	Distance     float64
}

type DescriptorKind int

const (
	BinaryDescriptor DescriptorKind = iota + 1
	FloatDescriptor
)

func (k DescriptorKind) String() string {
	switch k {
	case BinaryDescriptor:
		return "binary"
	case FloatDescriptor:
		return "float"
	}
	return "unknown"
}

// Descriptors is a row-major matrix, one row per keypoint. Binary rows live in
// Bytes, float rows in Floats.
type Descriptors struct {
	Rows   int
	Cols   int
	Kind   DescriptorKind
	Bytes  []byte
	Floats []float32
}

func (d Descriptors) Empty() bool {
	return d.Rows == 0 || d.Cols == 0
}

// Widen returns a float copy of binary descriptors. Float descriptors are
// returned unchanged.
func (d Descriptors) Widen() Descriptors {
	if d.Kind != BinaryDescriptor {
		return d
	}
	out := Descriptors{
		Rows:   d.Rows,
		Cols:   d.Cols,
		Kind:   FloatDescriptor,
		Floats: make([]float32, len(d.Bytes)),
	}
	for i, b := range d.Bytes {
		out.Floats[i] = float32(b)
	}
	return out
}

type NormType int

const (
	NormHamming NormType = iota + 1
	NormL2
)

func (n NormType) String() string {
	switch n {
	case NormHamming:
		return "hamming"
	case NormL2:
		return "l2"
	}
	return "unknown"
}

type IndexKind int

const (
	KDTreeIndex IndexKind = iota + 1
	LSHIndex
)

// IndexParams configures an approximate nearest-neighbour index.
type IndexParams struct {
	Kind       IndexKind
	Trees      int
	Tables     int
	KeySize    int
	MultiProbe int
}

// CornerParams drives the corner-based detector family.
type CornerParams struct {
	MaxCorners   int
	QualityLevel float64
	MinDistance  float64
	BlockSize    int
	UseHarris    bool
	K            float64
}

// Frame is one slot of the sliding window. Keypoints, descriptors and matches
// are attached while the frame is processed.
type Frame struct {
	Image       *image.Gray
	Keypoints   []Keypoint
	Descriptors Descriptors
	Matches     []Match
}
