package pipeline

import (
	iface "FeatureBench/interface"
	"fmt"
	"image"
	"time"
)

type Descriptor struct {
	name      string
	extractor iface.Extractor
}

func NewDescriptor(name string, backend iface.Backend) (*Descriptor, error) {
	ext, err := backend.Extractor(name)
	if err != nil {
		return nil, fmt.Errorf("descriptor %q: %w", name, err)
	}
	return &Descriptor{name: name, extractor: ext}, nil
}

func (d *Descriptor) Name() string { return d.name }

// Norm is the distance the descriptor family is meant to be compared with.
func (d *Descriptor) Norm() iface.NormType {
	return d.extractor.Norm()
}

// Describe returns the keypoints the extractor kept together with one
// descriptor row per kept keypoint.
func (d *Descriptor) Describe(img *image.Gray, kps []iface.Keypoint) ([]iface.Keypoint, iface.Descriptors, time.Duration, error) {
	if emptyImage(img) {
		return nil, iface.Descriptors{}, 0, ErrEmptyImage
	}
	type described struct {
		kps  []iface.Keypoint
		desc iface.Descriptors
	}
	res := timed(func() (described, error) {
		k, desc, err := d.extractor.Compute(img, kps)
		return described{kps: k, desc: desc}, err
	})
	if res.err != nil {
		return nil, iface.Descriptors{}, 0, res.err
	}
	if res.value.desc.Rows != len(res.value.kps) {
		return nil, iface.Descriptors{}, 0, fmt.Errorf("%w: %d rows for %d keypoints",
			ErrDescriptorMismatch, res.value.desc.Rows, len(res.value.kps))
	}
	return res.value.kps, res.value.desc, res.elapsed, nil
}

func (d *Descriptor) Close() error {
	return d.extractor.Close()
}
