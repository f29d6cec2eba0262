package engine

import (
	iface "FeatureBench/interface"
	"encoding/binary"
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"
)

// grayMat copies img into a single channel 8-bit Mat. The caller closes it.
func grayMat(img *image.Gray) (gocv.Mat, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	pix := img.Pix
	if img.Stride != w || b.Min != (image.Point{}) {
		pix = make([]byte, 0, w*h)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			off := img.PixOffset(b.Min.X, y)
			pix = append(pix, img.Pix[off:off+w]...)
		}
	}
	return gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8U, pix[:w*h])
}

// grayImage copies an 8-bit single channel Mat out of OpenCV memory.
func grayImage(m gocv.Mat) (*image.Gray, error) {
	if m.Empty() {
		return nil, fmt.Errorf("empty mat")
	}
	if m.Channels() != 1 || m.Type() != gocv.MatTypeCV8U {
		return nil, fmt.Errorf("mat type %v with %d channels is not 8-bit grayscale", m.Type(), m.Channels())
	}
	w, h := m.Cols(), m.Rows()
	return &image.Gray{Pix: m.ToBytes(), Stride: w, Rect: image.Rect(0, 0, w, h)}, nil
}

func toKeypoints(cv []gocv.KeyPoint) []iface.Keypoint {
	out := make([]iface.Keypoint, 0, len(cv))
	for _, k := range cv {
		out = append(out, iface.Keypoint{
			X:        k.X,
			Y:        k.Y,
			Size:     k.Size,
			Angle:    k.Angle,
			Response: k.Response,
			Octave:   k.Octave,
			Scored:   true,
		})
	}
	return out
}

func fromKeypoints(kps []iface.Keypoint) []gocv.KeyPoint {
	out := make([]gocv.KeyPoint, 0, len(kps))
	for _, k := range kps {
		out = append(out, gocv.KeyPoint{
			X:        k.X,
			Y:        k.Y,
			Size:     k.Size,
			Angle:    k.Angle,
			Response: k.Response,
			Octave:   k.Octave,
			ClassID:  -1,
		})
	}
	return out
}

// descriptorsFromMat copies a descriptor Mat, one row per keypoint.
func descriptorsFromMat(m gocv.Mat) (iface.Descriptors, error) {
	if m.Empty() {
		return iface.Descriptors{}, nil
	}
	d := iface.Descriptors{Rows: m.Rows(), Cols: m.Cols()}
	switch m.Type() {
	case gocv.MatTypeCV8U:
		d.Kind = iface.BinaryDescriptor
		d.Bytes = m.ToBytes()
	case gocv.MatTypeCV32F:
		d.Kind = iface.FloatDescriptor
		data, err := m.DataPtrFloat32()
		if err != nil {
			return iface.Descriptors{}, err
		}
		d.Floats = append([]float32(nil), data...)
	default:
		return iface.Descriptors{}, fmt.Errorf("unexpected descriptor mat type %v", m.Type())
	}
	return d, nil
}

func matFromDescriptors(d iface.Descriptors) (gocv.Mat, error) {
	switch d.Kind {
	case iface.BinaryDescriptor:
		return gocv.NewMatFromBytes(d.Rows, d.Cols, gocv.MatTypeCV8U, d.Bytes)
	case iface.FloatDescriptor:
		buf := make([]byte, 4*len(d.Floats))
		for i, f := range d.Floats {
			binary.NativeEndian.PutUint32(buf[4*i:], math.Float32bits(f))
		}
		return gocv.NewMatFromBytes(d.Rows, d.Cols, gocv.MatTypeCV32F, buf)
	}
	return gocv.NewMat(), fmt.Errorf("descriptor kind %s", d.Kind)
}

func toMatches(dm []gocv.DMatch) []iface.Match {
	out := make([]iface.Match, 0, len(dm))
	for _, m := range dm {
		out = append(out, iface.Match{SourceIdx: m.QueryIdx, ReferenceIdx: m.TrainIdx, Distance: m.Distance})
	}
	return out
}

func fromMatches(ms []iface.Match) []gocv.DMatch {
	out := make([]gocv.DMatch, 0, len(ms))
	for _, m := range ms {
		out = append(out, gocv.DMatch{QueryIdx: m.SourceIdx, TrainIdx: m.ReferenceIdx, Distance: m.Distance})
	}
	return out
}
