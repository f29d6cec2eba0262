package engine

import (
	iface "FeatureBench/interface"
	"image"
	"image/color"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

// blocks draws 8x8 tiles of random intensity, plenty of corners for every
// detector.
func blocks(w, h int, seed int64) *image.Gray {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewGray(image.Rect(0, 0, w, h))
	for by := 0; by < h; by += 8 {
		for bx := 0; bx < w; bx += 8 {
			v := uint8(rng.Intn(256))
			for y := by; y < by+8 && y < h; y++ {
				for x := bx; x < bx+8 && x < w; x++ {
					img.SetGray(x, y, color.Gray{Y: v})
				}
			}
		}
	}
	return img
}

func TestGrayRoundTrip(t *testing.T) {
	img := blocks(64, 48, 1)
	m, err := grayMat(img)
	require.NoError(t, err)
	defer m.Close()
	assert.Equal(t, 48, m.Rows())
	assert.Equal(t, 64, m.Cols())

	back, err := grayImage(m)
	require.NoError(t, err)
	assert.Equal(t, img.Pix, back.Pix)

	sub := img.SubImage(image.Rect(8, 8, 24, 20)).(*image.Gray)
	sm, err := grayMat(sub)
	require.NoError(t, err)
	defer sm.Close()
	assert.Equal(t, 12, sm.Rows())
	assert.Equal(t, 16, sm.Cols())
	assert.Equal(t, sub.GrayAt(8, 8).Y, sm.GetUCharAt(0, 0))
}

func TestDescriptorMatRoundTrip(t *testing.T) {
	d := iface.Descriptors{Rows: 2, Cols: 3, Kind: iface.FloatDescriptor, Floats: []float32{1, 2.5, -3, 4, 5, 6}}
	m, err := matFromDescriptors(d)
	require.NoError(t, err)
	defer m.Close()
	back, err := descriptorsFromMat(m)
	require.NoError(t, err)
	assert.Equal(t, d, back)

	b := iface.Descriptors{Rows: 1, Cols: 4, Kind: iface.BinaryDescriptor, Bytes: []byte{0, 1, 254, 255}}
	bm, err := matFromDescriptors(b)
	require.NoError(t, err)
	defer bm.Close()
	back, err = descriptorsFromMat(bm)
	require.NoError(t, err)
	assert.Equal(t, b, back)
}

func TestBackend_GoodFeatures(t *testing.T) {
	b := NewBackend()
	img := blocks(160, 120, 2)
	corners, err := b.GoodFeatures(img, iface.CornerParams{MaxCorners: 500, QualityLevel: 0.01, MinDistance: 4, BlockSize: 4})
	require.NoError(t, err)
	assert.NotEmpty(t, corners)
	assert.LessOrEqual(t, len(corners), 500)
	for _, p := range corners {
		assert.True(t, p.X >= 0 && p.X < 160 && p.Y >= 0 && p.Y < 120)
	}
}

func TestBackend_DetectDescribeMatch(t *testing.T) {
	b := NewBackend()
	img := blocks(320, 240, 3)

	cases := []struct {
		detector, descriptor string
		kind                 iface.DescriptorKind
		norm                 iface.NormType
	}{
		{"ORB", "ORB", iface.BinaryDescriptor, iface.NormHamming},
		{"FAST", "BRISK", iface.BinaryDescriptor, iface.NormHamming},
		{"AKAZE", "AKAZE", iface.BinaryDescriptor, iface.NormHamming},
		{"SIFT", "SIFT", iface.FloatDescriptor, iface.NormL2},
	}
	for _, tc := range cases {
		t.Run(tc.detector+"/"+tc.descriptor, func(t *testing.T) {
			det, err := b.FeatureDetector(tc.detector)
			require.NoError(t, err)
			defer det.Close()
			kps, err := det.Detect(img)
			require.NoError(t, err)
			require.NotEmpty(t, kps)
			assert.True(t, kps[0].Scored)

			ext, err := b.Extractor(tc.descriptor)
			require.NoError(t, err)
			defer ext.Close()
			assert.Equal(t, tc.norm, ext.Norm())
			kept, desc, err := ext.Compute(img, kps)
			require.NoError(t, err)
			require.NotEmpty(t, kept)
			assert.Equal(t, len(kept), desc.Rows)
			assert.Equal(t, tc.kind, desc.Kind)

			bf, err := b.BruteForce(tc.norm, false)
			require.NoError(t, err)
			defer bf.Close()
			matches, err := bf.Match(desc, desc)
			require.NoError(t, err)
			assert.Len(t, matches, desc.Rows)
			for _, m := range matches {
				assert.Zero(t, m.Distance)
			}

			knn, err := bf.KnnMatch(desc, desc, 2)
			require.NoError(t, err)
			assert.Len(t, knn, desc.Rows)
		})
	}
}

func TestBackend_Flann(t *testing.T) {
	b := NewBackend()
	img := blocks(320, 240, 4)
	det, err := b.FeatureDetector("SIFT")
	require.NoError(t, err)
	defer det.Close()
	kps, err := det.Detect(img)
	require.NoError(t, err)
	ext, err := b.Extractor("SIFT")
	require.NoError(t, err)
	defer ext.Close()
	_, desc, err := ext.Compute(img, kps)
	require.NoError(t, err)
	require.False(t, desc.Empty())

	fl, err := b.Indexed(iface.NormL2, iface.IndexParams{Kind: iface.KDTreeIndex, Trees: 4})
	require.NoError(t, err)
	defer fl.Close()
	assert.True(t, fl.FloatInput())
	matches, err := fl.Match(desc, desc)
	require.NoError(t, err)
	assert.Len(t, matches, desc.Rows)
}

func TestBackend_Unsupported(t *testing.T) {
	b := NewBackend()
	_, err := b.FeatureDetector("SURF")
	assert.ErrorIs(t, err, iface.ErrUnsupportedDetectorType)
	for _, name := range []string{"BRIEF", "FREAK"} {
		_, err = b.Extractor(name)
		assert.ErrorIs(t, err, iface.ErrUnsupportedDescriptorType)
	}
	_, err = b.BruteForce(iface.NormType(0), false)
	assert.ErrorIs(t, err, iface.ErrUnsupportedNormType)
}

func TestFileSequence(t *testing.T) {
	dir := t.TempDir()
	seq := FileSequence{Dir: dir, Prefix: "000000", Ext: ".png", Fill: 4, First: 3, Last: 4}
	assert.Equal(t, 2, seq.Len())
	assert.Equal(t, filepath.Join(dir, "0000000003.png"), seq.Path(0))

	img := blocks(32, 24, 5)
	m, err := grayMat(img)
	require.NoError(t, err)
	defer m.Close()
	require.True(t, gocv.IMWrite(seq.Path(0), m))

	loaded, err := seq.Load(0)
	require.NoError(t, err)
	assert.Equal(t, img.Pix, loaded.Pix)

	_, err = seq.Load(1)
	assert.Error(t, err)
	_, err = seq.Load(2)
	assert.Error(t, err)
}

func TestListSequence(t *testing.T) {
	dir := t.TempDir()
	img := blocks(16, 16, 6)
	m, err := grayMat(img)
	require.NoError(t, err)
	defer m.Close()
	require.True(t, gocv.IMWrite(filepath.Join(dir, "a.png"), m))

	list := filepath.Join(dir, "frames.txt")
	require.NoError(t, os.WriteFile(list, []byte("a.png\r\n\r\na.png\n"), 0o644))
	seq, err := NewListSequence(list)
	require.NoError(t, err)
	assert.Equal(t, 2, seq.Len())
	loaded, err := seq.Load(1)
	require.NoError(t, err)
	assert.Equal(t, img.Pix, loaded.Pix)
}
