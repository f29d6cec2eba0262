package pipeline

import (
	iface "FeatureBench/interface"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRatioFilter(t *testing.T) {
	knn := [][]iface.Match{
		{{SourceIdx: 0, Distance: 7.9}, {SourceIdx: 0, Distance: 10}},
		// exactly on the threshold is rejected
		{{SourceIdx: 1, Distance: 8}, {SourceIdx: 1, Distance: 10}},
		{{SourceIdx: 2, Distance: 9}, {SourceIdx: 2, Distance: 10}},
		// a single candidate cannot be tested
		{{SourceIdx: 3, Distance: 1}},
		{},
		{{SourceIdx: 5, Distance: 0}, {SourceIdx: 5, Distance: 0.5}},
	}
	got := RatioFilter(knn, 0.8)
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].SourceIdx)
	assert.Equal(t, 5, got[1].SourceIdx)
}

func TestRatioFilter_BothZero(t *testing.T) {
	knn := [][]iface.Match{{{Distance: 0}, {Distance: 0}}}
	assert.Empty(t, RatioFilter(knn, DefaultRatio))
}

func TestIndexParamsFor(t *testing.T) {
	p, err := IndexParamsFor(iface.NormL2)
	require.NoError(t, err)
	assert.Equal(t, iface.KDTreeIndex, p.Kind)

	p, err = IndexParamsFor(iface.NormHamming)
	require.NoError(t, err)
	assert.Equal(t, iface.IndexParams{Kind: iface.LSHIndex, Tables: 20, KeySize: 15, MultiProbe: 2}, p)

	_, err = IndexParamsFor(iface.NormType(99))
	assert.ErrorIs(t, err, iface.ErrUnsupportedNormType)
}

func TestNewMatcher_UnsupportedNorm(t *testing.T) {
	_, err := NewMatcher(MatFLANN, SelNN, iface.NormType(0), &fakeBackend{}, DefaultRatio)
	assert.ErrorIs(t, err, iface.ErrUnsupportedNormType)
	_, err = NewMatcher(MatBF, SelNN, iface.NormType(0), &fakeBackend{}, DefaultRatio)
	assert.ErrorIs(t, err, iface.ErrUnsupportedNormType)
}

func TestMatcher_CrossCheckOnlyForNearest(t *testing.T) {
	b := &fakeBackend{}
	_, err := NewMatcher(MatBF, SelNN, iface.NormHamming, b, DefaultRatio)
	require.NoError(t, err)
	_, err = NewMatcher(MatBF, SelKNN, iface.NormHamming, b, DefaultRatio)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false}, b.crossChecks)
}

func TestMatcher_EmptyAndMismatched(t *testing.T) {
	b := &fakeBackend{}
	m, err := NewMatcher(MatBF, SelNN, iface.NormHamming, b, DefaultRatio)
	require.NoError(t, err)

	full := iface.Descriptors{Rows: 1, Cols: 2, Kind: iface.BinaryDescriptor, Bytes: []byte{1, 2}}
	matches, elapsed, err := m.Match(iface.Descriptors{}, full)
	require.NoError(t, err)
	assert.Empty(t, matches)
	assert.Zero(t, elapsed)
	assert.Empty(t, b.matchedKinds)

	wide := iface.Descriptors{Rows: 1, Cols: 3, Kind: iface.BinaryDescriptor, Bytes: []byte{1, 2, 3}}
	_, _, err = m.Match(full, wide)
	assert.ErrorIs(t, err, ErrDescriptorMismatch)
}

func TestMatcher_KnnAppliesRatio(t *testing.T) {
	b := &fakeBackend{}
	m, err := NewMatcher(MatBF, SelKNN, iface.NormL2, b, DefaultRatio)
	require.NoError(t, err)

	src := iface.Descriptors{Rows: 2, Cols: 1, Kind: iface.FloatDescriptor, Floats: []float32{0, 5}}
	// row 0 is unambiguous, row 1 sits halfway between two references
	ref := iface.Descriptors{Rows: 2, Cols: 1, Kind: iface.FloatDescriptor, Floats: []float32{0, 10}}
	matches, _, err := m.Match(src, ref)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, iface.Match{SourceIdx: 0, ReferenceIdx: 0, Distance: 0}, matches[0])
}
