package config

import (
	"FeatureBench/pipeline"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 2, cfg.Run.BufferSize)
	assert.Equal(t, 0.8, cfg.Run.Ratio)
	assert.Equal(t, 50, cfg.Run.MaxKeypoints)
	assert.Equal(t, pipeline.VehicleRect, cfg.Run.VehicleRect)
	assert.Equal(t, "stats.csv", cfg.Report.CSV)
	assert.Equal(t, 10, cfg.Frames.Last-cfg.Frames.First+1)
	assert.NotContains(t, cfg.Sweep.Descriptors, pipeline.DesBRIEF)
	assert.NotContains(t, cfg.Sweep.Descriptors, pipeline.DesFREAK)
	assert.Len(t, cfg.Sweep.Detectors, len(pipeline.AllDetectors))

	opts := cfg.Options()
	assert.Equal(t, pipeline.DefaultOptions(), opts)
	assert.Equal(t, pipeline.Combination{Detector: "SHITOMASI", Descriptor: "BRISK", Matcher: "MAT_BF", Selector: "SEL_NN"},
		cfg.Combination())
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
log:
  mode: development
frames:
  dir: /data/seq
  last: 4
run:
  detector: ORB
  descriptor: SIFT
  selector: SEL_KNN
  focus_on_vehicle: true
  vehicle_rect: {x: 1, y: 2, width: 3, height: 4}
sweep:
  detectors: [AKAZE]
  descriptors: [AKAZE]
report:
  msgpack: out.msgpack
server:
  http_port: 9000
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Log.Mode)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "/data/seq", cfg.Frames.Dir)
	assert.Equal(t, "000000", cfg.Frames.Prefix)
	assert.Equal(t, 4, cfg.Frames.Last)
	assert.Equal(t, "ORB", cfg.Run.Detector)
	assert.Equal(t, "MAT_BF", cfg.Run.Matcher)
	assert.True(t, cfg.Run.FocusOnVehicle)
	assert.Equal(t, pipeline.Rect{X: 1, Y: 2, Width: 3, Height: 4}, cfg.Run.VehicleRect)
	assert.Equal(t, []string{"AKAZE"}, cfg.Sweep.Detectors)
	assert.Equal(t, pipeline.AllMatchers, cfg.Sweep.Matchers)
	assert.Equal(t, "stats.csv", cfg.Report.CSV)
	assert.Equal(t, "out.msgpack", cfg.Report.Msgpack)
	assert.Equal(t, 9000, cfg.Server.HTTPPort)
	assert.Equal(t, 50051, cfg.Server.RPCPort)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"ratio":         "run:\n  ratio: 1.5\n",
		"frames":        "frames:\n  first: 5\n  last: 2\n",
		"empty sweep":   "sweep:\n  detectors: [AKAZE]\n  descriptors: [ORB]\n",
		"bad yaml":      "run: [\n",
		"negative fill": "frames:\n  fill: -1\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate_EmptySweep(t *testing.T) {
	cfg := Default()
	cfg.Sweep = pipeline.SweepConfig{Detectors: []string{"AKAZE"}, Descriptors: []string{"SIFT"}}
	assert.ErrorIs(t, Validate(cfg), pipeline.ErrEmptySweep)
}
