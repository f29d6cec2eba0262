package main

import (
	"FeatureBench/config"
	"bytes"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArgs(t *testing.T) {
	var out bytes.Buffer
	a, err := parseArgs("fb", []string{"-d", "FAST", "-x", "ORB", "-m", "MAT_FLANN", "-s", "SEL_KNN", "-f", "-l"}, &out)
	require.NoError(t, err)
	assert.False(t, a.configSet)
	assert.True(t, a.focus)
	assert.True(t, a.limit)

	cfg := config.Default()
	require.NoError(t, a.apply(cfg))
	assert.Equal(t, "FAST", cfg.Run.Detector)
	assert.Equal(t, "ORB", cfg.Run.Descriptor)
	assert.Equal(t, "MAT_FLANN", cfg.Run.Matcher)
	assert.Equal(t, "SEL_KNN", cfg.Run.Selector)
	assert.True(t, cfg.Run.FocusOnVehicle)
	assert.True(t, cfg.Run.LimitKeypoints)
	assert.False(t, cfg.Run.Visualize)
}

func TestParseArgs_Incomplete(t *testing.T) {
	var out bytes.Buffer
	a, err := parseArgs("fb", []string{"-d", "FAST"}, &out)
	require.NoError(t, err)
	assert.ErrorIs(t, a.apply(config.Default()), errIncomplete)

	// an explicit config file supplies the missing types
	a, err = parseArgs("fb", []string{"-d", "FAST", "-config", "bench.yaml"}, &out)
	require.NoError(t, err)
	assert.True(t, a.configSet)
	cfg := config.Default()
	require.NoError(t, a.apply(cfg))
	assert.Equal(t, "FAST", cfg.Run.Detector)
	assert.Equal(t, "BRISK", cfg.Run.Descriptor)

	a, err = parseArgs("fb", []string{"-b", "-f"}, &out)
	require.NoError(t, err)
	cfg = config.Default()
	require.NoError(t, a.apply(cfg))
	assert.True(t, cfg.Run.FocusOnVehicle)
}

func TestParseArgs_Errors(t *testing.T) {
	var out bytes.Buffer
	_, err := parseArgs("fb", []string{"-q"}, &out)
	assert.Error(t, err)
	assert.Contains(t, out.String(), "DETECTOR_TYPE")

	_, err = parseArgs("fb", []string{"-b", "extra"}, &out)
	assert.EqualError(t, err, "unexpected argument found: extra")

	out.Reset()
	_, err = parseArgs("fb", []string{"-h"}, &out)
	assert.ErrorIs(t, err, flag.ErrHelp)
	assert.Contains(t, out.String(), "-d SHITOMASI -m MAT_BF -x BRISK -s SEL_NN")
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	cfg, err := loadConfig(cliArgs{configPath: filepath.Join(dir, "config.yaml")})
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)

	_, err = loadConfig(cliArgs{configPath: filepath.Join(dir, "config.yaml"), configSet: true})
	assert.Error(t, err)

	path := filepath.Join(dir, "bench.yaml")
	require.NoError(t, os.WriteFile(path, []byte("run:\n  detector: ORB\n  descriptor: ORB\n"), 0o644))
	cfg, err = loadConfig(cliArgs{configPath: path, configSet: true})
	require.NoError(t, err)
	assert.Equal(t, "ORB", cfg.Run.Detector)
	assert.Equal(t, "MAT_BF", cfg.Run.Matcher)
}
