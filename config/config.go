package config

import (
	"FeatureBench/pipeline"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the complete benchmark configuration read from config.yaml.
type Config struct {
	Log    LogConfig            `yaml:"log"`
	Frames FramesConfig         `yaml:"frames"`
	Run    RunConfig            `yaml:"run"`
	Sweep  pipeline.SweepConfig `yaml:"sweep"`
	Report ReportConfig         `yaml:"report"`
	Server ServerConfig         `yaml:"server"`
}

type LogConfig struct {
	Mode  string `yaml:"mode"` // production, development
	Level string `yaml:"level"`
}

// FramesConfig locates the image sequence: <dir>/<prefix><index><ext> with the
// index zero-padded to fill digits, or one path per line in list.
type FramesConfig struct {
	Dir    string `yaml:"dir"`
	Prefix string `yaml:"prefix"`
	Ext    string `yaml:"ext"`
	Fill   int    `yaml:"fill"`
	First  int    `yaml:"first"`
	Last   int    `yaml:"last"`
	List   string `yaml:"list"`
}

// RunConfig is the single-run combination plus the options shared by every run.
type RunConfig struct {
	Detector       string        `yaml:"detector"`
	Descriptor     string        `yaml:"descriptor"`
	Matcher        string        `yaml:"matcher"`
	Selector       string        `yaml:"selector"`
	BufferSize     int           `yaml:"buffer_size"`
	Visualize      bool          `yaml:"visualize"`
	FocusOnVehicle bool          `yaml:"focus_on_vehicle"`
	LimitKeypoints bool          `yaml:"limit_keypoints"`
	MaxKeypoints   int           `yaml:"max_keypoints"`
	Ratio          float64       `yaml:"ratio"`
	VehicleRect    pipeline.Rect `yaml:"vehicle_rect"`
}

type ReportConfig struct {
	CSV        string `yaml:"csv"`
	Msgpack    string `yaml:"msgpack"`
	PublishURL string `yaml:"publish_url"`
	Postgres   string `yaml:"postgres"`
}

type ServerConfig struct {
	Enabled     bool `yaml:"enabled"`
	HTTPPort    int  `yaml:"http_port"`
	RPCPort     int  `yaml:"rpc_port"`
	MetricsPort int  `yaml:"metrics_port"`
	QueueSize   int  `yaml:"queue_size"`
}

// Default is the configuration used without a file: the KITTI sequence
// 0000000000.png..0000000009.png and SHITOMASI/BRISK/MAT_BF/SEL_NN.
func Default() *Config {
	cfg := &Config{
		Frames: FramesConfig{
			Dir:    "images/KITTI/2011_09_26/image_00/data",
			Prefix: "000000",
			Ext:    ".png",
			Fill:   4,
			First:  0,
			Last:   9,
		},
		Run: RunConfig{
			Detector:   pipeline.DetShiTomasi,
			Descriptor: pipeline.DesBRISK,
			Matcher:    pipeline.MatBF,
			Selector:   pipeline.SelNN,
		},
	}
	_ = Validate(cfg)
	return cfg
}

// Load reads and validates a yaml configuration. Missing keys keep the values
// of Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Options converts the run section into runner options.
func (c *Config) Options() pipeline.Options {
	return pipeline.Options{
		BufferSize:     c.Run.BufferSize,
		Visualize:      c.Run.Visualize,
		FocusOnVehicle: c.Run.FocusOnVehicle,
		LimitKeypoints: c.Run.LimitKeypoints,
		VehicleRect:    c.Run.VehicleRect,
		MaxKeypoints:   c.Run.MaxKeypoints,
		RatioThreshold: c.Run.Ratio,
	}
}

// Combination is the single-run sweep point.
func (c *Config) Combination() pipeline.Combination {
	return pipeline.Combination{
		Detector:   c.Run.Detector,
		Descriptor: c.Run.Descriptor,
		Matcher:    c.Run.Matcher,
		Selector:   c.Run.Selector,
	}
}
