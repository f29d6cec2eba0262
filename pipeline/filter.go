package pipeline

import (
	iface "FeatureBench/interface"
	"sort"
)

const DefaultMaxKeypoints = 50

// Rect is an axis aligned region. Contains includes the left and top edges and
// excludes the right and bottom ones.
type Rect struct {
	X      float64 `yaml:"x" json:"x" mapstructure:"x"`
	Y      float64 `yaml:"y" json:"y" mapstructure:"y"`
	Width  float64 `yaml:"width" json:"width" mapstructure:"width"`
	Height float64 `yaml:"height" json:"height" mapstructure:"height"`
}

// VehicleRect frames the preceding vehicle in the KITTI sequence.
var VehicleRect = Rect{X: 535, Y: 180, Width: 180, Height: 150}

func (r Rect) Contains(p iface.Position) bool {
	return r.X <= p.X && p.X < r.X+r.Width && r.Y <= p.Y && p.Y < r.Y+r.Height
}

func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

func FilterROI(kps []iface.Keypoint, r Rect) []iface.Keypoint {
	out := make([]iface.Keypoint, 0, len(kps))
	for _, kp := range kps {
		if r.Contains(kp.Pos()) {
			out = append(out, kp)
		}
	}
	return out
}

// RetainBest caps kps at max entries. Scored keypoints are ranked by response,
// highest first; unscored ones keep their detector order.
func RetainBest(kps []iface.Keypoint, max int) []iface.Keypoint {
	if max < 0 || len(kps) <= max {
		return kps
	}
	scored := false
	for _, kp := range kps {
		if kp.Scored {
			scored = true
			break
		}
	}
	out := make([]iface.Keypoint, len(kps))
	copy(out, kps)
	if scored {
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Response > out[j].Response
		})
	}
	return out[:max]
}
