package pipeline

import "fmt"

const (
	DetShiTomasi = "SHITOMASI"
	DetHarris    = "HARRIS"
	DetFAST      = "FAST"
	DetBRISK     = "BRISK"
	DetORB       = "ORB"
	DetAKAZE     = "AKAZE"
	DetSIFT      = "SIFT"

	DesBRISK = "BRISK"
	DesBRIEF = "BRIEF"
	DesORB   = "ORB"
	DesFREAK = "FREAK"
	DesAKAZE = "AKAZE"
	DesSIFT  = "SIFT"

	MatBF    = "MAT_BF"
	MatFLANN = "MAT_FLANN"

	SelNN  = "SEL_NN"
	SelKNN = "SEL_KNN"
)

var (
	AllDetectors   = []string{DetShiTomasi, DetHarris, DetFAST, DetBRISK, DetORB, DetAKAZE, DetSIFT}
	AllDescriptors = []string{DesBRISK, DesBRIEF, DesORB, DesFREAK, DesAKAZE, DesSIFT}
	AllMatchers    = []string{MatBF, MatFLANN}
	AllSelectors   = []string{SelNN, SelKNN}
)

// Combination is one sweep point.
type Combination struct {
	Detector   string `json:"detector" yaml:"detector" mapstructure:"detector"`
	Descriptor string `json:"descriptor" yaml:"descriptor" mapstructure:"descriptor"`
	Matcher    string `json:"matcher" yaml:"matcher" mapstructure:"matcher"`
	Selector   string `json:"selector" yaml:"selector" mapstructure:"selector"`
}

func (c Combination) String() string {
	return fmt.Sprintf("%s/%s/%s/%s", c.Detector, c.Descriptor, c.Matcher, c.Selector)
}

// Compatible reports whether the detector and descriptor may be paired. AKAZE
// descriptors need AKAZE keypoints and the AKAZE detector is only paired with
// its own descriptor.
func Compatible(detector, descriptor string) bool {
	return (detector == DetAKAZE) == (descriptor == DesAKAZE)
}
