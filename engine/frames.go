package engine

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"gocv.io/x/gocv"
)

// FileSequence reads numbered image files <Dir>/<Prefix><index><Ext>, the index
// zero-padded to Fill digits, for indices First..Last inclusive.
type FileSequence struct {
	Dir    string
	Prefix string
	Ext    string
	Fill   int
	First  int
	Last   int
}

func (s FileSequence) Len() int {
	if s.Last < s.First {
		return 0
	}
	return s.Last - s.First + 1
}

func (s FileSequence) Path(index int) string {
	name := fmt.Sprintf("%s%0*d%s", s.Prefix, s.Fill, s.First+index, s.Ext)
	return filepath.Join(s.Dir, name)
}

func (s FileSequence) Load(index int) (*image.Gray, error) {
	if index < 0 || index >= s.Len() {
		return nil, fmt.Errorf("frame index %d outside 0..%d", index, s.Len()-1)
	}
	return readGray(s.Path(index))
}

// ListSequence reads the frames named, one path per line, in a list file.
type ListSequence struct {
	paths []string
}

func NewListSequence(listPath string) (*ListSequence, error) {
	lines, err := ReadLines(listPath)
	if err != nil {
		return nil, err
	}
	base := filepath.Dir(listPath)
	paths := make([]string, 0, len(lines))
	for _, l := range lines {
		if !filepath.IsAbs(l) {
			l = filepath.Join(base, l)
		}
		paths = append(paths, l)
	}
	return &ListSequence{paths: paths}, nil
}

func (s *ListSequence) Len() int { return len(s.paths) }

func (s *ListSequence) Load(index int) (*image.Gray, error) {
	if index < 0 || index >= len(s.paths) {
		return nil, fmt.Errorf("frame index %d outside 0..%d", index, len(s.paths)-1)
	}
	return readGray(s.paths[index])
}

// ReadLines returns the non-empty lines of a text file, CRLF tolerant.
func ReadLines(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, l := range strings.Split(string(b), "\n") {
		l = strings.TrimSpace(strings.TrimRight(l, "\r"))
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines, nil
}

func readGray(path string) (*image.Gray, error) {
	m := gocv.IMRead(path, gocv.IMReadGrayScale)
	defer m.Close()
	if m.Empty() {
		return nil, fmt.Errorf("could not read image %s", path)
	}
	return grayImage(m)
}
