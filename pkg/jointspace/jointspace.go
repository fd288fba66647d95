package jointspace

import (
	"errors"
	"sort"
)

var ErrDecode = errors.New("image could not be decoded")

// Shape is the part of a contour the measurement needs: its enclosed area
// and the width of its axis-aligned bounding box, in pixels.
type Shape struct {
	Area  float64
	Width int
}

// Widths holds the bounding-box widths of the two largest-area contours,
// largest first. [0, 0] means fewer than two contours were found.
type Widths [2]int

func (w Widths) Insufficient() bool {
	return w[0] == 0 && w[1] == 0
}

func Measure(shapes []Shape) Widths {
	if len(shapes) < 2 {
		return Widths{0, 0}
	}

	sorted := make([]Shape, len(shapes))
	copy(sorted, shapes)

	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Area != sorted[j].Area {
			return sorted[i].Area > sorted[j].Area
		}
		return sorted[i].Width > sorted[j].Width
	})

	return Widths{sorted[0].Width, sorted[1].Width}
}
