package vision

import (
	"fmt"
	"image"

	"KneeGrader/pkg/jointspace"
	"gocv.io/x/gocv"
)

const (
	TargetSize = 224

	CannyLowThreshold  = 50
	CannyHighThreshold = 150
)

type Analyzer struct{}

func New() *Analyzer {
	return &Analyzer{}
}

// Analyze decodes an uploaded image and returns the shapes of every contour
// found in its edge map.
func (a *Analyzer) Analyze(buf []byte) ([]jointspace.Shape, error) {
	edges, err := PreprocessBytes(buf)
	if err != nil {
		return nil, err
	}
	defer edges.Close()

	return ExtractShapes(edges), nil
}

func (a *Analyzer) AnalyzeFile(path string) ([]jointspace.Shape, error) {
	edges, err := Preprocess(path)
	if err != nil {
		return nil, err
	}
	defer edges.Close()

	return ExtractShapes(edges), nil
}

// Preprocess loads the image at path and returns its 224x224 edge map.
// The caller owns the returned Mat.
func Preprocess(path string) (gocv.Mat, error) {
	img := gocv.IMRead(path, gocv.IMReadColor)
	if img.Empty() {
		img.Close()
		return gocv.Mat{}, fmt.Errorf("%w: %s", jointspace.ErrDecode, path)
	}
	defer img.Close()

	return edgeMap(img), nil
}

func PreprocessBytes(buf []byte) (gocv.Mat, error) {
	if len(buf) == 0 {
		return gocv.Mat{}, fmt.Errorf("%w: empty input", jointspace.ErrDecode)
	}

	img, err := gocv.IMDecode(buf, gocv.IMReadColor)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("%w: %v", jointspace.ErrDecode, err)
	}
	if img.Empty() {
		img.Close()
		return gocv.Mat{}, fmt.Errorf("%w: unsupported or corrupt image data", jointspace.ErrDecode)
	}
	defer img.Close()

	return edgeMap(img), nil
}

func edgeMap(img gocv.Mat) gocv.Mat {
	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(img, &resized, image.Pt(TargetSize, TargetSize), 0, 0, gocv.InterpolationLinear)

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(resized, &gray, gocv.ColorBGRToGray)

	edges := gocv.NewMat()
	gocv.Canny(gray, &edges, CannyLowThreshold, CannyHighThreshold)

	return edges
}

// ExtractShapes finds every contour of the edge map, holes included, and
// reduces each one to its area and bounding-box width.
func ExtractShapes(edges gocv.Mat) []jointspace.Shape {
	contours := gocv.FindContours(edges, gocv.RetrievalTree, gocv.ChainApproxSimple)
	defer contours.Close()

	shapes := make([]jointspace.Shape, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		shapes = append(shapes, jointspace.Shape{
			Area:  gocv.ContourArea(contour),
			Width: gocv.BoundingRect(contour).Dx(),
		})
	}

	return shapes
}
