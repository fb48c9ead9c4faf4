package preprocess

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"
)

// ErrGeometry is returned when a letterbox mapping does not produce the
// dimensions it is defined to produce.  It signals a logic error in the
// transform, never a data issue, so callers must abort the image
var ErrGeometry = errors.New("letterbox geometry mismatch")

// CanvasTransform records how an original image was mapped onto a square
// TargetSize x TargetSize canvas
type CanvasTransform struct {
	// Scale is TargetSize divided by the longer original side
	Scale float64 `json:"scale"`
	// TargetSize is the canvas width and height
	TargetSize int `json:"target_size"`
	// OrigWidth and OrigHeight are the source image dimensions
	OrigWidth  int `json:"original_width"`
	OrigHeight int `json:"original_height"`
	// ResizeWidth and ResizeHeight are the dimensions of the scaled image
	// before padding
	ResizeWidth  int `json:"resize_width"`
	ResizeHeight int `json:"resize_height"`
	// padding applied on each side of the scaled image
	PadLeft   int `json:"pad_left"`
	PadTop    int `json:"pad_top"`
	PadRight  int `json:"pad_right"`
	PadBottom int `json:"pad_bottom"`
}

// Validate checks the transform invariants
func (t CanvasTransform) Validate() error {

	if t.TargetSize <= 0 || t.OrigWidth <= 0 || t.OrigHeight <= 0 {
		return fmt.Errorf("%w: non positive dimensions %dx%d -> %d",
			ErrGeometry, t.OrigWidth, t.OrigHeight, t.TargetSize)
	}

	if t.ResizeWidth <= 0 || t.ResizeHeight <= 0 ||
		t.ResizeWidth > t.TargetSize || t.ResizeHeight > t.TargetSize {
		return fmt.Errorf("%w: resized %dx%d does not fit canvas %d",
			ErrGeometry, t.ResizeWidth, t.ResizeHeight, t.TargetSize)
	}

	if t.PadLeft < 0 || t.PadRight < 0 || t.PadTop < 0 || t.PadBottom < 0 {
		return fmt.Errorf("%w: negative padding", ErrGeometry)
	}

	if t.PadLeft+t.PadRight != t.TargetSize-t.ResizeWidth ||
		t.PadTop+t.PadBottom != t.TargetSize-t.ResizeHeight {
		return fmt.Errorf("%w: padding (%d,%d,%d,%d) does not fill canvas %d around %dx%d",
			ErrGeometry, t.PadLeft, t.PadTop, t.PadRight, t.PadBottom,
			t.TargetSize, t.ResizeWidth, t.ResizeHeight)
	}

	return nil
}

// Letterbox handles scaling an image so its longest side fills a square
// canvas whilst maintaining aspect, and reversing that mapping for masks
// produced on the canvas
type Letterbox struct {
	t CanvasTransform
	// tempMat is a Mat used during the resize process
	tempMat gocv.Mat
}

// NewLetterbox returns a letterbox for mapping a srcWidth x srcHeight image
// onto a targetSize square canvas
func NewLetterbox(srcWidth, srcHeight, targetSize int) (*Letterbox, error) {

	if srcWidth <= 0 || srcHeight <= 0 || targetSize <= 0 {
		return nil, fmt.Errorf("%w: invalid letterbox %dx%d -> %d",
			ErrGeometry, srcWidth, srcHeight, targetSize)
	}

	l := &Letterbox{
		t: CanvasTransform{
			TargetSize: targetSize,
			OrigWidth:  srcWidth,
			OrigHeight: srcHeight,
		},
		tempMat: gocv.NewMat(),
	}

	// precalculate scaling dimensions
	l.preCalc()

	return l, nil
}

// NewLetterboxFromTransform rebuilds a letterbox from a recorded transform
func NewLetterboxFromTransform(t CanvasTransform) (*Letterbox, error) {

	if err := t.Validate(); err != nil {
		return nil, err
	}

	return &Letterbox{
		t:       t,
		tempMat: gocv.NewMat(),
	}, nil
}

// Close frees memory allocated during resize process
func (l *Letterbox) Close() error {
	return l.tempMat.Close()
}

// preCalc the scaling factor, resized dimensions and padding.  The longer
// side maps exactly to the target size, the shorter side is rounded half to
// even and padding is split with the extra pixel going right/bottom
func (l *Letterbox) preCalc() {

	t := &l.t
	target := t.TargetSize

	if t.OrigWidth >= t.OrigHeight {
		t.Scale = float64(target) / float64(t.OrigWidth)
		t.ResizeWidth = target
		t.ResizeHeight = scaleSide(t.OrigHeight, target, t.OrigWidth)
	} else {
		t.Scale = float64(target) / float64(t.OrigHeight)
		t.ResizeHeight = target
		t.ResizeWidth = scaleSide(t.OrigWidth, target, t.OrigHeight)
	}

	t.PadLeft = (target - t.ResizeWidth) / 2
	t.PadRight = target - t.ResizeWidth - t.PadLeft
	t.PadTop = (target - t.ResizeHeight) / 2
	t.PadBottom = target - t.ResizeHeight - t.PadTop
}

// scaleSide returns round(side * target / longest), never less than one pixel
func scaleSide(side, target, longest int) int {

	v := int(math.RoundToEven(float64(side) * float64(target) / float64(longest)))

	if v < 1 {
		return 1
	}

	return v
}

// Forward resizes src to the letterbox dimensions with bilinear
// interpolation and pads it with the fill color onto the square canvas dest.
func (l *Letterbox) Forward(src gocv.Mat, dest *gocv.Mat, fill color.RGBA) error {

	if src.Cols() != l.t.OrigWidth || src.Rows() != l.t.OrigHeight {
		return fmt.Errorf("%w: source %dx%d, letterbox expects %dx%d", ErrGeometry,
			src.Cols(), src.Rows(), l.t.OrigWidth, l.t.OrigHeight)
	}

	gocv.Resize(src, &l.tempMat, image.Pt(l.t.ResizeWidth, l.t.ResizeHeight),
		0, 0, gocv.InterpolationLinear)

	gocv.CopyMakeBorder(l.tempMat, dest, l.t.PadTop, l.t.PadBottom,
		l.t.PadLeft, l.t.PadRight, gocv.BorderConstant, fill)

	if dest.Cols() != l.t.TargetSize || dest.Rows() != l.t.TargetSize {
		return fmt.Errorf("%w: canvas %dx%d, expected %d square", ErrGeometry,
			dest.Cols(), dest.Rows(), l.t.TargetSize)
	}

	return nil
}

// Inverse maps a canvas space mask back to original image space.  A mask at
// a lower resolution than the canvas (eg: a 28x28 prediction grid) is first
// upsampled to the canvas size, the padding is then cropped away and the
// remaining region resized to the original image size, all with bilinear
// interpolation.  The caller owns the returned Mat.
func (l *Letterbox) Inverse(canvasMask gocv.Mat) (gocv.Mat, error) {

	if canvasMask.Empty() {
		return gocv.NewMat(), fmt.Errorf("%w: empty canvas mask", ErrGeometry)
	}

	target := l.t.TargetSize
	full := canvasMask

	if canvasMask.Rows() != target || canvasMask.Cols() != target {
		full = gocv.NewMat()
		defer full.Close()

		gocv.Resize(canvasMask, &full, image.Pt(target, target), 0, 0,
			gocv.InterpolationLinear)
	}

	// crop away the letterbox padding, square sources have no padding so
	// the region is the whole canvas
	region := full.Region(image.Rect(l.t.PadLeft, l.t.PadTop,
		target-l.t.PadRight, target-l.t.PadBottom))
	defer region.Close()

	if region.Cols() != l.t.ResizeWidth || region.Rows() != l.t.ResizeHeight {
		return gocv.NewMat(), fmt.Errorf("%w: cropped region %dx%d, expected %dx%d",
			ErrGeometry, region.Cols(), region.Rows(), l.t.ResizeWidth, l.t.ResizeHeight)
	}

	out := gocv.NewMat()
	gocv.Resize(region, &out, image.Pt(l.t.OrigWidth, l.t.OrigHeight), 0, 0,
		gocv.InterpolationLinear)

	if out.Rows() != l.t.OrigHeight || out.Cols() != l.t.OrigWidth {
		rows, cols := out.Rows(), out.Cols()
		out.Close()
		return gocv.NewMat(), fmt.Errorf("%w: inverse produced %dx%d, expected %dx%d",
			ErrGeometry, cols, rows, l.t.OrigWidth, l.t.OrigHeight)
	}

	return out, nil
}

// Transform returns the recorded canvas transform
func (l *Letterbox) Transform() CanvasTransform {
	return l.t
}

// ScaleFactor returns the scale factor used in letterbox resize
func (l *Letterbox) ScaleFactor() float64 {
	return l.t.Scale
}

// TargetSize returns the canvas width and height
func (l *Letterbox) TargetSize() int {
	return l.t.TargetSize
}

// PadLeft returns the padding added to the left of the resized image
func (l *Letterbox) PadLeft() int {
	return l.t.PadLeft
}

// PadTop returns the padding added above the resized image
func (l *Letterbox) PadTop() int {
	return l.t.PadTop
}

// PadRight returns the padding added to the right of the resized image
func (l *Letterbox) PadRight() int {
	return l.t.PadRight
}

// PadBottom returns the padding added below the resized image
func (l *Letterbox) PadBottom() int {
	return l.t.PadBottom
}

// ResizeWidth returns the width of the image after scaling, before padding
func (l *Letterbox) ResizeWidth() int {
	return l.t.ResizeWidth
}

// ResizeHeight returns the height of the image after scaling, before padding
func (l *Letterbox) ResizeHeight() int {
	return l.t.ResizeHeight
}

// SrcWidth returns the width of the source image
func (l *Letterbox) SrcWidth() int {
	return l.t.OrigWidth
}

// SrcHeight returns the height of the source image
func (l *Letterbox) SrcHeight() int {
	return l.t.OrigHeight
}
