package render

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// Font is the text style of mask labels
type Font struct {
	Face      gocv.HersheyFont
	Scale     float64
	Color     color.RGBA
	Thickness int
	LineType  gocv.LineType
	// padding between the text and the edge of its label box
	LeftPad   int
	RightPad  int
	TopPad    int
	BottomPad int
}

// DefaultFont is white Hershey simplex text at half scale
func DefaultFont() Font {
	return Font{
		Face:      gocv.FontHersheySimplex,
		Scale:     0.5,
		Color:     White,
		Thickness: 1,
		LineType:  gocv.LineAA,
		LeftPad:   4,
		RightPad:  4,
		TopPad:    4,
		BottomPad: 6,
	}
}

// labelBox returns the filled box of a label horizontally centred on
// centerX with its bottom edge at bottom, and the text origin inside it.
// The bottom edge is pushed down so the box never leaves the top of the
// image
func (f Font) labelBox(text string, centerX, bottom int) (image.Rectangle, image.Point) {

	size := gocv.GetTextSize(text, f.Face, f.Scale, f.Thickness)
	height := size.Y + f.TopPad + f.BottomPad

	bottom = max(bottom, height)

	box := image.Rect(centerX-size.X/2-f.LeftPad, bottom-height,
		centerX+size.X/2+f.RightPad, bottom)

	return box, image.Pt(centerX-size.X/2, bottom-f.BottomPad)
}

// drawLabel draws text on a filled box of clr
func (f Font) drawLabel(img *gocv.Mat, text string, centerX, bottom int, clr color.RGBA) {

	box, origin := f.labelBox(text, centerX, bottom)

	gocv.Rectangle(img, box, clr, -1)
	gocv.PutTextWithParams(img, text, origin, f.Face, f.Scale, f.Color,
		f.Thickness, f.LineType, false)
}
