package render

import (
	"fmt"
	"image"
	"image/color"

	"github.com/swdee/go-maskrle/rle"
	"gocv.io/x/gocv"
)

// MaskOverlay blends the mask foreground onto a CV8UC3 image with the given
// color and alpha transparency
func MaskOverlay(img *gocv.Mat, m rle.Mask, clr color.RGBA, alpha float32) error {

	// get dimensions
	width := img.Cols()
	height := img.Rows()

	if img.Type() != gocv.MatTypeCV8UC3 {
		return fmt.Errorf("overlay image must be CV8UC3, got %v", img.Type())
	}

	if m.Width != width || m.Height != height {
		return fmt.Errorf("mask %dx%d does not match image %dx%d",
			m.Width, m.Height, width, height)
	}

	// it is too slow to manipulate pixel by pixel using GoCV due to slowness
	// over CGO.  So we copy the bytes from the source image and manipulate
	// the bytes directly before copying back to a Mat
	imgData := img.ToBytes()

	// walk the column-major mask
	for x := 0; x < width; x++ {
		col := m.Data[x*height : (x+1)*height]

		for y, v := range col {
			if v == 0 {
				continue
			}

			// calculate position in the byte slice
			pixelPos := y*width*3 + x*3

			b, g, r := imgData[pixelPos+0], imgData[pixelPos+1], imgData[pixelPos+2]

			// calculate blended colors based on alpha transparency
			imgData[pixelPos+0] = uint8(float32(b)*(1-alpha) + float32(clr.B)*alpha)
			imgData[pixelPos+1] = uint8(float32(g)*(1-alpha) + float32(clr.G)*alpha)
			imgData[pixelPos+2] = uint8(float32(r)*(1-alpha) + float32(clr.R)*alpha)
		}
	}

	// copy back to the original mat
	tmpImg, err := gocv.NewMatFromBytes(height, width, gocv.MatTypeCV8UC3, imgData)

	if err != nil {
		return fmt.Errorf("error creating overlay Mat: %w", err)
	}

	defer tmpImg.Close()
	tmpImg.CopyTo(img)

	return nil
}

// findTopPoint finds the highest point (Y axis) of the given point vector
func findTopPoint(approx gocv.PointVector) image.Point {
	topPoint := approx.At(0)
	for i := 1; i < approx.Size(); i++ {
		pt := approx.At(i)
		if pt.Y < topPoint.Y {
			topPoint = pt
		}
	}
	return topPoint
}

// MaskOutline draws the outline of each mask region larger than minArea and
// places the label above the top most region.  It returns the number of
// regions drawn
func MaskOutline(img *gocv.Mat, m rle.Mask, label string, clr color.RGBA,
	minArea float64, font Font, lineThickness int) (int, error) {

	maskMat, err := m.ToMat()

	if err != nil {
		return 0, err
	}

	defer maskMat.Close()

	contours := gocv.FindContours(maskMat, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	drawn := 0
	labelPos := image.Pt(0, img.Rows())
	centerX := 0

	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)

		// filter out small contours picked up from aliasing/noise in binary mask
		if gocv.ContourArea(contour) < minArea {
			continue
		}

		approx := gocv.ApproxPolyDP(contour, 3, true)
		ptsVec := gocv.NewPointsVector()
		ptsVec.Append(approx)

		gocv.Polylines(img, ptsVec, true, clr, lineThickness)

		if top := findTopPoint(approx); top.Y < labelPos.Y {
			labelPos = top
			rect := gocv.BoundingRect(contour)
			centerX = (rect.Min.X + rect.Max.X) / 2
		}

		drawn++

		approx.Close()
		ptsVec.Close()
	}

	if drawn == 0 || label == "" {
		return drawn, nil
	}

	font.drawLabel(img, label, centerX, labelPos.Y, clr)

	return drawn, nil
}

// PaintMaskToFile paints the mask over a black canvas and writes it to an
// image file
func PaintMaskToFile(filename string, m rle.Mask, clr color.RGBA) error {

	img := gocv.NewMatWithSize(m.Height, m.Width, gocv.MatTypeCV8UC3)
	defer img.Close()

	if err := MaskOverlay(&img, m, clr, 1); err != nil {
		return err
	}

	if gocv.IMWrite(filename, img) {
		return nil
	}

	return fmt.Errorf("failed to write mask to file %s", filename)
}
