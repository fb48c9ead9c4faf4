package annotation

import (
	"fmt"
	"image"
	"os"

	"github.com/swdee/go-maskrle/rle"
	"gocv.io/x/gocv"
)

// LoadMask reads a single channel mask image, where any non zero pixel is
// foreground, and scales it with nearest neighbour interpolation to width x
// height if its size differs
func LoadMask(path string, width, height int) (rle.Mask, error) {

	// IMRead gives no reason for a failed read so check the file first
	if _, err := os.Stat(path); err != nil {
		return rle.Mask{}, fmt.Errorf("error opening mask: %w", err)
	}

	mat := gocv.IMRead(path, gocv.IMReadGrayScale|gocv.IMReadIgnoreOrientation)
	defer mat.Close()

	if mat.Empty() {
		return rle.Mask{}, fmt.Errorf("error decoding mask image %s", path)
	}

	if mat.Cols() == width && mat.Rows() == height {
		return rle.FromMat(mat)
	}

	resized := gocv.NewMat()
	defer resized.Close()

	gocv.Resize(mat, &resized, image.Pt(width, height), 0, 0,
		gocv.InterpolationNearestNeighbor)

	return rle.FromMat(resized)
}
