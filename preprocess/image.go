package preprocess

import (
	"fmt"
	"os"

	"gocv.io/x/gocv"
)

// ReadFlags decode a color image in its stored pixel orientation.  EXIF
// orientation is ignored so sizes agree with the image header
const ReadFlags = gocv.IMReadColor | gocv.IMReadIgnoreOrientation

// ReadImage loads a BGR image from path
func ReadImage(path string) (gocv.Mat, error) {

	// IMRead gives no reason for a failed read so check the file first
	if _, err := os.Stat(path); err != nil {
		return gocv.Mat{}, fmt.Errorf("error opening image: %w", err)
	}

	img := gocv.IMRead(path, ReadFlags)

	if img.Empty() {
		img.Close()
		return gocv.Mat{}, fmt.Errorf("error decoding image %s", path)
	}

	return img, nil
}
