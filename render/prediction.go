package render

import (
	"fmt"
	"path/filepath"

	"github.com/swdee/go-maskrle"
	"github.com/swdee/go-maskrle/postprocess"
	"github.com/swdee/go-maskrle/rle"
	"gocv.io/x/gocv"
)

// Options control how predictions are drawn
type Options struct {
	// Alpha is the mask overlay transparency
	Alpha float32
	// MinArea is the smallest outline region drawn
	MinArea float64
	// LineThickness of the outlines
	LineThickness int
	Font          Font
}

// DefaultOptions returns the default render options
func DefaultOptions() Options {
	return Options{
		Alpha:         0.5,
		MinArea:       10,
		LineThickness: 2,
		Font:          DefaultFont(),
	}
}

// Prediction decodes every detection of the prediction and draws its mask
// and outline on img, which must be the original image
func Prediction(img *gocv.Mat, p postprocess.ImagePrediction,
	categories *maskrle.Categories, opts Options) error {

	if img.Cols() != p.Width || img.Rows() != p.Height {
		return fmt.Errorf("image %s is %dx%d, prediction is for %dx%d",
			p.ImageID, img.Cols(), img.Rows(), p.Width, p.Height)
	}

	masks := make([]rle.Mask, len(p.Detections))

	for i, d := range p.Detections {
		m, err := rle.DecodeCompact(d.Mask, p.Height, p.Width)

		if err != nil {
			return fmt.Errorf("image %s detection %d: %w", p.ImageID, i, err)
		}

		masks[i] = m
	}

	// draw overlays first so outlines and labels stay on top
	for i, d := range p.Detections {
		id, err := categories.IDOf(d.CategoryID)

		if err != nil {
			return err
		}

		if err := MaskOverlay(img, masks[i], ClassColor(id), opts.Alpha); err != nil {
			return err
		}
	}

	for i, d := range p.Detections {
		id, _ := categories.IDOf(d.CategoryID)
		cat, _ := categories.ByID(id)

		label := fmt.Sprintf("%s %s", cat.Name, postprocess.FormatScore(d.Score))

		if _, err := MaskOutline(img, masks[i], label, ClassColor(id), opts.MinArea,
			opts.Font, opts.LineThickness); err != nil {
			return err
		}
	}

	return nil
}

// PredictionMasks writes every decoded detection mask of the prediction to
// dir as <imageID>_<index>.png, painted in its class color.  It returns the
// files written in detection order
func PredictionMasks(dir string, p postprocess.ImagePrediction,
	categories *maskrle.Categories) ([]string, error) {

	files := make([]string, 0, len(p.Detections))

	for i, d := range p.Detections {
		id, err := categories.IDOf(d.CategoryID)

		if err != nil {
			return nil, err
		}

		m, err := rle.DecodeCompact(d.Mask, p.Height, p.Width)

		if err != nil {
			return nil, fmt.Errorf("image %s detection %d: %w", p.ImageID, i, err)
		}

		file := filepath.Join(dir, fmt.Sprintf("%s_%d.png", p.ImageID, i))

		if err := PaintMaskToFile(file, m, ClassColor(id)); err != nil {
			return nil, err
		}

		files = append(files, file)
	}

	return files, nil
}
