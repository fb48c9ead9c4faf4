// Package annotation converts Open Images segmentation metadata and mask
// images into a COCO style annotation dataset.
package annotation

import (
	"fmt"
	"path/filepath"
)

// Subset is a dataset split
type Subset string

const (
	SubsetTrain      Subset = "train"
	SubsetValidation Subset = "validation"
)

// Subsets lists the supported dataset splits
var Subsets = []string{string(SubsetTrain), string(SubsetValidation)}

// ParseSubset validates a subset name
func ParseSubset(s string) (Subset, error) {

	switch Subset(s) {
	case SubsetTrain, SubsetValidation:
		return Subset(s), nil
	}

	return "", fmt.Errorf("invalid subset %q, must be one of %v", s, Subsets)
}

// Layout resolves the file locations of a subset under the dataset root
type Layout struct {
	Root   string
	Subset Subset
}

// NewLayout returns the layout of subset under root
func NewLayout(root, subset string) (Layout, error) {

	s, err := ParseSubset(subset)

	if err != nil {
		return Layout{}, err
	}

	if root == "" {
		return Layout{}, fmt.Errorf("dataset root path is empty")
	}

	return Layout{Root: root, Subset: s}, nil
}

// AnnotationDir is the directory holding the CSV metadata and JSON output
func (l Layout) AnnotationDir() string {
	return filepath.Join(l.Root, "annotations")
}

// CategoryFile is the class description file shared by all subsets
func (l Layout) CategoryFile() string {
	return filepath.Join(l.AnnotationDir(), "challenge-2019-classes-description-segmentable.csv")
}

func (l Layout) segmentationFile(kind string) string {
	return filepath.Join(l.AnnotationDir(),
		fmt.Sprintf("challenge-2019-%s-segmentation-%s.csv", l.Subset, kind))
}

// ImageLabelsFile lists the images of the subset
func (l Layout) ImageLabelsFile() string {
	return l.segmentationFile("imagelabels")
}

// BBoxFile holds the boxes with their IsGroupOf flags
func (l Layout) BBoxFile() string {
	return l.segmentationFile("bbox")
}

// MasksFile holds one row per instance mask
func (l Layout) MasksFile() string {
	return l.segmentationFile("masks")
}

// ImagePath returns the path of an image
func (l Layout) ImagePath(imageID string) string {
	return filepath.Join(l.Root, "images", string(l.Subset), ImageFileName(imageID))
}

// MaskPath returns the path of a mask image.  Masks are sharded into
// directories by the first character of their file name
func (l Layout) MaskPath(maskFile string) (string, error) {

	if maskFile == "" {
		return "", fmt.Errorf("%w: empty mask path", ErrMalformedRow)
	}

	shard := fmt.Sprintf("%s-masks-%c", l.Subset, maskFile[0])

	return filepath.Join(l.Root, "masks", string(l.Subset), shard, maskFile), nil
}

// OutputFile is the COCO JSON file written for the subset
func (l Layout) OutputFile() string {
	return filepath.Join(l.AnnotationDir(), fmt.Sprintf("%s_coco.json", l.Subset))
}

// ImageFileName returns the file name of an image id
func ImageFileName(imageID string) string {
	return imageID + ".jpg"
}
