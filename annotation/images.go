package annotation

import (
	"fmt"
	"image"
	"os"

	// register image formats for header decoding
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Image is an entry of the images section
type Image struct {
	FileName string `json:"file_name"`
	Height   int    `json:"height"`
	Width    int    `json:"width"`
	ID       int    `json:"id"`
}

// SizeFunc returns the width and height of the image at path
type SizeFunc func(path string) (width, height int, err error)

// ImageSize reads the image dimensions from its header without decoding the
// pixel data
func ImageSize(path string) (int, int, error) {

	f, err := os.Open(path)

	if err != nil {
		return 0, 0, fmt.Errorf("error opening image: %w", err)
	}

	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)

	if err != nil {
		return 0, 0, fmt.Errorf("error decoding image header %s: %w", path, err)
	}

	return cfg.Width, cfg.Height, nil
}

// ImageIndex maps image ids to their dataset entries.  Ids are assigned
// sequentially from 1 in order of first appearance
type ImageIndex struct {
	images []Image
	byID   map[string]int
	idGen  *IDGenerator
}

// NewImageIndex returns an empty index
func NewImageIndex() *ImageIndex {
	return &ImageIndex{
		byID:  make(map[string]int),
		idGen: NewIDGenerator(),
	}
}

// BuildImageIndex adds every distinct image of the labels, reading sizes
// with size from the layout image paths
func BuildImageIndex(labels []ImageLabel, layout Layout, size SizeFunc) (*ImageIndex, error) {

	idx := NewImageIndex()

	for i, l := range labels {

		if idx.Has(l.ImageID) {
			continue
		}

		w, h, err := size(layout.ImagePath(l.ImageID))

		if err != nil {
			// the header is line 1
			return nil, fmt.Errorf("image labels line %d, image %s: %w", i+2, l.ImageID, err)
		}

		idx.Add(l.ImageID, w, h)
	}

	return idx, nil
}

// Add registers an image if it has not been seen, returning its id
func (x *ImageIndex) Add(imageID string, width, height int) int {

	if pos, ok := x.byID[imageID]; ok {
		return x.images[pos].ID
	}

	x.byID[imageID] = len(x.images)
	x.images = append(x.images, Image{
		FileName: ImageFileName(imageID),
		Height:   height,
		Width:    width,
		ID:       x.idGen.GetNext(),
	})

	return x.images[len(x.images)-1].ID
}

// Has reports whether the image has been added
func (x *ImageIndex) Has(imageID string) bool {
	_, ok := x.byID[imageID]
	return ok
}

// Get returns the entry of an image
func (x *ImageIndex) Get(imageID string) (Image, bool) {

	pos, ok := x.byID[imageID]

	if !ok {
		return Image{}, false
	}

	return x.images[pos], true
}

// Images returns the entries in id order
func (x *ImageIndex) Images() []Image {
	out := make([]Image, len(x.images))
	copy(out, x.images)
	return out
}
