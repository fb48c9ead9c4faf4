package annotation

import (
	"fmt"

	"github.com/cyclopcam/logs"
	"github.com/swdee/go-maskrle"
	"github.com/swdee/go-maskrle/rle"
)

// MaskFunc loads the mask image at path at the given size
type MaskFunc func(path string, width, height int) (rle.Mask, error)

// Builder assembles the dataset of one subset
type Builder struct {
	layout Layout
	log    logs.Log
	// ImageSize reads image dimensions, defaults to ImageSize
	ImageSize SizeFunc
	// LoadMask reads mask images, defaults to LoadMask
	LoadMask MaskFunc
	// SkipEmpty drops masks with no foreground instead of emitting a zero
	// area annotation
	SkipEmpty bool
}

// NewBuilder returns a builder for the subset in layout
func NewBuilder(layout Layout, log logs.Log) *Builder {
	return &Builder{
		layout:    layout,
		log:       log,
		ImageSize: ImageSize,
		LoadMask:  LoadMask,
		SkipEmpty: true,
	}
}

// Build reads all metadata files of the subset and returns the dataset
func (b *Builder) Build() (*Dataset, error) {

	cats, err := maskrle.LoadCategories(b.layout.CategoryFile())

	if err != nil {
		return nil, err
	}

	labels, err := readFile(b.layout.ImageLabelsFile(), ReadImageLabels)

	if err != nil {
		return nil, err
	}

	images, err := BuildImageIndex(labels, b.layout, b.ImageSize)

	if err != nil {
		return nil, err
	}

	b.log.Infof("Indexed %d images from %d labels", len(images.images), len(labels))

	boxes, err := readFile(b.layout.BBoxFile(), ReadBoxes)

	if err != nil {
		return nil, err
	}

	groupOf := NewGroupOfIndex(boxes)

	b.log.Infof("Indexed IsGroupOf for %d boxes", len(boxes))

	masks, err := readFile(b.layout.MasksFile(), ReadMasks)

	if err != nil {
		return nil, err
	}

	anns, err := b.Annotations(masks, images, cats, groupOf)

	if err != nil {
		return nil, err
	}

	d := NewDataset()
	d.Images = images.Images()
	d.Categories = cats.List()
	d.Annotations = anns

	return d, nil
}

// Annotations converts each mask row to an annotation
func (b *Builder) Annotations(masks []MaskRow, images *ImageIndex,
	cats *maskrle.Categories, groupOf *GroupOfIndex) ([]Annotation, error) {

	anns := make([]Annotation, 0, len(masks))
	idGen := NewIDGenerator()
	skipped := 0

	for _, row := range masks {
		ann, err := b.annotation(row, images, cats, groupOf)

		if err != nil {
			return nil, fmt.Errorf("%s line %d, image %s, mask %s: %w",
				b.layout.MasksFile(), row.Line, row.ImageID, row.MaskPath, err)
		}

		if ann.Segmentation.Area() == 0 && b.SkipEmpty {
			b.log.Warnf("Skipping empty mask %s of image %s (line %d)", row.MaskPath, row.ImageID, row.Line)
			skipped++
			continue
		}

		ann.ID = idGen.GetNext()
		anns = append(anns, ann)
	}

	b.log.Infof("Generated %d annotations, skipped %d empty masks", len(anns), skipped)

	return anns, nil
}

// annotation builds the annotation of a mask row without its id
func (b *Builder) annotation(row MaskRow, images *ImageIndex, cats *maskrle.Categories,
	groupOf *GroupOfIndex) (Annotation, error) {

	img, ok := images.Get(row.ImageID)

	if !ok {
		return Annotation{}, fmt.Errorf("image not listed in %s", b.layout.ImageLabelsFile())
	}

	catID, err := cats.IDOf(row.LabelName)

	if err != nil {
		return Annotation{}, err
	}

	isGroupOf, err := groupOf.Lookup(row.ImageID, row.LabelName, row.Box)

	if err != nil {
		return Annotation{}, err
	}

	path, err := b.layout.MaskPath(row.MaskPath)

	if err != nil {
		return Annotation{}, err
	}

	mask, err := b.LoadMask(path, img.Width, img.Height)

	if err != nil {
		return Annotation{}, err
	}

	seg := rle.Encode(mask)
	bbox := seg.BBox()

	ann := Annotation{
		Segmentation:       seg,
		Area:               bbox[2] * bbox[3],
		ImageID:            img.ID,
		BBox:               bbox,
		CategoryID:         catID,
		OriginalCategoryID: row.LabelName,
	}

	if isGroupOf {
		ann.IsCrowd = 1
	}

	return ann, nil
}

// Convert builds the dataset of the subset and writes it to the layout
// output file
func Convert(layout Layout, log logs.Log) error {

	d, err := NewBuilder(layout, log).Build()

	if err != nil {
		return err
	}

	if err := d.WriteFile(layout.OutputFile()); err != nil {
		return err
	}

	log.Infof("Wrote %d images, %d categories, %d annotations to %s",
		len(d.Images), len(d.Categories), len(d.Annotations), layout.OutputFile())

	return nil
}
