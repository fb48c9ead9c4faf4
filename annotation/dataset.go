package annotation

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/swdee/go-maskrle"
	"github.com/swdee/go-maskrle/rle"
)

// Annotation is a single instance mask of the dataset
type Annotation struct {
	Segmentation       rle.RLE    `json:"segmentation"`
	Area               float64    `json:"area"`
	IsCrowd            int        `json:"iscrowd"`
	ImageID            int        `json:"image_id"`
	BBox               [4]float64 `json:"bbox"`
	CategoryID         int        `json:"category_id"`
	OriginalCategoryID string     `json:"original_category_id"`
	ID                 int        `json:"id"`
}

// Dataset is the COCO style annotation document
type Dataset struct {
	Info        map[string]any     `json:"info"`
	Licenses    map[string]any     `json:"licenses"`
	Images      []Image            `json:"images"`
	Categories  []maskrle.Category `json:"categories"`
	Annotations []Annotation       `json:"annotations"`
}

// NewDataset returns an empty dataset
func NewDataset() *Dataset {
	return &Dataset{
		Info:        map[string]any{},
		Licenses:    map[string]any{},
		Images:      []Image{},
		Categories:  []maskrle.Category{},
		Annotations: []Annotation{},
	}
}

// Write encodes the dataset as JSON to w
func (d *Dataset) Write(w io.Writer) error {

	if err := json.NewEncoder(w).Encode(d); err != nil {
		return fmt.Errorf("error encoding dataset: %w", err)
	}

	return nil
}

// WriteFile writes the dataset to file, replacing any existing file
func (d *Dataset) WriteFile(file string) error {

	f, err := os.Create(file)

	if err != nil {
		return fmt.Errorf("error creating dataset file: %w", err)
	}

	if err := d.Write(f); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}

// ReadDataset decodes a dataset written by Write
func ReadDataset(r io.Reader) (*Dataset, error) {

	d := NewDataset()

	if err := json.NewDecoder(r).Decode(d); err != nil {
		return nil, fmt.Errorf("error decoding dataset: %w", err)
	}

	return d, nil
}
