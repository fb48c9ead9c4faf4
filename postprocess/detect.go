package postprocess

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gocv.io/x/gocv"
)

// PredictionHeader is the header row of a prediction CSV file
var PredictionHeader = []string{"ImageID", "ImageWidth", "ImageHeight", "PredictionString"}

// ErrMalformedPrediction is returned when a prediction row cannot be parsed
var ErrMalformedPrediction = errors.New("malformed prediction record")

// Detector is a model that produces instance masks on a letterboxed canvas
type Detector interface {
	// Detect runs inference on the canvas of the given image
	Detect(imageID string, canvas gocv.Mat) (Instances, error)
	// Close releases the model
	Close() error
}

// Instances are the raw outputs of a Detector for one image.  The slices are
// parallel, Masks are single channel float probability Mats in canvas space,
// possibly at a lower resolution than the canvas
type Instances struct {
	Scores []float32
	Labels []int
	Masks  []gocv.Mat
}

// Len returns the number of instances
func (in Instances) Len() int {
	return len(in.Scores)
}

// Validate checks the parallel slices have equal length
func (in Instances) Validate() error {

	if len(in.Labels) != len(in.Scores) || len(in.Masks) != len(in.Scores) {
		return fmt.Errorf("instance slices differ in length: %d scores, %d labels, %d masks",
			len(in.Scores), len(in.Labels), len(in.Masks))
	}

	return nil
}

// Close frees the mask Mats
func (in Instances) Close() {
	closeMats(in.Masks)
}

// Detection is a single instance that passed selection, in original image
// space
type Detection struct {
	// CategoryID is the external class id, eg: /m/01g317
	CategoryID string
	// Score is the confidence rounded to 5 decimal places
	Score float64
	// Mask is the compact RLE token of the binary mask
	Mask string
}

// Fields flattens the detection to its prediction string triple
func (d Detection) Fields() []string {
	return []string{d.CategoryID, FormatScore(d.Score), d.Mask}
}

// ImagePrediction holds all detections for one image
type ImagePrediction struct {
	ImageID    string
	Width      int
	Height     int
	Detections []Detection
}

// Record returns the prediction CSV row for the image
func (p ImagePrediction) Record() []string {

	fields := make([]string, 0, len(p.Detections)*3)

	for _, d := range p.Detections {
		fields = append(fields, d.Fields()...)
	}

	return []string{
		p.ImageID,
		strconv.Itoa(p.Width),
		strconv.Itoa(p.Height),
		strings.Join(fields, " "),
	}
}

// ParsePredictionRecord parses a prediction CSV row
func ParsePredictionRecord(record []string) (ImagePrediction, error) {

	if len(record) != len(PredictionHeader) {
		return ImagePrediction{}, fmt.Errorf("%w: %d fields, expected %d",
			ErrMalformedPrediction, len(record), len(PredictionHeader))
	}

	p := ImagePrediction{ImageID: record[0]}

	var err error

	if p.Width, err = strconv.Atoi(record[1]); err != nil {
		return p, fmt.Errorf("%w: image %s width: %v", ErrMalformedPrediction, p.ImageID, err)
	}

	if p.Height, err = strconv.Atoi(record[2]); err != nil {
		return p, fmt.Errorf("%w: image %s height: %v", ErrMalformedPrediction, p.ImageID, err)
	}

	fields := strings.Fields(record[3])

	if len(fields)%3 != 0 {
		return p, fmt.Errorf("%w: image %s has %d prediction fields, expected triples",
			ErrMalformedPrediction, p.ImageID, len(fields))
	}

	for i := 0; i < len(fields); i += 3 {
		score, err := strconv.ParseFloat(fields[i+1], 64)

		if err != nil {
			return p, fmt.Errorf("%w: image %s score %q: %v",
				ErrMalformedPrediction, p.ImageID, fields[i+1], err)
		}

		p.Detections = append(p.Detections, Detection{
			CategoryID: fields[i],
			Score:      score,
			Mask:       fields[i+2],
		})
	}

	return p, nil
}

// RoundScore rounds a score to 5 decimal places using the shortest decimal
// representation of the value
func RoundScore(score float64) float64 {

	v, err := strconv.ParseFloat(strconv.FormatFloat(score, 'f', 5, 64), 64)

	if err != nil {
		return score
	}

	return v
}

// FormatScore renders a score the way prediction files carry it, always with
// a decimal point, eg: 0.95, 1.0
func FormatScore(score float64) string {

	s := strconv.FormatFloat(score, 'f', -1, 64)

	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}

	return s
}
