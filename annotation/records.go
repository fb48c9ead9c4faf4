package annotation

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
)

// ErrMalformedRow is returned when a metadata CSV row has the wrong number
// of fields or an unparsable value
var ErrMalformedRow = errors.New("malformed metadata row")

var (
	imageLabelsHeader = []string{"ImageID", "LabelName", "Confidence"}
	bboxHeader        = []string{"ImageID", "LabelName", "XMin", "XMax", "YMin", "YMax", "IsGroupOf"}
	masksHeader       = []string{"MaskPath", "ImageID", "LabelName", "BoxID", "BoxXMin",
		"BoxXMax", "BoxYMin", "BoxYMax", "PredictedIoU", "Clicks"}
)

// ImageLabel is a row of the image labels file
type ImageLabel struct {
	ImageID    string
	LabelName  string
	Confidence string
}

// Box is the extent of a box in normalised image coordinates
type Box struct {
	XMin float64
	XMax float64
	YMin float64
	YMax float64
}

// BoxRow is a row of the bounding box file
type BoxRow struct {
	ImageID   string
	LabelName string
	Box       Box
	IsGroupOf bool
}

// MaskRow is a row of the masks file
type MaskRow struct {
	// Line is the row number in the source file, the header is line 1
	Line      int
	MaskPath  string
	ImageID   string
	LabelName string
	BoxID     string
	Box       Box
}

// readCSV reads rows with the given header, calling fn for each data row
// with its line number
func readCSV(r io.Reader, header []string, fn func(line int, rec []string) error) error {

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(header)
	cr.ReuseRecord = true

	line := 0

	for {
		rec, err := cr.Read()

		if err == io.EOF {
			return nil
		}

		line++

		if err != nil {
			return fmt.Errorf("%w: line %d: %v", ErrMalformedRow, line, err)
		}

		// skip header
		if line == 1 {
			if rec[0] != header[0] {
				return fmt.Errorf("%w: expected header starting %q, got %q",
					ErrMalformedRow, header[0], rec[0])
			}

			continue
		}

		if err := fn(line, rec); err != nil {
			return err
		}
	}
}

// readFile opens file and parses it with read
func readFile[T any](file string, read func(io.Reader) ([]T, error)) ([]T, error) {

	f, err := os.Open(file)

	if err != nil {
		return nil, fmt.Errorf("error opening metadata file: %w", err)
	}

	defer f.Close()

	rows, err := read(f)

	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}

	return rows, nil
}

// parseFloats parses each field of rec into dst
func parseFloats(line int, rec []string, dst ...*float64) error {

	for i, d := range dst {
		v, err := strconv.ParseFloat(rec[i], 64)

		if err != nil {
			return fmt.Errorf("%w: line %d: %v", ErrMalformedRow, line, err)
		}

		*d = v
	}

	return nil
}

// ReadImageLabels reads the image labels file
func ReadImageLabels(r io.Reader) ([]ImageLabel, error) {

	var out []ImageLabel

	err := readCSV(r, imageLabelsHeader, func(line int, rec []string) error {
		out = append(out, ImageLabel{
			ImageID:    rec[0],
			LabelName:  rec[1],
			Confidence: rec[2],
		})
		return nil
	})

	return out, err
}

// ReadBoxes reads the bounding box file
func ReadBoxes(r io.Reader) ([]BoxRow, error) {

	var out []BoxRow

	err := readCSV(r, bboxHeader, func(line int, rec []string) error {
		row, err := parseBoxRow(line, rec)

		if err != nil {
			return err
		}

		out = append(out, row)
		return nil
	})

	return out, err
}

func parseBoxRow(line int, rec []string) (BoxRow, error) {

	row := BoxRow{
		ImageID:   rec[0],
		LabelName: rec[1],
	}

	b := &row.Box

	if err := parseFloats(line, rec[2:6], &b.XMin, &b.XMax, &b.YMin, &b.YMax); err != nil {
		return row, err
	}

	switch rec[6] {
	case "0":
	case "1":
		row.IsGroupOf = true
	default:
		return row, fmt.Errorf("%w: line %d: IsGroupOf %q is not 0 or 1",
			ErrMalformedRow, line, rec[6])
	}

	return row, nil
}

// ReadMasks reads the masks file
func ReadMasks(r io.Reader) ([]MaskRow, error) {

	var out []MaskRow

	err := readCSV(r, masksHeader, func(line int, rec []string) error {
		row := MaskRow{
			Line:      line,
			MaskPath:  rec[0],
			ImageID:   rec[1],
			LabelName: rec[2],
			BoxID:     rec[3],
		}

		b := &row.Box

		if err := parseFloats(line, rec[4:8], &b.XMin, &b.XMax, &b.YMin, &b.YMax); err != nil {
			return err
		}

		out = append(out, row)
		return nil
	})

	return out, err
}
