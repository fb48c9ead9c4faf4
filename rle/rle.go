// Package rle implements the COCO run length encoding of binary masks.
//
// Masks are scanned in column-major order (every row of column 0, then every
// row of column 1 and so on).  Counts alternate between background and
// foreground runs and always start with a background run, which is zero
// length when the first pixel is foreground.  This matches the pycocotools
// convention so encodings can be read by the standard COCO tooling.
package rle

import (
	"errors"
	"fmt"
)

// ErrCorruptCounts is returned when run lengths do not describe the mask size
// or a compressed counts string cannot be parsed
var ErrCorruptCounts = errors.New("corrupt rle counts")

// Mask is a binary mask stored in column-major order, Data[x*Height+y] is the
// pixel at row y and column x.  Zero is background, any other value is
// foreground
type Mask struct {
	Height int
	Width  int
	Data   []uint8
}

// NewMask returns an all background mask of the given size
func NewMask(height, width int) Mask {
	return Mask{
		Height: height,
		Width:  width,
		Data:   make([]uint8, height*width),
	}
}

// At reports whether the pixel at row y, column x is foreground
func (m Mask) At(y, x int) bool {
	return m.Data[x*m.Height+y] != 0
}

// Set sets the pixel at row y, column x
func (m Mask) Set(y, x int, fg bool) {
	var v uint8

	if fg {
		v = 1
	}

	m.Data[x*m.Height+y] = v
}

// Equal reports whether both masks have the same size and foreground pixels
func (m Mask) Equal(o Mask) bool {

	if m.Height != o.Height || m.Width != o.Width || len(m.Data) != len(o.Data) {
		return false
	}

	for i := range m.Data {
		if (m.Data[i] != 0) != (o.Data[i] != 0) {
			return false
		}
	}

	return true
}

// RLE is the uncompressed COCO run length encoding of a mask
type RLE struct {
	// Size is the mask [height, width]
	Size [2]int `json:"size"`
	// Counts are the alternating background/foreground run lengths
	Counts []uint32 `json:"counts"`
}

// Height returns the encoded mask height
func (r RLE) Height() int {
	return r.Size[0]
}

// Width returns the encoded mask width
func (r RLE) Width() int {
	return r.Size[1]
}

// Encode run length encodes the mask in column-major order
func Encode(m Mask) RLE {

	r := RLE{
		Size:   [2]int{m.Height, m.Width},
		Counts: make([]uint32, 0, 8),
	}

	if len(m.Data) == 0 {
		return r
	}

	// runs start with background, a foreground first pixel emits a zero
	// length background run
	var prev uint8
	var run uint32

	for _, v := range m.Data {
		var b uint8

		if v != 0 {
			b = 1
		}

		if b != prev {
			r.Counts = append(r.Counts, run)
			run = 0
			prev = b
		}

		run++
	}

	r.Counts = append(r.Counts, run)

	return r
}

// Decode expands the run lengths back into a mask
func Decode(r RLE) (Mask, error) {

	h, w := r.Size[0], r.Size[1]

	if h < 0 || w < 0 {
		return Mask{}, fmt.Errorf("%w: negative size %dx%d", ErrCorruptCounts, h, w)
	}

	total := uint64(h) * uint64(w)
	var sum uint64

	for _, c := range r.Counts {
		sum += uint64(c)
	}

	if sum != total {
		return Mask{}, fmt.Errorf("%w: counts sum to %d, mask %dx%d has %d pixels",
			ErrCorruptCounts, sum, h, w, total)
	}

	m := NewMask(h, w)
	pos := 0

	for i, c := range r.Counts {
		if i%2 == 1 {
			fill := m.Data[pos : pos+int(c)]

			for j := range fill {
				fill[j] = 1
			}
		}

		pos += int(c)
	}

	return m, nil
}

// Area returns the number of foreground pixels
func (r RLE) Area() int {

	area := 0

	for i := 1; i < len(r.Counts); i += 2 {
		area += int(r.Counts[i])
	}

	return area
}

// BBox returns the tight bounding box [x, y, width, height] around the
// foreground, or a zero box for an empty mask.  Follows pycocotools toBbox.
func (r RLE) BBox() [4]float64 {

	h := r.Size[0]
	w := r.Size[1]

	// a trailing background run carries no extent
	m := (len(r.Counts) / 2) * 2

	if m == 0 || h == 0 {
		return [4]float64{}
	}

	xs, ys := w, h
	xe, ye := 0, 0
	xp := 0
	cc := 0

	for j := 0; j < m; j++ {
		cc += int(r.Counts[j])

		// j even: first pixel of a foreground run, j odd: last pixel
		t := cc - j%2
		y := t % h
		x := (t - y) / h

		if j%2 == 0 {
			xp = x
		} else if xp < x {
			// run wraps across a column boundary so covers the full height
			ys = 0
			ye = h - 1
		}

		xs = min(xs, x)
		xe = max(xe, x)
		ys = min(ys, y)
		ye = max(ye, y)
	}

	return [4]float64{float64(xs), float64(ys), float64(xe - xs + 1), float64(ye - ys + 1)}
}
