package rle

import (
	"fmt"

	"gocv.io/x/gocv"
)

// FromMat converts a single channel 8 bit Mat, where any non zero pixel is
// foreground, to a column-major mask
func FromMat(mat gocv.Mat) (Mask, error) {

	if mat.Empty() {
		return Mask{}, fmt.Errorf("empty mask Mat")
	}

	if mat.Type() != gocv.MatTypeCV8UC1 {
		return Mask{}, fmt.Errorf("mask Mat must be CV8UC1, got %v", mat.Type())
	}

	h := mat.Rows()
	w := mat.Cols()

	// reading pixel by pixel over CGO is too slow, so work on a copy of the
	// row-major bytes
	data := mat.ToBytes()

	if len(data) != h*w {
		return Mask{}, fmt.Errorf("mask Mat has %d bytes, expected %d", len(data), h*w)
	}

	m := NewMask(h, w)

	for y := 0; y < h; y++ {
		row := data[y*w : (y+1)*w]

		for x, v := range row {
			if v != 0 {
				m.Data[x*h+y] = 1
			}
		}
	}

	return m, nil
}

// FromProbability thresholds a single channel float Mat, pixels strictly
// greater than threshold are foreground
func FromProbability(mat gocv.Mat, threshold float32) (Mask, error) {

	if mat.Empty() {
		return Mask{}, fmt.Errorf("empty probability Mat")
	}

	if mat.Type() != gocv.MatTypeCV32FC1 {
		return Mask{}, fmt.Errorf("probability Mat must be CV32FC1, got %v", mat.Type())
	}

	h := mat.Rows()
	w := mat.Cols()

	var data []float32

	if mat.IsContinuous() {
		var err error
		data, err = mat.DataPtrFloat32()

		if err != nil {
			return Mask{}, fmt.Errorf("error reading probability Mat: %w", err)
		}
	} else {
		tmp := mat.Clone()
		defer tmp.Close()

		var err error
		data, err = tmp.DataPtrFloat32()

		if err != nil {
			return Mask{}, fmt.Errorf("error reading probability Mat: %w", err)
		}

		// copy before tmp is released
		data = append([]float32(nil), data...)
	}

	m := NewMask(h, w)

	for y := 0; y < h; y++ {
		row := data[y*w : (y+1)*w]

		for x, v := range row {
			if v > threshold {
				m.Data[x*h+y] = 1
			}
		}
	}

	return m, nil
}

// ToMat converts the mask to a row-major CV8UC1 Mat with foreground set to
// 255.  The caller owns the returned Mat
func (m Mask) ToMat() (gocv.Mat, error) {

	buf := make([]byte, m.Height*m.Width)

	for x := 0; x < m.Width; x++ {
		col := m.Data[x*m.Height : (x+1)*m.Height]

		for y, v := range col {
			if v != 0 {
				buf[y*m.Width+x] = 255
			}
		}
	}

	mat, err := gocv.NewMatFromBytes(m.Height, m.Width, gocv.MatTypeCV8UC1, buf)

	if err != nil {
		return gocv.NewMat(), fmt.Errorf("error creating mask Mat: %w", err)
	}

	return mat, nil
}
