package render

import (
	"image"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/swdee/go-maskrle"
	"github.com/swdee/go-maskrle/postprocess"
	"github.com/swdee/go-maskrle/rle"
	"gocv.io/x/gocv"
)

// rectMask returns a mask with the rectangle r set
func rectMask(h, w int, r image.Rectangle) rle.Mask {
	m := rle.NewMask(h, w)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			m.Set(y, x, true)
		}
	}
	return m
}

func TestClassColor(t *testing.T) {
	require.Equal(t, classColors[0], ClassColor(1))
	require.Equal(t, classColors[1], ClassColor(2))
	require.Equal(t, classColors[0], ClassColor(len(classColors)+1))
	require.Equal(t, classColors[len(classColors)-1], ClassColor(0))
}

func TestMaskOverlay(t *testing.T) {

	img := gocv.NewMatWithSize(3, 4, gocv.MatTypeCV8UC3)
	defer img.Close()

	m := rle.NewMask(3, 4)
	m.Set(1, 2, true)

	require.NoError(t, MaskOverlay(&img, m, ClassColor(1), 0.5))

	data := img.ToBytes()
	pos := 1*4*3 + 2*3

	// BGR order, #FF3838 blended half with black
	require.Equal(t, []byte{28, 28, 127}, data[pos:pos+3])

	// untouched pixel
	require.Equal(t, []byte{0, 0, 0}, data[0:3])

	require.Error(t, MaskOverlay(&img, rle.NewMask(4, 3), White, 0.5))

	gray := gocv.NewMatWithSize(3, 4, gocv.MatTypeCV8U)
	defer gray.Close()
	require.Error(t, MaskOverlay(&gray, m, White, 0.5))
}

func TestMaskOutline(t *testing.T) {

	img := gocv.NewMatWithSize(64, 64, gocv.MatTypeCV8UC3)
	defer img.Close()

	m := rectMask(64, 64, image.Rect(20, 30, 40, 50))
	// a stray pixel below the minimum area
	m.Set(2, 2, true)

	n, err := MaskOutline(&img, m, "Cat 0.9", ClassColor(3), 10, DefaultFont(), 1)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	// outline is drawn on the region border
	require.NotEqual(t, []byte{0, 0, 0}, img.ToBytes()[(30*64+30)*3:(30*64+30)*3+3])

	n, err = MaskOutline(&img, rle.NewMask(64, 64), "none", White, 10, DefaultFont(), 1)
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestPrediction(t *testing.T) {

	cats, err := maskrle.ReadCategories(strings.NewReader("/m/cat,Cat\n/m/dog,Dog\n"))
	require.NoError(t, err)

	token, err := rle.EncodeCompact(rectMask(48, 64, image.Rect(10, 10, 30, 40)))
	require.NoError(t, err)

	p := postprocess.ImagePrediction{
		ImageID: "img",
		Width:   64,
		Height:  48,
		Detections: []postprocess.Detection{
			{CategoryID: "/m/dog", Score: 0.91, Mask: token},
		},
	}

	img := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	defer img.Close()

	require.NoError(t, Prediction(&img, p, cats, DefaultOptions()))

	// inside the mask the overlay is applied
	pos := (30*64 + 20) * 3
	clr := ClassColor(2)
	require.Equal(t, []byte{clr.B / 2, clr.G / 2, clr.R / 2}, img.ToBytes()[pos:pos+3])

	// wrong image size
	small := gocv.NewMatWithSize(10, 10, gocv.MatTypeCV8UC3)
	defer small.Close()
	require.Error(t, Prediction(&small, p, cats, DefaultOptions()))

	// unknown category
	p.Detections[0].CategoryID = "/m/bird"
	require.ErrorIs(t, Prediction(&img, p, cats, DefaultOptions()), maskrle.ErrUnknownCategory)

	// corrupt token
	p.Detections[0].Mask = "eJwzBAAAMwAz"
	require.Error(t, Prediction(&img, p, cats, DefaultOptions()))
}

func TestPredictionMasks(t *testing.T) {

	cats, err := maskrle.ReadCategories(strings.NewReader("/m/cat,Cat\n/m/dog,Dog\n"))
	require.NoError(t, err)

	dogToken, err := rle.EncodeCompact(rectMask(12, 16, image.Rect(2, 3, 6, 9)))
	require.NoError(t, err)
	emptyToken, err := rle.EncodeCompact(rle.NewMask(12, 16))
	require.NoError(t, err)

	p := postprocess.ImagePrediction{
		ImageID: "img",
		Width:   16,
		Height:  12,
		Detections: []postprocess.Detection{
			{CategoryID: "/m/dog", Score: 0.91, Mask: dogToken},
			{CategoryID: "/m/cat", Score: 0.8, Mask: emptyToken},
		},
	}

	dir := t.TempDir()
	files, err := PredictionMasks(dir, p, cats)
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, "img_0.png"), filepath.Join(dir, "img_1.png")}, files)

	img := gocv.IMRead(files[0], gocv.IMReadColor)
	defer img.Close()
	require.Equal(t, 16, img.Cols())
	require.Equal(t, 12, img.Rows())

	// mask pixels carry the full class color, the rest stays black
	clr := ClassColor(2)
	data := img.ToBytes()
	pos := (5*16 + 3) * 3
	require.Equal(t, []byte{clr.B, clr.G, clr.R}, data[pos:pos+3])
	require.Equal(t, []byte{0, 0, 0}, data[0:3])

	// unknown category
	p.Detections[0].CategoryID = "/m/bird"
	_, err = PredictionMasks(dir, p, cats)
	require.ErrorIs(t, err, maskrle.ErrUnknownCategory)
}

func TestLabelBox(t *testing.T) {

	font := DefaultFont()

	box, origin := font.labelBox("Cat 0.9", 30, 40)
	require.Equal(t, 40, box.Max.Y)
	require.Equal(t, box.Max.Y-font.BottomPad, origin.Y)
	require.Equal(t, box.Min.X+font.LeftPad, origin.X)

	// a label above the top of the image is pushed down onto it
	box, origin = font.labelBox("Cat 0.9", 30, 2)
	require.Equal(t, 0, box.Min.Y)
	require.Equal(t, box.Max.Y-font.BottomPad, origin.Y)
}
