package annotation

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"
	"github.com/swdee/go-maskrle"
	"github.com/swdee/go-maskrle/preprocess"
	"github.com/swdee/go-maskrle/rle"
)

func TestLayout(t *testing.T) {

	l, err := NewLayout("/data/oi", "validation")
	require.NoError(t, err)

	require.Equal(t, "/data/oi/annotations/challenge-2019-classes-description-segmentable.csv", l.CategoryFile())
	require.Equal(t, "/data/oi/annotations/challenge-2019-validation-segmentation-imagelabels.csv", l.ImageLabelsFile())
	require.Equal(t, "/data/oi/annotations/challenge-2019-validation-segmentation-bbox.csv", l.BBoxFile())
	require.Equal(t, "/data/oi/annotations/challenge-2019-validation-segmentation-masks.csv", l.MasksFile())
	require.Equal(t, "/data/oi/images/validation/0a1b.jpg", l.ImagePath("0a1b"))
	require.Equal(t, "/data/oi/annotations/validation_coco.json", l.OutputFile())

	p, err := l.MaskPath("f00d_m0k4j_beef.png")
	require.NoError(t, err)
	require.Equal(t, "/data/oi/masks/validation/validation-masks-f/f00d_m0k4j_beef.png", p)

	_, err = l.MaskPath("")
	require.ErrorIs(t, err, ErrMalformedRow)

	_, err = NewLayout("/data/oi", "test")
	require.Error(t, err)

	_, err = NewLayout("", "train")
	require.Error(t, err)
}

func TestReadRecords(t *testing.T) {

	labels, err := ReadImageLabels(strings.NewReader("ImageID,LabelName,Confidence\na,/m/x,1\nb,/m/y,0\n"))
	require.NoError(t, err)
	require.Equal(t, []ImageLabel{{"a", "/m/x", "1"}, {"b", "/m/y", "0"}}, labels)

	boxes, err := ReadBoxes(strings.NewReader(
		"ImageID,LabelName,XMin,XMax,YMin,YMax,IsGroupOf\na,/m/x,0.1,0.2,0.3,0.4,1\n"))
	require.NoError(t, err)
	require.Equal(t, []BoxRow{{ImageID: "a", LabelName: "/m/x",
		Box: Box{0.1, 0.2, 0.3, 0.4}, IsGroupOf: true}}, boxes)

	masks, err := ReadMasks(strings.NewReader(
		"MaskPath,ImageID,LabelName,BoxID,BoxXMin,BoxXMax,BoxYMin,BoxYMax,PredictedIoU,Clicks\n" +
			"a_m_x.png,a,/m/x,bx1,0.1,0.2,0.3,0.4,0.8,0.1 0.2 1\n"))
	require.NoError(t, err)
	require.Equal(t, []MaskRow{{Line: 2, MaskPath: "a_m_x.png", ImageID: "a", LabelName: "/m/x",
		BoxID: "bx1", Box: Box{0.1, 0.2, 0.3, 0.4}}}, masks)

	bad := []string{
		// wrong field count
		"ImageID,LabelName,XMin,XMax,YMin,YMax,IsGroupOf\na,/m/x,0.1,0.2,0.3,0.4\n",
		// not a number
		"ImageID,LabelName,XMin,XMax,YMin,YMax,IsGroupOf\na,/m/x,left,0.2,0.3,0.4,0\n",
		// invalid flag
		"ImageID,LabelName,XMin,XMax,YMin,YMax,IsGroupOf\na,/m/x,0.1,0.2,0.3,0.4,2\n",
		// wrong file
		"MaskPath,ImageID,LabelName,BoxID,BoxXMin,BoxXMax,BoxYMin\n",
	}

	for _, b := range bad {
		_, err := ReadBoxes(strings.NewReader(b))
		require.ErrorIs(t, err, ErrMalformedRow, b)
	}
}

func TestJoinKeyRounding(t *testing.T) {

	require.Equal(t, "img_/m/x_0.12", JoinKey("img", "/m/x", 0.123456))
	require.Equal(t, "img_/m/x_0.10", JoinKey("img", "/m/x", 0.1))

	g := NewGroupOfIndex([]BoxRow{
		{ImageID: "img", LabelName: "/m/x", Box: Box{XMin: 0.123456, XMax: 0.5}, IsGroupOf: true},
	})

	// the mask file carries the coordinate at lower precision
	v, err := g.Lookup("img", "/m/x", Box{XMin: 0.12, XMax: 0.5})
	require.NoError(t, err)
	require.True(t, v)

	_, err = g.Lookup("img", "/m/x", Box{XMin: 0.13})
	require.ErrorIs(t, err, ErrGroupOfMiss)

	_, err = g.Lookup("img", "/m/y", Box{XMin: 0.12})
	require.ErrorIs(t, err, ErrGroupOfMiss)
}

func TestGroupOfDuplicateKeys(t *testing.T) {

	g := NewGroupOfIndex([]BoxRow{
		{ImageID: "img", LabelName: "/m/x", Box: Box{0.1, 0.4, 0.1, 0.4}, IsGroupOf: false},
		{ImageID: "img", LabelName: "/m/x", Box: Box{0.101, 0.9, 0.2, 0.9}, IsGroupOf: true},
		{ImageID: "img", LabelName: "/m/z", Box: Box{0.3, 0.4, 0.1, 0.4}, IsGroupOf: true},
		{ImageID: "img", LabelName: "/m/z", Box: Box{0.3, 0.6, 0.2, 0.5}, IsGroupOf: true},
		{ImageID: "img", LabelName: "/m/c", Box: Box{0.5, 0.6, 0.5, 0.6}, IsGroupOf: true},
		{ImageID: "img", LabelName: "/m/c", Box: Box{0.5, 0.6, 0.5, 0.6}, IsGroupOf: false},
	})
	require.Equal(t, 3, g.Len())

	// shared key with differing flags is resolved by the full box
	v, err := g.Lookup("img", "/m/x", Box{0.1, 0.4, 0.1, 0.4})
	require.NoError(t, err)
	require.False(t, v)

	v, err = g.Lookup("img", "/m/x", Box{0.1, 0.9, 0.2, 0.9})
	require.NoError(t, err)
	require.True(t, v)

	_, err = g.Lookup("img", "/m/x", Box{0.1, 0.7, 0.2, 0.9})
	require.ErrorIs(t, err, ErrGroupOfMiss)

	// shared key with agreeing flags needs no disambiguation
	v, err = g.Lookup("img", "/m/z", Box{XMin: 0.3})
	require.NoError(t, err)
	require.True(t, v)

	_, err = g.Lookup("img", "/m/c", Box{0.5, 0.6, 0.5, 0.6})
	require.ErrorIs(t, err, ErrGroupOfConflict)
}

func TestImageIndexDedup(t *testing.T) {

	labels := []ImageLabel{
		{ImageID: "a", LabelName: "/m/x"},
		{ImageID: "b", LabelName: "/m/x"},
		{ImageID: "a", LabelName: "/m/y"},
		{ImageID: "c", LabelName: "/m/x"},
		{ImageID: "b", LabelName: "/m/z"},
	}

	layout, err := NewLayout("/data", "train")
	require.NoError(t, err)

	var reads []string
	size := func(path string) (int, int, error) {
		reads = append(reads, filepath.Base(path))
		return 10 * len(reads), 5, nil
	}

	idx, err := BuildImageIndex(labels, layout, size)
	require.NoError(t, err)

	require.Equal(t, []string{"a.jpg", "b.jpg", "c.jpg"}, reads)
	require.Equal(t, []Image{
		{FileName: "a.jpg", Width: 10, Height: 5, ID: 1},
		{FileName: "b.jpg", Width: 20, Height: 5, ID: 2},
		{FileName: "c.jpg", Width: 30, Height: 5, ID: 3},
	}, idx.Images())

	img, ok := idx.Get("c")
	require.True(t, ok)
	require.Equal(t, 3, img.ID)

	_, ok = idx.Get("d")
	require.False(t, ok)

	// adding a known image keeps its id
	require.Equal(t, 2, idx.Add("b", 1, 1))
	require.Len(t, idx.Images(), 3)
}

func TestIDGenerator(t *testing.T) {

	g := NewIDGenerator()
	require.Equal(t, 0, g.Last())
	require.Equal(t, 1, g.GetNext())
	require.Equal(t, 2, g.GetNext())
	require.Equal(t, 2, g.Last())
}

// writeJPEG writes a w x h grey image
func writeJPEG(t *testing.T, path string, w, h int) {
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	img := image.NewGray(image.Rect(0, 0, w, h))
	require.NoError(t, jpeg.Encode(f, img, nil))
}

// writeMaskPNG writes a w x h mask with the given foreground pixels
func writeMaskPNG(t *testing.T, path string, w, h int, fg ...image.Point) {
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))

	img := image.NewGray(image.Rect(0, 0, w, h))
	for _, p := range fg {
		img.SetGray(p.X, p.Y, color.Gray{Y: 255})
	}

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, png.Encode(f, img))
}

// rectPoints returns the points of the rectangle r
func rectPoints(r image.Rectangle) []image.Point {
	var pts []image.Point
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			pts = append(pts, image.Pt(x, y))
		}
	}
	return pts
}

func TestImageSize(t *testing.T) {

	dir := t.TempDir()
	path := filepath.Join(dir, "x.jpg")
	writeJPEG(t, path, 7, 5)

	w, h, err := ImageSize(path)
	require.NoError(t, err)
	require.Equal(t, 7, w)
	require.Equal(t, 5, h)

	_, _, err = ImageSize(filepath.Join(dir, "missing.jpg"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestImageSizeIgnoresOrientation(t *testing.T) {

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, 40, 20)), nil))

	// APP1 segment with EXIF orientation 6
	app1 := []byte{
		0xff, 0xe1, 0x00, 0x22,
		'E', 'x', 'i', 'f', 0x00, 0x00,
		'M', 'M', 0x00, 0x2a, 0x00, 0x00, 0x00, 0x08,
		0x00, 0x01,
		0x01, 0x12, 0x00, 0x03, 0x00, 0x00, 0x00, 0x01, 0x00, 0x06, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
	}

	data := buf.Bytes()
	out := append(append(append([]byte{}, data[:2]...), app1...), data[2:]...)

	path := filepath.Join(t.TempDir(), "rotated.jpg")
	require.NoError(t, os.WriteFile(path, out, 0644))

	w, h, err := ImageSize(path)
	require.NoError(t, err)
	require.Equal(t, 40, w)
	require.Equal(t, 20, h)

	// the predict path decodes the same size
	img, err := preprocess.ReadImage(path)
	require.NoError(t, err)
	defer img.Close()
	require.Equal(t, w, img.Cols())
	require.Equal(t, h, img.Rows())
}

func TestLoadMask(t *testing.T) {

	dir := t.TempDir()
	path := filepath.Join(dir, "m.png")
	writeMaskPNG(t, path, 4, 3, image.Pt(1, 1), image.Pt(3, 0))

	m, err := LoadMask(path, 4, 3)
	require.NoError(t, err)
	require.Equal(t, 3, m.Height)
	require.Equal(t, 4, m.Width)
	require.True(t, m.At(1, 1))
	require.True(t, m.At(0, 3))
	require.Equal(t, 2, rle.Encode(m).Area())

	// nearest neighbour upscale doubles each pixel
	big, err := LoadMask(path, 8, 6)
	require.NoError(t, err)
	require.Equal(t, 8, rle.Encode(big).Area())
	require.True(t, big.At(2, 2))
	require.True(t, big.At(3, 3))
	require.False(t, big.At(4, 2))

	_, err = LoadMask(filepath.Join(dir, "missing.png"), 4, 3)
	require.ErrorIs(t, err, os.ErrNotExist)
}

// writeFixture creates a small validation subset under root
func writeFixture(t *testing.T, root string) Layout {

	layout, err := NewLayout(root, "validation")
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(layout.AnnotationDir(), 0755))

	files := map[string]string{
		layout.CategoryFile(): "/m/cat,Cat\n/m/dog,Dog\n",
		layout.ImageLabelsFile(): "ImageID,LabelName,Confidence\n" +
			"img1,/m/cat,1\nimg2,/m/dog,1\nimg1,/m/dog,0\n",
		layout.BBoxFile(): "ImageID,LabelName,XMin,XMax,YMin,YMax,IsGroupOf\n" +
			"img1,/m/cat,0.25,0.625,0.166667,0.666667,0\n" +
			"img2,/m/dog,0.251234,0.5,0.33,0.66,1\n" +
			"img1,/m/cat,0.1,0.2,0.3,0.4,0\n",
		layout.MasksFile(): "MaskPath,ImageID,LabelName,BoxID,BoxXMin,BoxXMax,BoxYMin,BoxYMax,PredictedIoU,Clicks\n" +
			"a1.png,img1,/m/cat,box1,0.25,0.625,0.166667,0.666667,0.9,\n" +
			"b2.png,img2,/m/dog,box2,0.25,0.5,0.33,0.66,0.8,\n" +
			"c3.png,img1,/m/cat,box3,0.1,0.2,0.3,0.4,0.5,\n",
	}

	for path, content := range files {
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}

	writeJPEG(t, layout.ImagePath("img1"), 8, 6)
	writeJPEG(t, layout.ImagePath("img2"), 8, 6)

	p, err := layout.MaskPath("a1.png")
	require.NoError(t, err)
	writeMaskPNG(t, p, 8, 6, rectPoints(image.Rect(2, 1, 5, 4))...)

	// half resolution mask
	p, err = layout.MaskPath("b2.png")
	require.NoError(t, err)
	writeMaskPNG(t, p, 4, 3, image.Pt(1, 1))

	p, err = layout.MaskPath("c3.png")
	require.NoError(t, err)
	writeMaskPNG(t, p, 8, 6)

	return layout
}

func TestConvert(t *testing.T) {

	layout := writeFixture(t, t.TempDir())

	require.NoError(t, Convert(layout, logs.NewTestingLog(t)))

	f, err := os.Open(layout.OutputFile())
	require.NoError(t, err)
	defer f.Close()

	d, err := ReadDataset(f)
	require.NoError(t, err)

	require.Empty(t, d.Info)
	require.Empty(t, d.Licenses)
	require.Equal(t, []Image{
		{FileName: "img1.jpg", Height: 6, Width: 8, ID: 1},
		{FileName: "img2.jpg", Height: 6, Width: 8, ID: 2},
	}, d.Images)
	require.Equal(t, []maskrle.Category{
		{ID: 1, Name: "Cat", OriginalID: "/m/cat"},
		{ID: 2, Name: "Dog", OriginalID: "/m/dog"},
	}, d.Categories)

	// the empty mask c3 is skipped
	require.Len(t, d.Annotations, 2)

	a := d.Annotations[0]
	require.Equal(t, 1, a.ID)
	require.Equal(t, 1, a.ImageID)
	require.Equal(t, 1, a.CategoryID)
	require.Equal(t, "/m/cat", a.OriginalCategoryID)
	require.Equal(t, 0, a.IsCrowd)
	require.Equal(t, [4]float64{2, 1, 3, 3}, a.BBox)
	require.Equal(t, float64(9), a.Area)
	require.Equal(t, [2]int{6, 8}, a.Segmentation.Size)

	m, err := rle.Decode(a.Segmentation)
	require.NoError(t, err)
	require.True(t, m.At(1, 2))
	require.True(t, m.At(3, 4))
	require.False(t, m.At(0, 2))

	b := d.Annotations[1]
	require.Equal(t, 2, b.ID)
	require.Equal(t, 2, b.ImageID)
	require.Equal(t, 2, b.CategoryID)
	require.Equal(t, 1, b.IsCrowd)
	require.Equal(t, [4]float64{2, 2, 2, 2}, b.BBox)
	require.Equal(t, float64(4), b.Area)
}

func TestBuildKeepsEmpty(t *testing.T) {

	layout := writeFixture(t, t.TempDir())

	b := NewBuilder(layout, logs.NewTestingLog(t))
	b.SkipEmpty = false

	d, err := b.Build()
	require.NoError(t, err)
	require.Len(t, d.Annotations, 3)
	require.Equal(t, 3, d.Annotations[2].ID)
	require.Equal(t, [4]float64{}, d.Annotations[2].BBox)
	require.Equal(t, float64(0), d.Annotations[2].Area)
}

func TestBuildErrors(t *testing.T) {

	// mask row with no matching box
	layout := writeFixture(t, t.TempDir())
	require.NoError(t, os.WriteFile(layout.BBoxFile(),
		[]byte("ImageID,LabelName,XMin,XMax,YMin,YMax,IsGroupOf\n"), 0644))

	_, err := NewBuilder(layout, logs.NewTestingLog(t)).Build()
	require.ErrorIs(t, err, ErrGroupOfMiss)
	require.Contains(t, err.Error(), "line 2")
	require.Contains(t, err.Error(), "img1")

	// label missing from the category file
	layout = writeFixture(t, t.TempDir())
	require.NoError(t, os.WriteFile(layout.CategoryFile(), []byte("/m/cat,Cat\n"), 0644))

	_, err = NewBuilder(layout, logs.NewTestingLog(t)).Build()
	require.ErrorIs(t, err, maskrle.ErrUnknownCategory)

	// mask of an image that is not listed
	layout = writeFixture(t, t.TempDir())
	require.NoError(t, os.WriteFile(layout.ImageLabelsFile(),
		[]byte("ImageID,LabelName,Confidence\nimg1,/m/cat,1\n"), 0644))

	_, err = NewBuilder(layout, logs.NewTestingLog(t)).Build()
	require.Error(t, err)
	require.Contains(t, err.Error(), "img2")

	// missing image
	layout = writeFixture(t, t.TempDir())
	require.NoError(t, os.Remove(layout.ImagePath("img2")))

	_, err = NewBuilder(layout, logs.NewTestingLog(t)).Build()
	require.ErrorIs(t, err, os.ErrNotExist)

	// missing metadata file
	layout = writeFixture(t, t.TempDir())
	require.NoError(t, os.Remove(layout.MasksFile()))

	_, err = NewBuilder(layout, logs.NewTestingLog(t)).Build()
	require.ErrorIs(t, err, os.ErrNotExist)
}
