package postprocess

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/swdee/go-maskrle"
	"gocv.io/x/gocv"
)

// ReplayManifest describes the recorded model outputs for one image.  The
// mask tensor is stored separately as raw little endian float16 values of
// shape N x MaskHeight x MaskWidth
type ReplayManifest struct {
	Scores     []float32 `json:"scores"`
	Labels     []int     `json:"labels"`
	MaskHeight int       `json:"mask_height"`
	MaskWidth  int       `json:"mask_width"`
	MaskFile   string    `json:"mask_file"`
}

// Replay is a Detector that serves model outputs recorded to a directory,
// one <imageID>.json manifest per image
type Replay struct {
	dir string
}

// NewReplay returns a replay detector reading from dir
func NewReplay(dir string) (*Replay, error) {

	info, err := os.Stat(dir)

	if err != nil {
		return nil, fmt.Errorf("error opening replay directory: %w", err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("replay path %s is not a directory", dir)
	}

	return &Replay{dir: dir}, nil
}

// Detect loads the recorded outputs for imageID.  The canvas is not read as
// the outputs were recorded against the same letterboxed canvas
func (r *Replay) Detect(imageID string, canvas gocv.Mat) (Instances, error) {

	man, err := r.readManifest(imageID)

	if err != nil {
		return Instances{}, err
	}

	n := len(man.Scores)

	if len(man.Labels) != n {
		return Instances{}, fmt.Errorf("replay %s has %d scores and %d labels",
			imageID, n, len(man.Labels))
	}

	if n == 0 {
		return Instances{}, nil
	}

	if man.MaskHeight <= 0 || man.MaskWidth <= 0 {
		return Instances{}, fmt.Errorf("replay %s has invalid mask size %dx%d",
			imageID, man.MaskWidth, man.MaskHeight)
	}

	raw, err := os.ReadFile(filepath.Join(r.dir, man.MaskFile))

	if err != nil {
		return Instances{}, fmt.Errorf("error reading replay masks for %s: %w", imageID, err)
	}

	plane := man.MaskHeight * man.MaskWidth

	if len(raw) != n*plane*2 {
		return Instances{}, fmt.Errorf("replay %s mask tensor has %d bytes, expected %d",
			imageID, len(raw), n*plane*2)
	}

	bits := make([]uint16, n*plane)

	for i := range bits {
		bits[i] = binary.LittleEndian.Uint16(raw[i*2:])
	}

	probs := maskrle.Float16ToFloat32(bits)

	in := Instances{
		Scores: man.Scores,
		Labels: man.Labels,
		Masks:  make([]gocv.Mat, 0, n),
	}

	for i := 0; i < n; i++ {
		mat := gocv.NewMatWithSize(man.MaskHeight, man.MaskWidth, gocv.MatTypeCV32F)
		data, err := mat.DataPtrFloat32()

		if err != nil {
			mat.Close()
			in.Close()
			return Instances{}, fmt.Errorf("error creating replay mask: %w", err)
		}

		copy(data, probs[i*plane:(i+1)*plane])
		in.Masks = append(in.Masks, mat)
	}

	return in, nil
}

// readManifest loads and decodes the manifest of an image
func (r *Replay) readManifest(imageID string) (ReplayManifest, error) {

	var man ReplayManifest

	f, err := os.Open(filepath.Join(r.dir, imageID+".json"))

	if err != nil {
		return man, fmt.Errorf("error opening replay manifest: %w", err)
	}

	defer f.Close()

	if err := json.NewDecoder(f).Decode(&man); err != nil {
		return man, fmt.Errorf("error decoding replay manifest %s: %w", imageID, err)
	}

	if man.MaskFile == "" {
		man.MaskFile = imageID + ".f16"
	}

	return man, nil
}

// Close implements Detector, a replay holds no resources
func (r *Replay) Close() error {
	return nil
}

// WriteReplay records model outputs for imageID into dir in the format read
// by Replay.  Each entry of masks is a MaskHeight x MaskWidth row-major plane
func WriteReplay(dir, imageID string, scores []float32, labels []int,
	masks [][]float32, maskHeight, maskWidth int) error {

	if len(scores) != len(labels) || len(scores) != len(masks) {
		return fmt.Errorf("replay slices differ in length: %d scores, %d labels, %d masks",
			len(scores), len(labels), len(masks))
	}

	plane := maskHeight * maskWidth
	raw := make([]byte, 0, len(masks)*plane*2)

	for i, m := range masks {
		if len(m) != plane {
			return fmt.Errorf("replay mask %d has %d values, expected %d", i, len(m), plane)
		}

		for _, b := range maskrle.Float32ToFloat16(m) {
			raw = binary.LittleEndian.AppendUint16(raw, b)
		}
	}

	man := ReplayManifest{
		Scores:     scores,
		Labels:     labels,
		MaskHeight: maskHeight,
		MaskWidth:  maskWidth,
		MaskFile:   imageID + ".f16",
	}

	js, err := json.Marshal(man)

	if err != nil {
		return fmt.Errorf("error encoding replay manifest: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, man.MaskFile), raw, 0644); err != nil {
		return fmt.Errorf("error writing replay masks: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, imageID+".json"), js, 0644); err != nil {
		return fmt.Errorf("error writing replay manifest: %w", err)
	}

	return nil
}
