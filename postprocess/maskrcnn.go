package postprocess

import (
	"fmt"

	"github.com/swdee/go-maskrle"
	"github.com/swdee/go-maskrle/preprocess"
	"github.com/swdee/go-maskrle/rle"
	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/floats"
)

// MaskRCNN defines the struct for Mask R-CNN instance segmentation post
// processing
type MaskRCNN struct {
	// Params are the selection parameters
	Params MaskRCNNParams
}

// MaskRCNNParams defines the struct containing the MaskRCNN parameters to use
// for post processing operations
type MaskRCNNParams struct {
	// TopK is the maximum number of instances kept per image, taken in
	// descending score order
	TopK int
	// ScoreThreshold is the score an instance must exceed to be emitted
	ScoreThreshold float64
	// MaskThreshold is the probability a mask pixel must exceed to be
	// foreground
	MaskThreshold float32
}

// MaskRCNNOpenImagesParams returns an instance of MaskRCNNParams configured
// with default values for the Open Images segmentation challenge featuring:
// - Top K: 5
// - Score Threshold: 0.7
// - Mask Threshold: 0.5
func MaskRCNNOpenImagesParams() MaskRCNNParams {
	return MaskRCNNParams{
		TopK:           5,
		ScoreThreshold: 0.7,
		MaskThreshold:  0.5,
	}
}

// NewMaskRCNN returns an instance of the MaskRCNN post processor
func NewMaskRCNN(p MaskRCNNParams) *MaskRCNN {
	return &MaskRCNN{
		Params: p,
	}
}

// Process selects the top scoring instances, maps each mask back to original
// image space through the letterbox and encodes it.  Detections are returned
// in descending score order.  Any error aborts the whole image
func (m *MaskRCNN) Process(in Instances, lb *preprocess.Letterbox,
	categories *maskrle.Categories) ([]Detection, error) {

	if err := in.Validate(); err != nil {
		return nil, err
	}

	dets := make([]Detection, 0, max(0, min(m.Params.TopK, in.Len())))

	for _, idx := range TopK(in.Scores, m.Params.TopK) {

		if float64(in.Scores[idx]) <= m.Params.ScoreThreshold {
			continue
		}

		det, err := m.processInstance(in, idx, lb, categories)

		if err != nil {
			return nil, fmt.Errorf("instance %d: %w", idx, err)
		}

		dets = append(dets, det)
	}

	return dets, nil
}

// processInstance reprojects, thresholds and encodes a single instance
func (m *MaskRCNN) processInstance(in Instances, idx int, lb *preprocess.Letterbox,
	categories *maskrle.Categories) (Detection, error) {

	cat, err := categories.ByID(in.Labels[idx])

	if err != nil {
		return Detection{}, err
	}

	prob, err := lb.Inverse(in.Masks[idx])
	defer prob.Close()

	if err != nil {
		return Detection{}, err
	}

	mask, err := rle.FromProbability(prob, m.Params.MaskThreshold)

	if err != nil {
		return Detection{}, err
	}

	token, err := rle.EncodeCompact(mask)

	if err != nil {
		return Detection{}, err
	}

	return Detection{
		CategoryID: cat.OriginalID,
		Score:      RoundScore(float64(in.Scores[idx])),
		Mask:       token,
	}, nil
}

// TopK returns the indices of the k highest scores in descending score
// order, equal scores keep ascending index order
func TopK(scores []float32, k int) []int {

	if k <= 0 || len(scores) == 0 {
		return nil
	}

	neg := make([]float64, len(scores))

	for i, s := range scores {
		neg[i] = -float64(s)
	}

	idx := make([]int, len(scores))
	floats.ArgsortStable(neg, idx)

	if k < len(idx) {
		idx = idx[:k]
	}

	return idx
}

// closeMats is a helper to release a list of Mats
func closeMats(mats []gocv.Mat) {
	for i := range mats {
		mats[i].Close()
	}
}
