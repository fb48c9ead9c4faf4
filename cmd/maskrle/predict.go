package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"github.com/cyclopcam/logs"
	"github.com/swdee/go-maskrle"
	"github.com/swdee/go-maskrle/config"
	"github.com/swdee/go-maskrle/postprocess"
	"github.com/swdee/go-maskrle/preprocess"
	"gocv.io/x/gocv"
	"golang.org/x/sync/errgroup"
)

// padColor fills the letterbox padding
var padColor = color.RGBA{R: 0, G: 0, B: 0, A: 255}

// progressEvery is how many images are processed between progress logs
const progressEvery = 100

// predictedRow is a prediction CSV record with its input position
type predictedRow struct {
	seq    int
	record []string
}

// runPredict runs every image of the configured directory through the
// detectors and writes the prediction CSV in input order
func runPredict(log logs.Log, configFile, weightsDir, outputFile string) error {

	cfg, err := config.Load(configFile)

	if err != nil {
		return err
	}

	cats, err := maskrle.LoadCategories(cfg.CategoriesFile)

	if err != nil {
		return err
	}

	ids, err := listImages(cfg.Input.ImagesDir, cfg.Input.ImageExt)

	if err != nil {
		return err
	}

	log.Infof("Predicting %d images with %d workers", len(ids), cfg.Workers)

	pool, err := maskrle.NewPool(cfg.Workers, func(slot int) (postprocess.Detector, error) {
		return postprocess.NewReplay(weightsDir)
	})

	if err != nil {
		return err
	}

	defer pool.Close()

	f, err := os.Create(outputFile)

	if err != nil {
		return fmt.Errorf("error creating output file: %w", err)
	}

	defer f.Close()

	out := maskrle.NewOrderedWriter(csv.NewWriter(f))

	if err := out.Header(postprocess.PredictionHeader); err != nil {
		return fmt.Errorf("error writing output header: %w", err)
	}

	proc := postprocess.NewMaskRCNN(cfg.Params())
	rows := make(chan predictedRow, pool.Size())

	// single writer, keeps draining after an error so workers never block
	writeDone := make(chan error, 1)

	go func() {
		var werr error

		for r := range rows {
			if werr != nil {
				continue
			}

			werr = out.Write(r.seq, r.record)

			if werr == nil && (r.seq+1)%progressEvery == 0 {
				log.Infof("Processed %d/%d images", r.seq+1, len(ids))
			}
		}

		writeDone <- werr
	}()

	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(pool.Size())

	for seq, id := range ids {
		if ctx.Err() != nil {
			break
		}

		g.Go(func() error {
			det := pool.Get()
			defer pool.Return(det)

			record, err := predictImage(det, proc, cats, cfg, id)

			if err != nil {
				return err
			}

			select {
			case rows <- predictedRow{seq: seq, record: record}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}

	gerr := g.Wait()
	close(rows)
	werr := <-writeDone

	if gerr != nil {
		return gerr
	}

	if werr != nil {
		return fmt.Errorf("error writing predictions: %w", werr)
	}

	if err := out.Flush(); err != nil {
		return fmt.Errorf("error writing predictions: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("error closing output file: %w", err)
	}

	log.Infof("Wrote predictions for %d images to %s", len(ids), outputFile)

	return nil
}

// predictImage letterboxes one image, runs the detector and returns its
// prediction CSV record
func predictImage(det postprocess.Detector, proc *postprocess.MaskRCNN,
	cats *maskrle.Categories, cfg config.Config, imageID string) ([]string, error) {

	path := cfg.ImagePath(imageID)

	img, err := preprocess.ReadImage(path)

	if err != nil {
		return nil, fmt.Errorf("image %s: %w", imageID, err)
	}

	defer img.Close()

	lb, err := preprocess.NewLetterbox(img.Cols(), img.Rows(), cfg.Input.TargetSize)

	if err != nil {
		return nil, fmt.Errorf("image %s: %w", imageID, err)
	}

	defer lb.Close()

	canvas := gocv.NewMat()
	defer canvas.Close()

	if err := lb.Forward(img, &canvas, padColor); err != nil {
		return nil, fmt.Errorf("image %s: %w", imageID, err)
	}

	in, err := det.Detect(imageID, canvas)

	if err != nil {
		return nil, fmt.Errorf("image %s: %w", imageID, err)
	}

	defer in.Close()

	dets, err := proc.Process(in, lb, cats)

	if err != nil {
		return nil, fmt.Errorf("image %s: %w", imageID, err)
	}

	p := postprocess.ImagePrediction{
		ImageID:    imageID,
		Width:      img.Cols(),
		Height:     img.Rows(),
		Detections: dets,
	}

	return p.Record(), nil
}

// listImages returns the ids of the images in dir with the given extension,
// sorted by file name.  The extension match is case sensitive so every id
// maps back to its file through the configured extension
func listImages(dir, ext string) ([]string, error) {

	entries, err := os.ReadDir(dir)

	if err != nil {
		return nil, fmt.Errorf("error reading image directory: %w", err)
	}

	var ids []string

	for _, e := range entries {
		name := e.Name()

		if e.IsDir() || filepath.Ext(name) != ext {
			continue
		}

		ids = append(ids, name[:len(name)-len(ext)])
	}

	return ids, nil
}
