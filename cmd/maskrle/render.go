package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cyclopcam/logs"
	"github.com/swdee/go-maskrle"
	"github.com/swdee/go-maskrle/config"
	"github.com/swdee/go-maskrle/postprocess"
	"github.com/swdee/go-maskrle/preprocess"
	"github.com/swdee/go-maskrle/render"
	"gocv.io/x/gocv"
)

// runRender draws every prediction of the CSV file over its source image and
// writes the result to outDir.  When maskDir is set each decoded mask is also
// written there on its own
func runRender(log logs.Log, configFile, predictionsFile, outDir, maskDir string) error {

	cfg, err := config.Load(configFile)

	if err != nil {
		return err
	}

	cats, err := maskrle.LoadCategories(cfg.CategoriesFile)

	if err != nil {
		return err
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("error creating output directory: %w", err)
	}

	if maskDir != "" {
		if err := os.MkdirAll(maskDir, 0755); err != nil {
			return fmt.Errorf("error creating mask directory: %w", err)
		}
	}

	f, err := os.Open(predictionsFile)

	if err != nil {
		return fmt.Errorf("error opening predictions file: %w", err)
	}

	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(postprocess.PredictionHeader)

	if _, err := r.Read(); err != nil {
		return fmt.Errorf("error reading predictions header: %w", err)
	}

	opts := render.DefaultOptions()
	opts.Alpha = cfg.Render.Alpha
	opts.MinArea = cfg.Render.MinArea
	opts.LineThickness = cfg.Render.LineThickness

	count, masks := 0, 0

	for {
		record, err := r.Read()

		if err == io.EOF {
			break
		}

		if err != nil {
			return fmt.Errorf("error reading predictions: %w", err)
		}

		p, err := postprocess.ParsePredictionRecord(record)

		if err != nil {
			return err
		}

		if err := renderImage(cfg, cats, p, opts, outDir); err != nil {
			return err
		}

		if maskDir != "" {
			files, err := render.PredictionMasks(maskDir, p, cats)

			if err != nil {
				return err
			}

			masks += len(files)
		}

		count++
	}

	log.Infof("Rendered %d images to %s", count, outDir)

	if maskDir != "" {
		log.Infof("Wrote %d masks to %s", masks, maskDir)
	}

	return nil
}

// renderImage draws one prediction and saves it as <outDir>/<imageID>.jpg
func renderImage(cfg config.Config, cats *maskrle.Categories,
	p postprocess.ImagePrediction, opts render.Options, outDir string) error {

	path := cfg.ImagePath(p.ImageID)

	img, err := preprocess.ReadImage(path)

	if err != nil {
		return fmt.Errorf("image %s: %w", p.ImageID, err)
	}

	defer img.Close()

	if err := render.Prediction(&img, p, cats, opts); err != nil {
		return err
	}

	out := filepath.Join(outDir, p.ImageID+".jpg")

	if !gocv.IMWrite(out, img) {
		return fmt.Errorf("error writing rendered image %s", out)
	}

	return nil
}
