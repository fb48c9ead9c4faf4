// Command maskrle converts instance masks between mask images, letterboxed
// model outputs and compact RLE prediction files.
package main

import (
	"fmt"
	"os"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/logs"
	"github.com/swdee/go-maskrle/annotation"
)

func main() {
	parser := argparse.NewParser("maskrle", "Instance mask RLE conversion toolkit")

	predictCmd := parser.NewCommand("predict", "Write compact RLE predictions for a directory of images")
	predictConfig := predictCmd.String("", "config-file", &argparse.Options{Help: "path to config file", Required: true})
	predictWeights := predictCmd.String("", "weights-file", &argparse.Options{Help: "path to recorded model outputs", Required: true})
	predictOutput := predictCmd.String("", "output-file", &argparse.Options{Help: "path to output file", Required: true})

	convertCmd := parser.NewCommand("convert", "Convert Open Images segmentation annotations into COCO format")
	convertPath := convertCmd.String("p", "path", &argparse.Options{Help: "Path to OpenImages dataset", Required: true})
	convertSubset := convertCmd.Selector("s", "subset", annotation.Subsets, &argparse.Options{Help: "'train' or 'validation'", Required: true})

	renderCmd := parser.NewCommand("render", "Draw prediction masks over their source images")
	renderConfig := renderCmd.String("", "config-file", &argparse.Options{Help: "path to config file", Required: true})
	renderPredictions := renderCmd.String("", "predictions", &argparse.Options{Help: "path to prediction CSV file", Required: true})
	renderOutDir := renderCmd.String("", "out-dir", &argparse.Options{Help: "directory to write rendered images to", Required: true})
	renderMaskDir := renderCmd.String("", "mask-dir", &argparse.Options{Help: "optional directory to write each decoded mask to"})

	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logger, err := logs.NewLog()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error creating logger: %v\n", err)
		os.Exit(1)
	}

	switch {
	case predictCmd.Happened():
		err = runPredict(logger, *predictConfig, *predictWeights, *predictOutput)
	case convertCmd.Happened():
		err = runConvert(logger, *convertPath, *convertSubset)
	case renderCmd.Happened():
		err = runRender(logger, *renderConfig, *renderPredictions, *renderOutDir, *renderMaskDir)
	}

	if err != nil {
		logger.Errorf("%v", err)
		logger.Close()
		os.Exit(1)
	}

	logger.Close()
}
