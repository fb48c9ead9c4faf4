package main

import (
	"github.com/cyclopcam/logs"
	"github.com/swdee/go-maskrle/annotation"
)

// runConvert writes the COCO dataset of a subset under the dataset root
func runConvert(log logs.Log, root, subset string) error {

	layout, err := annotation.NewLayout(root, subset)

	if err != nil {
		return err
	}

	log.Infof("Converting %s subset of %s", layout.Subset, layout.Root)

	return annotation.Convert(layout, log)
}
