/*
go-maskrle converts object instance masks between the three forms used when
working with the Open Images segmentation challenge.

  - raw per instance binary mask images on disk
  - model space probability masks on a letterboxed square canvas
  - COCO compatible run length encodings tied to original image coordinates

The preprocess package handles the letterbox transform and its inverse, the
rle package implements the column-major COCO RLE codec and the compact
zlib/base64 token used in prediction files, postprocess turns raw Mask R-CNN
style detector outputs into encoded detections, and annotation builds COCO
JSON datasets from the Open Images CSV metadata. Predictions can be drawn back
over their source images with the render package, and config loads the YAML
settings shared by the commands.

See cmd/maskrle for the command line tool.
*/
package maskrle
