// Package config loads the YAML configuration of the predict and render
// commands.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"github.com/swdee/go-maskrle/postprocess"
)

// Input configures where source images are read from and the canvas they are
// letterboxed onto
type Input struct {
	TargetSize int    `mapstructure:"target_size"`
	ImagesDir  string `mapstructure:"images_dir"`
	ImageExt   string `mapstructure:"image_ext"`
}

// PostProcess configures instance selection
type PostProcess struct {
	TopK           int     `mapstructure:"top_k"`
	ScoreThreshold float64 `mapstructure:"score_threshold"`
	MaskThreshold  float32 `mapstructure:"mask_threshold"`
}

// Render configures prediction rendering
type Render struct {
	Alpha         float32 `mapstructure:"alpha"`
	MinArea       float64 `mapstructure:"min_area"`
	LineThickness int     `mapstructure:"line_thickness"`
}

// Config is the complete configuration
type Config struct {
	// CategoriesFile is the class description file, one
	// "class_id,class_name" pair per line
	CategoriesFile string      `mapstructure:"categories_file"`
	Workers        int         `mapstructure:"workers"`
	Input          Input       `mapstructure:"input"`
	PostProcess    PostProcess `mapstructure:"postprocess"`
	Render         Render      `mapstructure:"render"`
}

// setDefaults registers the default value of every key
func setDefaults(v *viper.Viper) {

	pp := postprocess.MaskRCNNOpenImagesParams()

	v.SetDefault("workers", 3)
	v.SetDefault("input.target_size", 1024)
	v.SetDefault("input.image_ext", ".jpg")
	v.SetDefault("postprocess.top_k", pp.TopK)
	v.SetDefault("postprocess.score_threshold", pp.ScoreThreshold)
	v.SetDefault("postprocess.mask_threshold", pp.MaskThreshold)
	v.SetDefault("render.alpha", 0.5)
	v.SetDefault("render.min_area", 10.0)
	v.SetDefault("render.line_thickness", 2)
}

// Load reads the YAML config file, applying defaults for unset keys.
// Relative paths in the file are resolved against the file's directory
func Load(file string) (Config, error) {

	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(file)
	v.SetConfigType("yaml")

	var cfg Config

	if err := v.ReadInConfig(); err != nil {
		return cfg, fmt.Errorf("error reading config file: %w", err)
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("unable to decode config %s: %w", file, err)
	}

	base := filepath.Dir(file)
	cfg.CategoriesFile = resolve(base, cfg.CategoriesFile)
	cfg.Input.ImagesDir = resolve(base, cfg.Input.ImagesDir)

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", file, err)
	}

	return cfg, nil
}

func resolve(base, path string) string {

	if path == "" || filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(base, path)
}

// Validate checks the configuration is usable
func (c Config) Validate() error {

	if c.CategoriesFile == "" {
		return fmt.Errorf("categories_file is not set")
	}

	if c.Input.ImagesDir == "" {
		return fmt.Errorf("input.images_dir is not set")
	}

	if c.Input.TargetSize <= 0 {
		return fmt.Errorf("input.target_size must be positive, got %d", c.Input.TargetSize)
	}

	if len(c.Input.ImageExt) < 2 || !strings.HasPrefix(c.Input.ImageExt, ".") {
		return fmt.Errorf("input.image_ext must be an extension with a leading dot, got %q",
			c.Input.ImageExt)
	}

	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}

	if c.PostProcess.TopK <= 0 {
		return fmt.Errorf("postprocess.top_k must be positive, got %d", c.PostProcess.TopK)
	}

	if c.PostProcess.MaskThreshold < 0 || c.PostProcess.MaskThreshold > 1 {
		return fmt.Errorf("postprocess.mask_threshold must be within [0,1], got %v",
			c.PostProcess.MaskThreshold)
	}

	if c.Render.Alpha < 0 || c.Render.Alpha > 1 {
		return fmt.Errorf("render.alpha must be within [0,1], got %v", c.Render.Alpha)
	}

	return nil
}

// Params returns the post processing parameters
func (c Config) Params() postprocess.MaskRCNNParams {
	return postprocess.MaskRCNNParams{
		TopK:           c.PostProcess.TopK,
		ScoreThreshold: c.PostProcess.ScoreThreshold,
		MaskThreshold:  c.PostProcess.MaskThreshold,
	}
}

// ImagePath returns the path of an image
func (c Config) ImagePath(imageID string) string {
	return filepath.Join(c.Input.ImagesDir, imageID+c.Input.ImageExt)
}
