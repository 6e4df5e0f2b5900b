// Package config provides the layered configuration for docrefine: defaults,
// YAML config file, DOCREFINE_ environment variables, and command-line flag
// overrides applied by the commands themselves.
package config

import (
	"fmt"
	"strings"
)

// Config is the complete application configuration.
type Config struct {
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	OCR     OCRConfig     `mapstructure:"ocr" yaml:"ocr" json:"ocr"`
	Enhance EnhanceConfig `mapstructure:"enhance" yaml:"enhance" json:"enhance"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server" json:"server"`
}

// OCRConfig holds recognition model settings.
type OCRConfig struct {
	RecognitionModelPath string `mapstructure:"recognition_model_path" yaml:"recognition_model_path" json:"recognition_model_path"`
	FormulaModelPath     string `mapstructure:"formula_model_path" yaml:"formula_model_path" json:"formula_model_path"`
	TableModelPath       string `mapstructure:"table_model_path" yaml:"table_model_path" json:"table_model_path"`
	DictPath             string `mapstructure:"dict_path" yaml:"dict_path" json:"dict_path"`
	ImageHeight          int    `mapstructure:"image_height" yaml:"image_height" json:"image_height"`
	NumThreads           int    `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`
	UseGPU               bool   `mapstructure:"use_gpu" yaml:"use_gpu" json:"use_gpu"`
	GPUDeviceID          int    `mapstructure:"gpu_device_id" yaml:"gpu_device_id" json:"gpu_device_id"`
}

// EnhanceConfig holds the tuned constants of the enhancement workflow.
type EnhanceConfig struct {
	OverlapThreshold  float64 `mapstructure:"overlap_threshold" yaml:"overlap_threshold" json:"overlap_threshold"`
	CellMargin        float64 `mapstructure:"cell_margin" yaml:"cell_margin" json:"cell_margin"`
	CropPadding       int     `mapstructure:"crop_padding" yaml:"crop_padding" json:"crop_padding"`
	CanvasScale       int     `mapstructure:"canvas_scale" yaml:"canvas_scale" json:"canvas_scale"`
	MinLineConfidence float64 `mapstructure:"min_line_confidence" yaml:"min_line_confidence" json:"min_line_confidence"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int64  `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if c.LogLevel != "" && !validLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	if c.Enhance.OverlapThreshold < 0 || c.Enhance.OverlapThreshold > 1 {
		return fmt.Errorf("overlap threshold must be in [0,1], got %g", c.Enhance.OverlapThreshold)
	}
	if c.Enhance.CropPadding < 0 {
		return fmt.Errorf("crop padding must be non-negative, got %d", c.Enhance.CropPadding)
	}
	if c.Enhance.CanvasScale < 1 {
		return fmt.Errorf("canvas scale must be at least 1, got %d", c.Enhance.CanvasScale)
	}
	if c.Enhance.MinLineConfidence < 0 || c.Enhance.MinLineConfidence > 1 {
		return fmt.Errorf("min line confidence must be in [0,1], got %g", c.Enhance.MinLineConfidence)
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("max upload size must be positive, got %d", c.Server.MaxUploadMB)
	}

	if c.OCR.ImageHeight <= 0 {
		return fmt.Errorf("image height must be positive, got %d", c.OCR.ImageHeight)
	}
	if c.OCR.NumThreads < 0 {
		return fmt.Errorf("thread count must be non-negative, got %d", c.OCR.NumThreads)
	}
	return nil
}
