package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/MeKo-Tech/docrefine/internal/enhance"
	"github.com/MeKo-Tech/docrefine/internal/ocr"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "docrefine"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "DOCREFINE"
)

// Loader loads configuration from files, environment variables and defaults.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader on the global viper instance so that cobra flag
// bindings are honored.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// Load reads configuration from the search paths and environment, applies
// defaults, and validates the result. A missing config file is not an error.
func (l *Loader) Load() (*Config, error) {
	return l.load("", true)
}

// LoadWithFile loads configuration from a specific file path.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	if configFile == "" {
		return l.Load()
	}
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configFile)
	}
	return l.load(configFile, true)
}

func (l *Loader) load(configFile string, validate bool) (*Config, error) {
	if configFile != "" {
		l.v.SetConfigFile(configFile)
	} else {
		l.v.SetConfigName(ConfigFileName)
		l.v.SetConfigType("yaml")
		l.addConfigPaths()
	}

	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file found: defaults and env vars apply.
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if validate {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}
	return &cfg, nil
}

func (l *Loader) addConfigPaths() {
	l.v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		l.v.AddConfigPath(home)
		l.v.AddConfigPath(filepath.Join(home, ".config", "docrefine"))
	}
	l.v.AddConfigPath("/etc/docrefine")
}

func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()
}

func (l *Loader) setDefaults() {
	l.v.SetDefault("log_level", "info")
	l.v.SetDefault("verbose", false)

	ocrDefaults := ocr.DefaultConfig()
	l.v.SetDefault("ocr.image_height", ocrDefaults.ImageHeight)
	l.v.SetDefault("ocr.num_threads", ocrDefaults.NumThreads)
	l.v.SetDefault("ocr.use_gpu", ocrDefaults.UseGPU)
	l.v.SetDefault("ocr.gpu_device_id", ocrDefaults.GPUDeviceID)

	enhDefaults := enhance.DefaultConfig()
	l.v.SetDefault("enhance.overlap_threshold", enhDefaults.OverlapThreshold)
	l.v.SetDefault("enhance.cell_margin", enhDefaults.CellMargin)
	l.v.SetDefault("enhance.crop_padding", enhDefaults.CropPadding)
	l.v.SetDefault("enhance.canvas_scale", enhDefaults.CanvasScale)
	l.v.SetDefault("enhance.min_line_confidence", enhDefaults.MinLineConfidence)

	l.v.SetDefault("server.host", "localhost")
	l.v.SetDefault("server.port", 8080)
	l.v.SetDefault("server.cors_origin", "*")
	l.v.SetDefault("server.max_upload_mb", int64(50))
	l.v.SetDefault("server.timeout", 300)
	l.v.SetDefault("server.shutdown_timeout", 10)
}

// OCRConfigFor converts the loaded settings into an adapter configuration.
func (c *Config) OCRConfigFor() ocr.Config {
	return ocr.Config{
		RecognitionModelPath: c.OCR.RecognitionModelPath,
		FormulaModelPath:     c.OCR.FormulaModelPath,
		TableModelPath:       c.OCR.TableModelPath,
		DictPath:             c.OCR.DictPath,
		ImageHeight:          c.OCR.ImageHeight,
		NumThreads:           c.OCR.NumThreads,
		UseGPU:               c.OCR.UseGPU,
		GPUDeviceID:          c.OCR.GPUDeviceID,
	}
}

// EnhanceConfigFor converts the loaded settings into workflow tuning.
func (c *Config) EnhanceConfigFor() enhance.Config {
	return enhance.Config{
		OverlapThreshold:  c.Enhance.OverlapThreshold,
		CellMargin:        c.Enhance.CellMargin,
		CropPadding:       c.Enhance.CropPadding,
		CanvasScale:       c.Enhance.CanvasScale,
		MinLineConfidence: c.Enhance.MinLineConfidence,
	}
}
