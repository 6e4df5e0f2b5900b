package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// resetConfigState clears all DOCREFINE_ environment variables and resets the
// global viper instance the loader binds to.
func resetConfigState() {
	for _, env := range os.Environ() {
		if strings.HasPrefix(env, EnvPrefix+"_") {
			parts := strings.SplitN(env, "=", 2)
			if len(parts) > 0 {
				_ = os.Unsetenv(parts[0])
			}
		}
	}
	viper.Reset()
}

func TestNewLoader(t *testing.T) {
	loader := NewLoader()
	if loader == nil {
		t.Fatal("NewLoader() returned nil")
	}
	if loader.v == nil {
		t.Error("Loader viper instance is nil")
	}
}

func TestLoadWithNoConfigFile(t *testing.T) {
	resetConfigState()

	tmpDir := t.TempDir()
	originalWd, _ := os.Getwd()
	defer func() { _ = os.Chdir(originalWd) }()

	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("Failed to change directory: %v", err)
	}

	cfg, err := NewLoader().Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("Expected default log level 'info', got %s", cfg.LogLevel)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Enhance.OverlapThreshold != 0.05 {
		t.Errorf("Expected default overlap threshold 0.05, got %g", cfg.Enhance.OverlapThreshold)
	}
	if cfg.OCR.ImageHeight != 48 {
		t.Errorf("Expected default image height 48, got %d", cfg.OCR.ImageHeight)
	}
	if !cfg.OCR.UseGPU {
		t.Error("Expected GPU enabled by default")
	}
}

func TestLoadWithValidYAMLFile(t *testing.T) {
	resetConfigState()

	configFile := filepath.Join(t.TempDir(), "docrefine.yaml")
	content, err := yaml.Marshal(map[string]any{
		"log_level": "debug",
		"verbose":   true,
		"ocr": map[string]any{
			"recognition_model_path": "/models/rec.onnx",
			"table_model_path":       "/models/table.onnx",
			"use_gpu":                false,
		},
		"enhance": map[string]any{
			"overlap_threshold":   0.1,
			"min_line_confidence": 0.7,
		},
		"server": map[string]any{
			"host": "0.0.0.0",
			"port": 9090,
		},
	})
	if err != nil {
		t.Fatalf("Failed to marshal config: %v", err)
	}
	if err := os.WriteFile(configFile, content, 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := NewLoader().LoadWithFile(configFile)
	if err != nil {
		t.Fatalf("LoadWithFile() unexpected error: %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("Expected log level 'debug', got %s", cfg.LogLevel)
	}
	if !cfg.Verbose {
		t.Error("Expected verbose to be true")
	}
	if cfg.OCR.RecognitionModelPath != "/models/rec.onnx" {
		t.Errorf("Expected recognition model path '/models/rec.onnx', got %s", cfg.OCR.RecognitionModelPath)
	}
	if cfg.OCR.UseGPU {
		t.Error("Expected GPU disabled per config file")
	}
	if cfg.Enhance.OverlapThreshold != 0.1 {
		t.Errorf("Expected overlap threshold 0.1, got %g", cfg.Enhance.OverlapThreshold)
	}
	if cfg.Enhance.CropPadding != 5 {
		t.Errorf("Expected default crop padding 5, got %d", cfg.Enhance.CropPadding)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Expected host '0.0.0.0', got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.Server.Port)
	}
}

func TestLoadWithInvalidYAMLFile(t *testing.T) {
	resetConfigState()

	configFile := filepath.Join(t.TempDir(), "docrefine.yaml")
	invalidYAML := "log_level: debug\n  bad indentation\n    worse indentation\n"
	if err := os.WriteFile(configFile, []byte(invalidYAML), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if _, err := NewLoader().LoadWithFile(configFile); err == nil {
		t.Error("LoadWithFile() expected error for invalid YAML, got nil")
	}
}

func TestLoadWithNonExistentFile(t *testing.T) {
	resetConfigState()

	if _, err := NewLoader().LoadWithFile("/nonexistent/path/docrefine.yaml"); err == nil {
		t.Error("LoadWithFile() expected error for non-existent file, got nil")
	}
}

func TestLoadWithValidationFailure(t *testing.T) {
	resetConfigState()

	configFile := filepath.Join(t.TempDir(), "docrefine.yaml")
	yamlContent := "log_level: loud\nenhance:\n  overlap_threshold: 3.0\n"
	if err := os.WriteFile(configFile, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if _, err := NewLoader().LoadWithFile(configFile); err == nil {
		t.Error("LoadWithFile() expected validation error, got nil")
	}
}

func TestEnvironmentVariableOverride(t *testing.T) {
	resetConfigState()
	defer resetConfigState()

	envVars := map[string]string{
		"DOCREFINE_LOG_LEVEL":   "debug",
		"DOCREFINE_SERVER_PORT": "9999",
		"DOCREFINE_OCR_USE_GPU": "false",
	}
	for key, value := range envVars {
		if err := os.Setenv(key, value); err != nil {
			t.Fatalf("Failed to set env var %s: %v", key, err)
		}
	}

	tmpDir := t.TempDir()
	originalWd, _ := os.Getwd()
	defer func() { _ = os.Chdir(originalWd) }()

	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("Failed to change directory: %v", err)
	}

	cfg, err := NewLoader().Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("Expected log level 'debug' from env, got %s", cfg.LogLevel)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Expected port 9999 from env, got %d", cfg.Server.Port)
	}
	if cfg.OCR.UseGPU {
		t.Error("Expected GPU disabled from env")
	}
}

func TestEnvOverridesConfigFile(t *testing.T) {
	resetConfigState()
	defer resetConfigState()

	configFile := filepath.Join(t.TempDir(), "docrefine.yaml")
	if err := os.WriteFile(configFile, []byte("log_level: warn\n"), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	if err := os.Setenv("DOCREFINE_LOG_LEVEL", "debug"); err != nil {
		t.Fatalf("Failed to set env var: %v", err)
	}

	cfg, err := NewLoader().LoadWithFile(configFile)
	if err != nil {
		t.Fatalf("LoadWithFile() error: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("Expected env to override file, got log level %s", cfg.LogLevel)
	}
}

func TestConfigConverters(t *testing.T) {
	resetConfigState()

	tmpDir := t.TempDir()
	originalWd, _ := os.Getwd()
	defer func() { _ = os.Chdir(originalWd) }()

	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("Failed to change directory: %v", err)
	}

	cfg, err := NewLoader().Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	ocrCfg := cfg.OCRConfigFor()
	if ocrCfg.ImageHeight != cfg.OCR.ImageHeight {
		t.Errorf("OCRConfigFor() image height mismatch: %d vs %d", ocrCfg.ImageHeight, cfg.OCR.ImageHeight)
	}

	enhCfg := cfg.EnhanceConfigFor()
	if enhCfg.OverlapThreshold != cfg.Enhance.OverlapThreshold {
		t.Errorf("EnhanceConfigFor() overlap threshold mismatch: %g vs %g", enhCfg.OverlapThreshold, cfg.Enhance.OverlapThreshold)
	}
	if enhCfg.CanvasScale != cfg.Enhance.CanvasScale {
		t.Errorf("EnhanceConfigFor() canvas scale mismatch: %d vs %d", enhCfg.CanvasScale, cfg.Enhance.CanvasScale)
	}
}
