// Package ocr wraps the external recognition models behind a small adapter.
// Models are loaded lazily and exactly once; loading prefers an accelerated
// device and falls back to CPU. A failed load leaves the adapter disabled:
// every call then reports ErrModelUnavailable so callers keep their original
// values, and nothing is retried.
package ocr

import (
	"errors"
	"image"

	"github.com/MeKo-Tech/docrefine/internal/geometry"
)

// ErrModelUnavailable is returned by every operation once model loading has
// settled in the failed state.
var ErrModelUnavailable = errors.New("ocr models are not available")

// Line is one recognized text line with its model confidence.
type Line struct {
	Text       string
	Confidence float64
}

// CellPrediction is one table cell inferred by the structure model. Box is in
// the pixel space of the supplied (cropped) table image.
type CellPrediction struct {
	Row int
	Col int
	Box geometry.PixelBox
}

// Recognizer is the adapter surface the enhancement workflow consumes.
type Recognizer interface {
	// RecognizeRegion runs text recognition over a single image crop.
	// mathMode selects the formula-tuned model when one is configured.
	RecognizeRegion(img image.Image, mathMode bool) ([]Line, error)
	// RecognizeTableStructure infers the cell grid of a cropped table image.
	RecognizeTableStructure(img image.Image) ([]CellPrediction, error)
	// Ready reports whether the models reached a usable state. It triggers
	// lazy loading on first use.
	Ready() bool
}

// Config holds model paths and runtime options for the adapter.
type Config struct {
	RecognitionModelPath string // text recognition model (ONNX)
	FormulaModelPath     string // optional formula-tuned recognition model
	TableModelPath       string // table structure model (ONNX)
	DictPath             string // character dictionary for CTC decoding
	ImageHeight          int    // recognition input height
	NumThreads           int    // intra-op threads (0 = runtime default)
	UseGPU               bool   // try CUDA first, fall back to CPU
	GPUDeviceID          int
}

// DefaultConfig returns the default adapter configuration. Model paths are
// empty and must be supplied by the caller or the config layer.
func DefaultConfig() Config {
	return Config{
		ImageHeight: 48,
		NumThreads:  0,
		UseGPU:      true,
		GPUDeviceID: 0,
	}
}
