// Package enhance re-examines a converted document and selectively re-runs
// recognition on regions whose extracted text looks corrupted or
// formula-like, and corrects table cell geometry with a structure model.
//
// The workflow is strictly best-effort: any failure keeps the original value
// and is logged, never propagated. Output text and boxes are either the
// original or a validated improvement.
package enhance

import (
	"github.com/MeKo-Tech/docrefine/internal/geometry"
)

// Options are the two independent per-task enhancement flags. When both are
// false the whole workflow is an identity transform.
type Options struct {
	FormulaEnrichment bool `json:"enable_formula_enrichment"`
	EncodingFix       bool `json:"enable_encoding_fix"`
}

// Enabled reports whether any enhancement is requested.
func (o Options) Enabled() bool { return o.FormulaEnrichment || o.EncodingFix }

// Config collects the tuned constants of the workflow. The defaults are
// empirical; they are exposed as fields rather than hidden literals so they
// can be overridden without a rebuild.
type Config struct {
	// OverlapThreshold is the fraction of a text box that must sit inside a
	// non-text box before the text is presumed baked into a figure and
	// skipped.
	OverlapThreshold float64
	// CellMargin pulls each written-back cell edge inward, in document
	// units, stripping cell border artifacts.
	CellMargin float64
	// CropPadding expands each recognition crop by this many pixels per
	// side, clamped to the image bounds.
	CropPadding int
	// CanvasScale is the blank-canvas multiplier the padded crop is centered
	// on before recognition; models trained on larger receptive fields do
	// poorly on tight crops.
	CanvasScale int
	// MinLineConfidence is the threshold a recognized line must clear to be
	// kept.
	MinLineConfidence float64
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		OverlapThreshold:  0.05,
		CellMargin:        geometry.DefaultCellMargin,
		CropPadding:       5,
		CanvasScale:       2,
		MinLineConfidence: 0.5,
	}
}

// Stats summarizes one enhancement run.
type Stats struct {
	PagesProcessed int
	PagesSkipped   int
	CellsRewritten int
	TextsReplaced  int
	CellsReplaced  int
}

// Replacements returns the total number of text payloads replaced.
func (s Stats) Replacements() int { return s.TextsReplaced + s.CellsReplaced }
