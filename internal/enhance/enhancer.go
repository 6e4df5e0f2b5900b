package enhance

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/docrefine/internal/document"
	"github.com/MeKo-Tech/docrefine/internal/geometry"
	"github.com/MeKo-Tech/docrefine/internal/ocr"
	"github.com/MeKo-Tech/docrefine/internal/textquality"
)

// Enhancer drives the per-document, per-page enhancement workflow.
type Enhancer struct {
	cfg      Config
	opts     Options
	engine   ocr.Recognizer
	analyzer textquality.Analyzer
}

// New creates an enhancer with default tuning.
func New(engine ocr.Recognizer, opts Options) *Enhancer {
	return NewWithConfig(engine, opts, DefaultConfig())
}

// NewWithConfig creates an enhancer with explicit tuning.
func NewWithConfig(engine ocr.Recognizer, opts Options, cfg Config) *Enhancer {
	return &Enhancer{cfg: cfg, opts: opts, engine: engine}
}

// Enhance mutates text and bbox fields of the document's elements in place.
// Elements are never created, deleted or reordered. When neither enhancement
// flag is set the document is returned untouched.
func (e *Enhancer) Enhance(doc *document.Document) Stats {
	var stats Stats
	if doc == nil || !e.opts.Enabled() {
		return stats
	}

	for _, pageNo := range doc.PageNumbers() {
		page := doc.Pages[pageNo]
		slog.Info("Processing page for document enhancement", "page", pageNo)

		pageImg, err := document.ResolvePageImage(page)
		if err != nil {
			// Degraded mode: this page keeps its original content.
			slog.Warn("Could not resolve page image, skipping page", "page", pageNo, "error", err)
			stats.PagesSkipped++
			continue
		}

		e.enhancePage(doc, page, pageNo, pageImg, &stats)
		stats.PagesProcessed++
	}
	return stats
}

func (e *Enhancer) enhancePage(doc *document.Document, page *document.Page, pageNo int, pageImg image.Image, stats *Stats) {
	imgW := pageImg.Bounds().Dx()
	imgH := pageImg.Bounds().Dy()
	pdfW := page.Size.Width
	pdfH := page.Size.Height
	if pdfW <= 0 || pdfH <= 0 || imgW == 0 || imgH == 0 {
		slog.Warn("Page has degenerate dimensions, skipping page", "page", pageNo)
		return
	}

	occlusions := e.collectNonTextBoxes(doc, pageNo, pdfW, pdfH, imgW, imgH)
	e.processTables(doc, pageNo, pageImg, pdfW, pdfH, imgW, imgH, stats)
	e.processTexts(doc, pageNo, pageImg, pdfW, pdfH, imgW, imgH, occlusions, stats)
}

// collectNonTextBoxes builds the occlusion set: pixel boxes of every picture,
// form, key-value and table element whose first provenance record targets
// this page.
func (e *Enhancer) collectNonTextBoxes(doc *document.Document, pageNo int, pdfW, pdfH float64, imgW, imgH int) []geometry.PixelBox {
	var boxes []geometry.PixelBox
	for _, item := range doc.NonTextItems() {
		prov, ok := document.FirstProv(item)
		if !ok || prov.PageNo != pageNo {
			continue
		}
		boxes = append(boxes, geometry.ToPixelBBox(prov.BBox, pdfW, pdfH, imgW, imgH))
	}
	return boxes
}

func (e *Enhancer) processTables(doc *document.Document, pageNo int, pageImg image.Image, pdfW, pdfH float64, imgW, imgH int, stats *Stats) {
	for _, table := range doc.Tables {
		prov, ok := document.FirstProv(table)
		if !ok || prov.PageNo != pageNo {
			continue
		}

		tableBox := geometry.ToPixelBBox(prov.BBox, pdfW, pdfH, imgW, imgH)
		if err := e.correctTableStructure(table, pageImg, tableBox, pdfW, pdfH, imgW, imgH, stats); err != nil {
			if !errors.Is(err, ocr.ErrModelUnavailable) {
				slog.Warn("Table structure correction failed", "page", pageNo, "error", err)
			}
		}

		for _, cell := range table.Data.TableCells {
			res := e.analyzer.Classify(cell.Text, e.opts.FormulaEnrichment, e.opts.EncodingFix)
			if !res.Any() {
				continue
			}
			cellBox := geometry.ToPixelBBox(cell.BBox, pdfW, pdfH, imgW, imgH)
			enhanced := e.recognizeRegion(pageImg, cellBox, cell.Text, res.Formula)
			if enhanced != "" && enhanced != cell.Text {
				slog.Info("Enhanced table cell text", "page", pageNo, "old", cell.Text, "new", enhanced)
				cell.Text = enhanced
				stats.CellsReplaced++
			}
		}
	}
}

// correctTableStructure crops the table region, asks the structure model for
// the cell grid and rewrites the geometry of every document cell matched by
// (row, col). Unmatched cells are left untouched. Predictions are in the
// pixel space of the crop, so the clamped box that produced the crop is also
// the offset for mapping them back.
func (e *Enhancer) correctTableStructure(table *document.TableItem, pageImg image.Image, tableBox geometry.PixelBox, pdfW, pdfH float64, imgW, imgH int, stats *Stats) error {
	tableBox = tableBox.Clamp(imgW, imgH)
	crop := cropBox(pageImg, tableBox)
	if crop.Bounds().Dx() == 0 || crop.Bounds().Dy() == 0 {
		return nil
	}

	predictions, err := e.engine.RecognizeTableStructure(crop)
	if err != nil {
		return err
	}
	if len(predictions) == 0 {
		return nil
	}

	predicted := make(map[[2]int]ocr.CellPrediction, len(predictions))
	for _, p := range predictions {
		predicted[[2]int{p.Row, p.Col}] = p
	}

	for _, cell := range table.Data.TableCells {
		p, ok := predicted[[2]int{cell.StartRow, cell.StartCol}]
		if !ok {
			continue
		}
		cell.BBox = geometry.CellToDocBBox(p.Box, tableBox, imgW, imgH, pdfW, pdfH, e.cfg.CellMargin)
		stats.CellsRewritten++
	}
	return nil
}

func (e *Enhancer) processTexts(doc *document.Document, pageNo int, pageImg image.Image, pdfW, pdfH float64, imgW, imgH int, occlusions []geometry.PixelBox, stats *Stats) {
	for _, text := range doc.Texts {
		prov, ok := document.FirstProv(text)
		if !ok || prov.PageNo != pageNo {
			continue
		}

		textBox := geometry.ToPixelBBox(prov.BBox, pdfW, pdfH, imgW, imgH)
		if e.occluded(textBox, occlusions) {
			slog.Info("Skipping text overlapping a non-text region", "page", pageNo, "text", truncate(text.Text, 50))
			continue
		}

		res := e.analyzer.Classify(text.Text, e.opts.FormulaEnrichment, e.opts.EncodingFix)
		if !res.Any() {
			continue
		}

		enhanced := e.recognizeRegion(pageImg, textBox, text.Text, res.Formula)
		if enhanced != "" && enhanced != text.Text {
			slog.Info("Enhanced text", "page", pageNo, "old", truncate(text.Text, 50), "new", truncate(enhanced, 50))
			text.Text = enhanced
			stats.TextsReplaced++
		}
	}
}

// occluded reports whether the text box overlaps any non-text box beyond the
// threshold. The ratio is normalized by the text box's own area.
func (e *Enhancer) occluded(textBox geometry.PixelBox, occlusions []geometry.PixelBox) bool {
	for _, other := range occlusions {
		if geometry.OverlapRatio(textBox, other) > e.cfg.OverlapThreshold {
			return true
		}
	}
	return false
}

// recognizeRegion crops the region with padding, centers it on a blank
// upscaled canvas and runs recognition. Lines clearing the confidence
// threshold are joined with single spaces; anything else keeps oldText.
func (e *Enhancer) recognizeRegion(pageImg image.Image, box geometry.PixelBox, oldText string, mathMode bool) string {
	imgW := pageImg.Bounds().Dx()
	imgH := pageImg.Bounds().Dy()

	padded := box.Pad(e.cfg.CropPadding).Clamp(imgW, imgH)
	if padded.Width() <= 0 || padded.Height() <= 0 {
		return oldText
	}

	crop := cropBox(pageImg, padded)
	canvas := centerOnCanvas(crop, e.cfg.CanvasScale)

	lines, err := e.engine.RecognizeRegion(canvas, mathMode)
	if err != nil {
		if !errors.Is(err, ocr.ErrModelUnavailable) {
			slog.Warn("Region recognition failed", "error", err)
		}
		return oldText
	}

	parts := make([]string, 0, len(lines))
	for _, line := range lines {
		if line.Confidence > e.cfg.MinLineConfidence {
			parts = append(parts, line.Text)
		}
	}

	enhanced := strings.TrimSpace(strings.Join(parts, " "))
	if enhanced == "" {
		return oldText
	}
	return enhanced
}

func cropBox(img image.Image, box geometry.PixelBox) image.Image {
	return imaging.Crop(img, image.Rect(box.X1, box.Y1, box.X2, box.Y2))
}

// centerOnCanvas places the crop at the center of a white canvas scale times
// wider and taller than the crop.
func centerOnCanvas(crop image.Image, scale int) image.Image {
	if scale <= 1 {
		return crop
	}
	w := crop.Bounds().Dx()
	h := crop.Bounds().Dy()
	canvas := imaging.New(w*scale, h*scale, color.White)
	return imaging.Paste(canvas, crop, image.Pt((canvas.Bounds().Dx()-w)/2, (canvas.Bounds().Dy()-h)/2))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return fmt.Sprintf("%s...", string(r[:n]))
}
