package enhance

import (
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/docrefine/internal/document"
	"github.com/MeKo-Tech/docrefine/internal/geometry"
	"github.com/MeKo-Tech/docrefine/internal/ocr"
)

// stubRecognizer scripts responses for the adapter surface.
type stubRecognizer struct {
	lines         []ocr.Line
	lineErr       error
	cells         []ocr.CellPrediction
	cellErr       error
	regionCalls   int
	mathModeCalls int
	tableCalls    int
}

func (s *stubRecognizer) RecognizeRegion(_ image.Image, mathMode bool) ([]ocr.Line, error) {
	s.regionCalls++
	if mathMode {
		s.mathModeCalls++
	}
	return s.lines, s.lineErr
}

func (s *stubRecognizer) RecognizeTableStructure(_ image.Image) ([]ocr.CellPrediction, error) {
	s.tableCalls++
	return s.cells, s.cellErr
}

func (s *stubRecognizer) Ready() bool { return s.lineErr == nil }

func pageImageURI(t *testing.T) string {
	t.Helper()
	uri, err := document.EncodeDataURI(image.NewRGBA(image.Rect(0, 0, 200, 100)))
	require.NoError(t, err)
	return uri
}

func topLeftBBox(l, tt, r, b float64) geometry.BBox {
	return geometry.BBox{L: l, T: tt, R: r, B: b, Origin: geometry.TopLeft}
}

// testDoc builds a one-page document with one garbled text span. The page is
// 200x100 document units rendered at 200x100 pixels, so boxes map 1:1.
func testDoc(t *testing.T, text string) *document.Document {
	t.Helper()
	return &document.Document{
		Texts: []*document.TextItem{{
			Text: text,
			Prov: []document.Provenance{{PageNo: 1, BBox: topLeftBBox(10, 10, 60, 30)}},
		}},
		Pages: map[int]*document.Page{
			1: {
				PageNo: 1,
				Size:   document.Size{Width: 200, Height: 100},
				Image:  &document.ImageRef{URI: pageImageURI(t)},
			},
		},
	}
}

func TestEnhance_IdentityWhenDisabled(t *testing.T) {
	stub := &stubRecognizer{lines: []ocr.Line{{Text: "fixed", Confidence: 0.9}}}
	doc := testDoc(t, "garbled � text")

	stats := New(stub, Options{}).Enhance(doc)

	assert.Equal(t, "garbled � text", doc.Texts[0].Text)
	assert.Zero(t, stats.Replacements())
	assert.Zero(t, stub.regionCalls, "disabled workflow must not touch the engine")
}

func TestEnhance_NilDocument(t *testing.T) {
	stats := New(&stubRecognizer{}, Options{EncodingFix: true}).Enhance(nil)
	assert.Zero(t, stats.PagesProcessed)
}

func TestEnhance_ReplacesGarbledText(t *testing.T) {
	stub := &stubRecognizer{lines: []ocr.Line{{Text: "clean text", Confidence: 0.9}}}
	doc := testDoc(t, "garbled � text")

	stats := New(stub, Options{EncodingFix: true}).Enhance(doc)

	assert.Equal(t, "clean text", doc.Texts[0].Text)
	assert.Equal(t, 1, stats.TextsReplaced)
	assert.Equal(t, 1, stats.PagesProcessed)
}

func TestEnhance_LeavesHealthyTextAlone(t *testing.T) {
	stub := &stubRecognizer{lines: []ocr.Line{{Text: "should not appear", Confidence: 0.9}}}
	doc := testDoc(t, "perfectly ordinary prose")

	stats := New(stub, Options{EncodingFix: true, FormulaEnrichment: true}).Enhance(doc)

	assert.Equal(t, "perfectly ordinary prose", doc.Texts[0].Text)
	assert.Zero(t, stats.TextsReplaced)
	assert.Zero(t, stub.regionCalls)
}

func TestEnhance_FormulaUsesMathMode(t *testing.T) {
	stub := &stubRecognizer{lines: []ocr.Line{{Text: "x2 + y2 = z2", Confidence: 0.9}}}
	doc := testDoc(t, "x2 garbled eq")

	New(stub, Options{FormulaEnrichment: true}).Enhance(doc)

	assert.Equal(t, 1, stub.mathModeCalls)
	assert.Equal(t, "x2 + y2 = z2", doc.Texts[0].Text)
}

func TestEnhance_KeepsOriginalOnEngineError(t *testing.T) {
	stub := &stubRecognizer{lineErr: errors.New("inference exploded"), cellErr: errors.New("inference exploded")}
	doc := testDoc(t, "garbled � text")

	stats := New(stub, Options{EncodingFix: true}).Enhance(doc)

	assert.Equal(t, "garbled � text", doc.Texts[0].Text)
	assert.Zero(t, stats.Replacements())
	assert.Equal(t, 1, stats.PagesProcessed, "engine failure must not skip the page")
}

func TestEnhance_KeepsOriginalWhenModelUnavailable(t *testing.T) {
	stub := &stubRecognizer{lineErr: ocr.ErrModelUnavailable}
	doc := testDoc(t, "garbled � text")

	stats := New(stub, Options{EncodingFix: true}).Enhance(doc)

	assert.Equal(t, "garbled � text", doc.Texts[0].Text)
	assert.Zero(t, stats.Replacements())
}

func TestEnhance_LowConfidenceKeepsOriginal(t *testing.T) {
	stub := &stubRecognizer{lines: []ocr.Line{{Text: "uncertain", Confidence: 0.2}}}
	doc := testDoc(t, "garbled � text")

	New(stub, Options{EncodingFix: true}).Enhance(doc)

	assert.Equal(t, "garbled � text", doc.Texts[0].Text)
}

func TestEnhance_JoinsConfidentLines(t *testing.T) {
	stub := &stubRecognizer{lines: []ocr.Line{
		{Text: "first", Confidence: 0.9},
		{Text: "dropped", Confidence: 0.3},
		{Text: "second", Confidence: 0.8},
	}}
	doc := testDoc(t, "garbled � text")

	New(stub, Options{EncodingFix: true}).Enhance(doc)

	assert.Equal(t, "first second", doc.Texts[0].Text)
}

func TestEnhance_SkipsOccludedText(t *testing.T) {
	stub := &stubRecognizer{lines: []ocr.Line{{Text: "fixed", Confidence: 0.9}}}
	doc := testDoc(t, "garbled � text")
	// Picture covering the text box entirely.
	doc.Pictures = []*document.PictureItem{{
		Prov: []document.Provenance{{PageNo: 1, BBox: topLeftBBox(0, 0, 100, 50)}},
	}}

	stats := New(stub, Options{EncodingFix: true}).Enhance(doc)

	assert.Equal(t, "garbled � text", doc.Texts[0].Text)
	assert.Zero(t, stats.TextsReplaced)
	assert.Zero(t, stub.regionCalls)
}

func TestEnhance_TinyOverlapIsNotOcclusion(t *testing.T) {
	stub := &stubRecognizer{lines: []ocr.Line{{Text: "fixed", Confidence: 0.9}}}
	doc := testDoc(t, "garbled � text")
	// Text box is 50x20 = 1000 px². A 5x2 = 10 px² corner overlap is 1%,
	// below the 5% threshold.
	doc.Pictures = []*document.PictureItem{{
		Prov: []document.Provenance{{PageNo: 1, BBox: topLeftBBox(55, 28, 120, 80)}},
	}}

	New(stub, Options{EncodingFix: true}).Enhance(doc)

	assert.Equal(t, "fixed", doc.Texts[0].Text)
}

func TestEnhance_SkipsPageWithoutImage(t *testing.T) {
	stub := &stubRecognizer{lines: []ocr.Line{{Text: "fixed", Confidence: 0.9}}}
	doc := testDoc(t, "garbled � text")
	doc.Pages[1].Image = nil

	stats := New(stub, Options{EncodingFix: true}).Enhance(doc)

	assert.Equal(t, "garbled � text", doc.Texts[0].Text)
	assert.Equal(t, 1, stats.PagesSkipped)
	assert.Zero(t, stats.PagesProcessed)
}

func TestEnhance_CorrectsTableCellGeometry(t *testing.T) {
	stub := &stubRecognizer{cells: []ocr.CellPrediction{
		{Row: 0, Col: 0, Box: geometry.PixelBox{X1: 0, Y1: 0, X2: 40, Y2: 20}},
	}}
	doc := testDoc(t, "healthy text")
	doc.Tables = []*document.TableItem{{
		Prov: []document.Provenance{{PageNo: 1, BBox: topLeftBBox(20, 40, 120, 90)}},
		Data: document.TableData{TableCells: []*document.TableCell{
			{Text: "cell", BBox: topLeftBBox(20, 40, 60, 60), StartRow: 0, StartCol: 0},
			{Text: "unmatched", BBox: topLeftBBox(60, 40, 120, 60), StartRow: 0, StartCol: 1},
		}},
	}}

	stats := New(stub, Options{EncodingFix: true}).Enhance(doc)

	require.Equal(t, 1, stub.tableCalls)
	assert.Equal(t, 1, stats.CellsRewritten)

	// 1:1 pixel mapping: predicted (0,0)-(40,20) offset by the table corner
	// (20,40) and shrunk by the default 4-unit margin.
	got := doc.Tables[0].Data.TableCells[0].BBox
	assert.InDelta(t, 24.0, got.L, 1e-9)
	assert.InDelta(t, 44.0, got.T, 1e-9)
	assert.InDelta(t, 56.0, got.R, 1e-9)
	assert.InDelta(t, 56.0, got.B, 1e-9)
	assert.Equal(t, geometry.TopLeft, got.Origin)

	// The unmatched cell keeps its geometry.
	assert.InDelta(t, 60.0, doc.Tables[0].Data.TableCells[1].BBox.L, 1e-9)
}

func TestEnhance_TableBoxPastPageEdgeAnchorsAtClampedCorner(t *testing.T) {
	stub := &stubRecognizer{cells: []ocr.CellPrediction{
		{Row: 0, Col: 0, Box: geometry.PixelBox{X1: 0, Y1: 0, X2: 40, Y2: 20}},
	}}
	doc := testDoc(t, "healthy text")
	// The table bbox starts 20 units left of the page. The crop the structure
	// model sees begins at page pixel 0, so its predictions must be offset by
	// the clamped corner, not the raw one.
	doc.Tables = []*document.TableItem{{
		Prov: []document.Provenance{{PageNo: 1, BBox: topLeftBBox(-20, 40, 120, 90)}},
		Data: document.TableData{TableCells: []*document.TableCell{
			{Text: "cell", BBox: topLeftBBox(0, 40, 40, 60), StartRow: 0, StartCol: 0},
		}},
	}}

	stats := New(stub, Options{EncodingFix: true}).Enhance(doc)

	require.Equal(t, 1, stats.CellsRewritten)
	got := doc.Tables[0].Data.TableCells[0].BBox
	assert.InDelta(t, 4.0, got.L, 1e-9)
	assert.InDelta(t, 44.0, got.T, 1e-9)
	assert.InDelta(t, 36.0, got.R, 1e-9)
	assert.InDelta(t, 56.0, got.B, 1e-9)
}

func TestEnhance_ReplacesGarbledCellText(t *testing.T) {
	stub := &stubRecognizer{lines: []ocr.Line{{Text: "42", Confidence: 0.95}}}
	doc := testDoc(t, "healthy text")
	doc.Tables = []*document.TableItem{{
		Prov: []document.Provenance{{PageNo: 1, BBox: topLeftBBox(20, 40, 120, 90)}},
		Data: document.TableData{TableCells: []*document.TableCell{
			{Text: "4�", BBox: topLeftBBox(20, 40, 60, 60), StartRow: 0, StartCol: 0},
		}},
	}}

	stats := New(stub, Options{EncodingFix: true}).Enhance(doc)

	assert.Equal(t, "42", doc.Tables[0].Data.TableCells[0].Text)
	assert.Equal(t, 1, stats.CellsReplaced)
	assert.Equal(t, 1, stats.Replacements())
}

func TestOptionsEnabled(t *testing.T) {
	assert.False(t, Options{}.Enabled())
	assert.True(t, Options{FormulaEnrichment: true}.Enabled())
	assert.True(t, Options{EncodingFix: true}.Enabled())
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.InDelta(t, 0.05, cfg.OverlapThreshold, 1e-9)
	assert.InDelta(t, geometry.DefaultCellMargin, cfg.CellMargin, 1e-9)
	assert.Equal(t, 5, cfg.CropPadding)
	assert.Equal(t, 2, cfg.CanvasScale)
	assert.InDelta(t, 0.5, cfg.MinLineConfidence, 1e-9)
}
