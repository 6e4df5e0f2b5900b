package support

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"net/http"
	"strings"
	"time"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/docrefine/internal/document"
	"github.com/MeKo-Tech/docrefine/internal/enhance"
	"github.com/MeKo-Tech/docrefine/internal/geometry"
	"github.com/MeKo-Tech/docrefine/internal/ocr"
	"github.com/MeKo-Tech/docrefine/internal/server"
)

// RegisterSteps wires all step definitions into the scenario context.
func (testCtx *TestContext) RegisterSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a converted document with the text "([^"]*)"$`, testCtx.aDocumentWithText)
	sc.Step(`^the text is fully covered by a picture region$`, testCtx.textCoveredByPicture)
	sc.Step(`^the document contains a table with a misplaced cell$`, testCtx.documentContainsTable)
	sc.Step(`^the recognizer would return "([^"]*)" with confidence (\d+\.?\d*)$`, testCtx.recognizerReturns)
	sc.Step(`^the structure model predicts the cell at rows? (\d+), column (\d+) spanning pixels \((\d+), (\d+)\) to \((\d+), (\d+)\)$`, testCtx.structureModelPredicts)
	sc.Step(`^the recognition models are unavailable$`, testCtx.modelsUnavailable)

	sc.Step(`^I submit the document with encoding fix enabled$`, testCtx.submitWithEncodingFix)
	sc.Step(`^I submit the document with formula enrichment enabled$`, testCtx.submitWithFormulaEnrichment)
	sc.Step(`^I submit the document with no enhancement options$`, testCtx.submitWithoutOptions)
	sc.Step(`^I fetch the task result$`, testCtx.fetchResult)
	sc.Step(`^I fetch the task result again$`, testCtx.fetchResult)

	sc.Step(`^the returned text should be "([^"]*)"$`, testCtx.returnedTextShouldBe)
	sc.Step(`^the markdown content should contain "([^"]*)"$`, testCtx.markdownShouldContain)
	sc.Step(`^the recognizer should not have been called$`, testCtx.recognizerNotCalled)
	sc.Step(`^the server should respond with status (\d+)$`, testCtx.serverStatusShouldBe)
	sc.Step(`^the first table cell should start at document position \((\d+), (\d+)\)$`, testCtx.firstCellShouldStartAt)
}

// aDocumentWithText builds a one-page document whose page is 200x100 document
// units rendered at 200x100 pixels, with one text span at a known position.
func (testCtx *TestContext) aDocumentWithText(text string) error {
	uri, err := document.EncodeDataURI(image.NewRGBA(image.Rect(0, 0, 200, 100)))
	if err != nil {
		return fmt.Errorf("failed to encode page image: %w", err)
	}

	testCtx.Document = &document.Document{
		Name: "scenario",
		Texts: []*document.TextItem{{
			Text: text,
			Prov: []document.Provenance{{
				PageNo: 1,
				BBox:   geometry.BBox{L: 10, T: 10, R: 60, B: 30, Origin: geometry.TopLeft},
			}},
		}},
		Pages: map[int]*document.Page{
			1: {
				PageNo: 1,
				Size:   document.Size{Width: 200, Height: 100},
				Image:  &document.ImageRef{MimeType: "image/png", URI: uri},
			},
		},
	}
	return nil
}

func (testCtx *TestContext) textCoveredByPicture() error {
	if testCtx.Document == nil {
		return fmt.Errorf("no document prepared")
	}
	testCtx.Document.Pictures = []*document.PictureItem{{
		Prov: []document.Provenance{{
			PageNo: 1,
			BBox:   geometry.BBox{L: 0, T: 0, R: 100, B: 50, Origin: geometry.TopLeft},
		}},
	}}
	return nil
}

func (testCtx *TestContext) documentContainsTable() error {
	if testCtx.Document == nil {
		return fmt.Errorf("no document prepared")
	}
	testCtx.Document.Tables = []*document.TableItem{{
		Prov: []document.Provenance{{
			PageNo: 1,
			BBox:   geometry.BBox{L: 20, T: 40, R: 120, B: 90, Origin: geometry.TopLeft},
		}},
		Data: document.TableData{TableCells: []*document.TableCell{{
			Text:     "cell",
			BBox:     geometry.BBox{L: 90, T: 70, R: 110, B: 85, Origin: geometry.TopLeft},
			StartRow: 0,
			StartCol: 0,
		}}},
	}}
	return nil
}

func (testCtx *TestContext) recognizerReturns(text string, confidence float64) error {
	testCtx.Recognizer.Lines = []ocr.Line{{Text: text, Confidence: confidence}}
	return nil
}

func (testCtx *TestContext) structureModelPredicts(row, col, x1, y1, x2, y2 int) error {
	testCtx.Recognizer.Cells = append(testCtx.Recognizer.Cells, ocr.CellPrediction{
		Row: row,
		Col: col,
		Box: geometry.PixelBox{X1: x1, Y1: y1, X2: x2, Y2: y2},
	})
	return nil
}

func (testCtx *TestContext) modelsUnavailable() error {
	testCtx.Recognizer.Err = ocr.ErrModelUnavailable
	return nil
}

func (testCtx *TestContext) submitWithEncodingFix() error {
	return testCtx.submit(enhance.Options{EncodingFix: true})
}

func (testCtx *TestContext) submitWithFormulaEnrichment() error {
	return testCtx.submit(enhance.Options{FormulaEnrichment: true})
}

func (testCtx *TestContext) submitWithoutOptions() error {
	return testCtx.submit(enhance.Options{})
}

func (testCtx *TestContext) submit(opts enhance.Options) error {
	if testCtx.Document == nil {
		return fmt.Errorf("no document prepared")
	}
	testCtx.Options = opts

	body, err := json.Marshal(server.EnhanceRequest{Options: opts, Document: testCtx.Document})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := http.Post(testCtx.Server.URL+"/v1/enhance", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to submit document: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	testCtx.LastHTTPStatusCode = resp.StatusCode
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("submit returned status %d", resp.StatusCode)
	}

	var tr server.TaskResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return fmt.Errorf("failed to decode task response: %w", err)
	}
	testCtx.TaskID = tr.TaskID

	return testCtx.waitForSettled()
}

func (testCtx *TestContext) waitForSettled() error {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(testCtx.Server.URL + "/v1/status/poll/" + testCtx.TaskID)
		if err != nil {
			return fmt.Errorf("failed to poll task status: %w", err)
		}
		var tr server.TaskResponse
		err = json.NewDecoder(resp.Body).Decode(&tr)
		_ = resp.Body.Close()
		if err != nil {
			return fmt.Errorf("failed to decode status response: %w", err)
		}
		if tr.TaskStatus == server.TaskSuccess || tr.TaskStatus == server.TaskFailure {
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}
	return fmt.Errorf("task %s did not settle in time", testCtx.TaskID)
}

func (testCtx *TestContext) fetchResult() error {
	resp, err := http.Get(testCtx.Server.URL + "/v1/result/" + testCtx.TaskID)
	if err != nil {
		return fmt.Errorf("failed to fetch result: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastResult = nil
	if resp.StatusCode != http.StatusOK {
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(resp.Body)
		testCtx.LastErrorBody = buf.String()
		return nil
	}

	var rr server.ResultResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return fmt.Errorf("failed to decode result response: %w", err)
	}
	testCtx.LastResult = &rr
	return nil
}

func (testCtx *TestContext) returnedTextShouldBe(expected string) error {
	if testCtx.LastResult == nil || testCtx.LastResult.Document.JSONContent == nil {
		return fmt.Errorf("no result document available (status %d)", testCtx.LastHTTPStatusCode)
	}
	texts := testCtx.LastResult.Document.JSONContent.Texts
	if len(texts) == 0 {
		return fmt.Errorf("result document has no text spans")
	}
	if texts[0].Text != expected {
		return fmt.Errorf("expected text %q, got %q", expected, texts[0].Text)
	}
	return nil
}

func (testCtx *TestContext) markdownShouldContain(expected string) error {
	if testCtx.LastResult == nil {
		return fmt.Errorf("no result available (status %d)", testCtx.LastHTTPStatusCode)
	}
	if !strings.Contains(testCtx.LastResult.Document.MDContent, expected) {
		return fmt.Errorf("markdown content does not contain %q:\n%s", expected, testCtx.LastResult.Document.MDContent)
	}
	return nil
}

func (testCtx *TestContext) recognizerNotCalled() error {
	if calls := testCtx.Recognizer.CallCount(); calls != 0 {
		return fmt.Errorf("expected no recognition calls, got %d", calls)
	}
	return nil
}

func (testCtx *TestContext) serverStatusShouldBe(expected int) error {
	if testCtx.LastHTTPStatusCode != expected {
		return fmt.Errorf("expected status %d, got %d", expected, testCtx.LastHTTPStatusCode)
	}
	return nil
}

func (testCtx *TestContext) firstCellShouldStartAt(l, t int) error {
	if testCtx.LastResult == nil || testCtx.LastResult.Document.JSONContent == nil {
		return fmt.Errorf("no result document available (status %d)", testCtx.LastHTTPStatusCode)
	}
	tables := testCtx.LastResult.Document.JSONContent.Tables
	if len(tables) == 0 || len(tables[0].Data.TableCells) == 0 {
		return fmt.Errorf("result document has no table cells")
	}
	box := tables[0].Data.TableCells[0].BBox
	if box.L != float64(l) || box.T != float64(t) {
		return fmt.Errorf("expected cell to start at (%d, %d), got (%g, %g)", l, t, box.L, box.T)
	}
	return nil
}
