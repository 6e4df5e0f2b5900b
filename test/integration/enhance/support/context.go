// Package support provides the shared state and step definitions for the
// enhancement API feature tests.
package support

import (
	"image"
	"net/http/httptest"
	"sync"

	"github.com/MeKo-Tech/docrefine/internal/document"
	"github.com/MeKo-Tech/docrefine/internal/enhance"
	"github.com/MeKo-Tech/docrefine/internal/ocr"
	"github.com/MeKo-Tech/docrefine/internal/server"
)

// ScriptedRecognizer returns pre-programmed results instead of running real
// model inference, so scenarios control what "recognition" produces.
type ScriptedRecognizer struct {
	mu          sync.Mutex
	Lines       []ocr.Line
	Cells       []ocr.CellPrediction
	Err         error
	RegionCalls int
}

func (r *ScriptedRecognizer) RecognizeRegion(_ image.Image, _ bool) ([]ocr.Line, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.RegionCalls++
	return r.Lines, r.Err
}

func (r *ScriptedRecognizer) RecognizeTableStructure(_ image.Image) ([]ocr.CellPrediction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Cells, r.Err
}

func (r *ScriptedRecognizer) Ready() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Err == nil
}

// CallCount returns how many region recognitions were requested.
func (r *ScriptedRecognizer) CallCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.RegionCalls
}

// TestContext holds the state of one scenario: the in-process API server, the
// scripted recognizer behind it, the document being submitted, and the last
// responses observed.
type TestContext struct {
	Recognizer *ScriptedRecognizer
	Server     *httptest.Server

	Document *document.Document
	Options  enhance.Options

	TaskID             string
	LastHTTPStatusCode int
	LastResult         *server.ResultResponse
	LastErrorBody      string
}

// NewTestContext starts a fresh API server with a scripted recognizer.
func NewTestContext() *TestContext {
	rec := &ScriptedRecognizer{}
	srv := server.NewServer(server.Config{
		Host:          "localhost",
		Port:          0,
		CORSOrigin:    "*",
		MaxUploadMB:   50,
		TimeoutSec:    30,
		EnhanceConfig: enhance.DefaultConfig(),
	}, rec)

	return &TestContext{
		Recognizer: rec,
		Server:     httptest.NewServer(srv.Handler()),
	}
}

// Cleanup shuts the API server down.
func (testCtx *TestContext) Cleanup() {
	if testCtx.Server != nil {
		testCtx.Server.Close()
		testCtx.Server = nil
	}
}
