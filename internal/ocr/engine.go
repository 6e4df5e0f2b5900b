package ocr

import (
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"

	onnxrt "github.com/yalue/onnxruntime_go"
)

// Engine implements Recognizer on top of ONNX Runtime sessions.
//
// The zero state is "not loaded". The first call that needs a model takes the
// mutex, performs one loading attempt, and settles the engine as either ready
// or failed. Concurrent first-use from multiple documents blocks on the same
// mutex; later calls read the settled flags without re-entering the loading
// logic.
type Engine struct {
	cfg Config

	mu       sync.Mutex
	loaded   bool
	failed   bool
	device   string
	recSess  *onnxrt.DynamicAdvancedSession
	mathSess *onnxrt.DynamicAdvancedSession
	tabSess  *onnxrt.DynamicAdvancedSession
	charset  *Charset
}

// NewEngine creates an engine. No models are touched until first use.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Ready triggers lazy loading if needed and reports whether the engine is
// usable.
func (e *Engine) Ready() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ensureLoadedLocked()
	return e.loaded
}

// Close releases the underlying sessions.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, s := range []*onnxrt.DynamicAdvancedSession{e.recSess, e.mathSess, e.tabSess} {
		if s != nil {
			if err := s.Destroy(); err != nil {
				slog.Warn("Failed to destroy ONNX session", "error", err)
			}
		}
	}
	e.recSess, e.mathSess, e.tabSess = nil, nil, nil
	e.loaded = false
	return nil
}

// ensureLoadedLocked performs the one-shot load. Callers must hold e.mu.
func (e *Engine) ensureLoadedLocked() {
	if e.loaded || e.failed {
		return
	}

	if err := e.load(); err != nil {
		// Settle as failed; from here on every call is a no-op for the
		// caller, who keeps the original text/bbox.
		e.failed = true
		slog.Error("Failed to load OCR models, enhancement disabled", "error", err)
		return
	}
	e.loaded = true
	slog.Info("OCR models loaded", "device", e.device)
}

func (e *Engine) load() error {
	if e.cfg.RecognitionModelPath == "" || e.cfg.TableModelPath == "" {
		return fmt.Errorf("model paths not configured")
	}
	for _, p := range []string{e.cfg.RecognitionModelPath, e.cfg.TableModelPath} {
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("model file not found: %s", p)
		}
	}

	charset, err := LoadCharset(e.cfg.DictPath)
	if err != nil {
		return fmt.Errorf("failed to load dictionary: %w", err)
	}

	if err := setLibraryPath(); err != nil {
		return fmt.Errorf("failed to locate ONNX Runtime library: %w", err)
	}
	if !onnxrt.IsInitialized() {
		if err := onnxrt.InitializeEnvironment(); err != nil {
			return fmt.Errorf("failed to initialize ONNX Runtime: %w", err)
		}
	}

	// Accelerated device first, general-purpose fallback.
	if e.cfg.UseGPU {
		if err := e.createSessions(true); err == nil {
			e.device = "cuda"
			e.charset = charset
			return nil
		}
		slog.Warn("CUDA session creation failed, falling back to CPU")
	}
	if err := e.createSessions(false); err != nil {
		return err
	}
	e.device = "cpu"
	e.charset = charset
	return nil
}

func (e *Engine) createSessions(useGPU bool) error {
	rec, err := e.newSession(e.cfg.RecognitionModelPath, useGPU)
	if err != nil {
		return err
	}
	tab, err := e.newSession(e.cfg.TableModelPath, useGPU)
	if err != nil {
		_ = rec.Destroy()
		return err
	}
	var math *onnxrt.DynamicAdvancedSession
	if e.cfg.FormulaModelPath != "" {
		math, err = e.newSession(e.cfg.FormulaModelPath, useGPU)
		if err != nil {
			_ = rec.Destroy()
			_ = tab.Destroy()
			return err
		}
	}
	e.recSess, e.tabSess, e.mathSess = rec, tab, math
	return nil
}

func (e *Engine) newSession(modelPath string, useGPU bool) (*onnxrt.DynamicAdvancedSession, error) {
	inputs, outputs, err := onnxrt.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get model input/output info for %s: %w", modelPath, err)
	}
	if len(inputs) != 1 {
		return nil, fmt.Errorf("expected 1 input in %s, got %d", modelPath, len(inputs))
	}

	opts, err := onnxrt.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer func() {
		if err := opts.Destroy(); err != nil {
			slog.Warn("Failed to destroy session options", "error", err)
		}
	}()

	if useGPU {
		cudaOpts, err := onnxrt.NewCUDAProviderOptions()
		if err != nil {
			return nil, fmt.Errorf("CUDA provider unavailable: %w", err)
		}
		defer func() { _ = cudaOpts.Destroy() }()
		if err := cudaOpts.Update(map[string]string{"device_id": strconv.Itoa(e.cfg.GPUDeviceID)}); err != nil {
			return nil, fmt.Errorf("failed to update CUDA provider options: %w", err)
		}
		if err := opts.AppendExecutionProviderCUDA(cudaOpts); err != nil {
			return nil, fmt.Errorf("failed to append CUDA execution provider: %w", err)
		}
	}
	if e.cfg.NumThreads > 0 {
		if err := opts.SetIntraOpNumThreads(e.cfg.NumThreads); err != nil {
			return nil, fmt.Errorf("failed to set thread count: %w", err)
		}
	}

	outNames := make([]string, len(outputs))
	for i, o := range outputs {
		outNames[i] = o.Name
	}
	sess, err := onnxrt.NewDynamicAdvancedSession(modelPath, []string{inputs[0].Name}, outNames, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session for %s: %w", modelPath, err)
	}
	return sess, nil
}

// RecognizeRegion implements Recognizer.
func (e *Engine) RecognizeRegion(img image.Image, mathMode bool) ([]Line, error) {
	e.mu.Lock()
	e.ensureLoadedLocked()
	if !e.loaded {
		e.mu.Unlock()
		return nil, ErrModelUnavailable
	}
	sess := e.recSess
	if mathMode && e.mathSess != nil {
		sess = e.mathSess
	}
	charset := e.charset
	height := e.cfg.ImageHeight
	e.mu.Unlock()

	if img == nil {
		return nil, fmt.Errorf("input image is nil")
	}
	return recognizeLines(sess, charset, img, height)
}

// RecognizeTableStructure implements Recognizer.
func (e *Engine) RecognizeTableStructure(img image.Image) ([]CellPrediction, error) {
	e.mu.Lock()
	e.ensureLoadedLocked()
	if !e.loaded {
		e.mu.Unlock()
		return nil, ErrModelUnavailable
	}
	sess := e.tabSess
	e.mu.Unlock()

	if img == nil {
		return nil, fmt.Errorf("input image is nil")
	}
	return inferTableCells(sess, img)
}

// setLibraryPath points ONNX Runtime at a shared library, honoring an
// explicit override before probing well-known locations.
func setLibraryPath() error {
	if path := os.Getenv("ONNXRUNTIME_LIB_PATH"); path != "" {
		onnxrt.SetSharedLibraryPath(path)
		return nil
	}

	var name string
	switch runtime.GOOS {
	case "darwin":
		name = "libonnxruntime.dylib"
	case "windows":
		name = "onnxruntime.dll"
	default:
		name = "libonnxruntime.so"
	}

	candidates := []string{
		filepath.Join("/usr/local/lib", name),
		filepath.Join("/usr/lib", name),
		filepath.Join("onnxruntime", "lib", name),
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			onnxrt.SetSharedLibraryPath(p)
			return nil
		}
	}
	return fmt.Errorf("onnxruntime shared library %s not found", name)
}
