package ocr

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/disintegration/imaging"
	onnxrt "github.com/yalue/onnxruntime_go"
	"golang.org/x/text/unicode/norm"

	"github.com/MeKo-Tech/docrefine/internal/geometry"
)

// tableInputSize is the fixed square input of the table structure model.
const tableInputSize = 488

// recognizeLines segments a crop into horizontal text bands and runs the
// recognition session over each band.
func recognizeLines(sess *onnxrt.DynamicAdvancedSession, charset *Charset, img image.Image, height int) ([]Line, error) {
	if height <= 0 {
		height = 48
	}

	bands := lineBands(img)
	lines := make([]Line, 0, len(bands))
	for _, band := range bands {
		crop := imaging.Crop(img, band)
		text, conf, err := recognizeSingleLine(sess, charset, crop, height)
		if err != nil {
			return nil, err
		}
		if text == "" {
			continue
		}
		lines = append(lines, Line{Text: text, Confidence: conf})
	}
	return lines, nil
}

func recognizeSingleLine(sess *onnxrt.DynamicAdvancedSession, charset *Charset, img image.Image, height int) (string, float64, error) {
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return "", 0, nil
	}

	width := int(float64(b.Dx()) * float64(height) / float64(b.Dy()))
	if width < 8 {
		width = 8
	}
	resized := imaging.Resize(img, width, height, imaging.Linear)

	data, shape := imageToTensor(resized)
	probs, outShape, err := runSession(sess, data, shape)
	if err != nil {
		return "", 0, err
	}

	text, conf := decodeCTCGreedy(probs, outShape, charset)
	return norm.NFC.String(strings.TrimSpace(text)), conf, nil
}

// imageToTensor converts an image to a normalized NCHW float32 tensor with
// values in [-1, 1].
func imageToTensor(img image.Image) ([]float32, []int64) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	data := make([]float32, 3*h*w)
	plane := h * w
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			i := y*w + x
			data[i] = float32(r>>8)/127.5 - 1
			data[plane+i] = float32(g>>8)/127.5 - 1
			data[2*plane+i] = float32(bl>>8)/127.5 - 1
		}
	}
	return data, []int64{1, 3, int64(h), int64(w)}
}

func runSession(sess *onnxrt.DynamicAdvancedSession, data []float32, shape []int64) ([]float32, []int64, error) {
	input, err := onnxrt.NewTensor(onnxrt.NewShape(shape...), data)
	if err != nil {
		return nil, nil, fmt.Errorf("create input tensor: %w", err)
	}
	defer func() { _ = input.Destroy() }()

	outputs := []onnxrt.Value{nil}
	if err := sess.Run([]onnxrt.Value{input}, outputs); err != nil {
		return nil, nil, fmt.Errorf("inference failed: %w", err)
	}
	out, ok := outputs[0].(*onnxrt.Tensor[float32])
	if !ok {
		for _, o := range outputs {
			if o != nil {
				_ = o.Destroy()
			}
		}
		return nil, nil, fmt.Errorf("expected float32 output tensor, got %T", outputs[0])
	}
	result := make([]float32, len(out.GetData()))
	copy(result, out.GetData())
	outShape := out.GetShape()
	for _, o := range outputs {
		if o != nil {
			_ = o.Destroy()
		}
	}
	return result, outShape, nil
}

// decodeCTCGreedy collapses a [1, T, C] probability tensor into text via
// greedy decoding with blank index 0. Confidence is the mean probability of
// the kept steps.
func decodeCTCGreedy(probs []float32, shape []int64, charset *Charset) (string, float64) {
	if len(shape) != 3 || shape[0] != 1 {
		return "", 0
	}
	steps, classes := int(shape[1]), int(shape[2])
	if steps*classes > len(probs) || classes < 2 {
		return "", 0
	}

	var sb strings.Builder
	var sum float64
	kept := 0
	prev := -1
	for t := 0; t < steps; t++ {
		row := probs[t*classes : (t+1)*classes]
		idx, val := argmax(row)
		if idx != 0 && idx != prev {
			sb.WriteString(charset.Token(idx - 1))
			sum += float64(val)
			kept++
		}
		prev = idx
	}
	if kept == 0 {
		return "", 0
	}
	return sb.String(), sum / float64(kept)
}

func argmax(v []float32) (int, float32) {
	idx, best := 0, v[0]
	for i := 1; i < len(v); i++ {
		if v[i] > best {
			idx, best = i, v[i]
		}
	}
	return idx, best
}

// inferTableCells runs the table structure session over a cropped table image
// and maps the predictions back into the crop's pixel space. The model emits
// one row per cell: (row, col, x1, y1, x2, y2) with box coordinates
// normalized to [0, 1].
func inferTableCells(sess *onnxrt.DynamicAdvancedSession, img image.Image) ([]CellPrediction, error) {
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, nil
	}

	resized := imaging.Resize(img, tableInputSize, tableInputSize, imaging.Linear)
	data, shape := imageToTensor(resized)
	out, outShape, err := runSession(sess, data, shape)
	if err != nil {
		return nil, err
	}

	if len(outShape) != 3 || outShape[0] != 1 || outShape[2] < 6 {
		return nil, fmt.Errorf("unexpected table model output shape %v", outShape)
	}
	n, stride := int(outShape[1]), int(outShape[2])

	cells := make([]CellPrediction, 0, n)
	for i := 0; i < n; i++ {
		row := out[i*stride : (i+1)*stride]
		r, c := int(math.Round(float64(row[0]))), int(math.Round(float64(row[1])))
		if r < 0 || c < 0 {
			continue
		}
		cells = append(cells, CellPrediction{
			Row: r,
			Col: c,
			Box: scaleNormalizedBox(row[2], row[3], row[4], row[5], b.Dx(), b.Dy()),
		})
	}
	return cells, nil
}

func scaleNormalizedBox(x1, y1, x2, y2 float32, w, h int) geometry.PixelBox {
	return geometry.PixelBox{
		X1: int(float64(x1) * float64(w)),
		Y1: int(float64(y1) * float64(h)),
		X2: int(float64(x2) * float64(w)),
		Y2: int(float64(y2) * float64(h)),
	}
}

// lineBands finds horizontal text bands via a row ink profile. Rows whose
// mean darkness exceeds a small threshold are text; contiguous runs become
// bands. Falls back to the whole image when no band is found.
func lineBands(img image.Image) []image.Rectangle {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil
	}

	gray := imaging.Grayscale(img) // bounds normalized to the origin
	dark := make([]float64, h)
	for y := 0; y < h; y++ {
		var sum float64
		for x := 0; x < w; x++ {
			c := color.GrayModel.Convert(gray.At(x, y)).(color.Gray)
			sum += 1 - float64(c.Y)/255
		}
		dark[y] = sum / float64(w)
	}

	const inkThreshold = 0.02
	var bands []image.Rectangle
	start := -1
	for y := 0; y <= h; y++ {
		isInk := y < h && dark[y] > inkThreshold
		switch {
		case isInk && start < 0:
			start = y
		case !isInk && start >= 0:
			bands = append(bands, image.Rect(b.Min.X, b.Min.Y+start, b.Max.X, b.Min.Y+y))
			start = -1
		}
	}
	if len(bands) == 0 {
		return []image.Rectangle{b}
	}
	return bands
}
