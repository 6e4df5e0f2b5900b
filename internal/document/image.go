package document

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
)

var errNotDataURI = errors.New("page image URI is not a data URI")

// DecodeDataURI decodes an embedded page image from its data URI form:
// a header segment, a comma, and a base64 payload.
func DecodeDataURI(uri string) (image.Image, error) {
	if !strings.HasPrefix(uri, "data:") {
		return nil, errNotDataURI
	}

	_, payload, ok := strings.Cut(uri, ",")
	if !ok {
		return nil, fmt.Errorf("malformed data URI: no payload separator")
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image payload: %w", err)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to decode page image: %w", err)
	}
	return img, nil
}

// ResolvePageImage decodes the page's embedded raster image and converts it
// to a single-channel form for recognition.
func ResolvePageImage(p *Page) (image.Image, error) {
	if p == nil || p.Image == nil || p.Image.URI == "" {
		return nil, errors.New("page has no embedded image")
	}
	img, err := DecodeDataURI(p.Image.URI)
	if err != nil {
		return nil, err
	}
	return imaging.Grayscale(img), nil
}

// EncodeDataURI encodes an image as a PNG data URI suitable for embedding in
// a page's ImageRef.
func EncodeDataURI(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return "", fmt.Errorf("failed to encode page image: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
