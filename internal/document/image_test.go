package document

import (
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 10), G: uint8(y * 10), B: 128, A: 255}) //nolint:gosec
		}
	}
	return img
}

func TestEncodeDecodeDataURI(t *testing.T) {
	uri, err := EncodeDataURI(testImage(8, 4))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, "data:image/png;base64,"))

	img, err := DecodeDataURI(uri)
	require.NoError(t, err)
	bounds := img.Bounds()
	assert.Equal(t, 8, bounds.Dx())
	assert.Equal(t, 4, bounds.Dy())
}

func TestDecodeDataURI_Errors(t *testing.T) {
	tests := []struct {
		name string
		uri  string
	}{
		{"not a data uri", "https://example.com/page.png"},
		{"no payload separator", "data:image/png;base64"},
		{"bad base64", "data:image/png;base64,!!!"},
		{"not an image", "data:image/png;base64,aGVsbG8="},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeDataURI(tt.uri)
			assert.Error(t, err)
		})
	}
}

func TestResolvePageImage(t *testing.T) {
	uri, err := EncodeDataURI(testImage(16, 16))
	require.NoError(t, err)

	page := &Page{PageNo: 1, Image: &ImageRef{MimeType: "image/png", URI: uri}}
	img, err := ResolvePageImage(page)
	require.NoError(t, err)
	assert.Equal(t, 16, img.Bounds().Dx())

	gray, ok := img.(*image.NRGBA)
	require.True(t, ok)
	c := gray.NRGBAAt(3, 3)
	assert.Equal(t, c.R, c.G, "grayscale conversion flattens channels")
	assert.Equal(t, c.G, c.B)
}

func TestResolvePageImage_Missing(t *testing.T) {
	_, err := ResolvePageImage(nil)
	assert.Error(t, err)

	_, err = ResolvePageImage(&Page{PageNo: 1})
	assert.Error(t, err)

	_, err = ResolvePageImage(&Page{PageNo: 1, Image: &ImageRef{URI: ""}})
	assert.Error(t, err)
}
