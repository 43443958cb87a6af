package imagecache

import (
	"bytes"
	"image"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessImageDataOriginalVerbatim(t *testing.T) {
	data := testPNG(t, 500, 700)
	out := processImageData(data, QualityOriginal, slog.Default())
	assert.Equal(t, data, out)
}

func TestProcessImageDataDownscalesOversized(t *testing.T) {
	data := testPNG(t, 800, 1200)
	out := processImageData(data, QualityExportLow, slog.Default())

	img, format, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "png", format)

	// export_low bounds at 500x500, aspect preserved.
	b := img.Bounds()
	assert.LessOrEqual(t, b.Dx(), 500)
	assert.LessOrEqual(t, b.Dy(), 500)
	assert.Equal(t, 500, b.Dy())
}

func TestProcessImageDataKeepsSmallImages(t *testing.T) {
	data := testPNG(t, 100, 140)
	out := processImageData(data, QualityExportHigh, slog.Default())

	img, _, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, 140, img.Bounds().Dy())
}

func TestProcessImageDataUITierIsJPEG(t *testing.T) {
	data := testPNG(t, 600, 840)
	out := processImageData(data, QualityUI, slog.Default())

	_, format, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
}

func TestProcessImageDataDecodeFailureFallsBackVerbatim(t *testing.T) {
	data := []byte("this is not an image")

	for _, quality := range []Quality{QualityUI, QualityExportHigh, QualityExportMedium, QualityExportLow} {
		out := processImageData(data, quality, slog.Default())
		assert.Equal(t, data, out, "quality %s must store undecodable bytes verbatim", quality)
	}
}

func TestFileExtension(t *testing.T) {
	tests := []struct {
		name        string
		url         string
		contentType string
		want        string
	}{
		{"content type wins", "https://x.test/img.jpg", "image/png", ".png"},
		{"jpeg content type", "https://x.test/img", "image/jpeg", ".jpg"},
		{"url suffix fallback", "https://x.test/cards/1_hires.png?v=2", "", ".png"},
		{"jpg from url", "https://x.test/cards/1.JPG", "", ".jpg"},
		{"unknown defaults to png", "https://x.test/asset", "application/octet-stream", ".png"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, fileExtension(tc.url, tc.contentType))
		})
	}
}

func TestScaleToFitAspectRatio(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1000, 500))
	scaled := scaleToFit(img, 300, 300)
	assert.Equal(t, 300, scaled.Bounds().Dx())
	assert.Equal(t, 150, scaled.Bounds().Dy())
}
