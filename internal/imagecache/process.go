package imagecache

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"log/slog"
	"net/url"
	"path"
	"strings"

	_ "image/gif" // register decoders for source assets

	xdraw "golang.org/x/image/draw"

	"github.com/pokedextop/pokedextop-go/internal/conf"
)

// processImageData applies the quality tier transform to fetched bytes.
// The original tier stores bytes verbatim. For derived tiers the image is
// downscaled to fit the tier's bounding box (never upscaled) and re-encoded:
// JPEG for the ui tier, PNG for export tiers. Undecodable data falls back to
// the verbatim bytes so a working asset is cached regardless.
func processImageData(data []byte, quality Quality, logger *slog.Logger) []byte {
	if quality == QualityOriginal {
		return data
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		logger.Debug("image decode failed, caching verbatim bytes",
			"quality", quality, "error", err)
		return data
	}

	cfg := conf.QualityFor(string(quality))
	scaled := scaleToFit(img, cfg.MaxWidth, cfg.MaxHeight)

	var buf bytes.Buffer
	if quality == QualityUI {
		err = jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: cfg.JPEGQuality})
	} else {
		enc := png.Encoder{CompressionLevel: pngCompressionLevel(cfg.PNGCompression)}
		err = enc.Encode(&buf, scaled)
	}
	if err != nil {
		logger.Debug("image encode failed, caching verbatim bytes",
			"quality", quality, "format", format, "error", err)
		return data
	}
	return buf.Bytes()
}

// scaleToFit downscales img to fit within maxW x maxH preserving aspect
// ratio. Images already within bounds are returned unchanged.
func scaleToFit(img image.Image, maxW, maxH int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxW && h <= maxH {
		return img
	}

	scaleW := float64(maxW) / float64(w)
	scaleH := float64(maxH) / float64(h)
	scale := scaleW
	if scaleH < scale {
		scale = scaleH
	}

	dw := int(float64(w) * scale)
	dh := int(float64(h) * scale)
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
	return dst
}

// pngCompressionLevel maps the tier's numeric compression setting onto the
// encoder's discrete levels.
func pngCompressionLevel(level int) png.CompressionLevel {
	switch {
	case level <= 1:
		return png.BestSpeed
	case level <= 3:
		return png.DefaultCompression
	default:
		return png.BestCompression
	}
}

// knownImageExtensions are extensions accepted verbatim from the source URL.
var knownImageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true,
}

// fileExtension derives a file extension from the response content type,
// falling back to the URL path and finally ".png".
func fileExtension(rawURL, contentType string) string {
	switch {
	case strings.Contains(contentType, "png"):
		return ".png"
	case strings.Contains(contentType, "jpeg"), strings.Contains(contentType, "jpg"):
		return ".jpg"
	case strings.Contains(contentType, "gif"):
		return ".gif"
	case strings.Contains(contentType, "webp"):
		return ".webp"
	}

	if u, err := url.Parse(rawURL); err == nil {
		if ext := strings.ToLower(path.Ext(u.Path)); knownImageExtensions[ext] {
			return ext
		}
	}
	return ".png"
}
