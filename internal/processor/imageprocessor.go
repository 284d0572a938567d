// imageprocessor.go - Embedded photo extraction and normalisation for the model

package processor

import (
	"archive/zip"
	"bytes"
	"fmt"
	"image"
	"io"
	"math"
	"strings"

	"github.com/disintegration/imaging"
)

const (
	// MinEmbeddedImageBytes drops icons, logos and decorative shapes.
	MinEmbeddedImageBytes = 15000

	workbookMediaPrefix = "xl/media/"
	jpegQuality         = 85
)

// EmbeddedImage is one decoded photo pulled from a workbook.
type EmbeddedImage struct {
	Name  string
	Size  int
	Image image.Image
}

// ExtractImages returns every decodable image under xl/media/ whose stored
// size is at least MinEmbeddedImageBytes, in archive order. Anything
// that fails to open or decode is skipped; a non-zip input yields nil.
func ExtractImages(data []byte) []EmbeddedImage {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil
	}

	files := make([]*zip.File, 0, len(zr.File))
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, workbookMediaPrefix) && !f.FileInfo().IsDir() {
			files = append(files, f)
		}
	}

	var images []EmbeddedImage
	for _, f := range files {
		if f.UncompressedSize64 < MinEmbeddedImageBytes {
			continue
		}
		raw, err := readZipEntry(f)
		if err != nil {
			continue
		}
		img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
		if err != nil {
			continue
		}
		images = append(images, EmbeddedImage{Name: f.Name, Size: len(raw), Image: img})
	}
	return images
}

func readZipEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// NormalizeImage bounds the longest side to maxDimension, lightly corrects
// under-exposed or flat photos and re-encodes as JPEG. A maxDimension <= 0
// leaves the size alone.
func NormalizeImage(img image.Image, maxDimension int) ([]byte, error) {
	bounds := img.Bounds()
	if maxDimension > 0 && (bounds.Dx() > maxDimension || bounds.Dy() > maxDimension) {
		img = imaging.Fit(img, maxDimension, maxDimension, imaging.Lanczos)
	}

	if analyzeImageQuality(img) < 50 {
		img = applyLightEnhancement(img)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// analyzeImageQuality returns a 0-100 score from sampled brightness and contrast.
func analyzeImageQuality(img image.Image) float64 {
	bounds := img.Bounds()

	var totalBrightness float64
	minBrightness := 255.0
	maxBrightness := 0.0
	pixelCount := 0

	// every 10th pixel
	for y := bounds.Min.Y; y < bounds.Max.Y; y += 10 {
		for x := bounds.Min.X; x < bounds.Max.X; x += 10 {
			r, g, b, _ := img.At(x, y).RGBA()
			brightness := (float64(r>>8) + float64(g>>8) + float64(b>>8)) / 3.0

			totalBrightness += brightness
			minBrightness = math.Min(minBrightness, brightness)
			maxBrightness = math.Max(maxBrightness, brightness)
			pixelCount++
		}
	}
	if pixelCount == 0 {
		return 100
	}

	avgBrightness := totalBrightness / float64(pixelCount)
	contrast := maxBrightness - minBrightness

	// Ideal: avgBrightness = 128, contrast = 200+
	brightnessScore := 100.0 - math.Abs(avgBrightness-128.0)/1.28
	contrastScore := math.Min(contrast/2.0, 100.0)

	return brightnessScore*0.4 + contrastScore*0.6
}

// applyLightEnhancement keeps colour; photos are judged for content, not OCR.
func applyLightEnhancement(img image.Image) image.Image {
	result := imaging.AdjustContrast(img, 15)
	result = imaging.AdjustGamma(result, 1.1)
	return imaging.Sharpen(result, 0.8)
}
