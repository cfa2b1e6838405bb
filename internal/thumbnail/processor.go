package thumbnail

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"  // GIF format support
	_ "image/jpeg" // JPEG format support
	"image/png"

	"github.com/disintegration/imaging"
	"github.com/genricoloni/mediakeys/internal/domain"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"  // BMP format support
	_ "golang.org/x/image/webp" // WebP format support
)

// OutputMime is the mime type of every processed thumbnail
const OutputMime = "image/png"

const defaultSize = 144

// Processor fits album art to a square key face
type Processor struct {
	logger *zap.Logger
	size   int
}

// NewProcessor creates a processor producing cfg.GetThumbnailSize() square images
func NewProcessor(logger *zap.Logger, cfg domain.Config) *Processor {
	size := cfg.GetThumbnailSize()
	if size <= 0 {
		size = defaultSize
	}
	return &Processor{logger: logger, size: size}
}

// Process crops the image to a centered square, scales it to the key size and
// re-encodes it as PNG
func (p *Processor) Process(ctx context.Context, imageData []byte) ([]byte, string, error) {
	// 1. Decode image from bytes
	img, format, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dy() == 0 || bounds.Dx() == 0 {
		return nil, "", fmt.Errorf("invalid image dimensions: %dx%d", bounds.Dx(), bounds.Dy())
	}

	// 2. Fill the key face, cropping the longer side around the center
	p.logger.Debug("Fitting thumbnail",
		zap.String("format", format),
		zap.Int("srcW", bounds.Dx()),
		zap.Int("srcH", bounds.Dy()),
		zap.Int("size", p.size))
	result := imaging.Fill(img, p.size, p.size, imaging.Center, imaging.Lanczos)

	// 3. Encode to PNG (lossless, keys are small)
	buf := new(bytes.Buffer)
	if err := png.Encode(buf, result); err != nil {
		return nil, "", fmt.Errorf("failed to encode result: %w", err)
	}

	p.logger.Debug("Thumbnail processed successfully", zap.Int("bytes", buf.Len()))
	return buf.Bytes(), OutputMime, nil
}
