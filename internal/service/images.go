// This file implements responsive landing page images: originals are
// resized to a fixed set of widths and the results cached in storage.
package service

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/singleflight"

	"github.com/DukeRupert/cardapiofacil/internal/domain"
	"github.com/DukeRupert/cardapiofacil/internal/storage"
)

// ImageWidths are the widths images are served at, ascending.
var ImageWidths = []int{320, 640, 960, 1280}

// DefaultImageWidth is served when the request names no width.
const DefaultImageWidth = 640

// JPEG quality of resized images.
const imageJPEGQuality = 85

// maxSourceImageSize caps originals read from storage.
const maxSourceImageSize = 20 << 20

// Results reported by ImageService.Variant.
const (
	ImageCacheHit = "hit"
	ImageResized  = "resized"
)

// =============================================================================
// Interface Definition
// =============================================================================

// ImageService serves resized copies of landing page images.
type ImageService interface {
	// Variant returns the image resized to the allowed width closest to
	// width, along with whether it came from the cache or was resized now.
	// The caller closes the reader.
	//
	// Errors:
	//   - domain.EINVALID when name is not a single image file name
	//   - domain.ENOTFOUND when the original does not exist
	Variant(ctx context.Context, name string, width int) (io.ReadCloser, ImageVariant, error)
}

// ImageVariant describes a served image.
type ImageVariant struct {
	Width       int
	ContentType string
	Size        int64
	Result      string // ImageCacheHit or ImageResized
}

// =============================================================================
// Implementation
// =============================================================================

type imageService struct {
	store  storage.Storage
	logger *slog.Logger
	group  singleflight.Group
}

// NewImageService creates an ImageService backed by store.
func NewImageService(store storage.Storage, logger *slog.Logger) ImageService {
	return &imageService{
		store:  store,
		logger: logger,
	}
}

// SnapImageWidth returns the allowed width nearest to width. Ties go to
// the larger width. Zero or negative widths get DefaultImageWidth.
func SnapImageWidth(width int) int {
	if width <= 0 {
		return DefaultImageWidth
	}
	best := ImageWidths[0]
	for _, w := range ImageWidths[1:] {
		if abs(w-width) <= abs(best-width) {
			best = w
		}
	}
	return best
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Variant implements ImageService.
func (s *imageService) Variant(ctx context.Context, name string, width int) (io.ReadCloser, ImageVariant, error) {
	const op = "image.variant"

	if !validImageName(name) {
		return nil, ImageVariant{}, domain.Invalid(op, "Imagem inválida.")
	}
	width = SnapImageWidth(width)
	cacheKey := storage.ImageCacheKey(name, width)

	rc, info, err := s.store.Get(ctx, cacheKey)
	if err == nil {
		return rc, ImageVariant{Width: width, ContentType: info.ContentType, Size: info.Size, Result: ImageCacheHit}, nil
	}
	if !storage.IsNotFound(err) {
		return nil, ImageVariant{}, domain.Internal(err, op, "failed to read cached image")
	}

	// Concurrent misses for the same variant share one resize.
	v, err, _ := s.group.Do(cacheKey, func() (any, error) {
		return s.resize(ctx, name, width, cacheKey)
	})
	if err != nil {
		return nil, ImageVariant{}, err
	}
	data := v.([]byte)

	return io.NopCloser(bytes.NewReader(data)), ImageVariant{
		Width:       width,
		ContentType: storage.DetectContentType("", name, nil),
		Size:        int64(len(data)),
		Result:      ImageResized,
	}, nil
}

func (s *imageService) resize(ctx context.Context, name string, width int, cacheKey string) ([]byte, error) {
	const op = "image.resize"

	src, _, err := s.store.Get(ctx, storage.ImageSourceKey(name))
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, domain.Errorf(domain.ENOTFOUND, op, "Imagem não encontrada.")
		}
		return nil, domain.Internal(err, op, "failed to read source image")
	}
	defer src.Close()

	format, err := imaging.FormatFromFilename(name)
	if err != nil {
		return nil, domain.Invalid(op, "Imagem inválida.")
	}

	img, err := imaging.Decode(io.LimitReader(src, maxSourceImageSize), imaging.AutoOrientation(true))
	if err != nil {
		return nil, domain.Internal(err, op, "failed to decode source image")
	}

	// Never upscale.
	if img.Bounds().Dx() > width {
		img = imaging.Resize(img, width, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, imaging.JPEGQuality(imageJPEGQuality)); err != nil {
		return nil, domain.Internal(err, op, "failed to encode image")
	}
	data := buf.Bytes()

	if err := s.store.Put(ctx, cacheKey, bytes.NewReader(data), storage.PutOptions{Overwrite: true, Public: true}); err != nil {
		// The resized image is still served; the next request retries the write.
		s.logger.Warn("failed to cache resized image", "key", cacheKey, "error", err)
	}

	s.logger.Debug("image resized", "name", name, "width", width, "bytes", len(data))
	return data, nil
}

// validImageName accepts a plain file name with a resizable image extension.
func validImageName(name string) bool {
	if name == "" || strings.ContainsAny(name, `/\`) || name != path.Base(name) || strings.HasPrefix(name, ".") {
		return false
	}
	return storage.IsImageType(storage.DetectContentType("", name, nil))
}
