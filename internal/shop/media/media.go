// Copyright (c) 2026 Whip Helmets. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package media hosts product images.

Uploads are decoded, auto-oriented and re-encoded before they are stored, so
the storefront never serves a raw upload. Every stored image also gets
resized variants for different screens:

	<name>.jpg          full size, longest side capped at 1600px
	<name>_thumb.jpg    150x150 box
	<name>_small.jpg    300x300 box
	<name>_medium.jpg   600x600 box
	<name>_large.jpg    800x800 box

Images with transparency keep it and are written as PNG instead.
*/
package media

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/taibuivan/whiphelmets/internal/platform/apperr"
	"github.com/taibuivan/whiphelmets/pkg/slug"
	"github.com/taibuivan/whiphelmets/pkg/uuidv7"
)

// MaxUploadBytes bounds a single uploaded image.
const MaxUploadBytes = 10 << 20

// maxDimension caps the longest side of the full-size image.
const maxDimension = 1600

// jpegQuality matches what the storefront was tuned for.
const jpegQuality = 85

// Variant is a named bounding box for a resized copy.
type Variant struct {
	Name   string
	Width  int
	Height int
}

// Variants are generated for every stored image.
var Variants = []Variant{
	{"thumb", 150, 150},
	{"small", 300, 300},
	{"medium", 600, 600},
	{"large", 800, 800},
}

// ErrUnsupportedImage is returned when the upload cannot be decoded.
var ErrUnsupportedImage = apperr.ValidationError("Unsupported or corrupt image (JPEG, PNG or GIF expected)")

// ErrTooLarge is returned when the upload exceeds [MaxUploadBytes].
var ErrTooLarge = apperr.ValidationError(fmt.Sprintf("Image exceeds %d MB", MaxUploadBytes>>20))

// LocalStore writes images below a directory that the API serves under
// baseURL.
type LocalStore struct {
	root    string
	baseURL string
	logger  *slog.Logger
}

// NewLocalStore creates root if needed.
func NewLocalStore(root, baseURL string, logger *slog.Logger) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("media_root_create_failed: %w", err)
	}
	return &LocalStore{
		root:    root,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}, nil
}

// Root is the directory images are written to.
func (store *LocalStore) Root() string {
	return store.root
}

/*
Store decodes image, writes the full-size copy and its variants below
folder and returns the public URL of the full-size copy.

Parameters:
  - ctx: context.Context
  - image: io.Reader (at most MaxUploadBytes are read)
  - folder: string (slugified; "products" when empty)

Returns:
  - string: Public URL of the stored image
  - error: ErrUnsupportedImage, ErrTooLarge or filesystem failures
*/
func (store *LocalStore) Store(ctx context.Context, upload io.Reader, folder string) (string, error) {
	folder = slug.From(folder)
	if folder == "" {
		folder = "products"
	}

	source, err := decode(upload)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	directory := filepath.Join(store.root, folder)
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return "", fmt.Errorf("media_folder_create_failed: %w", err)
	}

	name := uuidv7.New()
	format, extension := imaging.JPEG, ".jpg"
	if !isOpaque(source) {
		format, extension = imaging.PNG, ".png"
	}

	full := imaging.Fit(source, maxDimension, maxDimension, imaging.Lanczos)
	if err := writeImage(filepath.Join(directory, name+extension), full, format); err != nil {
		return "", err
	}
	for _, variant := range Variants {
		resized := imaging.Fit(source, variant.Width, variant.Height, imaging.Lanczos)
		if err := writeImage(filepath.Join(directory, name+"_"+variant.Name+extension), resized, format); err != nil {
			return "", err
		}
	}

	url := store.baseURL + "/" + path.Join(folder, name+extension)
	store.logger.InfoContext(ctx, "image_stored",
		slog.String("url", url),
		slog.Int("width", full.Bounds().Dx()),
		slog.Int("height", full.Bounds().Dy()),
	)
	return url, nil
}

// VariantURL returns the URL of a resized copy of a stored image.
func VariantURL(url, variant string) string {
	extension := path.Ext(url)
	return strings.TrimSuffix(url, extension) + "_" + variant + extension
}

func decode(upload io.Reader) (image.Image, error) {
	limited := &io.LimitedReader{R: upload, N: MaxUploadBytes + 1}
	source, err := imaging.Decode(limited, imaging.AutoOrientation(true))
	if limited.N <= 0 {
		return nil, ErrTooLarge
	}
	if err != nil {
		return nil, ErrUnsupportedImage
	}
	return source, nil
}

// isOpaque reports whether every pixel is fully opaque.
func isOpaque(img image.Image) bool {
	if opaque, ok := img.(interface{ Opaque() bool }); ok {
		return opaque.Opaque()
	}
	return true
}

// writeImage encodes into a temporary file and renames it into place, so a
// half-written image is never served.
func writeImage(target string, img image.Image, format imaging.Format) (err error) {
	temporary, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return fmt.Errorf("media_write_failed: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(temporary.Name())
		}
	}()

	if err = imaging.Encode(temporary, img, format, imaging.JPEGQuality(jpegQuality)); err != nil {
		_ = temporary.Close()
		return fmt.Errorf("media_encode_failed: %w", err)
	}
	if err = temporary.Close(); err != nil {
		return fmt.Errorf("media_write_failed: %w", err)
	}
	if err = os.Rename(temporary.Name(), target); err != nil {
		return fmt.Errorf("media_write_failed: %w", err)
	}
	return nil
}

// IsUploadError reports whether err was caused by the uploaded content.
func IsUploadError(err error) bool {
	return errors.Is(err, ErrUnsupportedImage) || errors.Is(err, ErrTooLarge)
}
