// Copyright (c) 2026 Whip Helmets. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package catalog

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/taibuivan/whiphelmets/internal/platform/apperr"
	"github.com/taibuivan/whiphelmets/pkg/pagination"
	"github.com/taibuivan/whiphelmets/pkg/slug"
)

// ImageStore hosts uploaded product images and returns their public URL.
type ImageStore interface {
	Store(ctx context.Context, image io.Reader, folder string) (string, error)
}

// imageFolder groups product images on the image host.
const imageFolder = "products"

// Service implements catalog use cases.
type Service struct {
	repository Repository
	images     ImageStore
	logger     *slog.Logger
}

// NewService constructs a new [Service].
func NewService(repository Repository, logger *slog.Logger) *Service {
	return &Service{repository: repository, logger: logger}
}

// WithImageStore enables image uploads.
func (service *Service) WithImageStore(images ImageStore) *Service {
	service.images = images
	return service
}

// # Public Reads

/*
ListProducts returns a page of the public catalog.

Description: Hidden products are excluded unless filter.IncludeHidden is set,
which only the staff endpoint does. The text query is folded (lowercase, no
accents) before it reaches storage.
*/
func (service *Service) ListProducts(context context.Context, filter Filter, page pagination.Params) ([]*Product, int, error) {
	filter.Category = strings.TrimSpace(filter.Category)
	filter.Brand = strings.TrimSpace(filter.Brand)
	filter.Query = slug.Fold(filter.Query)
	return service.repository.List(context, filter, page)
}

/*
GetProduct resolves ref as a numeric id first, then as a slug. Hidden
products are reported as not found unless includeHidden is set.
*/
func (service *Service) GetProduct(context context.Context, ref string, includeHidden bool) (*Product, error) {
	var product *Product
	var err error

	if id, parseErr := strconv.ParseInt(ref, 10, 64); parseErr == nil && id > 0 {
		product, err = service.repository.FindByID(context, id)
	} else {
		product, err = service.repository.FindBySlug(context, strings.ToLower(strings.TrimSpace(ref)))
	}
	if err != nil {
		return nil, err
	}

	if product.Status == StatusHidden && !includeHidden {
		return nil, ErrProductNotFound
	}
	return product, nil
}

// # Staff Writes

/*
CreateProduct validates and stores a new product. The slug defaults to one
derived from the name.
*/
func (service *Service) CreateProduct(context context.Context, input ProductInput) (*Product, error) {
	input.normalize()
	if input.Slug == "" {
		input.Slug = slug.From(input.Name)
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	product := &Product{
		Name:            input.Name,
		Slug:            input.Slug,
		Brand:           input.Brand,
		Description:     input.Description,
		Price:           input.Price.Round(2),
		DiscountPercent: input.DiscountPercent,
		Category:        input.Category,
		Sizes:           input.Sizes,
		Stock:           input.Stock,
		Image:           input.Image,
		Images:          input.Images,
		Status:          input.Status,
	}

	if err := service.repository.Create(context, product); err != nil {
		return nil, err
	}

	service.logger.InfoContext(context, "product_created",
		slog.Int64("product_id", product.ID),
		slog.String("slug", product.Slug),
	)
	return product, nil
}

// UpdateProduct applies a partial update.
func (service *Service) UpdateProduct(context context.Context, id int64, patch ProductPatch) (*Product, error) {
	patch.normalize()
	if err := patch.validate(); err != nil {
		return nil, err
	}

	product, err := service.repository.Update(context, id, patch)
	if err != nil {
		return nil, err
	}

	service.logger.InfoContext(context, "product_updated", slog.Int64("product_id", id))
	return product, nil
}

/*
AttachImage uploads image to the image host and appends its URL to the
product gallery. The first image attached to a product without a main image
also becomes the main image.
*/
func (service *Service) AttachImage(context context.Context, id int64, image io.Reader) (*Product, error) {
	if service.images == nil {
		return nil, apperr.ServiceUnavailable("Image uploads are not configured")
	}

	product, err := service.repository.FindByID(context, id)
	if err != nil {
		return nil, err
	}

	url, err := service.images.Store(context, image, imageFolder)
	if err != nil {
		return nil, err
	}

	gallery := append(append([]string{}, product.Images...), url)
	patch := ProductPatch{Images: &gallery}
	if product.Image == "" {
		patch.Image = &url
	}

	updated, err := service.repository.Update(context, id, patch)
	if err != nil {
		return nil, err
	}

	service.logger.InfoContext(context, "product_image_attached",
		slog.Int64("product_id", id),
		slog.String("url", url),
	)
	return updated, nil
}

// DeleteProduct removes a product. Existing orders keep their line items.
func (service *Service) DeleteProduct(context context.Context, id int64) error {
	if err := service.repository.Delete(context, id); err != nil {
		return err
	}
	service.logger.InfoContext(context, "product_deleted", slog.Int64("product_id", id))
	return nil
}
