// Copyright (c) 2026 Whip Helmets. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package catalog

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/whiphelmets/internal/platform/apperr"
	"github.com/taibuivan/whiphelmets/internal/platform/middleware"
	requestutil "github.com/taibuivan/whiphelmets/internal/platform/request"
	"github.com/taibuivan/whiphelmets/internal/platform/respond"
	"github.com/taibuivan/whiphelmets/internal/platform/sec"
	"github.com/taibuivan/whiphelmets/internal/platform/validate"
	"github.com/taibuivan/whiphelmets/pkg/convert"
	"github.com/taibuivan/whiphelmets/pkg/pagination"
)

// Handler implements the product catalog endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a new [Handler].
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the public catalog.
//
// # Endpoints
//   - GET /        : List (category, brand, q, in_stock, page, limit)
//   - GET /{ref}   : Product by id or slug
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()
	router.Get("/", handler.list(false))
	router.Get("/{ref}", handler.get(false, "ref"))
	return router
}

// AdminRoutes returns staff product management, including hidden products.
func (handler *Handler) AdminRoutes() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequireRole(sec.RoleAdmin))

	router.Get("/", handler.list(true))
	router.Post("/", handler.create)
	router.Get("/{id}", handler.get(true, "id"))
	router.Patch("/{id}", handler.update)
	router.Delete("/{id}", handler.delete)
	router.Post("/{id}/images", handler.uploadImage)
	return router
}

func filterFromRequest(request *http.Request) Filter {
	values := request.URL.Query()
	return Filter{
		Category: values.Get("category"),
		Brand:    values.Get("brand"),
		Query:    values.Get("q"),
		InStock:  convert.ToBool(values.Get("in_stock")),
	}
}

/*
List returns one page of products.

GET /api/v1/products
GET /api/v1/admin/products (hidden included)

Response:
  - 200: Paginated []Product
*/
func (handler *Handler) list(includeHidden bool) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		filter := filterFromRequest(request)
		filter.IncludeHidden = includeHidden
		page := pagination.FromRequest(request)

		products, total, err := handler.service.ListProducts(request.Context(), filter, page)
		if err != nil {
			respond.Error(writer, request, err)
			return
		}

		respond.Paginated(writer, products, pagination.NewMeta(page.Page, page.Limit, total))
	}
}

// GET /api/v1/products/{ref}
func (handler *Handler) get(includeHidden bool, param string) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		product, err := handler.service.GetProduct(request.Context(), requestutil.Param(request, param), includeHidden)
		if err != nil {
			respond.Error(writer, request, err)
			return
		}
		respond.OK(writer, product)
	}
}

// POST /api/v1/admin/products
func (handler *Handler) create(writer http.ResponseWriter, request *http.Request) {
	var input ProductInput
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	product, err := handler.service.CreateProduct(request.Context(), input)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.Created(writer, product)
}

// PATCH /api/v1/admin/products/{id}
func (handler *Handler) update(writer http.ResponseWriter, request *http.Request) {
	id, err := requestutil.Int64Param(request, "id")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var patch ProductPatch
	if err := requestutil.DecodeJSON(request, &patch); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	product, err := handler.service.UpdateProduct(request.Context(), id, patch)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, product)
}

// DELETE /api/v1/admin/products/{id}
func (handler *Handler) delete(writer http.ResponseWriter, request *http.Request) {
	id, err := requestutil.Int64Param(request, "id")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.service.DeleteProduct(request.Context(), id); err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.NoContent(writer)
}

// maxImageForm bounds the multipart body of an image upload.
const maxImageForm = 12 << 20

/*
UploadImage stores an image and adds it to the product gallery.

POST /api/v1/admin/products/{id}/images (multipart/form-data, field "image")

Response:
  - 200: Product
  - 400: Missing or undecodable image
  - 503: Image host not configured
*/
func (handler *Handler) uploadImage(writer http.ResponseWriter, request *http.Request) {
	id, err := requestutil.Int64Param(request, "id")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	request.Body = http.MaxBytesReader(writer, request.Body, maxImageForm)
	file, _, err := request.FormFile("image")
	if err != nil {
		respond.Error(writer, request, apperr.ValidationError("Multipart field 'image' is required"))
		return
	}
	defer file.Close()

	product, err := handler.service.AttachImage(request.Context(), id, file)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, product)
}
