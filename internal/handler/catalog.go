package handler

import (
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/xenking/buzzer/internal/domain/auth"
	"github.com/xenking/buzzer/internal/domain/category"
	"github.com/xenking/buzzer/internal/domain/file"
	"github.com/xenking/buzzer/internal/domain/pagination"
	"github.com/xenking/buzzer/internal/domain/product"
	"github.com/xenking/buzzer/pkg/nullable"
)

// maxProductImages is the number of productImages parts accepted per request.
const maxProductImages = 3

type addCategoryRequest struct {
	Name        string  `json:"name" validate:"required,min=1,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
}

type updateCategoryRequest struct {
	ID          int64                  `json:"id" validate:"required,gt=0"`
	Name        nullable.Value[string] `json:"name" validate:"omitempty,min=1,max=100"`
	Description nullable.Value[string] `json:"description" validate:"omitempty,max=500"`
}

// productFields are the multipart text fields of a product form.
type productFields struct {
	CategoryID        nullable.Value[int64]           `form:"categoryId"`
	Name              nullable.Value[string]          `form:"name" validate:"omitempty,max=255"`
	Description       nullable.Value[string]          `form:"description"`
	Price             nullable.Value[decimal.Decimal] `form:"price" validate:"omitempty,gt=0"`
	IsAvailable       nullable.Value[bool]            `form:"isAvailable"`
	AvailableQuantity nullable.Value[int]             `form:"availableQuantity" validate:"omitempty,gte=0"`
}

type productListResponse struct {
	Products   []productResponse `json:"products"`
	Pagination pagination.Info   `json:"pagination"`
}

// formField reads an optional multipart field. An empty value is an explicit
// null.
func formField[T any](r *http.Request, name, kind string, parse func(string) (T, error)) (nullable.Value[T], error) {
	s, ok := formValue(r, name)
	switch {
	case !ok:
		return nullable.Value[T]{}, nil
	case s == "" || s == "null":
		return nullable.Null[T](), nil
	}
	v, err := parse(s)
	if err != nil {
		return nullable.Value[T]{}, badRequest(name + ": must be a valid " + kind)
	}
	return nullable.Of(v), nil
}

func parseString(s string) (string, error) { return s, nil }

func parseInt64(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) }

func parseProductFields(r *http.Request) (productFields, error) {
	var (
		f   productFields
		err error
	)
	if f.CategoryID, err = formField(r, "categoryId", "number", parseInt64); err != nil {
		return f, err
	}
	if f.Name, err = formField(r, "name", "string", parseString); err != nil {
		return f, err
	}
	if f.Description, err = formField(r, "description", "string", parseString); err != nil {
		return f, err
	}
	if f.Price, err = formField(r, "price", "number", decimal.NewFromString); err != nil {
		return f, err
	}
	if f.IsAvailable, err = formField(r, "isAvailable", "boolean", strconv.ParseBool); err != nil {
		return f, err
	}
	if f.AvailableQuantity, err = formField(r, "availableQuantity", "number", strconv.Atoi); err != nil {
		return f, err
	}
	return f, validateStruct(&f)
}

// productImages parses the multipart form and opens the productImages parts.
func productImages(w http.ResponseWriter, r *http.Request) ([]file.Upload, func(), error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxProductImages*file.MaxImageSize+maxMultipartMemory)
	if err := parseMultipart(r); err != nil {
		return nil, func() {}, err
	}
	if len(r.MultipartForm.File["productImages"]) > maxProductImages {
		return nil, func() {}, product.ErrTooManyImages
	}
	return formUploads(r, "productImages")
}

// --- Categories ---

// AddCategory handles POST /api/admin/add-category.
func (h *Handler) AddCategory(w http.ResponseWriter, r *http.Request) {
	var req addCategoryRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	c := &category.Category{Name: req.Name, Description: req.Description}
	if err := h.categories.Add(r.Context(), c); err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusCreated, "Category created successfully", toCategoryResponse(c))
}

// GetCategory handles GET /api/admin/get-category?name=.
func (h *Handler) GetCategory(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		fail(w, r, badRequest("name: is required"))
		return
	}
	c, err := h.categories.GetByName(r.Context(), name)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Category retrieved successfully", toCategoryResponse(c))
}

// ListCategories handles GET /api/category/all-categories.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	list, err := h.categories.List(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Categories retrieved successfully", mapSlice(list, toCategoryResponse))
}

// UpdateCategory handles PATCH /api/admin/update-category.
func (h *Handler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req updateCategoryRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	c, err := h.categories.Update(r.Context(), req.ID, category.Patch{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Category updated successfully", toCategoryResponse(c))
}

// DeleteCategory handles DELETE /api/admin/delete-category/{id}.
func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, err)
		return
	}
	if err := h.categories.Delete(r.Context(), id); err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Category deleted successfully", map[string]int64{"deletedCategoryId": id})
}

// --- Products ---

// AddProduct handles POST /api/product/add-product.
func (h *Handler) AddProduct(w http.ResponseWriter, r *http.Request) {
	images, closeAll, err := productImages(w, r)
	if err != nil {
		fail(w, r, err)
		return
	}
	defer closeAll()

	f, err := parseProductFields(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	switch {
	case f.Name.Ptr() == nil:
		fail(w, r, badRequest("name: is required"))
		return
	case f.Price.Ptr() == nil:
		fail(w, r, badRequest("price: is required"))
		return
	}

	p := &product.Product{
		CategoryID:  f.CategoryID.Ptr(),
		Name:        f.Name.V,
		Description: f.Description.Ptr(),
		Price:       f.Price.V,
		IsAvailable: true,
	}
	if v := f.IsAvailable.Ptr(); v != nil {
		p.IsAvailable = *v
	}
	if v := f.AvailableQuantity.Ptr(); v != nil {
		p.AvailableQuantity = *v
	}

	if err := h.products.Add(r.Context(), principalFrom(r.Context()), p, images); err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusCreated, "Product created successfully", toProductResponse(p))
}

// GetProduct handles GET /api/product/get-product/{id}.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, err)
		return
	}
	p, err := h.products.Get(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Product retrieved successfully", toProductResponse(p))
}

// ListProducts handles GET /api/product/get-products.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	f := product.Filter{Page: pageParams(r)}
	var err error
	if f.CategoryID, err = queryInt64(r, "categoryId"); err != nil {
		fail(w, r, err)
		return
	}
	if f.VendorID, err = queryInt64(r, "vendorId"); err != nil {
		fail(w, r, err)
		return
	}
	if s := r.URL.Query().Get("vendorType"); s != "" {
		role := auth.Role(s)
		if !role.IsVendor() {
			fail(w, r, badRequest("vendorType: must be one of: cafe, restaurant"))
			return
		}
		f.VendorType = &role
	}

	list, total, err := h.products.List(r.Context(), f)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Products retrieved successfully", productListResponse{
		Products:   mapSlice(list, toProductResponse),
		Pagination: pagination.NewInfo(f.Page, total),
	})
}

// UpdateProduct handles PATCH /api/product/update-product.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	images, closeAll, err := productImages(w, r)
	if err != nil {
		fail(w, r, err)
		return
	}
	defer closeAll()

	raw, _ := formValue(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		fail(w, r, badRequest("id: must be a positive integer"))
		return
	}
	f, err := parseProductFields(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	for _, c := range []struct {
		name string
		null bool
	}{
		{"name", f.Name.Null},
		{"price", f.Price.Null},
		{"isAvailable", f.IsAvailable.Null},
		{"availableQuantity", f.AvailableQuantity.Null},
	} {
		if c.null {
			fail(w, r, badRequest(c.name+": cannot be empty"))
			return
		}
	}

	p, err := h.products.Update(r.Context(), principalFrom(r.Context()), id, product.Patch{
		CategoryID:        f.CategoryID,
		Name:              f.Name,
		Description:       f.Description,
		Price:             f.Price,
		IsAvailable:       f.IsAvailable,
		AvailableQuantity: f.AvailableQuantity,
	}, images)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Product updated successfully", toProductResponse(p))
}

// DeleteProduct handles DELETE /api/product/delete-product/{id}.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, err)
		return
	}
	if err := h.products.Delete(r.Context(), principalFrom(r.Context()), id); err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Product deleted successfully", map[string]int64{"deletedProductId": id})
}
