package transport

import (
	"errors"
	"net/http"
	"strconv"

	"inventract/internal/domain"
	"inventract/internal/middleware"
	"inventract/internal/repository"
	"inventract/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProductRequest represents a product create/update payload
type ProductRequest struct {
	Name        string  `json:"name" validate:"required,max=100"`
	SKU         string  `json:"sku" validate:"required,max=50"`
	Description string  `json:"description" validate:"max=2000"`
	Price       string  `json:"price" validate:"required"`
	Category    string  `json:"category" validate:"required"`
	CouponID    *string `json:"coupon_id,omitempty" validate:"omitempty,uuid"`
}

// CouponRequest represents a coupon create/update payload
type CouponRequest struct {
	Code            string `json:"code" validate:"required,max=50"`
	DiscountPercent string `json:"discount_percent" validate:"required"`
	Active          bool   `json:"active"`
}

// ProductListResponse wraps a paginated product listing
type ProductListResponse struct {
	Products []*domain.Product `json:"products"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

// ProductHandler handles HTTP requests for catalog operations
type ProductHandler struct {
	catalogService service.CatalogService
	logger         *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(catalogService service.CatalogService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		catalogService: catalogService,
		logger:         logger,
	}
}

// RegisterRoutes registers all catalog routes. Reads are public; writes are
// staff only.
func (h *ProductHandler) RegisterRoutes(r chi.Router, authMiddleware, staffOnly func(http.Handler) http.Handler) {
	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", h.ListProducts)
		r.Get("/search", h.SearchProducts)
		r.Get("/categories", h.ListCategories)
		r.Get("/{id}", h.GetProduct)
		r.Get("/{id}/with-stock", h.GetProductWithStock)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware, staffOnly)
			r.Post("/", h.CreateProduct)
			r.Put("/{id}", h.UpdateProduct)
			r.Delete("/{id}", h.DeleteProduct)
		})
	})

	r.Route("/api/coupons", func(r chi.Router) {
		r.Get("/", h.ListCoupons)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware, staffOnly)
			r.Post("/", h.CreateCoupon)
			r.Put("/{id}", h.UpdateCoupon)
		})
	})
}

// CreateProduct handles product creation (staff only)
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	req, price, couponID, ok := h.decodeProduct(w, r)
	if !ok {
		return
	}

	product, err := h.catalogService.CreateProduct(r.Context(), req.Name, req.SKU, req.Description, price, req.Category, couponID)
	if err != nil {
		h.respondCatalogError(w, err, "create product")
		return
	}

	h.logger.Info("Product created",
		zap.String("product_id", product.ID.String()),
		zap.String("sku", product.SKU),
	)
	middleware.RespondWithJSON(w, http.StatusCreated, product)
}

// UpdateProduct handles product edits (staff only)
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	req, price, couponID, ok := h.decodeProduct(w, r)
	if !ok {
		return
	}

	product, err := h.catalogService.UpdateProduct(r.Context(), id, req.Name, req.SKU, req.Description, price, req.Category, couponID)
	if err != nil {
		h.respondCatalogError(w, err, "update product")
		return
	}

	h.logger.Info("Product updated", zap.String("product_id", id.String()))
	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// DeleteProduct handles product deletion (staff only). The product's
// movements and ledger entries are removed with it.
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	if err := h.catalogService.DeleteProduct(r.Context(), id); err != nil {
		h.respondCatalogError(w, err, "delete product")
		return
	}

	h.logger.Info("Product deleted", zap.String("product_id", id.String()))
	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "product deleted"})
}

// GetProduct retrieves a single product
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	product, err := h.catalogService.GetProduct(r.Context(), id)
	if err != nil {
		h.respondCatalogError(w, err, "get product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// GetProductWithStock retrieves a product with derived stock and live value
func (h *ProductHandler) GetProductWithStock(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	result, err := h.catalogService.GetProductWithStock(r.Context(), id)
	if err != nil {
		h.respondCatalogError(w, err, "get product with stock")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, result)
}

// ListProducts retrieves products with optional category filter and paging
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pagination(r)

	var category *string
	if c := r.URL.Query().Get("category"); c != "" {
		category = &c
	}

	sortBy := r.URL.Query().Get("sort_by")
	sortOrder := repository.SortOrder(r.URL.Query().Get("sort_order"))

	products, total, err := h.catalogService.ListProducts(r.Context(), category, page, pageSize, sortBy, sortOrder)
	if err != nil {
		h.respondCatalogError(w, err, "list products")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, ProductListResponse{
		Products: products,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

// SearchProducts searches products by name, SKU, or description
func (h *ProductHandler) SearchProducts(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pagination(r)
	query := r.URL.Query().Get("q")

	products, total, err := h.catalogService.SearchProducts(r.Context(), query, page, pageSize)
	if err != nil {
		h.respondCatalogError(w, err, "search products")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, ProductListResponse{
		Products: products,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

// ListCategories returns the allowed category values
func (h *ProductHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	middleware.RespondWithJSON(w, http.StatusOK, domain.Categories)
}

// CreateCoupon handles coupon creation (staff only)
func (h *ProductHandler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	req, percent, ok := h.decodeCoupon(w, r)
	if !ok {
		return
	}

	coupon, err := h.catalogService.CreateCoupon(r.Context(), req.Code, percent, req.Active)
	if err != nil {
		h.respondCatalogError(w, err, "create coupon")
		return
	}

	h.logger.Info("Coupon created", zap.String("code", coupon.Code))
	middleware.RespondWithJSON(w, http.StatusCreated, coupon)
}

// UpdateCoupon handles coupon edits (staff only). Existing ledger snapshots
// are unaffected.
func (h *ProductHandler) UpdateCoupon(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid coupon ID")
		return
	}

	req, percent, ok := h.decodeCoupon(w, r)
	if !ok {
		return
	}

	coupon, err := h.catalogService.UpdateCoupon(r.Context(), id, percent, req.Active)
	if err != nil {
		h.respondCatalogError(w, err, "update coupon")
		return
	}

	h.logger.Info("Coupon updated", zap.String("coupon_id", id.String()))
	middleware.RespondWithJSON(w, http.StatusOK, coupon)
}

// ListCoupons retrieves all coupons
func (h *ProductHandler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.catalogService.ListCoupons(r.Context())
	if err != nil {
		h.respondCatalogError(w, err, "list coupons")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, coupons)
}

func (h *ProductHandler) decodeProduct(w http.ResponseWriter, r *http.Request) (*ProductRequest, decimal.Decimal, *uuid.UUID, bool) {
	var req ProductRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return nil, decimal.Zero, nil, false
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return nil, decimal.Zero, nil, false
	}

	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid price")
		return nil, decimal.Zero, nil, false
	}

	var couponID *uuid.UUID
	if req.CouponID != nil {
		id, err := uuid.Parse(*req.CouponID)
		if err != nil {
			middleware.RespondWithError(w, http.StatusBadRequest, "invalid coupon ID")
			return nil, decimal.Zero, nil, false
		}
		couponID = &id
	}

	return &req, price, couponID, true
}

func (h *ProductHandler) decodeCoupon(w http.ResponseWriter, r *http.Request) (*CouponRequest, decimal.Decimal, bool) {
	var req CouponRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return nil, decimal.Zero, false
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return nil, decimal.Zero, false
	}

	percent, err := decimal.NewFromString(req.DiscountPercent)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid discount percent")
		return nil, decimal.Zero, false
	}

	return &req, percent, true
}

func (h *ProductHandler) respondCatalogError(w http.ResponseWriter, err error, operation string) {
	switch {
	case errors.Is(err, repository.ErrProductNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "product not found")
	case errors.Is(err, repository.ErrCouponNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "coupon not found")
	case errors.Is(err, repository.ErrProductAlreadyExists):
		middleware.RespondWithError(w, http.StatusConflict, "product with this SKU already exists")
	case errors.Is(err, repository.ErrCouponAlreadyExists):
		middleware.RespondWithError(w, http.StatusConflict, "coupon with this code already exists")
	case errors.Is(err, service.ErrInvalidPrice),
		errors.Is(err, service.ErrInvalidDiscount),
		errors.Is(err, service.ErrInvalidCategory):
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("Catalog operation failed",
			zap.String("operation", operation),
			zap.Error(err),
		)
		middleware.RespondWithError(w, http.StatusInternalServerError, "catalog operation failed")
	}
}

func pagination(r *http.Request) (page, pageSize int) {
	page = 1
	pageSize = 20

	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 0 {
		page = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("page_size")); err == nil && v > 0 && v <= 100 {
		pageSize = v
	}

	return page, pageSize
}
