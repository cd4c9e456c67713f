package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"inventract/internal/domain"
	"inventract/internal/repository"
	"inventract/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type mockCatalogService struct {
	mu       sync.Mutex
	products map[uuid.UUID]*domain.Product
	coupons  map[uuid.UUID]*domain.Coupon
	stocks   map[uuid.UUID]int
}

func newMockCatalogService() *mockCatalogService {
	return &mockCatalogService{
		products: make(map[uuid.UUID]*domain.Product),
		coupons:  make(map[uuid.UUID]*domain.Coupon),
		stocks:   make(map[uuid.UUID]int),
	}
}

func (m *mockCatalogService) CreateProduct(ctx context.Context, name, sku, description string, price decimal.Decimal, category string, couponID *uuid.UUID) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if price.IsNegative() {
		return nil, service.ErrInvalidPrice
	}
	if !domain.ValidCategory(category) {
		return nil, service.ErrInvalidCategory
	}
	for _, existing := range m.products {
		if existing.SKU == sku {
			return nil, repository.ErrProductAlreadyExists
		}
	}

	product := &domain.Product{
		ID:          uuid.New(),
		Name:        name,
		SKU:         sku,
		Description: description,
		Price:       price.Round(2),
		Category:    category,
		CouponID:    couponID,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	m.products[product.ID] = product
	return product, nil
}

func (m *mockCatalogService) UpdateProduct(ctx context.Context, id uuid.UUID, name, sku, description string, price decimal.Decimal, category string, couponID *uuid.UUID) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	product, exists := m.products[id]
	if !exists {
		return nil, repository.ErrProductNotFound
	}
	if price.IsNegative() {
		return nil, service.ErrInvalidPrice
	}
	product.Name = name
	product.SKU = sku
	product.Description = description
	product.Price = price.Round(2)
	product.Category = category
	product.CouponID = couponID
	return product, nil
}

func (m *mockCatalogService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.products[id]; !exists {
		return repository.ErrProductNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *mockCatalogService) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	product, exists := m.products[id]
	if !exists {
		return nil, repository.ErrProductNotFound
	}
	return product, nil
}

func (m *mockCatalogService) GetProductWithStock(ctx context.Context, id uuid.UUID) (*service.ProductWithStock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	product, exists := m.products[id]
	if !exists {
		return nil, repository.ErrProductNotFound
	}
	stock := m.stocks[id]
	total := product.Price.Mul(decimal.NewFromInt(int64(stock))).Round(2)
	return &service.ProductWithStock{
		Product:      product,
		CurrentStock: stock,
		Value: &domain.StockValue{
			Total:      total,
			Discount:   decimal.Zero,
			FinalTotal: total,
		},
	}, nil
}

func (m *mockCatalogService) ListProducts(ctx context.Context, category *string, page, pageSize int, sortBy string, sortOrder repository.SortOrder) ([]*domain.Product, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	matched := []*domain.Product{}
	for _, product := range m.products {
		if category != nil && product.Category != *category {
			continue
		}
		matched = append(matched, product)
	}

	total := len(matched)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (m *mockCatalogService) SearchProducts(ctx context.Context, query string, page, pageSize int) ([]*domain.Product, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	matched := []*domain.Product{}
	for _, product := range m.products {
		if product.Name == query || product.SKU == query {
			matched = append(matched, product)
		}
	}
	return matched, len(matched), nil
}

func (m *mockCatalogService) CreateCoupon(ctx context.Context, code string, discountPercent decimal.Decimal, active bool) (*domain.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if discountPercent.IsNegative() || discountPercent.GreaterThan(decimal.NewFromInt(100)) {
		return nil, service.ErrInvalidDiscount
	}
	for _, existing := range m.coupons {
		if existing.Code == code {
			return nil, repository.ErrCouponAlreadyExists
		}
	}

	coupon := &domain.Coupon{
		ID:              uuid.New(),
		Code:            code,
		DiscountPercent: discountPercent.Round(2),
		Active:          active,
		CreatedAt:       time.Now(),
	}
	m.coupons[coupon.ID] = coupon
	return coupon, nil
}

func (m *mockCatalogService) UpdateCoupon(ctx context.Context, id uuid.UUID, discountPercent decimal.Decimal, active bool) (*domain.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	coupon, exists := m.coupons[id]
	if !exists {
		return nil, repository.ErrCouponNotFound
	}
	if discountPercent.IsNegative() || discountPercent.GreaterThan(decimal.NewFromInt(100)) {
		return nil, service.ErrInvalidDiscount
	}
	coupon.DiscountPercent = discountPercent.Round(2)
	coupon.Active = active
	return coupon, nil
}

func (m *mockCatalogService) ListCoupons(ctx context.Context) ([]*domain.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	coupons := []*domain.Coupon{}
	for _, coupon := range m.coupons {
		coupons = append(coupons, coupon)
	}
	return coupons, nil
}

func newCatalogTestRouter(svc service.CatalogService) chi.Router {
	router := chi.NewRouter()
	handler := NewProductHandler(svc, zap.NewNop())
	handler.RegisterRoutes(router, passthroughAuth, passthroughAuth)
	return router
}

func TestCreateProductEndpoint(t *testing.T) {
	svc := newMockCatalogService()
	router := newCatalogTestRouter(svc)

	w := postJSON(t, router, "/api/products/", ProductRequest{
		Name:     "Mechanical Keyboard",
		SKU:      "KB-100",
		Price:    "79.99",
		Category: "computers",
	})

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var product domain.Product
	if err := json.NewDecoder(w.Body).Decode(&product); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if product.SKU != "KB-100" || !product.Price.Equal(decimal.NewFromFloat(79.99)) {
		t.Errorf("unexpected product: %+v", product)
	}
}

func TestCreateProductRejectsMalformedPrice(t *testing.T) {
	router := newCatalogTestRouter(newMockCatalogService())

	w := postJSON(t, router, "/api/products/", ProductRequest{
		Name:     "Widget",
		SKU:      "W-1",
		Price:    "not-a-number",
		Category: "other",
	})

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCreateProductDuplicateSKUReturnsConflict(t *testing.T) {
	svc := newMockCatalogService()
	router := newCatalogTestRouter(svc)

	payload := ProductRequest{Name: "Widget", SKU: "W-1", Price: "1.00", Category: "other"}
	if w := postJSON(t, router, "/api/products/", payload); w.Code != http.StatusCreated {
		t.Fatalf("first create failed: %d", w.Code)
	}

	w := postJSON(t, router, "/api/products/", payload)
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestGetProductReturns404ForUnknownID(t *testing.T) {
	router := newCatalogTestRouter(newMockCatalogService())

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/products/%s", uuid.New()), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestListProductsPaginates(t *testing.T) {
	svc := newMockCatalogService()
	router := newCatalogTestRouter(svc)

	for i := 0; i < 3; i++ {
		if _, err := svc.CreateProduct(context.Background(), fmt.Sprintf("Item %d", i), fmt.Sprintf("SKU-%d", i), "", decimal.NewFromInt(1), "other", nil); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/products/?page=1&page_size=2", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp ProductListResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Products) != 2 || resp.Total != 3 || resp.PageSize != 2 {
		t.Errorf("unexpected page: got %d products, total %d, page_size %d", len(resp.Products), resp.Total, resp.PageSize)
	}
}

func TestListCategoriesReturnsAllowedValues(t *testing.T) {
	router := newCatalogTestRouter(newMockCatalogService())

	req := httptest.NewRequest(http.MethodGet, "/api/products/categories", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var categories []string
	if err := json.NewDecoder(w.Body).Decode(&categories); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(categories) != len(domain.Categories) {
		t.Errorf("expected %d categories, got %d", len(domain.Categories), len(categories))
	}
}

func TestCreateCouponRejectsOutOfRangeDiscount(t *testing.T) {
	router := newCatalogTestRouter(newMockCatalogService())

	w := postJSON(t, router, "/api/coupons/", CouponRequest{
		Code:            "TOOMUCH",
		DiscountPercent: "101",
		Active:          true,
	})

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestGetProductWithStockEndpoint(t *testing.T) {
	svc := newMockCatalogService()
	router := newCatalogTestRouter(svc)

	product, err := svc.CreateProduct(context.Background(), "Lamp", "L-1", "", decimal.NewFromFloat(4.50), "home", nil)
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	svc.stocks[product.ID] = 4

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/products/%s/with-stock", product.ID), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp service.ProductWithStock
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.CurrentStock != 4 || !resp.Value.Total.Equal(decimal.NewFromFloat(18.00)) {
		t.Errorf("unexpected result: stock %d, total %s", resp.CurrentStock, resp.Value.Total)
	}
}
