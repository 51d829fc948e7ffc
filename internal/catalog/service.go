package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/noah-isme/backend-pos/internal/common"
)

// Querier captures the database methods required by the catalog service.
type Querier interface {
	GetProduct(ctx context.Context, id int64) (Product, error)
	ListProducts(ctx context.Context, params ListParams) ([]Product, int64, error)
	CreateProduct(ctx context.Context, in ProductInput) (Product, error)
	UpdateProduct(ctx context.Context, id int64, in ProductInput) (Product, error)
	ListCategories(ctx context.Context) ([]Category, error)
}

// Service orchestrates catalog queries, DTO assembly, and caching.
type Service struct {
	queries        Querier
	cache          *Cache
	defaultPerPage int
	maxPerPage     int
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Queries        Querier
	Cache          *Cache
	DefaultPerPage int
	MaxPerPage     int
}

// ProductListResult contains list data and pagination metadata.
type ProductListResult struct {
	Items   []Product `json:"items"`
	Total   int64     `json:"total"`
	Page    int       `json:"page"`
	PerPage int       `json:"per_page"`
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Queries == nil {
		return nil, errors.New("catalog: queries provider is required")
	}
	defaultPerPage := cfg.DefaultPerPage
	if defaultPerPage < 1 {
		defaultPerPage = 20
	}
	maxPerPage := cfg.MaxPerPage
	if maxPerPage < 1 {
		maxPerPage = 100
	}
	if defaultPerPage > maxPerPage {
		defaultPerPage = maxPerPage
	}
	return &Service{
		queries:        cfg.Queries,
		cache:          cfg.Cache,
		defaultPerPage: defaultPerPage,
		maxPerPage:     maxPerPage,
	}, nil
}

// DefaultPerPage exposes the configured page size for handlers.
func (s *Service) DefaultPerPage() int { return s.defaultPerPage }

// MaxPerPage exposes the configured page size ceiling for handlers.
func (s *Service) MaxPerPage() int { return s.maxPerPage }

// GetProduct returns a single product, consulting the cache first.
func (s *Service) GetProduct(ctx context.Context, id int64) (Product, error) {
	key := productCacheKey(id)
	if s.cache != nil {
		var cached Product
		ok, err := s.cache.GetJSON(ctx, key, &cached)
		if err == nil && ok {
			return cached, nil
		}
	}
	product, err := s.queries.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return Product{}, &common.AppError{Code: "NOT_FOUND", Message: "product not found", HTTPStatus: http.StatusNotFound, Err: err}
		}
		return Product{}, fmt.Errorf("get product: %w", err)
	}
	if s.cache != nil {
		_ = s.cache.SetJSON(ctx, key, product)
	}
	return product, nil
}

// ListProducts returns a filtered product page.
func (s *Service) ListProducts(ctx context.Context, params ListParams) (ProductListResult, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PerPage < 1 {
		params.PerPage = s.defaultPerPage
	}
	if params.PerPage > s.maxPerPage {
		params.PerPage = s.maxPerPage
	}
	params.Query = strings.TrimSpace(params.Query)
	params.Category = strings.TrimSpace(params.Category)

	items, total, err := s.queries.ListProducts(ctx, params)
	if err != nil {
		return ProductListResult{}, fmt.Errorf("list products: %w", err)
	}
	if items == nil {
		items = []Product{}
	}
	return ProductListResult{Items: items, Total: total, Page: params.Page, PerPage: params.PerPage}, nil
}

// CreateProduct inserts a new product row.
func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (Product, error) {
	if strings.TrimSpace(in.Name) == "" {
		return Product{}, &common.AppError{Code: "BAD_REQUEST", Message: "name is required", HTTPStatus: http.StatusBadRequest}
	}
	if in.Price.IsNegative() {
		return Product{}, &common.AppError{Code: "BAD_REQUEST", Message: "price cannot be negative", HTTPStatus: http.StatusBadRequest}
	}
	product, err := s.queries.CreateProduct(ctx, in)
	if err != nil {
		return Product{}, fmt.Errorf("create product: %w", err)
	}
	return product, nil
}

// UpdateProduct updates an existing product and drops its cache entry.
func (s *Service) UpdateProduct(ctx context.Context, id int64, in ProductInput) (Product, error) {
	if in.Price.IsNegative() {
		return Product{}, &common.AppError{Code: "BAD_REQUEST", Message: "price cannot be negative", HTTPStatus: http.StatusBadRequest}
	}
	product, err := s.queries.UpdateProduct(ctx, id, in)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return Product{}, &common.AppError{Code: "NOT_FOUND", Message: "product not found", HTTPStatus: http.StatusNotFound, Err: err}
		}
		return Product{}, fmt.Errorf("update product: %w", err)
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, productCacheKey(id))
	}
	return product, nil
}

// ListCategories returns all categories sorted by name.
func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := s.queries.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	if rows == nil {
		rows = []Category{}
	}
	return rows, nil
}
