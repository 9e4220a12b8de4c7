package service

import (
	"context"
	"errors"
	"strings"

	"go-marketplace/internal/events"
	"go-marketplace/internal/model"
	"go-marketplace/internal/repository"
	"go-marketplace/pkg/cache"
	"go-marketplace/pkg/storage"

	"go.uber.org/zap"
)

type CreateProductRequest struct {
	Name        string `json:"name" form:"name" validate:"required,notblank,max=255"`
	Price       *int64 `json:"price" form:"price" validate:"required,gte=0"`
	Description string `json:"description" form:"description" validate:"max=5000"`
	Category    string `json:"category" form:"category" validate:"max=100"`
	Image       string `json:"image" form:"image" validate:"omitempty,url"`
	Stock       *int   `json:"stock" form:"stock" validate:"omitempty,gte=0"`
}

type UpdateProductRequest struct {
	Name        *string `json:"name" form:"name" validate:"omitempty,notblank,max=255"`
	Price       *int64  `json:"price" form:"price" validate:"omitempty,gte=0"`
	Description *string `json:"description" form:"description" validate:"omitempty,max=5000"`
	Category    *string `json:"category" form:"category" validate:"omitempty,max=100"`
	Image       *string `json:"image" form:"image" validate:"omitempty,url"`
	Stock       *int    `json:"stock" form:"stock" validate:"omitempty,gte=0"`
}

type ProductQuery struct {
	Query    string
	Category string
	Page     int
	Limit    int
}

type ProductPage struct {
	Products   []model.Product `json:"products"`
	Pagination PageMeta        `json:"pagination"`
}

type ProductService interface {
	CreateProduct(ctx context.Context, owner Identity, req CreateProductRequest, image *Upload) (*model.Product, error)
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	ListProducts(ctx context.Context, q ProductQuery) (*ProductPage, error)
	UpdateProduct(ctx context.Context, caller Identity, id string, req UpdateProductRequest, image *Upload) (*model.Product, error)
	DeleteProduct(ctx context.Context, caller Identity, id string) error
}

type productService struct {
	productRepo repository.ProductRepository
	cache       cache.Cache
	store       storage.Storage
	events      events.Publisher
	log         *zap.Logger
}

func NewProductService(productRepo repository.ProductRepository, c cache.Cache, store storage.Storage, pub events.Publisher, log *zap.Logger) ProductService {
	return &productService{
		productRepo: productRepo,
		cache:       c,
		store:       store,
		events:      pub,
		log:         log,
	}
}

func (s *productService) CreateProduct(ctx context.Context, owner Identity, req CreateProductRequest, image *Upload) (*model.Product, error) {
	req.Name = strings.TrimSpace(req.Name)

	// 1. Validate request
	if err := validate(req); err != nil {
		return nil, err
	}

	product := &model.Product{
		Name:        req.Name,
		Price:       *req.Price,
		Description: req.Description,
		Category:    req.Category,
		Image:       req.Image,
		UserID:      owner.UserID,
		Stock:       req.Stock,
	}

	// 2. Upload image when one was attached
	if image != nil {
		url, err := storeUpload(ctx, s.store, s.log, "products", image)
		if err != nil {
			return nil, err
		}
		product.Image = url
	}

	// 3. Simpan ke Database
	if err := s.productRepo.Create(product); err != nil {
		return nil, err
	}

	s.log.Info("product created", zap.String("product_id", product.ID), zap.String("user_id", owner.UserID))
	return product, nil
}

func (s *productService) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	var cached model.Product
	err := s.cache.Get(ctx, cache.ProductKey(id), &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.log.Warn("product cache read failed", zap.String("product_id", id), zap.Error(err))
	}

	product, err := s.productRepo.FindByID(id)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, ErrProductNotFound
	}

	if err := s.cache.Set(ctx, cache.ProductKey(id), product); err != nil {
		s.log.Warn("product cache write failed", zap.String("product_id", id), zap.Error(err))
		return product, nil
	}

	// A delist that committed and evicted between our read and Set would
	// otherwise leave the listing cached until the TTL runs out.
	current, err := s.productRepo.FindByID(id)
	if err != nil {
		s.evict(ctx, id)
		return nil, err
	}
	if current == nil {
		s.evict(ctx, id)
		return nil, ErrProductNotFound
	}
	return product, nil
}

func (s *productService) ListProducts(ctx context.Context, q ProductQuery) (*ProductPage, error) {
	p := repository.NewPagination(q.Page, q.Limit, defaultPageLimit, maxPageLimit)
	products, total, err := s.productRepo.Search(repository.ProductFilter{
		Query:    strings.TrimSpace(q.Query),
		Category: strings.TrimSpace(q.Category),
	}, p)
	if err != nil {
		return nil, err
	}
	if products == nil {
		products = []model.Product{}
	}
	return &ProductPage{Products: products, Pagination: newPageMeta(p, total)}, nil
}

func (s *productService) UpdateProduct(ctx context.Context, caller Identity, id string, req UpdateProductRequest, image *Upload) (*model.Product, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	product, err := s.productRepo.FindByID(id)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	if product.UserID != caller.UserID {
		return nil, ErrNotProductOwner
	}

	fields := map[string]interface{}{}
	if req.Name != nil {
		product.Name = strings.TrimSpace(*req.Name)
		fields["name"] = product.Name
	}
	if req.Price != nil {
		product.Price = *req.Price
		fields["price"] = product.Price
	}
	if req.Description != nil {
		product.Description = *req.Description
		fields["description"] = product.Description
	}
	if req.Category != nil {
		product.Category = *req.Category
		fields["category"] = product.Category
	}
	if req.Image != nil {
		product.Image = *req.Image
		fields["image"] = product.Image
	}
	if req.Stock != nil {
		product.Stock = req.Stock
		fields["stock"] = *req.Stock
	}
	if image != nil {
		url, err := storeUpload(ctx, s.store, s.log, "products", image)
		if err != nil {
			return nil, err
		}
		product.Image = url
		fields["image"] = url
	}

	if err := s.productRepo.Update(id, fields); err != nil {
		return nil, err
	}
	s.evict(ctx, id)

	return product, nil
}

// DeleteProduct delists a product. Owners and admins may do this.
func (s *productService) DeleteProduct(ctx context.Context, caller Identity, id string) error {
	product, err := s.productRepo.FindByID(id)
	if err != nil {
		return err
	}
	if product == nil {
		return ErrProductNotFound
	}
	if product.UserID != caller.UserID && !caller.IsAdmin() {
		return ErrNotProductOwner
	}

	if err := s.productRepo.SoftDelete(id); err != nil {
		return err
	}
	s.evict(ctx, id)

	if err := s.events.Publish(ctx, events.TopicProductDelisted, id, map[string]interface{}{
		"product_id": id,
		"user_id":    caller.UserID,
		"reason":     "deleted",
	}); err != nil {
		s.log.Warn("publish product delisted failed", zap.String("product_id", id), zap.Error(err))
	}
	return nil
}

func (s *productService) evict(ctx context.Context, id string) {
	if err := s.cache.Delete(ctx, cache.ProductKey(id)); err != nil {
		s.log.Warn("product cache evict failed", zap.String("product_id", id), zap.Error(err))
	}
}
