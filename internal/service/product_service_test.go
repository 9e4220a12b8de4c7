package service

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go-marketplace/internal/events"
	"go-marketplace/internal/model"
	"go-marketplace/internal/repository"
	"go-marketplace/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memoryCache is a map-backed cache.Cache.
type memoryCache struct {
	mu    sync.Mutex
	items map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{items: map[string][]byte{}}
}

func (c *memoryCache) Get(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.items[key]
	if !ok {
		return cache.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *memoryCache) Set(ctx context.Context, key string, value interface{}) error {
	return c.SetWithTTL(ctx, key, value, 0)
}

func (c *memoryCache) SetWithTTL(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = raw
	return nil
}

func (c *memoryCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.items, k)
	}
	return nil
}

func (c *memoryCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[key]
	return ok
}

type productFixture struct {
	products *MockProductRepo
	store    *MockStorage
	cache    *memoryCache
	svc      ProductService
}

func newProductFixture() *productFixture {
	f := &productFixture{
		products: new(MockProductRepo),
		store:    new(MockStorage),
		cache:    newMemoryCache(),
	}
	f.svc = NewProductService(f.products, f.cache, f.store, events.NopPublisher{}, zap.NewNop())
	return f
}

func scratchUpload(t *testing.T, name string) *Upload {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scratch-"+name)
	require.NoError(t, os.WriteFile(path, []byte("\x89PNG fake"), 0o600))
	return &Upload{Path: path, Filename: name, ContentType: "image/png"}
}

func TestCreateProduct(t *testing.T) {
	f := newProductFixture()
	f.products.On("Create", mock.MatchedBy(func(p *model.Product) bool {
		return p.UserID == "s1" && p.Name == "Lamp" && p.Price == 0 && p.Stock == nil
	})).Return(nil)

	product, err := f.svc.CreateProduct(context.Background(), sellerID, CreateProductRequest{
		Name:  "  Lamp ",
		Price: int64Ptr(0),
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, "generated-product", product.ID)
	f.store.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateProduct_WithImage(t *testing.T) {
	f := newProductFixture()
	up := scratchUpload(t, "lamp.PNG")
	f.store.On("Upload", mock.Anything, mock.MatchedBy(func(key string) bool {
		return filepath.Dir(key) == "products" && filepath.Ext(key) == ".png"
	}), mock.Anything, "image/png").Return("https://cdn.example.com/products/x.png", nil)
	f.products.On("Create", mock.Anything).Return(nil)

	product, err := f.svc.CreateProduct(context.Background(), sellerID, CreateProductRequest{
		Name: "Lamp", Price: int64Ptr(25000), Stock: intPtr(3),
	}, up)

	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/products/x.png", product.Image)
	assert.Equal(t, 3, *product.Stock)
	_, statErr := os.Stat(up.Path)
	assert.True(t, os.IsNotExist(statErr), "scratch file should be removed")
}

func TestCreateProduct_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  CreateProductRequest
	}{
		{"missing price", CreateProductRequest{Name: "Lamp"}},
		{"negative price", CreateProductRequest{Name: "Lamp", Price: int64Ptr(-1)}},
		{"blank name", CreateProductRequest{Name: "   ", Price: int64Ptr(10)}},
		{"negative stock", CreateProductRequest{Name: "Lamp", Price: int64Ptr(10), Stock: intPtr(-2)}},
		{"bad image url", CreateProductRequest{Name: "Lamp", Price: int64Ptr(10), Image: "not a url"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newProductFixture()

			_, err := f.svc.CreateProduct(context.Background(), sellerID, tt.req, nil)

			var vErr *ValidationError
			assert.True(t, errors.As(err, &vErr))
			f.products.AssertNotCalled(t, "Create", mock.Anything)
		})
	}
}

func TestGetProduct_CachesReads(t *testing.T) {
	f := newProductFixture()
	f.products.On("FindByID", "P1").Return(productP1(nil), nil).Twice()

	first, err := f.svc.GetProduct(context.Background(), "P1")
	require.NoError(t, err)
	second, err := f.svc.GetProduct(context.Background(), "P1")
	require.NoError(t, err)

	assert.Equal(t, first.Name, second.Name)
	assert.True(t, f.cache.has(cache.ProductKey("P1")))
	// the miss reads and re-checks; the hit touches no store
	f.products.AssertNumberOfCalls(t, "FindByID", 2)
}

func TestGetProduct_DelistDuringMissIsNotCached(t *testing.T) {
	f := newProductFixture()
	f.products.On("FindByID", "P1").Return(productP1(nil), nil).Once()
	f.products.On("FindByID", "P1").Return(nil, nil).Once()

	_, err := f.svc.GetProduct(context.Background(), "P1")

	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.False(t, f.cache.has(cache.ProductKey("P1")))
}

func TestGetProduct_DelistedIsNotFound(t *testing.T) {
	f := newProductFixture()
	// soft-deleted rows are filtered by the repository
	f.products.On("FindByID", "P1").Return(nil, nil)

	_, err := f.svc.GetProduct(context.Background(), "P1")

	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListProducts(t *testing.T) {
	f := newProductFixture()
	filter := repository.ProductFilter{Query: "camera", Category: "electronics"}
	f.products.On("Search", filter, repository.Pagination{Page: 1, Limit: 20}).Return(nil, int64(0), nil)

	page, err := f.svc.ListProducts(context.Background(), ProductQuery{Query: " camera ", Category: "electronics"})

	require.NoError(t, err)
	assert.NotNil(t, page.Products)
	assert.Empty(t, page.Products)
	assert.Equal(t, 0, page.Pagination.TotalPages)
	assert.False(t, page.Pagination.HasNext)
}

func TestUpdateProduct(t *testing.T) {
	t.Run("owner updates and cache is evicted", func(t *testing.T) {
		f := newProductFixture()
		require.NoError(t, f.cache.Set(context.Background(), cache.ProductKey("P1"), productP1(nil)))
		f.products.On("FindByID", "P1").Return(productP1(nil), nil)
		f.products.On("Update", "P1", map[string]interface{}{"price": int64(150), "stock": 4}).Return(nil)

		product, err := f.svc.UpdateProduct(context.Background(), sellerID, "P1", UpdateProductRequest{
			Price: int64Ptr(150),
			Stock: intPtr(4),
		}, nil)

		require.NoError(t, err)
		assert.Equal(t, int64(150), product.Price)
		assert.False(t, f.cache.has(cache.ProductKey("P1")))
	})

	t.Run("non-owner forbidden", func(t *testing.T) {
		f := newProductFixture()
		f.products.On("FindByID", "P1").Return(productP1(nil), nil)

		_, err := f.svc.UpdateProduct(context.Background(), buyerID, "P1", UpdateProductRequest{Name: strPtr("Mine")}, nil)

		assert.ErrorIs(t, err, ErrNotProductOwner)
		f.products.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("admin cannot edit someone else's listing", func(t *testing.T) {
		f := newProductFixture()
		f.products.On("FindByID", "P1").Return(productP1(nil), nil)

		_, err := f.svc.UpdateProduct(context.Background(), Identity{UserID: "a1", Role: model.RoleAdmin}, "P1", UpdateProductRequest{Name: strPtr("x")}, nil)

		assert.ErrorIs(t, err, ErrForbidden)
	})
}

func TestDeleteProduct(t *testing.T) {
	tests := []struct {
		name    string
		caller  Identity
		wantErr error
	}{
		{"owner", sellerID, nil},
		{"admin", Identity{UserID: "a1", Role: model.RoleAdmin}, nil},
		{"someone else", buyerID, ErrNotProductOwner},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newProductFixture()
			f.products.On("FindByID", "P1").Return(productP1(nil), nil)
			f.products.On("SoftDelete", "P1").Return(nil)

			err := f.svc.DeleteProduct(context.Background(), tt.caller, "P1")

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				f.products.AssertNotCalled(t, "SoftDelete", mock.Anything)
				return
			}
			assert.NoError(t, err)
			f.products.AssertCalled(t, "SoftDelete", "P1")
		})
	}
}
