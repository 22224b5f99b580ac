package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/mykafka"
	"github.com/Skotchmaster/storefront/internal/transport"
)

const (
	AllProductsKey    = "products:all"
	ProductKeyPrefix  = "products:"
	ProductKeyPattern = "products:*"

	ProductListTTL = 5 * time.Minute
	ProductItemTTL = 10 * time.Minute
)

func ProductKey(id uint) string {
	return ProductKeyPrefix + strconv.FormatUint(uint64(id), 10)
}

type ProductStore interface {
	ListProducts(ctx context.Context) ([]models.Product, error)
	GetProduct(ctx context.Context, id uint) (*models.Product, error)
	CreateProduct(ctx context.Context, prod *models.Product) error
	CreateProducts(ctx context.Context, prods []models.Product) error
	UpdateProduct(ctx context.Context, id uint, req transport.UpdateProductRequest) (*models.Product, error)
	DeleteProduct(ctx context.Context, id uint) error
}

// ProductCache never reports errors; a failed lookup is a miss.
type ProductCache interface {
	Get(ctx context.Context, key string, dest any) bool
	Set(ctx context.Context, key string, value any, ttl time.Duration)
	Delete(ctx context.Context, key string)
	DeletePattern(ctx context.Context, pattern string) int
}

type ProductIndexer interface {
	IndexProduct(ctx context.Context, p transport.ProductResponse) error
	DeleteProduct(ctx context.Context, id uint) error
}

type ReadOptions struct {
	// UseCache false skips the lookup and refreshes the entry from the store.
	UseCache bool
}

var CachedRead = ReadOptions{UseCache: true}

type ProductService struct {
	Store  ProductStore
	Cache  ProductCache
	Events EventPublisher
	Index  ProductIndexer
}

func (s *ProductService) GetAll(ctx context.Context, opts ReadOptions) ([]transport.ProductResponse, error) {
	l := logging.FromContext(ctx).With("svc", "product.get_all")

	if opts.UseCache && s.Cache != nil {
		var cached []transport.ProductResponse
		if s.Cache.Get(ctx, AllProductsKey, &cached) {
			l.Debug("cache_hit", "key", AllProductsKey)
			return cached, nil
		}
	}

	rows, err := s.Store.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	out := transport.ProductsFromModels(rows)

	if s.Cache != nil {
		s.Cache.Set(ctx, AllProductsKey, out, ProductListTTL)
	}
	return out, nil
}

func (s *ProductService) GetByID(ctx context.Context, id uint, opts ReadOptions) (*transport.ProductResponse, error) {
	key := ProductKey(id)

	if opts.UseCache && s.Cache != nil {
		var cached transport.ProductResponse
		if s.Cache.Get(ctx, key, &cached) {
			logging.FromContext(ctx).Debug("cache_hit", "svc", "product.get_by_id", "key", key)
			return &cached, nil
		}
	}

	row, err := s.Store.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get product %d: %w", id, err)
	}
	out := transport.ProductFromModel(row)

	if s.Cache != nil {
		s.Cache.Set(ctx, key, out, ProductItemTTL)
	}
	return &out, nil
}

func (s *ProductService) Create(ctx context.Context, req transport.CreateProductRequest) (*transport.ProductResponse, error) {
	if req.Name == "" || req.Price <= 0 || req.Stock < 0 {
		return nil, ErrValidation
	}

	prod := req.ToModel()
	if err := s.Store.CreateProduct(ctx, &prod); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	out := transport.ProductFromModel(&prod)

	s.invalidate(ctx, &prod.ID)
	s.afterWrite(ctx, mykafka.ProductCreated, out)
	return &out, nil
}

func (s *ProductService) Update(ctx context.Context, id uint, req transport.UpdateProductRequest) (*transport.ProductResponse, error) {
	if (req.Price != nil && *req.Price <= 0) || (req.Stock != nil && *req.Stock < 0) {
		return nil, ErrValidation
	}

	prod, err := s.Store.UpdateProduct(ctx, id, req)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update product %d: %w", id, err)
	}
	out := transport.ProductFromModel(prod)

	s.invalidate(ctx, &id)
	s.afterWrite(ctx, mykafka.ProductUpdated, out)
	return &out, nil
}

func (s *ProductService) Delete(ctx context.Context, id uint) error {
	if err := s.Store.DeleteProduct(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete product %d: %w", id, err)
	}

	s.invalidate(ctx, &id)

	if s.Index != nil {
		if err := s.Index.DeleteProduct(ctx, id); err != nil {
			logging.FromContext(ctx).Warn("search_delete_failed", "product_id", id, "error", err)
		}
	}
	publish(ctx, s.Events, mykafka.TopicProductEvents, strconv.FormatUint(uint64(id), 10), mykafka.ProductEvent{
		Type:      mykafka.ProductDeleted,
		ProductID: id,
		At:        time.Now().UTC(),
	})
	return nil
}

// Import inserts a batch in one transaction. No single key identifies the
// write, so every product key is dropped.
func (s *ProductService) Import(ctx context.Context, reqs []transport.CreateProductRequest) ([]transport.ProductResponse, error) {
	if len(reqs) == 0 {
		return nil, ErrValidation
	}
	prods := make([]models.Product, 0, len(reqs))
	for _, r := range reqs {
		if r.Name == "" || r.Price <= 0 || r.Stock < 0 {
			return nil, ErrValidation
		}
		prods = append(prods, r.ToModel())
	}

	if err := s.Store.CreateProducts(ctx, prods); err != nil {
		return nil, fmt.Errorf("import products: %w", err)
	}
	out := transport.ProductsFromModels(prods)

	s.invalidate(ctx, nil)

	ids := make([]uint, 0, len(out))
	for _, p := range out {
		ids = append(ids, p.ID)
		s.index(ctx, p)
	}
	publish(ctx, s.Events, mykafka.TopicProductEvents, "import", mykafka.ProductEvent{
		Type:       mykafka.ProductsImported,
		ProductIDs: ids,
		At:         time.Now().UTC(),
	})
	return out, nil
}

// invalidate always drops the list key. A known id drops that entry as well,
// otherwise every product key is removed by pattern.
func (s *ProductService) invalidate(ctx context.Context, id *uint) {
	if s.Cache == nil {
		return
	}
	l := logging.FromContext(ctx).With("svc", "product.invalidate")

	s.Cache.Delete(ctx, AllProductsKey)
	if id != nil {
		s.Cache.Delete(ctx, ProductKey(*id))
		return
	}
	n := s.Cache.DeletePattern(ctx, ProductKeyPattern)
	l.Debug("cache_pattern_invalidated", "pattern", ProductKeyPattern, "deleted", n)
}

func (s *ProductService) index(ctx context.Context, p transport.ProductResponse) {
	if s.Index == nil {
		return
	}
	if err := s.Index.IndexProduct(ctx, p); err != nil {
		logging.FromContext(ctx).Warn("search_index_failed", "product_id", p.ID, "error", err)
	}
}

func (s *ProductService) afterWrite(ctx context.Context, eventType string, p transport.ProductResponse) {
	s.index(ctx, p)
	publish(ctx, s.Events, mykafka.TopicProductEvents, strconv.FormatUint(uint64(p.ID), 10), mykafka.ProductEvent{
		Type:      eventType,
		ProductID: p.ID,
		Name:      p.Name,
		Price:     p.Price,
		Stock:     p.Stock,
		Category:  p.Category,
		At:        p.UpdatedAt,
	})
}
