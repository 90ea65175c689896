package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/yourorg/lendingdesk/internal/domain"
	"github.com/yourorg/lendingdesk/internal/infrastructure/redis"
	"github.com/yourorg/lendingdesk/internal/observability/metrics"
	"github.com/yourorg/lendingdesk/internal/reliability/circuitbreaker"
	"github.com/yourorg/lendingdesk/pkg/cache"
)

const catalogCacheKey = "lendingdesk:catalog:v1"

// CatalogService serves the book catalog. The full listing is cached in
// Redis behind a circuit breaker; a cache or breaker failure falls through
// to the database.
type CatalogService struct {
	bookRepo   domain.BookRepository
	redis      *redis.Client
	breaker    *circuitbreaker.CircuitBreaker
	localCache *cache.Cache[*domain.Book]
	cacheTTL   time.Duration
	logger     *slog.Logger
}

// NewCatalogService creates a new catalog service. redisClient may be nil
// when no cache is configured.
func NewCatalogService(bookRepo domain.BookRepository, redisClient *redis.Client, cacheTTL time.Duration, logger *slog.Logger) *CatalogService {
	if logger == nil {
		logger = slog.Default()
	}

	return &CatalogService{
		bookRepo:   bookRepo,
		redis:      redisClient,
		breaker:    circuitbreaker.New(3, 2, 30*time.Second),
		localCache: cache.New[*domain.Book](),
		cacheTTL:   cacheTTL,
		logger:     logger,
	}
}

// ListBooks returns the full catalog, cache-first
func (s *CatalogService) ListBooks(ctx context.Context) ([]*domain.Book, error) {
	if cached, ok := s.readSnapshot(ctx); ok {
		metrics.ObserveCatalogCache("hit")
		return cached, nil
	}

	books, err := s.bookRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}

	s.writeSnapshot(ctx, books)
	return books, nil
}

// GetBook fetches one book by ID through a short-lived local cache
func (s *CatalogService) GetBook(ctx context.Context, id string) (*domain.Book, error) {
	if book, ok := s.localCache.Get("book:" + id); ok {
		return book, nil
	}

	book, err := s.bookRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.localCache.Set("book:"+id, book, s.cacheTTL)
	return book, nil
}

// AddBook inserts a catalog entry and invalidates the snapshot. Used by the
// admin tooling, not exposed over the API.
func (s *CatalogService) AddBook(ctx context.Context, book *domain.Book) error {
	if book.Title == "" {
		return domain.Invalid("title", "is required")
	}
	if book.UniqueIdentifier == "" {
		return domain.Invalid("unique_identifier", "is required")
	}

	if err := s.bookRepo.Create(ctx, book); err != nil {
		return err
	}

	s.invalidateSnapshot(ctx)
	return nil
}

func (s *CatalogService) readSnapshot(ctx context.Context) ([]*domain.Book, bool) {
	if s.redis == nil {
		metrics.ObserveCatalogCache("bypass")
		return nil, false
	}
	if !s.breaker.Allow() {
		metrics.ObserveCatalogCache("bypass")
		return nil, false
	}

	raw, err := s.redis.Get(ctx, catalogCacheKey)
	if err != nil {
		if err == redis.ErrCacheMiss {
			s.breaker.RecordSuccess()
			metrics.ObserveCatalogCache("miss")
			return nil, false
		}
		s.breaker.RecordFailure()
		metrics.ObserveCatalogCache("error")
		s.logger.Warn("catalog cache read failed", slog.String("error", err.Error()))
		return nil, false
	}
	s.breaker.RecordSuccess()

	var books []*domain.Book
	if err := json.Unmarshal([]byte(raw), &books); err != nil {
		s.logger.Warn("catalog cache entry corrupt, dropping", slog.String("error", err.Error()))
		_ = s.redis.Delete(ctx, catalogCacheKey)
		return nil, false
	}
	return books, true
}

func (s *CatalogService) writeSnapshot(ctx context.Context, books []*domain.Book) {
	if s.redis == nil || !s.breaker.Allow() {
		return
	}

	raw, err := json.Marshal(books)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, catalogCacheKey, string(raw), s.cacheTTL); err != nil {
		s.breaker.RecordFailure()
		s.logger.Warn("catalog cache write failed", slog.String("error", err.Error()))
		return
	}
	s.breaker.RecordSuccess()
}

func (s *CatalogService) invalidateSnapshot(ctx context.Context) {
	s.localCache.Clear()
	if s.redis == nil {
		return
	}
	if err := s.redis.Delete(ctx, catalogCacheKey); err != nil {
		s.logger.Warn("catalog cache invalidation failed", slog.String("error", err.Error()))
	}
}
