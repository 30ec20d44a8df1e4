// Package idmap resolves external product references to platform ids.
//
// Catalog records carry either an opaque UUID or a human slug as their
// external id. The widget and the order API only accept UUIDs, so slugs are
// mapped through the platform's product list. The list is fetched once and
// cached; after the TTL it is refetched, and if that refetch fails the last
// good mapping keeps serving.
package idmap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"rentsync/internal/model"
)

// DefaultTTL bounds how long a fetched mapping is served without refetching.
const DefaultTTL = 10 * time.Minute

// ErrUnknownSlug is returned for a slug the platform does not list.
var ErrUnknownSlug = errors.New("unknown product slug")

// ProductLister fetches the platform product list. adapter.Adapter satisfies it.
type ProductLister interface {
	ListProducts(ctx context.Context) ([]model.Product, error)
}

// Options configures a Resolver.
type Options struct {
	// Namespace separates mappings of different shops in a shared cache.
	Namespace string
	TTL       time.Duration
	Logger    *slog.Logger
}

// Resolver maps external references to platform product ids.
type Resolver struct {
	lister ProductLister
	cache  Cache
	key    string
	ttl    time.Duration
	logger *slog.Logger

	mu    sync.Mutex // serializes refetches
	stale map[string]string
}

// NewResolver creates a resolver. A nil cache uses a MemoryCache.
func NewResolver(lister ProductLister, cache Cache, opts Options) *Resolver {
	if cache == nil {
		cache = NewMemoryCache()
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	ns := opts.Namespace
	if ns == "" {
		ns = "default"
	}
	return &Resolver{
		lister: lister,
		cache:  cache,
		key:    "idmap:products:" + ns,
		ttl:    opts.TTL,
		logger: opts.Logger,
	}
}

// IsUUID reports whether ref is already a platform id.
func IsUUID(ref string) bool {
	_, err := uuid.Parse(ref)
	return err == nil
}

// Resolve returns the platform id for ref. UUIDs pass through untouched
// without any lookup.
func (r *Resolver) Resolve(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", model.NewValidationError("product_id", "required")
	}
	if IsUUID(ref) {
		return ref, nil
	}

	mapping, err := r.mapping(ctx)
	if err != nil {
		return "", err
	}
	id, ok := mapping[ref]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownSlug, ref)
	}
	return id, nil
}

// ResolveLines returns lines with every ProductID resolved. A line whose
// reference was a slug keeps it in Slug.
func (r *Resolver) ResolveLines(ctx context.Context, lines []model.SyncLine) ([]model.SyncLine, error) {
	out := make([]model.SyncLine, len(lines))
	for i, line := range lines {
		id, err := r.Resolve(ctx, line.ProductID)
		if err != nil {
			return nil, fmt.Errorf("resolving item %s: %w", line.ItemID, err)
		}
		if id != line.ProductID && line.Slug == "" {
			line.Slug = line.ProductID
		}
		line.ProductID = id
		out[i] = line
	}
	return out, nil
}

// Invalidate drops the cached mapping so the next slug lookup refetches.
func (r *Resolver) Invalidate(ctx context.Context) error {
	return r.cache.Delete(ctx, r.key)
}

func (r *Resolver) mapping(ctx context.Context) (map[string]string, error) {
	if m, ok := r.cached(ctx); ok {
		return m, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another caller may have refetched while we waited.
	if m, ok := r.cached(ctx); ok {
		return m, nil
	}

	products, err := r.lister.ListProducts(ctx)
	if err != nil {
		if r.stale != nil {
			r.logger.Warn("product list refetch failed, serving stale id map", "error", err)
			return r.stale, nil
		}
		return nil, fmt.Errorf("fetching product list: %w", err)
	}

	m := make(map[string]string, len(products))
	for _, p := range products {
		if p.Slug != "" && p.ID != "" {
			m[p.Slug] = p.ID
		}
	}
	if err := r.cache.Set(ctx, r.key, m, r.ttl); err != nil {
		r.logger.Warn("storing id map failed", "error", err)
	}
	r.stale = m
	r.logger.Debug("id map refreshed", "products", len(m))
	return m, nil
}

func (r *Resolver) cached(ctx context.Context) (map[string]string, bool) {
	m, err := r.cache.Get(ctx, r.key)
	if err == nil {
		return m, true
	}
	if !errors.Is(err, ErrCacheMiss) {
		r.logger.Warn("reading id map cache failed", "error", err)
	}
	return nil, false
}
