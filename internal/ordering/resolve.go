package ordering

import (
	"context"
	"fmt"

	"rentsync/internal/adapter"
	"rentsync/internal/model"
)

// IDResolver maps a product reference (slug or id) to the platform id.
type IDResolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

// resolvingBackend resolves line product references before they reach the
// platform. Catalog records often carry a slug where the platform wants a UUID.
type resolvingBackend struct {
	Backend
	resolver IDResolver
}

// Resolving wraps backend so AddLine sends resolved product ids.
// A nil resolver returns backend unchanged.
func Resolving(backend Backend, resolver IDResolver) Backend {
	if resolver == nil {
		return backend
	}
	return &resolvingBackend{Backend: backend, resolver: resolver}
}

func (b *resolvingBackend) AddLine(ctx context.Context, req *adapter.AddLineRequest) (*model.Line, error) {
	id, err := b.resolver.Resolve(ctx, req.ProductID)
	if err != nil {
		return nil, fmt.Errorf("resolving product %s: %w", req.ProductID, err)
	}
	resolved := *req
	resolved.ProductID = id
	return b.Backend.AddLine(ctx, &resolved)
}
