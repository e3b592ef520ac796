package repo

import (
	"context"
	"errors"

	"github.com/hamed0406/domainwatch/internal/domain"
)

var ErrNotFound = errors.New("endpoint not found")

// UpdateFunc receives the current record and returns its replacement.
// Returning an error aborts the write.
type UpdateFunc func(cur domain.Endpoint) (domain.Endpoint, error)

// EndpointStore is the durable domain -> record mapping. Swap in any DB adapter.
type EndpointStore interface {
	// Get returns nil, nil if the domain is not registered.
	Get(ctx context.Context, name string) (*domain.Endpoint, error)
	// UpsertIfAbsent creates the record on first registration. On a duplicate
	// it returns the existing record untouched and created=false.
	UpsertIfAbsent(ctx context.Context, name, subscriberID string) (ep *domain.Endpoint, created bool, err error)
	// Put replaces the whole record atomically.
	Put(ctx context.Context, ep *domain.Endpoint) error
	// Update is the serialized read-modify-write for a single domain.
	// ErrNotFound when the domain is not registered.
	Update(ctx context.Context, name string, fn UpdateFunc) (*domain.Endpoint, error)
	List(ctx context.Context) ([]domain.Endpoint, error)
	ListBySubscriber(ctx context.Context, subscriberID string) ([]domain.Endpoint, error)
	// Delete is an administrative action; the monitor never calls it.
	Delete(ctx context.Context, name string) error
	Close() error
}
