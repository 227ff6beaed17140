package datastore

import (
	"context"
	"errors"
	"fmt"
)

// Collection names used by the API. Documents are schemaless; the services
// translate between typed models and Document at this boundary.
const (
	CollectionRecipe     = "RECIPE"
	CollectionIngredient = "INGREDIENT"
	CollectionUser       = "USER"
)

var (
	// ErrNotFound is returned when no document exists for the given id, or
	// when the id does not parse as a store identifier at all.
	ErrNotFound = errors.New("document not found")

	// ErrUnavailable covers every store-level failure (timeout, permission,
	// transient outage). The store never retries; that is the caller's call.
	ErrUnavailable = errors.New("datastore unavailable")

	// ErrBadCursor is returned for a page cursor that did not come from a
	// previous query result.
	ErrBadCursor = errors.New("malformed page cursor")
)

// Document is an opaque field map. Documents read from a store carry their
// identifier under the "id" key as an int64; the key is ignored on writes.
type Document map[string]interface{}

// PageInfo describes where a paginated query stopped.
type PageInfo struct {
	EndCursor   string
	MoreResults bool
}

// Store is the collection-scoped document store used by every service.
// Identifiers are store-assigned, monotonic per collection and never reused.
// Each write is atomic for a single document; there are no cross-document
// transactions, so multi-document consistency belongs to the callers.
type Store interface {
	// Save persists a new document and returns it with its assigned id.
	Save(ctx context.Context, collection string, doc Document) (Document, error)
	// Get looks up a document by id. Ids that do not parse as int64 are
	// reported as ErrNotFound rather than as a format error.
	Get(ctx context.Context, collection, id string) (Document, error)
	// List scans a whole collection. Only used for small administrative
	// collections such as user profiles.
	List(ctx context.Context, collection string) ([]Document, error)
	// QueryByAttribute returns all documents matching a single predicate.
	// Unpaginated; callers use it where results are bounded by ownership.
	QueryByAttribute(ctx context.Context, collection, field, comparator string, value interface{}) ([]Document, error)
	// QueryPage is QueryByAttribute with an opaque resume cursor. Passing a
	// previously returned EndCursor resumes exactly after the last document
	// of that page.
	QueryPage(ctx context.Context, collection, field, comparator string, value interface{}, pageSize int, cursor string) ([]Document, PageInfo, error)
	// Replace overwrites the whole document stored under id. There are no
	// field-level updates; mutations are read-modify-write.
	Replace(ctx context.Context, collection, id string, doc Document) (Document, error)
	// Delete removes the document stored under id.
	Delete(ctx context.Context, collection, id string) error
}

// unavailable wraps a backend failure so callers can test with
// errors.Is(err, ErrUnavailable) while keeping the underlying detail.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %v: %w", op, err, ErrUnavailable)
}
