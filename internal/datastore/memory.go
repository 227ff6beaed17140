package datastore

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store used when no MongoDB is configured and
// as the test double for every layer above the store. Ids are monotonic per
// collection and never reused. Every read and write deep-copies the
// document, so callers never share mutable state through the store.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]map[int64]Document
	next map[string]int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]map[int64]Document),
		next: make(map[string]int64),
	}
}

func (s *MemoryStore) Save(ctx context.Context, collection string, doc Document) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data[collection] == nil {
		s.data[collection] = make(map[int64]Document)
	}
	s.next[collection]++
	id := s.next[collection]
	stored := copyDoc(doc)
	delete(stored, "id")
	s.data[collection][id] = stored
	out := copyDoc(stored)
	out["id"] = id
	return out, nil
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string) (Document, error) {
	n, ok := parseID(id)
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", collection, id, ErrNotFound)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.data[collection][n]
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", collection, id, ErrNotFound)
	}
	out := copyDoc(stored)
	out["id"] = n
	return out, nil
}

func (s *MemoryStore) List(ctx context.Context, collection string) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(collection, func(Document) bool { return true }), nil
}

func (s *MemoryStore) QueryByAttribute(ctx context.Context, collection, field, comparator string, value interface{}) ([]Document, error) {
	match, err := matcher(field, comparator, value)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(collection, match), nil
}

func (s *MemoryStore) QueryPage(ctx context.Context, collection, field, comparator string, value interface{}, pageSize int, cursor string) ([]Document, PageInfo, error) {
	match, err := matcher(field, comparator, value)
	if err != nil {
		return nil, PageInfo{}, err
	}
	var afterID int64
	if cursor != "" {
		afterID, err = decodeCursor(cursor)
		if err != nil {
			return nil, PageInfo{}, err
		}
	}
	s.mu.RLock()
	all := s.collect(collection, match)
	s.mu.RUnlock()

	page := []Document{}
	remaining := 0
	for _, doc := range all {
		id := doc["id"].(int64)
		if id <= afterID {
			continue
		}
		if len(page) < pageSize {
			page = append(page, doc)
		} else {
			remaining++
		}
	}
	return page, finishPage(page, remaining > 0, pageSize), nil
}

func (s *MemoryStore) Replace(ctx context.Context, collection, id string, doc Document) (Document, error) {
	n, ok := parseID(id)
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", collection, id, ErrNotFound)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[collection][n]; !ok {
		return nil, fmt.Errorf("%s %s: %w", collection, id, ErrNotFound)
	}
	stored := copyDoc(doc)
	delete(stored, "id")
	s.data[collection][n] = stored
	out := copyDoc(stored)
	out["id"] = n
	return out, nil
}

func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	n, ok := parseID(id)
	if !ok {
		return fmt.Errorf("%s %s: %w", collection, id, ErrNotFound)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[collection][n]; !ok {
		return fmt.Errorf("%s %s: %w", collection, id, ErrNotFound)
	}
	delete(s.data[collection], n)
	return nil
}

// collect returns matching documents in id order. Caller holds the lock.
func (s *MemoryStore) collect(collection string, match func(Document) bool) []Document {
	ids := make([]int64, 0, len(s.data[collection]))
	for id := range s.data[collection] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := []Document{}
	for _, id := range ids {
		doc := copyDoc(s.data[collection][id])
		doc["id"] = id
		if match(doc) {
			out = append(out, doc)
		}
	}
	return out
}

func matcher(field, comparator string, value interface{}) (func(Document) bool, error) {
	switch comparator {
	case "=":
		return func(d Document) bool { return reflect.DeepEqual(d[field], value) }, nil
	case "!=":
		return func(d Document) bool { return !reflect.DeepEqual(d[field], value) }, nil
	case "<", "<=", ">", ">=":
		return func(d Document) bool { return ordered(d[field], comparator, value) }, nil
	default:
		return nil, fmt.Errorf("unsupported comparator %q", comparator)
	}
}

func ordered(a interface{}, comparator string, b interface{}) bool {
	var cmp int
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return false
		}
		switch {
		case av < bv:
			cmp = -1
		case av > bv:
			cmp = 1
		}
	case int64:
		bv, ok := b.(int64)
		if !ok {
			return false
		}
		switch {
		case av < bv:
			cmp = -1
		case av > bv:
			cmp = 1
		}
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return false
		}
		switch {
		case av < bv:
			cmp = -1
		case av > bv:
			cmp = 1
		}
	default:
		return false
	}
	switch comparator {
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	default:
		return cmp >= 0
	}
}

// copyDoc deep-copies a document so store internals and concurrent callers
// never alias each other's maps or slices.
func copyDoc(doc Document) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v interface{}) interface{} {
	switch val := v.(type) {
	case Document:
		return copyDoc(val)
	case map[string]interface{}:
		return map[string]interface{}(copyDoc(Document(val)))
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, e := range val {
			out[i] = copyValue(e)
		}
		return out
	default:
		return v
	}
}
