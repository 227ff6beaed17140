package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/secureboat/recipe-api/internal/datastore"
)

// ValidationError reports required fields that were missing or invalid in a
// request payload. No store mutation is attempted when validation fails.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("the request object is missing at least one required attribute: %s",
		strings.Join(e.Fields, ", "))
}

// Field extraction helpers for the untyped document representation. Absent
// or mistyped fields fall back to zero values; there is no schema in the
// store beyond what these translations read and write.

func docID(doc datastore.Document) int64 {
	id, _ := doc["id"].(int64)
	return id
}

func docString(doc datastore.Document, key string) string {
	s, _ := doc[key].(string)
	return s
}

func docBool(doc datastore.Document, key string) bool {
	b, _ := doc[key].(bool)
	return b
}

func docTime(doc datastore.Document, key string) time.Time {
	t, _ := doc[key].(time.Time)
	return t
}

func docList(doc datastore.Document, key string) []map[string]interface{} {
	raw, _ := doc[key].([]interface{})
	out := make([]map[string]interface{}, 0, len(raw))
	for _, v := range raw {
		if m, ok := v.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out
}

func entryID(entry map[string]interface{}) int64 {
	switch v := entry["id"].(type) {
	case int64:
		return v
	case int32:
		return int64(v)
	}
	return 0
}

func entryString(entry map[string]interface{}, key string) string {
	s, _ := entry[key].(string)
	return s
}
