package datastore

import (
	"encoding/base64"
	"fmt"
	"strconv"
)

// Cursors encode the id of the last document on a page. They are opaque to
// callers and must round-trip unchanged.

func encodeCursor(lastID int64) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.FormatInt(lastID, 10)))
}

func decodeCursor(cursor string) (int64, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBadCursor, err)
	}
	id, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBadCursor, err)
	}
	return id, nil
}

// finishPage normalizes the backend's more-results signal. Some backends
// never report end-of-results for small result sets, so a page shorter than
// pageSize is always terminal regardless of what the backend claimed. This
// makes pagination termination deterministic.
func finishPage(docs []Document, backendMore bool, pageSize int) PageInfo {
	info := PageInfo{}
	if len(docs) == 0 {
		return info
	}
	if id, ok := docs[len(docs)-1]["id"].(int64); ok {
		info.EndCursor = encodeCursor(id)
	}
	info.MoreResults = backendMore && len(docs) == pageSize
	return info
}

// parseID parses a caller-supplied identifier. Non-numeric ids can never
// name a stored document, so the failure mode is "not found".
func parseID(id string) (int64, bool) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
