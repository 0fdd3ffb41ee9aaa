package docstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	ErrNotFound = errors.New("document not found")
	ErrClosed   = errors.New("store closed")
)

// Doc is one document of a snapshot. Path is the full document path.
type Doc struct {
	ID   string
	Path string
	Data map[string]any
}

// Query selects either a single collection (Collection) or every collection named Group whose
// path starts with Prefix. Results are always ordered by createdAt descending.
type Query struct {
	Collection string
	Group      string
	Prefix     string
}

func (q Query) Validate() error {
	switch {
	case q.Collection != "" && q.Group != "":
		return fmt.Errorf("query: collection and group are mutually exclusive")
	case q.Collection == "" && q.Group == "":
		return fmt.Errorf("query: collection or group is required")
	}
	return nil
}

func (q Query) String() string {
	if q.Group != "" {
		return "group:" + q.Group + "@" + q.Prefix
	}
	return q.Collection
}

// Matches reports whether a write to collection affects the query.
func (q Query) Matches(collection string) bool {
	if q.Group == "" {
		return q.Collection == collection
	}
	return leaf(collection) == q.Group && strings.HasPrefix(collection+"/", q.Prefix)
}

type (
	SnapshotFunc func(docs []Doc)
	ErrorFunc    func(err error)
	Unsubscribe  func()
)

// Store is the remote document store consumed by the engine.
type Store interface {
	// Create adds a document with a store-assigned id.
	Create(ctx context.Context, collection string, fields map[string]any) (string, error)
	// Set writes a document with a caller-chosen id, replacing any existing one.
	Set(ctx context.Context, collection, id string, fields map[string]any) error
	// Update merges patch into an existing document; ErrNotFound if it does not exist.
	Update(ctx context.Context, collection, id string, patch map[string]any) error
	// Delete removes a document. Deleting a missing document is not an error.
	Delete(ctx context.Context, collection, id string) error
	// Subscribe delivers the full ordered result set once immediately and again after every
	// change. Callbacks for one subscription are never invoked concurrently.
	Subscribe(q Query, onSnapshot SnapshotFunc, onError ErrorFunc) (Unsubscribe, error)
	Close() error
}

type serverTimestamp struct{}

func (serverTimestamp) String() string { return "ServerTimestamp" }

// ServerTimestamp as a field value is replaced by the backend's clock at write time.
var ServerTimestamp any = serverTimestamp{}

func IsServerTimestamp(v any) bool {
	_, ok := v.(serverTimestamp)
	return ok
}

func resolveTimestamps(fields map[string]any, now time.Time) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if IsServerTimestamp(v) {
			out[k] = now
			continue
		}
		out[k] = v
	}
	return out
}

func leaf(collection string) string {
	if i := strings.LastIndex(collection, "/"); i >= 0 {
		return collection[i+1:]
	}
	return collection
}

func validCollection(collection string) error {
	c := strings.Trim(collection, "/")
	if c == "" {
		return fmt.Errorf("collection path is required")
	}
	// Collection paths have an odd number of segments: col/doc/col/...
	if n := len(strings.Split(c, "/")); n%2 == 0 {
		return fmt.Errorf("invalid collection path: %q", collection)
	}
	return nil
}

// createdAt extracts the ordering timestamp from a document.
func createdAt(data map[string]any) time.Time {
	switch v := data["createdAt"].(type) {
	case time.Time:
		return v
	case *time.Time:
		if v != nil {
			return *v
		}
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

type orderedDoc struct {
	doc Doc
	at  time.Time
	seq int64
}

// sortDocs orders newest first; ties fall back to the most recently written.
func sortDocs(xs []orderedDoc) []Doc {
	sort.SliceStable(xs, func(i, j int) bool {
		if !xs[i].at.Equal(xs[j].at) {
			return xs[i].at.After(xs[j].at)
		}
		return xs[i].seq > xs[j].seq
	})
	out := make([]Doc, 0, len(xs))
	for _, x := range xs {
		out = append(out, x.doc)
	}
	return out
}

func copyData(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
