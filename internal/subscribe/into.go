package subscribe

import (
	"log/slog"

	"teamboard/internal/cache"
	"teamboard/internal/docstore"
	"teamboard/internal/model"
	"teamboard/internal/scope"
)

// Decode converts snapshot documents into entities. Undecodable documents are skipped and
// logged; order is preserved.
func Decode[T model.Entity](log *slog.Logger, docs []docstore.Doc) []T {
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		v, err := model.Decode[T](d.ID, d.Data)
		if err != nil {
			if log != nil {
				log.Warn("skipping undecodable document", "path", d.Path, "err", err)
			}
			continue
		}
		out = append(out, v)
	}
	return out
}

// Into attaches key and feeds every snapshot into c through a binding taken now, so events that
// arrive after c is reset are ignored.
func Into[T model.Entity](m *Manager, key scope.Key, c *cache.Cache[T]) (*Handle, error) {
	b := c.Bind()
	return m.Attach(key, func(docs []docstore.Doc) {
		if !b.ReplaceAll(Decode[T](m.log, docs)) {
			m.log.Debug("dropped snapshot for reset cache", "scope", key.String())
		}
	}, func(err error) {
		b.Fail(err)
	})
}
