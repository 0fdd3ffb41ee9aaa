package cache

import "teamboard/internal/model"

// Groups maps a column key to its items in cache order. Keys lists every requested key, so
// empty groups are still present.
type Groups[T any] struct {
	Keys  []string
	Items map[string][]T
	// Other holds items whose keys matched none of the requested keys.
	Other []T
}

// Group partitions items by field. Every requested key is present even when empty.
func Group[T model.Groupable](items []T, field model.Field, keys []string) Groups[T] {
	g := Groups[T]{
		Keys:  append([]string(nil), keys...),
		Items: make(map[string][]T, len(keys)),
	}
	for _, k := range keys {
		g.Items[k] = []T{}
	}
	for _, it := range items {
		placed := false
		for _, k := range it.GroupKeys(field) {
			if _, ok := g.Items[k]; !ok {
				continue
			}
			g.Items[k] = append(g.Items[k], it)
			placed = true
		}
		if !placed {
			g.Other = append(g.Other, it)
		}
	}
	return g
}

// GroupBy groups the current contents of c.
func GroupBy[T model.Groupable](c *Cache[T], field model.Field, keys []string) Groups[T] {
	return Group(c.Items(), field, keys)
}
