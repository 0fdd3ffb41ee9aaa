package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"teamboard/internal/model"
)

type notFoundError struct {
	kind string
	id   string
}

func (e notFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.kind, e.id)
}

func errNotFound(kind, id string) error {
	return notFoundError{kind: kind, id: id}
}

// parseEnum validates a flag value against an option list.
func parseEnum(flag string, opts []model.Option, v string) (string, error) {
	s, err := model.ParseOption(opts, v)
	if err != nil {
		return "", fmt.Errorf("--%s: %w", flag, err)
	}
	return s, nil
}

// parseDate accepts YYYY-MM-DD or RFC 3339. An empty value clears the date.
func parseDate(flag, v string) (*time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, v); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("--%s: invalid date %q (want YYYY-MM-DD)", flag, v)
}

func optionalString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

var errNothingToSet = errors.New("nothing to set; pass at least one field flag")
