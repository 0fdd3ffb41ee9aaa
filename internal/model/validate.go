package model

import (
	"fmt"
	"strings"

	"teamboard/internal/scope"
)

func required(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return scope.PreconditionError{Field: field}
	}
	return nil
}

func validEnum(field string, opts []Option, v string) error {
	if v == "" || HasOption(opts, v) {
		return nil
	}
	return scope.PreconditionError{Field: field, Reason: fmt.Sprintf("has invalid value %q", v)}
}

func (w Workspace) Validate() error {
	if err := required("name", w.Name); err != nil {
		return err
	}
	return required("slug", w.Slug)
}

func (m Member) Validate() error {
	if err := required("user id", m.UserID); err != nil {
		return err
	}
	if _, err := NormalizeRole(string(m.Role)); err != nil {
		return scope.PreconditionError{Field: "role", Reason: err.Error()}
	}
	return nil
}

func (p Project) Validate() error {
	if err := required("name", p.Name); err != nil {
		return err
	}
	if err := validEnum("status", ProjectStatuses, string(p.Status)); err != nil {
		return err
	}
	return validEnum("priority", ProjectPriorities, string(p.Priority))
}

func (t Task) Validate() error {
	if err := required("title", t.Title); err != nil {
		return err
	}
	if err := validEnum("status", TaskStatuses, string(t.Status)); err != nil {
		return err
	}
	return validEnum("priority", TaskPriorities, string(t.Priority))
}

func (i Issue) Validate() error {
	if err := required("title", i.Title); err != nil {
		return err
	}
	if err := validEnum("status", IssueStatuses, string(i.Status)); err != nil {
		return err
	}
	return validEnum("priority", IssuePriorities, string(i.Priority))
}

func (u Update) Validate() error {
	if err := required("author id", u.AuthorID); err != nil {
		return err
	}
	return required("content", u.Content)
}

// Slugify lowercases s and joins alphanumeric runs with single dashes.
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		default:
			if b.Len() > 0 && !dash {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
