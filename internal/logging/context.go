package logging

import "context"

type contextKey string

const fieldsKey contextKey = "log_fields"

// Fields are added to every record logged with a context that carries them.
type Fields struct {
	WorkspaceID string
	ProjectID   string
	TaskID      string
	Scope       string
	Component   string
}

// WithFields merges fields into ctx. Non-empty values win over what ctx already carries.
func WithFields(ctx context.Context, fields Fields) context.Context {
	return context.WithValue(ctx, fieldsKey, merge(FieldsFrom(ctx), fields))
}

func FieldsFrom(ctx context.Context) Fields {
	if ctx == nil {
		return Fields{}
	}
	if f, ok := ctx.Value(fieldsKey).(Fields); ok {
		return f
	}
	return Fields{}
}

func merge(cur, next Fields) Fields {
	if next.WorkspaceID != "" {
		cur.WorkspaceID = next.WorkspaceID
	}
	if next.ProjectID != "" {
		cur.ProjectID = next.ProjectID
	}
	if next.TaskID != "" {
		cur.TaskID = next.TaskID
	}
	if next.Scope != "" {
		cur.Scope = next.Scope
	}
	if next.Component != "" {
		cur.Component = next.Component
	}
	return cur
}
