// Package audit carries the acting user through request contexts so that the
// service layer can stamp createdBy/updatedBy columns.
package audit

import "context"

type ctxKey string

const userKey ctxKey = "ecm.auditUser"

// System is recorded when no user is attached to the context.
const System = "system"

// WithUser stores the acting user in ctx.
func WithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromCtx fetches the acting user from ctx.
func UserFromCtx(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(userKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// User returns the acting user or System.
func User(ctx context.Context) string {
	if u, ok := UserFromCtx(ctx); ok {
		return u
	}
	return System
}
