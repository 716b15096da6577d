package common

import "context"

// AdminContext holds the identity resolved from an admin API bearer token.
// Emonk is single-tenant: there is no end-user account model, only an
// operator identity attached to the admin job-management surface.
type AdminContext struct {
	Subject string
}

type contextKey int

const adminContextKey contextKey = iota

// WithAdminContext stores an AdminContext in the request context.
func WithAdminContext(ctx context.Context, ac *AdminContext) context.Context {
	return context.WithValue(ctx, adminContextKey, ac)
}

// AdminContextFromContext retrieves the AdminContext from context, or nil if absent.
func AdminContextFromContext(ctx context.Context) *AdminContext {
	ac, _ := ctx.Value(adminContextKey).(*AdminContext)
	return ac
}
