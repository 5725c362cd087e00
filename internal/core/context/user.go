// Package context provides request-scoped values extraction.
package context

import (
	"context"
	"slices"
)

// SystemUser is the acting user name for background and internal operations.
const SystemUser = "Administrator"

// UserContext describes who is acting on the current request.
// It replaces any ambient session state: every service reads the actor from here.
type UserContext struct {
	UserID      string
	Email       string
	Roles       []string
	Permissions []string
	IsAdmin     bool
	// IsSystem marks operations started by the service itself
	// (background jobs, status propagation) rather than a person.
	IsSystem  bool
	SessionID string
}

type userContextKey struct{}

// WithUser adds UserContext to context.
func WithUser(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// WithSystemUser marks ctx as a system operation.
func WithSystemUser(ctx context.Context) context.Context {
	return WithUser(ctx, &UserContext{UserID: SystemUser, IsSystem: true, IsAdmin: true})
}

// GetUser returns UserContext from context.
func GetUser(ctx context.Context) *UserContext {
	if v, ok := ctx.Value(userContextKey{}).(*UserContext); ok {
		return v
	}
	return nil
}

// GetUserID returns user ID from context or empty string.
func GetUserID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.UserID
	}
	return ""
}

// GetRoles returns the roles of the acting user.
func GetRoles(ctx context.Context) []string {
	if u := GetUser(ctx); u != nil {
		return u.Roles
	}
	return nil
}

// HasRole checks if user has specific role.
func HasRole(ctx context.Context, role string) bool {
	u := GetUser(ctx)
	if u == nil {
		return false
	}
	return slices.Contains(u.Roles, role)
}

// HasAnyRole reports whether roles and allowed intersect.
func HasAnyRole(roles, allowed []string) bool {
	for _, r := range roles {
		if slices.Contains(allowed, r) {
			return true
		}
	}
	return false
}

// HasPermission checks a "resource:action" permission. Admins and system
// operations hold every permission.
func HasPermission(ctx context.Context, permission string) bool {
	u := GetUser(ctx)
	if u == nil {
		return false
	}
	if u.IsAdmin || u.IsSystem {
		return true
	}
	return slices.Contains(u.Permissions, permission)
}
