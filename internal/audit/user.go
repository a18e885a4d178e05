package audit

import (
	"context"
	"errors"
)

// ErrUserRequired is returned when no acting user can be resolved for an audited operation.
var ErrUserRequired = errors.New("audit: user required")

// UserMarker is the bookkeeping key a pending document may carry to name its acting user.
// It is stripped before diffing and never persisted.
const UserMarker = "__user"

// UserProvider resolves the acting user when an operation does not name one.
type UserProvider interface {
	CurrentUser(ctx context.Context) (string, bool)
}

// UserProviderFunc adapts a function to UserProvider.
type UserProviderFunc func(ctx context.Context) (string, bool)

func (f UserProviderFunc) CurrentUser(ctx context.Context) (string, bool) {
	return f(ctx)
}

// NoUser never resolves a user. It is the default provider.
var NoUser UserProvider = UserProviderFunc(func(context.Context) (string, bool) { return "", false })

// StaticUser always resolves to user; an empty user resolves to nothing.
func StaticUser(user string) UserProvider {
	return UserProviderFunc(func(context.Context) (string, bool) { return user, user != "" })
}

// ContextUser resolves the user attached with WithUser.
var ContextUser UserProvider = UserProviderFunc(UserFromContext)

// FirstOf tries providers in order and returns the first resolved user. Nil providers are skipped.
func FirstOf(providers ...UserProvider) UserProvider {
	return UserProviderFunc(func(ctx context.Context) (string, bool) {
		for _, p := range providers {
			if p == nil {
				continue
			}
			if u, ok := p.CurrentUser(ctx); ok && u != "" {
				return u, true
			}
		}
		return "", false
	})
}

type userKey struct{}

// WithUser attaches the acting user to ctx.
func WithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// UserFromContext returns the user attached with WithUser.
func UserFromContext(ctx context.Context) (string, bool) {
	u, ok := ctx.Value(userKey{}).(string)
	return u, ok && u != ""
}
