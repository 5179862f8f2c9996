package authz

import (
	"context"

	"tarediiran-industries.com/ticketing-services/internal/model"
)

// Principal is the caller of a request. The zero UserID means anonymous.
type Principal struct {
	UserID int64
	Email  string
	Name   string
	Role   model.Role
}

var Anonymous = Principal{Role: model.RoleAnonymous}

func PrincipalFromUser(user model.User) Principal {
	return Principal{UserID: user.ID, Email: user.Email, Name: user.Name, Role: user.Role}
}

func (principal Principal) Authenticated() bool {
	return principal.UserID != 0
}

func (principal Principal) IsAdmin() bool {
	return principal.Role == model.RoleAdmin
}

// Owns reports whether a row owned by ownerID is visible to the principal.
// Admins see everything; customers only rows carrying their own user ID.
func (principal Principal) Owns(ownerID *int64) bool {
	if principal.IsAdmin() {
		return true
	}
	return principal.Authenticated() && ownerID != nil && *ownerID == principal.UserID
}

// Scope restricts list queries: nil for admins, the caller's ID otherwise.
func (principal Principal) Scope() *int64 {
	if principal.IsAdmin() {
		return nil
	}
	id := principal.UserID
	return &id
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, principal Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, principal)
}

func PrincipalFrom(ctx context.Context) Principal {
	if principal, ok := ctx.Value(principalKey{}).(Principal); ok {
		return principal
	}
	return Anonymous
}
