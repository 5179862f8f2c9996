package authz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tarediiran-industries.com/ticketing-services/internal/model"
)

func TestPolicy(t *testing.T) {
	ctx := context.Background()
	authorizer, err := NewAuthorizer(ctx)
	require.NoError(t, err)

	customer := Principal{UserID: 7, Role: model.RoleCustomer}
	admin := Principal{UserID: 1, Role: model.RoleAdmin}

	cases := []struct {
		name      string
		method    string
		path      string
		principal Principal
		allowed   bool
		reason    string
	}{
		{"health", "GET", "/healthz", Anonymous, true, ""},
		{"anonymous catalog", "GET", "/api/stations", Anonymous, true, ""},
		{"anonymous search", "GET", "/api/search/trains", Anonymous, true, ""},
		{"anonymous seat map", "GET", "/api/schedules/3/seats", Anonymous, true, ""},
		{"anonymous departures", "GET", "/api/stations/3/departures", Anonymous, true, ""},
		{"anonymous board", "GET", "/board/NYP", Anonymous, true, ""},
		{"anonymous board partial", "GET", "/board/NYP/partial", Anonymous, true, ""},
		{"anonymous board write", "POST", "/board/NYP", Anonymous, false, "authentication required"},
		{"anonymous catalog write", "POST", "/api/stations", Anonymous, false, "authentication required"},
		{"anonymous login", "POST", "/api/auth/login", Anonymous, true, ""},
		{"anonymous register", "POST", "/api/auth/register", Anonymous, true, ""},
		{"anonymous me", "GET", "/api/auth/me", Anonymous, false, "authentication required"},
		{"anonymous checkout", "POST", "/api/checkout", Anonymous, false, "authentication required"},
		{"customer me", "GET", "/api/auth/me", customer, true, ""},
		{"customer checkout", "POST", "/api/checkout", customer, true, ""},
		{"customer bookings", "GET", "/api/bookings", customer, true, ""},
		{"customer receipt", "GET", "/api/bookings/4/receipt", customer, true, ""},
		{"customer cancel", "POST", "/api/bookings/4/cancel", customer, true, ""},
		{"customer delete booking", "DELETE", "/api/bookings/4", customer, false, "insufficient role"},
		{"customer new passenger", "POST", "/api/passengers", customer, true, ""},
		{"customer edit passenger", "PUT", "/api/passengers/2", customer, true, ""},
		{"customer catalog write", "PUT", "/api/trains/1", customer, false, "insufficient role"},
		{"customer dashboard", "GET", "/api/dashboard", customer, false, "insufficient role"},
		{"customer users", "GET", "/api/users", customer, false, "insufficient role"},
		{"admin dashboard", "GET", "/api/dashboard", admin, true, ""},
		{"admin delete", "DELETE", "/api/stations/1", admin, true, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			decision, err := authorizer.Authorize(ctx, NewRequest(tc.method, tc.path, tc.principal))
			require.NoError(t, err)
			assert.Equal(t, tc.allowed, decision.Allowed)
			assert.Equal(t, tc.reason, decision.Reason)
		})
	}
}

func TestAuthorizeDefaultsToAnonymous(t *testing.T) {
	ctx := context.Background()
	authorizer, err := NewAuthorizer(ctx)
	require.NoError(t, err)

	decision, err := authorizer.Authorize(ctx, Request{Method: "DELETE", Path: []string{"api", "trains", "1"}})
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, "authentication required", decision.Reason)
}

func TestBrokenPolicy(t *testing.T) {
	_, err := NewAuthorizerFromSource(context.Background(), "package ticketing.authz\n\ndecision := {")
	assert.Error(t, err)
}

func TestSplitPath(t *testing.T) {
	assert.Equal(t, []string{}, SplitPath("/"))
	assert.Equal(t, []string{"api", "bookings", "3"}, SplitPath("/api/bookings/3/"))
}

func TestPasswords(t *testing.T) {
	_, err := HashPassword("short")
	assert.ErrorIs(t, err, ErrWeakPassword)

	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)
	assert.NoError(t, CheckPassword(hash, "correct horse"))
	assert.ErrorIs(t, CheckPassword(hash, "battery staple"), ErrInvalidCredentials)
}

func TestSessionTokens(t *testing.T) {
	token, hash, err := NewSessionToken()
	require.NoError(t, err)
	assert.Len(t, token, 43)
	assert.Equal(t, HashToken(token), hash)
	assert.Len(t, hash, 64)

	other, _, err := NewSessionToken()
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestFingerprintSeparatesDomainsAndParts(t *testing.T) {
	assert.Equal(t, Fingerprint([]byte("a"), []byte("b")), Fingerprint([]byte("a"), []byte("b")))
	assert.NotEqual(t, Fingerprint([]byte("ab"), []byte("c")), Fingerprint([]byte("a"), []byte("bc")))
	assert.NotEqual(t, HashToken("abc"), Fingerprint([]byte("abc")))
}

func TestPrincipalOwnership(t *testing.T) {
	owner := int64(7)
	stranger := int64(8)
	customer := Principal{UserID: 7, Role: model.RoleCustomer}
	admin := Principal{UserID: 1, Role: model.RoleAdmin}

	assert.True(t, customer.Owns(&owner))
	assert.False(t, customer.Owns(&stranger))
	assert.False(t, customer.Owns(nil))
	assert.True(t, admin.Owns(nil))
	assert.False(t, Anonymous.Owns(&owner))

	assert.Nil(t, admin.Scope())
	assert.Equal(t, &owner, customer.Scope())

	ctx := WithPrincipal(context.Background(), customer)
	assert.Equal(t, customer, PrincipalFrom(ctx))
	assert.Equal(t, Anonymous, PrincipalFrom(context.Background()))
}
