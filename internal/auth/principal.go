// Package auth carries the caller principal through a context.Context and
// issues the bearer tokens that let the audit-feed server learn that
// principal from an HTTP request.
//
// The registry, directory and ledger never parse tokens. They read the
// principal with PrincipalFromContext and check it against the identity
// registry on every call.
package auth

import (
	"context"
	"strings"
)

// contextKey is unexported so no other package can read or overwrite the
// principal stored under it.
type contextKey string

const principalKey contextKey = "principal"

// WithPrincipal returns a copy of ctx acting as principal.
//
//	ctx := auth.WithPrincipal(context.Background(), "0xabc")
//	id, err := facade.AddCompany(ctx, "fpt", "fpt.com", "quan 9", "")
func WithPrincipal(ctx context.Context, principal string) context.Context {
	return context.WithValue(ctx, principalKey, strings.TrimSpace(principal))
}

// PrincipalFromContext returns ("", false) when ctx carries no caller.
func PrincipalFromContext(ctx context.Context) (string, bool) {
	p, ok := ctx.Value(principalKey).(string)
	return p, ok && p != ""
}
