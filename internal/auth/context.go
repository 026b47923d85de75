// Package auth verifies bearer tokens issued by the external identity provider.
package auth

import (
	"context"
	"time"
)

type ctxKey int

const claimsKey ctxKey = iota

type Claims struct {
	Subject   string
	Email     string
	Role      string
	ExpiresAt time.Time
	Raw       map[string]any
}

func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*Claims)
	return claims, ok && claims != nil
}
