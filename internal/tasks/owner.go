package tasks

import (
	"context"
	"strings"
)

type ownerKey struct{}

// WithOwner attaches the owner on whose behalf tasks are submitted.
func WithOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, ownerKey{}, strings.TrimSpace(owner))
}

// OwnerFromContext returns the owner attached by WithOwner.
func OwnerFromContext(ctx context.Context) (string, bool) {
	owner, ok := ctx.Value(ownerKey{}).(string)
	if !ok || owner == "" {
		return "", false
	}
	return owner, true
}
