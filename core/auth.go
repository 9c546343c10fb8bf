package core

import "context"

type principalKey struct{}

// AccountService identifies the user behind a request.
type AccountService interface {
	CurrentPrincipal(ctx context.Context) (uid string, ok bool)
}

// ContextWithPrincipal attaches the authenticated user id to ctx.
func ContextWithPrincipal(ctx context.Context, uid string) context.Context {
	return context.WithValue(ctx, principalKey{}, uid)
}

func PrincipalFromContext(ctx context.Context) (string, bool) {
	uid, ok := ctx.Value(principalKey{}).(string)
	return uid, ok && uid != ""
}

// RequirePrincipal returns the current user id or ErrUnauthenticated.
func RequirePrincipal(ctx context.Context, accounts AccountService) (string, error) {
	uid, ok := accounts.CurrentPrincipal(ctx)
	if !ok {
		return "", ErrUnauthenticated
	}
	return uid, nil
}
