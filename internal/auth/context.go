package auth

import "context"

type accessContextKey struct{}
type identityContextKey struct{}

// ContextWithAccess attaches the evaluated access snapshot to the context.
func ContextWithAccess(ctx context.Context, access Access) context.Context {
	return context.WithValue(ctx, accessContextKey{}, &access)
}

// AccessFromContext returns the access snapshot, or Anonymous when absent.
func AccessFromContext(ctx context.Context) Access {
	if ctx == nil {
		return Anonymous()
	}
	v, ok := ctx.Value(accessContextKey{}).(*Access)
	if !ok || v == nil {
		return Anonymous()
	}
	return *v
}

// ContextWithIdentity stores the identity proven by the request credentials.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, &id)
}

// IdentityFromContext extracts the identity stored by ContextWithIdentity.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	v, ok := ctx.Value(identityContextKey{}).(*Identity)
	if !ok || v == nil || v.ID == "" {
		return Identity{}, false
	}
	return *v, true
}

// RequestIdentity answers "who is the current actor" from the request context.
// It returns a nil identity when the request carried no credentials.
type RequestIdentity struct{}

func (RequestIdentity) CurrentIdentity(ctx context.Context) (*Identity, error) {
	id, ok := IdentityFromContext(ctx)
	if !ok {
		return nil, nil
	}
	return &id, nil
}
