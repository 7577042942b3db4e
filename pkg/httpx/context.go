package httpx

import (
	"context"
	"sync"

	"github.com/opsarea/userd/pkg/jwtx"
)

type ctxKey string

const (
	CtxKeyUserID ctxKey = "user_id"
	CtxKeyRoles  ctxKey = "roles"
	CtxKeyClaims ctxKey = "claims"

	ctxKeyActorCell ctxKey = "actor_cell"
)

// actorCell lets an inner middleware report the authenticated identity to an
// outer one. Context values only flow inward, so the outer middleware plants
// a mutable cell and reads it after the handler returns.
type actorCell struct {
	mu sync.Mutex
	v  string
}

// WithActorCell plants an empty actor cell in the context.
func WithActorCell(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxKeyActorCell, &actorCell{})
}

// SetActor records the acting identity into the cell, if one was planted.
func SetActor(ctx context.Context, actor string) {
	if cell, ok := ctx.Value(ctxKeyActorCell).(*actorCell); ok {
		cell.mu.Lock()
		cell.v = actor
		cell.mu.Unlock()
	}
}

// ActorFromCell returns the identity recorded via SetActor, or "".
func ActorFromCell(ctx context.Context) string {
	if cell, ok := ctx.Value(ctxKeyActorCell).(*actorCell); ok {
		cell.mu.Lock()
		defer cell.mu.Unlock()
		return cell.v
	}
	return ""
}

// UserIDFromContext returns the authenticated subject, or "" when the
// request carried no valid token.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CtxKeyUserID).(string); ok {
		return v
	}
	return ""
}

// ClaimsFromContext returns the verified claims, or nil.
func ClaimsFromContext(ctx context.Context) *jwtx.Claims {
	if v, ok := ctx.Value(CtxKeyClaims).(*jwtx.Claims); ok {
		return v
	}
	return nil
}

// ActingUserFromContext identifies the caller for audit trails: the token's
// email when present, else the subject, else "".
func ActingUserFromContext(ctx context.Context) string {
	claims := ClaimsFromContext(ctx)
	if claims == nil {
		return ""
	}
	if claims.Email != "" {
		return claims.Email
	}
	return claims.Subject
}

func rolesFromCtx(ctx context.Context) []string {
	if v, ok := ctx.Value(CtxKeyRoles).([]string); ok {
		return v
	}
	return nil
}
