// Package audit routes immutable audit events to their sinks: data-change
// events into the primary database, web-request events into a separate
// audit database. Recording never fails the caller; a broken sink is an
// operational problem, not a request-path one.
package audit

import (
	"context"
	"strings"
	"time"

	"github.com/opsarea/userd/internal/users/domain"
	"github.com/opsarea/userd/pkg/idx"
	"github.com/opsarea/userd/pkg/slogx"
)

// Sink persists one audit event somewhere durable.
type Sink interface {
	Write(ctx context.Context, ev domain.AuditEvent) error
}

// ActorFunc resolves the acting user for the current request context, or ""
// when no authenticated principal is present.
type ActorFunc func(ctx context.Context) string

// Router fan-outs events by source. Construction wires concrete sinks and
// the actor accessor once; handlers and services only see Record* methods.
type Router struct {
	change   Sink
	request  Sink
	denylist []string
	actor    ActorFunc
}

// NewRouter builds a router. Denylist entries are matched as case-insensitive
// substrings of the request path; matching requests are never recorded.
func NewRouter(change, request Sink, denylist []string, actor ActorFunc) *Router {
	lowered := make([]string, 0, len(denylist))
	for _, d := range denylist {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			lowered = append(lowered, d)
		}
	}
	if actor == nil {
		actor = func(context.Context) string { return "" }
	}
	return &Router{change: change, request: request, denylist: lowered, actor: actor}
}

// RecordChange persists one data-change event. Sink failures are logged and
// swallowed so a broken audit store can never abort a committed mutation.
func (r *Router) RecordChange(ctx context.Context, entityType, primaryKey, changeSet string) {
	ev := domain.NewChangeEvent(idx.New().String(), r.actor(ctx),
		entityType, primaryKey, changeSet, nowUTC())
	r.dispatch(ctx, ev)
}

// RecordRequest persists one web-request event unless the path is denylisted.
func (r *Router) RecordRequest(ctx context.Context, rec domain.RequestRecord) {
	if r.denied(rec.Path) {
		return
	}
	ev := domain.NewRequestEvent(idx.New().String(), r.actor(ctx), rec)
	r.dispatch(ctx, ev)
}

func (r *Router) dispatch(ctx context.Context, ev domain.AuditEvent) {
	var (
		sink Sink
		err  error
	)

	switch ev.Source {
	case domain.AuditSourceChange:
		sink = r.change
	case domain.AuditSourceRequest:
		sink = r.request
	default:
		slogx.FromContext(ctx).Warn("audit event with unknown source dropped",
			"source", string(ev.Source), "event_id", ev.ID)
		return
	}

	if sink == nil {
		return
	}
	if err = sink.Write(ctx, ev); err != nil {
		slogx.FromContext(ctx).Error("audit sink write failed",
			"source", string(ev.Source), "event_id", ev.ID, "error", err)
	}
}

func nowUTC() time.Time { return time.Now().UTC() }

func (r *Router) denied(path string) bool {
	p := strings.ToLower(path)
	for _, d := range r.denylist {
		if strings.Contains(p, d) {
			return true
		}
	}
	return false
}
