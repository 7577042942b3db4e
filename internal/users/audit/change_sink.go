package audit

import (
	"context"

	"github.com/opsarea/userd/internal/users/domain"
	"github.com/opsarea/userd/internal/users/store"
)

// ChangeSink writes data-change events into the primary store's audit table,
// alongside the rows they describe.
type ChangeSink struct {
	store store.Store
}

func NewChangeSink(s store.Store) *ChangeSink {
	return &ChangeSink{store: s}
}

func (s *ChangeSink) Write(ctx context.Context, ev domain.AuditEvent) error {
	return s.store.ChangeAudits().InsertChangeAudit(ctx, ev)
}
