package sqlite

import (
	"context"
	"fmt"

	"github.com/opsarea/userd/internal/users/domain"
)

type changeAuditsRepo struct {
	q querier
}

func (r *changeAuditsRepo) InsertChangeAudit(ctx context.Context, ev domain.AuditEvent) error {
	if ev.Change == nil {
		return fmt.Errorf("change audit event %q has no change record", ev.ID)
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO audit_changes (id, entity_type, change_set, occurred_at, acting_user, table_pk)
		VALUES (?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.Change.EntityType, ev.Change.ChangeSet, ev.OccurredAt,
		ev.ActingUser, ev.Change.PrimaryKey)
	return err
}
