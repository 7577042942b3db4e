package domain

import (
	"time"
	"unicode/utf8"
)

// AuditSource discriminates the two kinds of audit events. It is set once at
// construction and drives sink selection in the audit router; nothing ever
// inspects the payload type at runtime.
type AuditSource string

const (
	// AuditSourceChange marks an event describing one persisted state change.
	AuditSourceChange AuditSource = "change"
	// AuditSourceRequest marks an event describing one HTTP request/response cycle.
	AuditSourceRequest AuditSource = "request"
)

// Field limits for request audit records. Longer values are truncated at
// event construction so every sink sees the same bounded data.
const (
	AuditMaxPathLen      = 2048
	AuditMaxUserAgentLen = 1024
	AuditMaxUserLen      = 256
)

// AuditEvent is an immutable record of one state change or one HTTP request.
// Exactly one of Change/Request is set, matching Source.
type AuditEvent struct {
	ID         string
	Source     AuditSource
	OccurredAt time.Time
	ActingUser string // empty when no authenticated principal was involved

	Change  *ChangeRecord
	Request *RequestRecord
}

// ChangeRecord carries the payload of a data-change event.
type ChangeRecord struct {
	EntityType string
	PrimaryKey string
	ChangeSet  string // serialized JSON change-set
}

// RequestRecord carries the payload of a web-request event.
type RequestRecord struct {
	Method      string
	Path        string
	IPAddress   string
	UserAgent   string
	StatusCode  int
	StartedAt   time.Time
	CompletedAt time.Time
	Body        string // free-form JSON request/response metadata
}

// NewChangeEvent builds a data-change event routed to the change-audit sink.
func NewChangeEvent(id, actingUser, entityType, primaryKey, changeSet string, at time.Time) AuditEvent {
	return AuditEvent{
		ID:         id,
		Source:     AuditSourceChange,
		OccurredAt: at,
		ActingUser: truncate(actingUser, AuditMaxUserLen),
		Change: &ChangeRecord{
			EntityType: entityType,
			PrimaryKey: primaryKey,
			ChangeSet:  changeSet,
		},
	}
}

// NewRequestEvent builds a web-request event routed to the request-audit
// sink. Oversized fields are clamped here, once.
func NewRequestEvent(id, actingUser string, rec RequestRecord) AuditEvent {
	rec.Path = truncate(rec.Path, AuditMaxPathLen)
	rec.UserAgent = truncate(rec.UserAgent, AuditMaxUserAgentLen)
	return AuditEvent{
		ID:         id,
		Source:     AuditSourceRequest,
		OccurredAt: rec.StartedAt,
		ActingUser: truncate(actingUser, AuditMaxUserLen),
		Request:    &rec,
	}
}

// truncate cuts s to at most limit bytes, backing off to the nearest rune
// boundary so a multi-byte character is never split.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
