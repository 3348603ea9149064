// Package queue defines the audit messages exchanged over the message
// broker, their publisher and the consumer that records them.
package queue

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AuditQueueName is the durable queue every audit event is routed to.
const AuditQueueName = "seating.audit"

// Audit event types.
const (
	UserRegistered    = "user.registered"
	UserDeleted       = "user.deleted"
	EventCreated      = "event.created"
	EventUpdated      = "event.updated"
	EventDeleted      = "event.deleted"
	CollaboratorAdded = "collaborator.added"
	TableCreated      = "table.created"
	TableUpdated      = "table.updated"
	TableDeleted      = "table.deleted"
	SeatAssigned      = "seat.assigned"
	GuestCreated      = "guest.created"
	GuestDeleted      = "guest.deleted"
)

// AuditEvent is published after a change has been committed.  It carries
// ids only, so consumers never see guest contact details.
type AuditEvent struct {
	Type         string    `json:"type"`
	ActorID      uuid.UUID `json:"actor_id"`
	ResourceKind string    `json:"resource_kind"`
	ResourceID   uuid.UUID `json:"resource_id"`
	EventID      uuid.UUID `json:"event_id"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Line renders the event as one log line.
func (e AuditEvent) Line() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s | actor=%s | %s=%s",
		e.OccurredAt.UTC().Format(time.RFC3339), e.Type, e.ActorID, e.ResourceKind, e.ResourceID)
	if e.EventID != uuid.Nil && e.ResourceKind != "event" {
		fmt.Fprintf(&b, " | event=%s", e.EventID)
	}
	b.WriteByte('\n')
	return b.String()
}
