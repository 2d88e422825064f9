package domain

import "time"

// AuditEntry is the structured operation descriptor recorded for every
// write operation that must leave a trail.
type AuditEntry struct {
	ID          string
	Module      string
	Action      string
	Description string
	ActorID     string
	CreatedAt   time.Time
}
