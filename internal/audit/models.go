package audit

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a registry lifecycle event.
type EventType string

const (
	EventMarkerCreated      EventType = "marker_created"
	EventMarkerOwnerUpdated EventType = "marker_owner_updated"
	EventMarkerBurned       EventType = "marker_burned"
	EventMarkerOrphanBurned EventType = "marker_orphan_burned"
	EventMarkerRejected     EventType = "marker_rejected"
)

// Event is emitted after a marker operation commits or is rejected. Keys are
// rendered as base58 so sinks need no knowledge of the domain types.
type Event struct {
	ID        uuid.UUID `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Domain    string    `json:"domain"`
	Address   string    `json:"address,omitempty"`
	Authority string    `json:"authority,omitempty"`
	Owner     string    `json:"owner,omitempty"`
	Mint      string    `json:"mint,omitempty"`
	Operation string    `json:"operation,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Reclaimed uint64    `json:"reclaimed,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	ClientIP  string    `json:"client_ip,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
}
