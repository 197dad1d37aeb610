package model

import "time"

// EventKind names a state transition.
type EventKind string

const (
	EventUserAdded               EventKind = "user.added"
	EventUserDeleted             EventKind = "user.deleted"
	EventCompanyAdded            EventKind = "company.added"
	EventCompanyUpdated          EventKind = "company.updated"
	EventCompanyDeleted          EventKind = "company.deleted"
	EventRecruiterConnected      EventKind = "membership.connected"
	EventRecruiterDisconnected   EventKind = "membership.disconnected"
	EventCertificateAdded        EventKind = "certificate.added"
	EventCertificateUpdated      EventKind = "certificate.updated"
	EventCertificateStatusChange EventKind = "certificate.status_changed"
	EventCertificateDeleted      EventKind = "certificate.deleted"
)

// Event is the audit record written alongside every state transition.
// Seq is assigned by the store and orders the feed; ID is globally unique.
type Event struct {
	ID         string    `json:"id"`
	Seq        int64     `json:"seq"`
	Kind       EventKind `json:"kind"`
	Entity     string    `json:"entity"`   // "user", "company", "membership", "certificate"
	EntityID   string    `json:"entityId"` // principal, numeric id, or "companyID/recruiter"
	Actor      string    `json:"actor"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}
