package domain

import "time"

// Audit actions recorded for a cardholder.
const (
	AuditActionLookup         = "lookup"
	AuditActionAccountCreated = "account_created"
)

// AuditEntry is an immutable record of a lookup or provisioning event.
// Entries are append-only and only disappear when the cardholder itself
// is deleted.
type AuditEntry struct {
	ID           int64     `json:"id"`
	CardholderID int64     `json:"cardholder_id"`
	Action       string    `json:"action"`
	IPAddress    string    `json:"ip_address"`
	CreatedAt    time.Time `json:"created_at"`
}
