package domain

import "time"

// AuditLog is an append-only record of a significant gateway action.
type AuditLog struct {
	ID        string    `json:"id"         db:"id"`
	UserID    string    `json:"user_id"    db:"user_id"` // empty when no user is involved
	Action    string    `json:"action"     db:"action"`
	Details   string    `json:"details"    db:"details"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Audit action constants.
const (
	AuditCommandExecuted = "command_executed"
	AuditCommandRejected = "command_rejected"
	AuditRuleCreated     = "rule_created"
	AuditUserRegistered  = "user_registered"
)
