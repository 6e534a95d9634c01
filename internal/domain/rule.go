package domain

import "time"

// Action is the outcome a rule assigns to a matching command.
// It is a closed set: anything outside Accept/Reject is invalid.
type Action string

const (
	ActionAccept Action = "AUTO_ACCEPT"
	ActionReject Action = "AUTO_REJECT"
)

// Valid reports whether a is one of the two known actions.
func (a Action) Valid() bool {
	return a == ActionAccept || a == ActionReject
}

// Rule is an ordered policy entry. Rules are immutable once created and
// evaluated in insertion order: first match wins.
type Rule struct {
	ID          string    `json:"id"          db:"id"`
	Pattern     string    `json:"pattern"     db:"pattern"`
	Action      Action    `json:"action"      db:"action"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at"  db:"created_at"`
}
