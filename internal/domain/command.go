package domain

import "time"

// Command status constants.
const (
	CommandExecuted = "executed"
	CommandRejected = "rejected"
)

// Command is the historical record of one submitted command.
// Records are append-only and never mutated.
type Command struct {
	ID              string    `json:"id"               db:"id"`
	UserID          string    `json:"user_id"          db:"user_id"`
	CommandText     string    `json:"command_text"     db:"command_text"`
	Status          string    `json:"status"           db:"status"`
	Result          string    `json:"result,omitempty" db:"result"` // empty unless executed
	CreditsDeducted int       `json:"credits_deducted" db:"credits_deducted"`
	CreatedAt       time.Time `json:"created_at"       db:"created_at"`
}

// CommandOutcome is what a submission returns to the caller.
type CommandOutcome struct {
	CommandText string `json:"command_text"`
	Status      string `json:"status"`
	Result      string `json:"result,omitempty"`
	NewBalance  int    `json:"new_balance"`
}
