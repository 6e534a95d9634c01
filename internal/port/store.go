package port

import (
	"context"

	"github.com/cmdgate/cmdgate/internal/domain"
)

// Decision is the ledger transaction for one command submission: the balance
// mutation, the command history record, and the audit entry. A store applies
// all three atomically or none of them.
type Decision struct {
	UserID string

	// Deduct decrements the user's balance by one. The store must guard the
	// decrement against concurrent submissions: if the balance is already
	// exhausted the whole decision fails with ErrInsufficientCredits.
	Deduct bool

	Command domain.Command
	Audit   domain.AuditLog
}

// Store is the durable persistence boundary for the gateway.
type Store interface {
	// CreateUser inserts a new user. Returns ErrUsernameTaken on a
	// username conflict.
	CreateUser(ctx context.Context, u *domain.User) (*domain.User, error)

	// CreateUserAudited inserts a user and its audit entry atomically:
	// either both records persist or neither does. The store fills the
	// entry's user reference with the new user's ID.
	CreateUserAudited(ctx context.Context, u *domain.User, entry *domain.AuditLog) (*domain.User, error)

	// GetUserByAPIKey looks a user up by exact credential match.
	// Returns ErrUserNotFound when the credential is unknown.
	GetUserByAPIKey(ctx context.Context, apiKey string) (*domain.User, error)

	// GetUserByUsername looks a user up by username.
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)

	// GetUserByID looks a user up by ID.
	GetUserByID(ctx context.Context, id string) (*domain.User, error)

	// CreateRule appends a rule to the end of the ordered rule set.
	CreateRule(ctx context.Context, r *domain.Rule) (*domain.Rule, error)

	// CreateRuleAudited appends a rule and its audit entry atomically,
	// so a rule can never persist without its audit trail.
	CreateRuleAudited(ctx context.Context, r *domain.Rule, entry *domain.AuditLog) (*domain.Rule, error)

	// ListRules returns all rules in creation order.
	ListRules(ctx context.Context) ([]domain.Rule, error)

	// ListCommandsByUser returns a user's command history, newest first.
	ListCommandsByUser(ctx context.Context, userID string) ([]domain.Command, error)

	// AppendAudit writes a single audit entry outside any decision, for
	// events with no accompanying state change.
	AppendAudit(ctx context.Context, entry *domain.AuditLog) error

	// ListAuditLogs returns audit entries newest first, optionally filtered
	// by action. A limit <= 0 means no limit.
	ListAuditLogs(ctx context.Context, limit int, action string) ([]domain.AuditLog, error)

	// ApplyDecision atomically applies a decision and returns the user's
	// post-transaction balance. On failure no partial state remains.
	ApplyDecision(ctx context.Context, dec Decision) (int, error)

	// Close releases store resources.
	Close() error
}
