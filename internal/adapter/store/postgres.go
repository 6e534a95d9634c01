package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cmdgate/cmdgate/internal/domain"
	"github.com/cmdgate/cmdgate/internal/port"
	"github.com/lib/pq"
)

// PostgresStore handles all relational database operations.
type PostgresStore struct {
	db *sql.DB
}

// uniqueViolation is the Postgres error code for a unique constraint breach.
const uniqueViolation = "23505"

// NewPostgresStore opens a connection, bootstraps the schema, and returns a
// store instance.
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.migrate(context.Background()); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// migrate creates the schema if it does not exist yet. The seq columns give
// rules and records a stable creation order independent of timestamp ties.
func (s *PostgresStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			username TEXT NOT NULL UNIQUE,
			api_key TEXT NOT NULL UNIQUE,
			role TEXT NOT NULL DEFAULT 'member',
			credits INTEGER NOT NULL DEFAULT 100,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS rules (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			seq BIGSERIAL,
			pattern TEXT NOT NULL,
			action TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS commands (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			seq BIGSERIAL,
			user_id UUID NOT NULL REFERENCES users(id),
			command_text TEXT NOT NULL,
			status TEXT NOT NULL,
			result TEXT,
			credits_deducted INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS audit_logs (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			seq BIGSERIAL,
			user_id UUID REFERENCES users(id),
			action TEXT NOT NULL,
			details TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_commands_user ON commands(user_id, seq DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_action ON audit_logs(action, seq DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// --- Users ---

// CreateUser inserts a new user. A username conflict maps to ErrUsernameTaken.
func (s *PostgresStore) CreateUser(ctx context.Context, u *domain.User) (*domain.User, error) {
	query := `INSERT INTO users (username, api_key, role, credits)
	          VALUES ($1, $2, $3, $4)
	          RETURNING id, username, api_key, role, credits, created_at`

	var user domain.User
	err := s.db.QueryRowContext(ctx, query, u.Username, u.APIKey, u.Role, u.Credits).Scan(
		&user.ID, &user.Username, &user.APIKey, &user.Role, &user.Credits, &user.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, port.ErrUsernameTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &user, nil
}

// CreateUserAudited inserts a user and its audit entry in one transaction.
// The audit row references the freshly assigned user ID.
func (s *PostgresStore) CreateUserAudited(ctx context.Context, u *domain.User, entry *domain.AuditLog) (*domain.User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create user: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO users (username, api_key, role, credits)
	          VALUES ($1, $2, $3, $4)
	          RETURNING id, username, api_key, role, credits, created_at`

	var user domain.User
	err = tx.QueryRowContext(ctx, query, u.Username, u.APIKey, u.Role, u.Credits).Scan(
		&user.ID, &user.Username, &user.APIKey, &user.Role, &user.Credits, &user.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, port.ErrUsernameTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO audit_logs (user_id, action, details) VALUES ($1, $2, $3)`,
		user.ID, entry.Action, entry.Details,
	)
	if err != nil {
		return nil, fmt.Errorf("audit user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create user: %w", err)
	}
	return &user, nil
}

// GetUserByAPIKey retrieves a user by exact credential match.
func (s *PostgresStore) GetUserByAPIKey(ctx context.Context, apiKey string) (*domain.User, error) {
	return s.getUser(ctx, `api_key = $1`, apiKey)
}

// GetUserByUsername retrieves a user by username.
func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.getUser(ctx, `username = $1`, username)
}

// GetUserByID retrieves a user by ID.
func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	return s.getUser(ctx, `id = $1`, id)
}

func (s *PostgresStore) getUser(ctx context.Context, where string, arg any) (*domain.User, error) {
	query := `SELECT id, username, api_key, role, credits, created_at FROM users WHERE ` + where

	var user domain.User
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID, &user.Username, &user.APIKey, &user.Role, &user.Credits, &user.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// --- Rules ---

// CreateRule appends a rule to the end of the ordered rule set.
func (s *PostgresStore) CreateRule(ctx context.Context, r *domain.Rule) (*domain.Rule, error) {
	query := `INSERT INTO rules (pattern, action, description)
	          VALUES ($1, $2, $3)
	          RETURNING id, pattern, action, description, created_at`

	var rule domain.Rule
	err := s.db.QueryRowContext(ctx, query, r.Pattern, r.Action, r.Description).Scan(
		&rule.ID, &rule.Pattern, &rule.Action, &rule.Description, &rule.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create rule: %w", err)
	}
	return &rule, nil
}

// CreateRuleAudited appends a rule and its audit entry in one transaction,
// so a rule can never persist without its audit trail.
func (s *PostgresStore) CreateRuleAudited(ctx context.Context, r *domain.Rule, entry *domain.AuditLog) (*domain.Rule, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create rule: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO rules (pattern, action, description)
	          VALUES ($1, $2, $3)
	          RETURNING id, pattern, action, description, created_at`

	var rule domain.Rule
	err = tx.QueryRowContext(ctx, query, r.Pattern, r.Action, r.Description).Scan(
		&rule.ID, &rule.Pattern, &rule.Action, &rule.Description, &rule.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create rule: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO audit_logs (user_id, action, details) VALUES (NULLIF($1, '')::uuid, $2, $3)`,
		entry.UserID, entry.Action, entry.Details,
	)
	if err != nil {
		return nil, fmt.Errorf("audit rule: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create rule: %w", err)
	}
	return &rule, nil
}

// ListRules returns all rules in creation order.
func (s *PostgresStore) ListRules(ctx context.Context) ([]domain.Rule, error) {
	query := `SELECT id, pattern, action, description, created_at FROM rules ORDER BY seq ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var rules []domain.Rule
	for rows.Next() {
		var r domain.Rule
		if err := rows.Scan(&r.ID, &r.Pattern, &r.Action, &r.Description, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// --- Commands ---

// ListCommandsByUser returns a user's command history, newest first.
func (s *PostgresStore) ListCommandsByUser(ctx context.Context, userID string) ([]domain.Command, error) {
	query := `SELECT id, user_id, command_text, status, COALESCE(result, ''), credits_deducted, created_at
	          FROM commands WHERE user_id = $1 ORDER BY seq DESC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list commands: %w", err)
	}
	defer rows.Close()

	var commands []domain.Command
	for rows.Next() {
		var c domain.Command
		if err := rows.Scan(
			&c.ID, &c.UserID, &c.CommandText, &c.Status, &c.Result, &c.CreditsDeducted, &c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan command: %w", err)
		}
		commands = append(commands, c)
	}
	return commands, rows.Err()
}

// --- Audit Logs ---

// AppendAudit writes a single audit entry outside any decision.
func (s *PostgresStore) AppendAudit(ctx context.Context, entry *domain.AuditLog) error {
	query := `INSERT INTO audit_logs (user_id, action, details) VALUES (NULLIF($1, '')::uuid, $2, $3)`
	if _, err := s.db.ExecContext(ctx, query, entry.UserID, entry.Action, entry.Details); err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	return nil
}

// ListAuditLogs returns audit entries newest first, optionally filtered by action.
func (s *PostgresStore) ListAuditLogs(ctx context.Context, limit int, action string) ([]domain.AuditLog, error) {
	query := `SELECT id, COALESCE(user_id::text, ''), action, details, created_at FROM audit_logs`
	args := []any{}
	argIdx := 1

	if action != "" {
		query += fmt.Sprintf(" WHERE action = $%d", argIdx)
		args = append(args, action)
		argIdx++
	}

	query += " ORDER BY seq DESC"

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	var logs []domain.AuditLog
	for rows.Next() {
		var l domain.AuditLog
		if err := rows.Scan(&l.ID, &l.UserID, &l.Action, &l.Details, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// --- Decisions ---

// ApplyDecision applies the balance mutation, command record, and audit entry
// of one decision in a single transaction. The conditional decrement holds a
// row lock on the user, so two concurrent submissions cannot both spend the
// last credit: the loser sees zero rows and the whole decision rolls back
// with ErrInsufficientCredits.
func (s *PostgresStore) ApplyDecision(ctx context.Context, dec port.Decision) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin decision: %w", err)
	}
	defer tx.Rollback()

	var balance int
	if dec.Deduct {
		err = tx.QueryRowContext(ctx,
			`UPDATE users SET credits = credits - 1 WHERE id = $1 AND credits > 0 RETURNING credits`,
			dec.UserID,
		).Scan(&balance)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, port.ErrInsufficientCredits
		}
	} else {
		err = tx.QueryRowContext(ctx,
			`SELECT credits FROM users WHERE id = $1`, dec.UserID,
		).Scan(&balance)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, port.ErrUserNotFound
		}
	}
	if err != nil {
		return 0, fmt.Errorf("decision balance: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO commands (user_id, command_text, status, result, credits_deducted)
		 VALUES ($1, $2, $3, NULLIF($4, ''), $5)`,
		dec.UserID, dec.Command.CommandText, dec.Command.Status, dec.Command.Result, dec.Command.CreditsDeducted,
	)
	if err != nil {
		return 0, fmt.Errorf("decision command: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO audit_logs (user_id, action, details) VALUES ($1, $2, $3)`,
		dec.UserID, dec.Audit.Action, dec.Audit.Details,
	)
	if err != nil {
		return 0, fmt.Errorf("decision audit: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit decision: %w", err)
	}
	return balance, nil
}
