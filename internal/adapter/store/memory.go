package store

import (
	"context"
	"sync"
	"time"

	"github.com/cmdgate/cmdgate/internal/domain"
	"github.com/cmdgate/cmdgate/internal/port"
	"github.com/google/uuid"
)

// MemoryStore is a thread-safe in-memory implementation of port.Store,
// used for development and tests. Slices preserve creation order; reads
// hand out copies so callers never share backing arrays with the store.
type MemoryStore struct {
	mu        sync.RWMutex
	users     map[string]*domain.User // by ID
	byAPIKey  map[string]string       // api_key -> ID
	byName    map[string]string       // username -> ID
	rules     []domain.Rule
	commands  []domain.Command
	auditLogs []domain.AuditLog
}

// NewMemoryStore initializes an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]*domain.User),
		byAPIKey: make(map[string]string),
		byName:   make(map[string]string),
	}
}

// Close is a no-op for the in-memory backend.
func (m *MemoryStore) Close() error { return nil }

// --- Users ---

func (m *MemoryStore) CreateUser(_ context.Context, u *domain.User) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createUserLocked(u)
}

// CreateUserAudited inserts the user and its audit entry under one lock
// section: either both records land or neither does.
func (m *MemoryStore) CreateUserAudited(_ context.Context, u *domain.User, entry *domain.AuditLog) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, err := m.createUserLocked(u)
	if err != nil {
		return nil, err
	}

	e := *entry
	e.UserID = user.ID
	m.appendAuditLocked(&e)
	return user, nil
}

// createUserLocked must be called with the write lock held.
func (m *MemoryStore) createUserLocked(u *domain.User) (*domain.User, error) {
	if _, taken := m.byName[u.Username]; taken {
		return nil, port.ErrUsernameTaken
	}

	user := *u
	user.ID = uuid.NewString()
	user.CreatedAt = time.Now().UTC()

	m.users[user.ID] = &user
	m.byAPIKey[user.APIKey] = user.ID
	m.byName[user.Username] = user.ID

	out := user
	return &out, nil
}

func (m *MemoryStore) GetUserByAPIKey(_ context.Context, apiKey string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.userLocked(m.byAPIKey[apiKey])
}

func (m *MemoryStore) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.userLocked(m.byName[username])
}

func (m *MemoryStore) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.userLocked(id)
}

// userLocked must be called with at least a read lock held.
func (m *MemoryStore) userLocked(id string) (*domain.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, port.ErrUserNotFound
	}
	out := *u
	return &out, nil
}

// --- Rules ---

func (m *MemoryStore) CreateRule(_ context.Context, r *domain.Rule) (*domain.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createRuleLocked(r), nil
}

// CreateRuleAudited appends the rule and its audit entry under one lock
// section, keeping the audit trail atomic with the rule insert.
func (m *MemoryStore) CreateRuleAudited(_ context.Context, r *domain.Rule, entry *domain.AuditLog) (*domain.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rule := m.createRuleLocked(r)
	m.appendAuditLocked(entry)
	return rule, nil
}

// createRuleLocked must be called with the write lock held.
func (m *MemoryStore) createRuleLocked(r *domain.Rule) *domain.Rule {
	rule := *r
	rule.ID = uuid.NewString()
	rule.CreatedAt = time.Now().UTC()
	m.rules = append(m.rules, rule)

	out := rule
	return &out
}

func (m *MemoryStore) ListRules(_ context.Context) ([]domain.Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rules := make([]domain.Rule, len(m.rules))
	copy(rules, m.rules)
	return rules, nil
}

// --- Commands ---

func (m *MemoryStore) ListCommandsByUser(_ context.Context, userID string) ([]domain.Command, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var commands []domain.Command
	for i := len(m.commands) - 1; i >= 0; i-- {
		if m.commands[i].UserID == userID {
			commands = append(commands, m.commands[i])
		}
	}
	return commands, nil
}

// --- Audit Logs ---

func (m *MemoryStore) AppendAudit(_ context.Context, entry *domain.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendAuditLocked(entry)
	return nil
}

// appendAuditLocked must be called with the write lock held.
func (m *MemoryStore) appendAuditLocked(entry *domain.AuditLog) {
	e := *entry
	e.ID = uuid.NewString()
	e.CreatedAt = time.Now().UTC()
	m.auditLogs = append(m.auditLogs, e)
}

func (m *MemoryStore) ListAuditLogs(_ context.Context, limit int, action string) ([]domain.AuditLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var logs []domain.AuditLog
	for i := len(m.auditLogs) - 1; i >= 0; i-- {
		if action != "" && m.auditLogs[i].Action != action {
			continue
		}
		logs = append(logs, m.auditLogs[i])
		if limit > 0 && len(logs) == limit {
			break
		}
	}
	return logs, nil
}

// --- Decisions ---

// ApplyDecision applies the whole decision under one lock section, which
// serializes concurrent submissions and keeps the three writes atomic.
func (m *MemoryStore) ApplyDecision(_ context.Context, dec port.Decision) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[dec.UserID]
	if !ok {
		return 0, port.ErrUserNotFound
	}

	if dec.Deduct {
		if u.Credits <= 0 {
			return 0, port.ErrInsufficientCredits
		}
		u.Credits--
	}

	cmd := dec.Command
	cmd.ID = uuid.NewString()
	cmd.UserID = dec.UserID
	cmd.CreatedAt = time.Now().UTC()
	m.commands = append(m.commands, cmd)

	audit := dec.Audit
	audit.UserID = dec.UserID
	m.appendAuditLocked(&audit)

	return u.Credits, nil
}
