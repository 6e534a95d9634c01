package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cmdgate/cmdgate/internal/domain"
	"github.com/cmdgate/cmdgate/internal/policy"
	"github.com/cmdgate/cmdgate/internal/port"
)

// PolicyService manages the ordered rule set.
type PolicyService struct {
	store port.Store
}

// NewPolicyService creates a new policy service.
func NewPolicyService(store port.Store) *PolicyService {
	return &PolicyService{store: store}
}

// AddRule validates and appends a rule. The rule insert and its audit entry
// commit as one unit; a rule never persists without its trail. Invalid
// patterns are rejected before anything is written, and the regex engine
// diagnostic is not surfaced.
func (s *PolicyService) AddRule(ctx context.Context, actorID, pattern string, action domain.Action, description string) (*domain.Rule, error) {
	if !action.Valid() {
		return nil, port.ErrInvalidAction
	}
	if !policy.ValidatePattern(pattern) {
		return nil, port.ErrInvalidPattern
	}

	rule, err := s.store.CreateRuleAudited(ctx,
		&domain.Rule{
			Pattern:     pattern,
			Action:      action,
			Description: description,
		},
		&domain.AuditLog{
			UserID:  actorID,
			Action:  domain.AuditRuleCreated,
			Details: fmt.Sprintf("%s -> %s", pattern, action),
		},
	)
	if err != nil {
		return nil, fmt.Errorf("create rule: %w", err)
	}

	slog.Info("rule created", "rule_id", rule.ID, "action", action)
	return rule, nil
}

// ListRules returns all rules in creation order.
func (s *PolicyService) ListRules(ctx context.Context) ([]domain.Rule, error) {
	return s.store.ListRules(ctx)
}

// defaultRules is the rule set seeded on first startup, in evaluation order.
var defaultRules = []domain.Rule{
	{Pattern: `:\(\)\{\s*:\|\:&\s*\};:`, Action: domain.ActionReject, Description: "Fork bomb"},
	{Pattern: `rm\s+-rf\s+/`, Action: domain.ActionReject, Description: "Dangerous rm"},
	{Pattern: `mkfs\..*`, Action: domain.ActionReject, Description: "Disk format"},
	{Pattern: `>/dev/sd[a-z]`, Action: domain.ActionReject, Description: "Write to raw disk"},
	{Pattern: `git\s+(status|log|diff|pull|fetch)`, Action: domain.ActionAccept, Description: "Safe git"},
	{Pattern: `^(ls|pwd|whoami|cat|echo|date|id|clear|exit)(\s|$)`, Action: domain.ActionAccept, Description: "Basic commands"},
}

// SeedDefaults inserts the default rule set in a fixed order. Seeding is
// idempotent: the exact pattern string is the de-duplication key, so running
// it twice never produces duplicates.
func (s *PolicyService) SeedDefaults(ctx context.Context) error {
	existing, err := s.store.ListRules(ctx)
	if err != nil {
		return fmt.Errorf("list rules: %w", err)
	}

	seen := make(map[string]bool, len(existing))
	for _, r := range existing {
		seen[r.Pattern] = true
	}

	seeded := 0
	for _, r := range defaultRules {
		if seen[r.Pattern] {
			continue
		}
		if _, err := s.store.CreateRule(ctx, &r); err != nil {
			return fmt.Errorf("seed rule %q: %w", r.Description, err)
		}
		seeded++
	}

	if seeded > 0 {
		slog.Info("seeded default rules", "count", seeded)
	}
	return nil
}
