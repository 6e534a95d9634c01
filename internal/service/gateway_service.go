package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cmdgate/cmdgate/internal/domain"
	"github.com/cmdgate/cmdgate/internal/policy"
	"github.com/cmdgate/cmdgate/internal/port"
)

// blockedResult is what the caller sees instead of output when a command
// is rejected. The stored command record keeps no result in that case.
const blockedResult = "Command blocked by security rule"

// GatewayService runs the submission pipeline: balance precondition, policy
// evaluation against a rule snapshot, then the atomic ledger decision.
type GatewayService struct {
	store port.Store
	eval  *policy.Evaluator
}

// NewGatewayService creates a new gateway service.
func NewGatewayService(store port.Store, eval *policy.Evaluator) *GatewayService {
	return &GatewayService{store: store, eval: eval}
}

// Submit evaluates commandText for user and applies the resulting decision.
// Execution is mocked: an accepted command only produces a deterministic
// result string and costs one credit.
func (s *GatewayService) Submit(ctx context.Context, user *domain.User, commandText string) (*domain.CommandOutcome, error) {
	if user.Credits <= 0 {
		return nil, s.rejectOutOfCredits(ctx, user.ID)
	}

	// The snapshot taken here is used for the whole decision; rules are
	// append-only, so concurrent additions cannot corrupt the scan.
	rules, err := s.store.ListRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("rule snapshot: %w", err)
	}

	action := s.eval.Evaluate(commandText, rules)
	executed := action == domain.ActionAccept

	dec := port.Decision{UserID: user.ID, Deduct: executed}
	if executed {
		dec.Command = domain.Command{
			CommandText:     commandText,
			Status:          domain.CommandExecuted,
			Result:          fmt.Sprintf("[MOCK] Executed: %s", commandText),
			CreditsDeducted: 1,
		}
		dec.Audit = domain.AuditLog{
			Action:  domain.AuditCommandExecuted,
			Details: commandText,
		}
	} else {
		dec.Command = domain.Command{
			CommandText:     commandText,
			Status:          domain.CommandRejected,
			CreditsDeducted: 0,
		}
		dec.Audit = domain.AuditLog{
			Action:  domain.AuditCommandRejected,
			Details: "Blocked: " + commandText,
		}
	}

	balance, err := s.store.ApplyDecision(ctx, dec)
	if errors.Is(err, port.ErrInsufficientCredits) {
		// A concurrent submission spent the last credit between the
		// precondition check and the decision.
		return nil, s.rejectOutOfCredits(ctx, user.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("apply decision: %w", err)
	}

	outcome := &domain.CommandOutcome{
		CommandText: commandText,
		Status:      dec.Command.Status,
		Result:      dec.Command.Result,
		NewBalance:  balance,
	}
	if !executed {
		outcome.Result = blockedResult
	}

	slog.Info("command decided",
		"user_id", user.ID, "status", outcome.Status, "balance", balance)
	return outcome, nil
}

// rejectOutOfCredits audits the refusal and returns ErrInsufficientCredits.
// No command record is created on this path and the balance is untouched.
func (s *GatewayService) rejectOutOfCredits(ctx context.Context, userID string) error {
	if err := s.store.AppendAudit(ctx, &domain.AuditLog{
		UserID:  userID,
		Action:  domain.AuditCommandRejected,
		Details: "Out of credits",
	}); err != nil {
		slog.Error("failed to audit credit rejection", "user_id", userID, "error", err)
	}
	return port.ErrInsufficientCredits
}

// History returns the user's command records, newest first.
func (s *GatewayService) History(ctx context.Context, userID string) ([]domain.Command, error) {
	return s.store.ListCommandsByUser(ctx, userID)
}
