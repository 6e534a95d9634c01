package policy

import (
	"testing"

	"github.com/cmdgate/cmdgate/internal/domain"
	"github.com/stretchr/testify/assert"
)

func rule(pattern string, action domain.Action) domain.Rule {
	return domain.Rule{Pattern: pattern, Action: action}
}

func TestValidatePattern(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		want    bool
	}{
		{"simple literal", "ls", true},
		{"anchored alternation", `^(ls|pwd)(\s|$)`, true},
		{"escaped metachars", `rm\s+-rf\s+/`, true},
		{"unbalanced paren", "(", false},
		{"unbalanced bracket", "[a-z", false},
		{"bad repetition", "*foo", false},
		{"empty pattern", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidatePattern(tt.pattern))
		})
	}
}

func TestEvaluateFirstMatchWins(t *testing.T) {
	e := NewEvaluator()

	rules := []domain.Rule{
		rule("git", domain.ActionReject),
		rule(`git\s+status`, domain.ActionAccept),
	}

	// Both patterns match; the earliest-inserted rule decides.
	assert.Equal(t, domain.ActionReject, e.Evaluate("git status", rules))

	// Reversing the order flips the decision.
	reversed := []domain.Rule{rules[1], rules[0]}
	assert.Equal(t, domain.ActionAccept, e.Evaluate("git status", reversed))
}

func TestEvaluateUnanchoredSearch(t *testing.T) {
	e := NewEvaluator()
	rules := []domain.Rule{rule(`rm\s+-rf\s+/`, domain.ActionReject)}

	// The pattern matches anywhere within the command text.
	assert.Equal(t, domain.ActionReject, e.Evaluate("rm -rf /", rules))
	assert.Equal(t, domain.ActionReject, e.Evaluate("echo hi && rm  -rf /tmp", rules))
}

func TestEvaluateAnchoredPattern(t *testing.T) {
	e := NewEvaluator()
	rules := []domain.Rule{rule(`^(ls|pwd)(\s|$)`, domain.ActionAccept)}

	assert.Equal(t, domain.ActionAccept, e.Evaluate("ls -la", rules))
	assert.Equal(t, domain.ActionAccept, e.Evaluate("pwd", rules))

	// ^ anchors to the start of the text, so embedded occurrences miss.
	assert.Equal(t, DefaultAction, e.Evaluate("tools", rules))
	assert.Equal(t, DefaultAction, e.Evaluate("echo ls", rules))
}

func TestEvaluateDefaultDeny(t *testing.T) {
	e := NewEvaluator()

	// Empty rule set: any command is rejected.
	assert.Equal(t, domain.ActionReject, e.Evaluate("anything at all", nil))

	// Non-empty set with no match falls through to the default.
	rules := []domain.Rule{rule("^ls$", domain.ActionAccept)}
	assert.Equal(t, domain.ActionReject, e.Evaluate("cat /etc/passwd", rules))
}

func TestEvaluateSkipsUncompilablePattern(t *testing.T) {
	e := NewEvaluator()
	rules := []domain.Rule{
		rule("(", domain.ActionAccept), // never admitted by the validator, but must not panic
		rule("ls", domain.ActionAccept),
	}

	assert.Equal(t, domain.ActionAccept, e.Evaluate("ls -la", rules))
}

func TestEvaluateDeterministic(t *testing.T) {
	e := NewEvaluator()
	rules := []domain.Rule{
		rule(`mkfs\..*`, domain.ActionReject),
		rule(`git\s+(status|log)`, domain.ActionAccept),
	}

	for i := 0; i < 10; i++ {
		assert.Equal(t, domain.ActionAccept, e.Evaluate("git log --oneline", rules))
	}
}
