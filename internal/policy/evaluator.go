package policy

import (
	"regexp"
	"sync"

	"github.com/cmdgate/cmdgate/internal/domain"
)

// DefaultAction is returned when no rule matches a command. The gateway is
// fail-closed: absence of an explicit allow is a reject.
const DefaultAction = domain.ActionReject

// ValidatePattern reports whether pattern compiles under the host regex
// engine. The compiler diagnostic is deliberately discarded.
func ValidatePattern(pattern string) bool {
	_, err := regexp.Compile(pattern)
	return err == nil
}

// Evaluator decides the action for a command text against an ordered rule
// snapshot. Evaluation is a pure function of its arguments; the evaluator
// itself only carries a cache of compiled patterns, which is safe because
// rules are immutable once admitted.
type Evaluator struct {
	mu       sync.RWMutex
	compiled map[string]*regexp.Regexp
}

// NewEvaluator creates an evaluator with an empty pattern cache.
func NewEvaluator() *Evaluator {
	return &Evaluator{compiled: make(map[string]*regexp.Regexp)}
}

// Evaluate scans rules in slice order and returns the action of the first
// rule whose pattern matches anywhere within commandText (unanchored search,
// unless the pattern itself anchors with ^/$). Returns DefaultAction when
// nothing matches. Rules whose pattern fails to compile are skipped; the
// validator keeps them out of the store in the first place.
func (e *Evaluator) Evaluate(commandText string, rules []domain.Rule) domain.Action {
	for _, rule := range rules {
		re, err := e.pattern(rule.Pattern)
		if err != nil {
			continue
		}
		if re.MatchString(commandText) {
			return rule.Action
		}
	}
	return DefaultAction
}

func (e *Evaluator) pattern(p string) (*regexp.Regexp, error) {
	e.mu.RLock()
	re, ok := e.compiled[p]
	e.mu.RUnlock()
	if ok {
		return re, nil
	}

	re, err := regexp.Compile(p)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.compiled[p] = re
	e.mu.Unlock()
	return re, nil
}
