package targeting

import (
	"errors"
	"fmt"

	"github.com/openadstack/addecide/internal/models"
)

// Structural validation errors.
var (
	ErrNilRule          = errors.New("targeting rule must be an object")
	ErrEmptyLogicalNode = errors.New("AND/OR node must have at least one child rule")
	ErrNotArity         = errors.New("NOT node must have exactly one child rule")
	ErrLeafIncomplete   = errors.New("field rule must have field, operator and value")
	ErrUnknownOperator  = errors.New("unknown comparison operator")
)

var knownOperators = map[string]struct{}{
	models.CmpEqual:      {},
	models.CmpNotEqual:   {},
	models.CmpIn:         {},
	models.CmpNotIn:      {},
	models.CmpBetween:    {},
	models.CmpGreaterEq:  {},
	models.CmpLessEq:     {},
	models.CmpGreater:    {},
	models.CmpLess:       {},
	models.CmpContains:   {},
	models.CmpStartsWith: {},
	models.CmpEndsWith:   {},
}

// Validate checks a rule tree's structure before it is persisted: AND/OR
// nodes carry at least one recursively valid child, NOT carries exactly one,
// and leaves carry all of field, operator and value. The evaluator tolerates
// malformed rules (they just never match), so this is the producers'
// pre-write gate, not a serving-time check.
func Validate(rule *models.TargetingRule) error {
	if rule == nil {
		return ErrNilRule
	}

	switch rule.Op {
	case models.OpAnd, models.OpOr:
		if len(rule.Rules) == 0 {
			return ErrEmptyLogicalNode
		}
		for i := range rule.Rules {
			if err := Validate(&rule.Rules[i]); err != nil {
				return err
			}
		}
		return nil
	case models.OpNot:
		if len(rule.Rules) != 1 {
			return ErrNotArity
		}
		return Validate(&rule.Rules[0])
	}

	if rule.Field == "" || rule.Operator == "" || rule.Value == nil {
		return ErrLeafIncomplete
	}
	if _, ok := knownOperators[rule.Operator]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownOperator, rule.Operator)
	}
	return nil
}
