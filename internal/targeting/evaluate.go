// Package targeting evaluates line item targeting rules against a per-request
// user context. Rules are boolean expression trees of logical nodes (AND, OR,
// NOT) over leaf comparisons on dot-path context fields.
package targeting

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/openadstack/addecide/internal/models"
)

// Evaluate reports whether the user context satisfies the rule. A nil rule
// matches everything: a line item with no targeting is eligible for all
// contexts.
//
// Empty logical nodes are resolved by vacuous truth: AND with no children
// imposes no constraint (true) while OR with no children offers nothing to
// satisfy (false). NOT negates only its first child and is true when it has
// none. Malformed nodes are not rejected here; they evaluate to false.
func Evaluate(rule *models.TargetingRule, ctx *models.UserContext) bool {
	if rule == nil {
		return true
	}

	switch rule.Op {
	case models.OpAnd:
		for i := range rule.Rules {
			if !Evaluate(&rule.Rules[i], ctx) {
				return false
			}
		}
		return true
	case models.OpOr:
		for i := range rule.Rules {
			if Evaluate(&rule.Rules[i], ctx) {
				return true
			}
		}
		return false
	case models.OpNot:
		if len(rule.Rules) == 0 {
			return true
		}
		return !Evaluate(&rule.Rules[0], ctx)
	}

	if rule.IsLeaf() {
		return evaluateField(rule.Field, rule.Operator, rule.Value, ctx)
	}
	return false
}

// Compile prepares a rule for repeated evaluation. It is currently an
// identity pass-through reserved for caching and short-circuit reordering;
// it must never change evaluation semantics.
func Compile(rule *models.TargetingRule) *models.TargetingRule {
	return rule
}

func evaluateField(field, operator string, value any, ctx *models.UserContext) bool {
	fieldValue, _ := ctx.Field(field)

	switch operator {
	case models.CmpEqual:
		return looseEqual(fieldValue, value)
	case models.CmpNotEqual:
		return !looseEqual(fieldValue, value)
	case models.CmpIn:
		return inList(fieldValue, value)
	case models.CmpNotIn:
		list, ok := value.([]any)
		if !ok {
			return false
		}
		for _, v := range list {
			if looseEqual(fieldValue, v) {
				return false
			}
		}
		return true
	case models.CmpBetween:
		bounds, ok := value.([]any)
		if !ok || len(bounds) != 2 {
			return false
		}
		lo, okLo := compare(fieldValue, bounds[0])
		hi, okHi := compare(fieldValue, bounds[1])
		return okLo && okHi && lo >= 0 && hi <= 0
	case models.CmpGreaterEq:
		c, ok := compare(fieldValue, value)
		return ok && c >= 0
	case models.CmpLessEq:
		c, ok := compare(fieldValue, value)
		return ok && c <= 0
	case models.CmpGreater:
		c, ok := compare(fieldValue, value)
		return ok && c > 0
	case models.CmpLess:
		c, ok := compare(fieldValue, value)
		return ok && c < 0
	case models.CmpContains:
		return strings.Contains(stringify(fieldValue), stringify(value))
	case models.CmpStartsWith:
		return strings.HasPrefix(stringify(fieldValue), stringify(value))
	case models.CmpEndsWith:
		return strings.HasSuffix(stringify(fieldValue), stringify(value))
	}
	// Unknown operator fails closed for this leaf.
	return false
}

func inList(fieldValue, value any) bool {
	list, ok := value.([]any)
	if !ok {
		return false
	}
	for _, v := range list {
		if looseEqual(fieldValue, v) {
			return true
		}
	}
	return false
}

// looseEqual compares a context field against a decoded JSON operand.
// Numbers compare numerically regardless of Go type (context ints vs JSON
// float64), everything else by deep equality.
func looseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if c, ok := compare(a, b); ok {
		return c == 0
	}
	return reflect.DeepEqual(a, b)
}

// compare orders two values when they are both numeric or both strings.
func compare(a, b any) (int, bool) {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			switch {
			case af < bf:
				return -1, true
			case af > bf:
				return 1, true
			}
			return 0, true
		}
		return 0, false
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return strings.Compare(as, bs), true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func stringify(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
