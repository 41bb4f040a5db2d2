package models

// Logical operators for targeting rule nodes.
const (
	OpAnd = "AND"
	OpOr  = "OR"
	OpNot = "NOT"
)

// Comparison operators for targeting rule leaves.
const (
	CmpEqual      = "=="
	CmpNotEqual   = "!="
	CmpIn         = "IN"
	CmpNotIn      = "NOT_IN"
	CmpBetween    = "BETWEEN"
	CmpGreaterEq  = ">="
	CmpLessEq     = "<="
	CmpGreater    = ">"
	CmpLess       = "<"
	CmpContains   = "CONTAINS"
	CmpStartsWith = "STARTS_WITH"
	CmpEndsWith   = "ENDS_WITH"
)

// TargetingRule is a boolean expression tree stored as JSONB on a line item.
// A node is either logical (Op set to AND/OR/NOT with child Rules) or a leaf
// comparison (Field, Operator and Value all set). Producers validate rules
// with targeting.Validate before persisting them; the evaluator accepts
// malformed nodes and simply fails them.
type TargetingRule struct {
	Op    string          `json:"op,omitempty"`
	Rules []TargetingRule `json:"rules,omitempty"`

	// Field is a dot path into the user context, e.g. "page.path" or
	// "user.is_subscribed".
	Field    string `json:"field,omitempty"`
	Operator string `json:"operator,omitempty"`
	// Value is the decoded JSON comparison operand: a string, number, bool
	// or, for IN/NOT_IN/BETWEEN, an array.
	Value any `json:"value,omitempty"`
}

// IsLogical reports whether the node carries a logical operator.
func (r *TargetingRule) IsLogical() bool {
	return r.Op == OpAnd || r.Op == OpOr || r.Op == OpNot
}

// IsLeaf reports whether the node is a complete field comparison.
func (r *TargetingRule) IsLeaf() bool {
	return r.Field != "" && r.Operator != "" && r.Value != nil
}
