package targeting

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openadstack/addecide/internal/models"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		rule    *models.TargetingRule
		wantErr error
	}{
		{"nil rule", nil, ErrNilRule},
		{
			"valid leaf",
			&models.TargetingRule{Field: "country", Operator: models.CmpEqual, Value: "US"},
			nil,
		},
		{
			"leaf missing value",
			&models.TargetingRule{Field: "country", Operator: models.CmpEqual},
			ErrLeafIncomplete,
		},
		{
			"leaf missing operator",
			&models.TargetingRule{Field: "country", Value: "US"},
			ErrLeafIncomplete,
		},
		{
			"leaf unknown operator",
			&models.TargetingRule{Field: "country", Operator: "LIKE", Value: "US"},
			ErrUnknownOperator,
		},
		{"empty and", &models.TargetingRule{Op: models.OpAnd}, ErrEmptyLogicalNode},
		{"empty or", &models.TargetingRule{Op: models.OpOr}, ErrEmptyLogicalNode},
		{"empty not", &models.TargetingRule{Op: models.OpNot}, ErrNotArity},
		{
			"not with two children",
			&models.TargetingRule{Op: models.OpNot, Rules: []models.TargetingRule{
				{Field: "country", Operator: models.CmpEqual, Value: "US"},
				{Field: "region", Operator: models.CmpEqual, Value: "CA"},
			}},
			ErrNotArity,
		},
		{
			"valid nested tree",
			&models.TargetingRule{Op: models.OpAnd, Rules: []models.TargetingRule{
				{Op: models.OpOr, Rules: []models.TargetingRule{
					{Field: "country", Operator: models.CmpIn, Value: []any{"US", "CA"}},
				}},
				{Op: models.OpNot, Rules: []models.TargetingRule{
					{Field: "device", Operator: models.CmpEqual, Value: "bot"},
				}},
			}},
			nil,
		},
		{
			"invalid child surfaces",
			&models.TargetingRule{Op: models.OpAnd, Rules: []models.TargetingRule{
				{Field: "country", Operator: models.CmpEqual, Value: "US"},
				{Op: models.OpOr},
			}},
			ErrEmptyLogicalNode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.rule)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}
