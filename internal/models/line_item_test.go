package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasAvailableBudget(t *testing.T) {
	limit := func(n int) *int { return &n }

	tests := []struct {
		name string
		li   LineItem
		want bool
	}{
		{"no cap is unlimited", LineItem{ServedImpressions: 1 << 20}, true},
		{"under cap", LineItem{ServedImpressions: 99, MaxImpressionsTotal: limit(100)}, true},
		{"at cap", LineItem{ServedImpressions: 100, MaxImpressionsTotal: limit(100)}, false},
		{"over cap", LineItem{ServedImpressions: 150, MaxImpressionsTotal: limit(100)}, false},
		{"zero cap serves nothing", LineItem{MaxImpressionsTotal: limit(0)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.li.HasAvailableBudget())
		})
	}
}
