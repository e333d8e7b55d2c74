package integration

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateStockChange(t *testing.T) {
	tests := []struct {
		name      string
		current   int
		proposed  int
		threshold int
		valid     bool
		errorCode string
		warnings  []string
	}{
		{"negative", 10, -1, 5, false, stockRuleNegative, nil},
		{"above max", 10, 1_000_000, 5, false, stockRuleAboveMax, nil},
		{"crash from 200 to 15", 200, 15, 5, false, stockRuleCrash, nil},
		{"exactly ten percent is allowed", 200, 20, 5, true, "", []string{stockWarnLargeChange}},
		{"crash rule needs current above 100", 100, 1, 5, true, "", []string{stockWarnLowStockLevel}},
		{"spike", 10, 101, 5, false, stockRuleSpike, nil},
		{"spike rule needs current above 0", 0, 500, 5, true, "", []string{stockWarnLargeChange}},
		{"large change warns", 50, 160, 5, true, "", []string{stockWarnLargeChange}},
		{"small change is clean", 50, 70, 5, true, "", nil},
		{"low stock warns", 8, 3, 5, true, "", []string{stockWarnLowStockLevel}},
		{"zero threshold never warns", 8, 0, 0, true, "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateStockChange(tt.current, tt.proposed, tt.threshold)

			assert.Equal(t, tt.valid, result.Valid)
			assert.Equal(t, tt.errorCode, result.ErrorCode)
			assert.Equal(t, tt.proposed-tt.current, result.Change)

			var codes []string
			for _, w := range result.Warnings {
				codes = append(codes, w.Code)
			}
			assert.Equal(t, tt.warnings, codes)
		})
	}
}

func TestValidateStockChange_Deterministic(t *testing.T) {
	first := ValidateStockChange(200, 15, 5)
	for range 5 {
		assert.Equal(t, first, ValidateStockChange(200, 15, 5))
	}
}
