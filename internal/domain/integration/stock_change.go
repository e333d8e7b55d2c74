package integration

import "fmt"

// Stock change thresholds
const (
	MaxStockLevel          = 999_999
	CrashCheckMinStock     = 100
	CrashFloorPercent      = 10
	SpikeMultiplier        = 10
	LargeChangeWarnDelta   = 100
	stockRuleNegative      = "STOCK_NEGATIVE"
	stockRuleAboveMax      = "STOCK_ABOVE_MAX"
	stockRuleCrash         = "STOCK_IMPLAUSIBLE_DROP"
	stockRuleSpike         = "STOCK_IMPLAUSIBLE_SPIKE"
	stockWarnLargeChange   = "LARGE_CHANGE"
	stockWarnLowStockLevel = "LOW_STOCK"
)

// StockWarning is a non-blocking finding about a stock change
type StockWarning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StockChangeResult is the outcome of validating one proposed stock change
type StockChangeResult struct {
	Valid     bool
	ErrorCode string
	Error     string
	Warnings  []StockWarning
	Change    int
}

// ValidateStockChange checks a proposed stock level against the safety rules.
// Rules are evaluated in order and the first failure wins. It has no side
// effects and depends only on its arguments.
func ValidateStockChange(currentStock, newStock, lowStockThreshold int) StockChangeResult {
	result := StockChangeResult{Change: newStock - currentStock}

	switch {
	case newStock < 0:
		result.ErrorCode = stockRuleNegative
		result.Error = "Stock cannot be negative"
		return result
	case newStock > MaxStockLevel:
		result.ErrorCode = stockRuleAboveMax
		result.Error = fmt.Sprintf("Stock cannot exceed %d", MaxStockLevel)
		return result
	case currentStock > CrashCheckMinStock && newStock*100 < currentStock*CrashFloorPercent:
		result.ErrorCode = stockRuleCrash
		result.Error = fmt.Sprintf("Stock drop from %d to %d exceeds 90%%, likely an input error", currentStock, newStock)
		return result
	case currentStock > 0 && newStock > currentStock*SpikeMultiplier:
		result.ErrorCode = stockRuleSpike
		result.Error = fmt.Sprintf("Stock increase from %d to %d exceeds %dx, likely an input error", currentStock, newStock, SpikeMultiplier)
		return result
	}

	result.Valid = true
	if abs(result.Change) > LargeChangeWarnDelta {
		result.Warnings = append(result.Warnings, StockWarning{
			Code:    stockWarnLargeChange,
			Message: fmt.Sprintf("Stock change of %d units exceeds %d", result.Change, LargeChangeWarnDelta),
		})
	}
	if lowStockThreshold > 0 && newStock <= lowStockThreshold {
		result.Warnings = append(result.Warnings, StockWarning{
			Code:    stockWarnLowStockLevel,
			Message: fmt.Sprintf("Stock %d is at or below the low-stock threshold %d", newStock, lowStockThreshold),
		})
	}
	return result
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
