package dtree

import (
	"github.com/assoforge/cotiz/pkg/dtree/model/tree"
	"github.com/shopspring/decimal"
)

var oneHundred = decimal.NewFromInt(100)

// reductionAmount computes the monetary delta of a branch's reduction.
// Percentage reductions always apply to the tariff's original base price,
// never to an already-discounted running total: stacked reductions are
// additive deltas, not compounding multipliers. A nil reduction is zero.
func reductionAmount(reduction *tree.Reduction, basePrice decimal.Decimal) decimal.Decimal {
	if reduction == nil {
		return decimal.Zero
	}
	switch reduction.Kind {
	case tree.ReductionPercentage:
		return basePrice.Mul(reduction.Amount).Div(oneHundred)
	default:
		return reduction.Amount
	}
}
