package dtree

import (
	"github.com/assoforge/cotiz/pkg/dtree/model/tree"
	"github.com/shopspring/decimal"
)

// PriceBounds is the price range advertised before a subject is evaluated.
type PriceBounds struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// DocumentBounds estimates the best-case and worst-case price of a tree.
// Max is always the base price (the no-discount case is always representable).
// Min subs the per-top-level-node best achievable reduction, summed
// independently across nodes, floored at zero.
//
// The estimate is advertisory: it ignores that evaluation prepends a branch's
// children to the outer chain, so the minimum can be more optimistic than any
// price a real subject reaches. The authoritative price always comes from
// EvaluateDocument.
func DocumentBounds(doc tree.TreeDocument, basePrice decimal.Decimal) PriceBounds {
	worstCase := decimal.Zero
	for _, node := range doc.Nodes {
		worstCase = worstCase.Add(maxNodeReduction(node, basePrice))
	}
	low := basePrice.Sub(worstCase)
	if low.IsNegative() {
		low = decimal.Zero
	}
	return PriceBounds{Min: low, Max: basePrice}
}

// maxNodeReduction is the largest reduction any single branch of the node can
// yield, counting the branch's own delta plus the best its children can add.
func maxNodeReduction(node tree.Node, basePrice decimal.Decimal) decimal.Decimal {
	best := decimal.Zero
	for _, branch := range node.Branches {
		candidate := reductionAmount(branch.Reduction, basePrice)
		for _, child := range branch.Children {
			candidate = candidate.Add(maxNodeReduction(child, basePrice))
		}
		if candidate.GreaterThan(best) {
			best = candidate
		}
	}
	return best
}
