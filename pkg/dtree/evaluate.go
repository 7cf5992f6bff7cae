package dtree

import (
	"sort"

	"github.com/assoforge/cotiz/pkg/dtree/model/tree"
	"github.com/shopspring/decimal"
)

// EvaluatedTariffResult is the authoritative outcome of running one subject
// through a decision tree.
type EvaluatedTariffResult struct {
	// FinalPrice is the base price minus TotalReduction, floored at zero.
	FinalPrice decimal.Decimal
	// TotalReduction is the unclipped sum of all applied deltas; it may exceed
	// the base price even though FinalPrice never goes negative.
	TotalReduction decimal.Decimal
	// Trail lists every node visited, in evaluation order.
	Trail []EvaluatedStep
}

// EvaluatedStep records one branch decision and the delta it contributed.
type EvaluatedStep struct {
	NodeType   tree.NodeType
	BranchCode string
	Reduction  decimal.Decimal
}

// EvaluateDocument walks the document's top-level nodes in declared order.
// When the matched branch of a node carries children, that local chain runs
// first and control then rejoins the remaining outer sequence. Every
// reduction is computed against the original base price.
func EvaluateDocument(doc tree.TreeDocument, basePrice decimal.Decimal, subject Subject) (EvaluatedTariffResult, error) {
	queue := topLevelNodes(doc)
	trail := make([]EvaluatedStep, 0, len(queue))
	total := decimal.Zero
	nodeCount := countNodes(doc.Nodes)
	visited := 0

	for len(queue) > 0 {
		visited++
		if visited > nodeCount {
			// a well-formed tree visits each node at most once; exceeding the
			// count means the document escaped validation, so fail fast
			return EvaluatedTariffResult{}, newMalformedTreeErrorf("", "", "evaluation visited more nodes than the document holds (%d)", nodeCount)
		}

		node := queue[0]
		branch, err := resolveBranch(node, subject)
		if err != nil {
			return EvaluatedTariffResult{}, err
		}

		delta := reductionAmount(branch.Reduction, basePrice)
		total = total.Add(delta)
		trail = append(trail, EvaluatedStep{
			NodeType:   node.Type,
			BranchCode: branch.Code,
			Reduction:  delta,
		})

		if len(branch.Children) > 0 {
			queue = append(append([]tree.Node{}, branch.Children...), queue[1:]...)
		} else {
			queue = queue[1:]
		}
	}

	finalPrice := basePrice.Sub(total)
	if finalPrice.IsNegative() {
		finalPrice = decimal.Zero
	}
	return EvaluatedTariffResult{
		FinalPrice:     finalPrice,
		TotalReduction: total,
		Trail:          trail,
	}, nil
}

// topLevelNodes returns the document's root criteria ordered by their Order
// attribute, preserving declared order between equal values.
func topLevelNodes(doc tree.TreeDocument) []tree.Node {
	nodes := append([]tree.Node{}, doc.Nodes...)
	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].Order < nodes[j].Order
	})
	return nodes
}
