package dtree

import (
	"github.com/assoforge/cotiz/pkg/dtree/model/tree"
	"github.com/shopspring/decimal"
)

// ValidateDocument checks the structural rules of a tree document. It runs on
// load and on every mutation, before any evaluation: an unknown schema or node
// type, an empty branch list, a condition whose shape disagrees with its node
// type, an invalid reduction kind, or nesting beyond the depth limit all yield
// a MalformedTreeError.
//
// Totality of a node's branch set cannot be proven structurally (it depends on
// the value ranges the author chose), so a missing catch-all surfaces at
// evaluation time as NoMatchingBranchError instead.
func ValidateDocument(doc tree.TreeDocument) error {
	if doc.SchemaVersion <= 0 || doc.SchemaVersion > tree.CurrentSchemaVersion {
		return newMalformedTreeErrorf("", "", "unsupported schema version %d", doc.SchemaVersion)
	}
	return validateNodes(doc.Nodes, 1)
}

func validateNodes(nodes []tree.Node, depth int) error {
	if depth > tree.MaxDepth {
		return newMalformedTreeErrorf("", "", "tree exceeds the maximum depth of %d", tree.MaxDepth)
	}
	for _, node := range nodes {
		if err := validateNode(node, depth); err != nil {
			return err
		}
	}
	return nil
}

func validateNode(node tree.Node, depth int) error {
	if !knownNodeType(node.Type) {
		return newMalformedTreeErrorf(node.Id, "", "unknown node type %q", node.Type)
	}
	if len(node.Branches) == 0 {
		return newMalformedTreeErrorf(node.Id, "", "node has no branches")
	}
	for _, branch := range node.Branches {
		if err := validateConditionShape(node, branch); err != nil {
			return err
		}
		if branch.Reduction != nil {
			switch branch.Reduction.Kind {
			case tree.ReductionFixed, tree.ReductionPercentage:
			default:
				return newMalformedTreeErrorf(node.Id, branch.Id, "unknown reduction kind %q", branch.Reduction.Kind)
			}
			if branch.Reduction.Amount.IsNegative() {
				return newMalformedTreeErrorf(node.Id, branch.Id, "reduction amount must not be negative")
			}
		}
		if err := validateNodes(branch.Children, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// validateConditionShape enforces the discriminated union: exactly one shape
// is set and it is the one the node's type selects.
func validateConditionShape(node tree.Node, branch tree.Branch) error {
	c := branch.Condition
	set := 0
	for _, present := range []bool{
		c.Commune != nil,
		c.Age != nil,
		c.QF != nil,
		c.Fidelite != nil,
		c.MultiInscriptions != nil,
		c.StatutSocial != nil,
	} {
		if present {
			set++
		}
	}
	if set != 1 {
		return newMalformedTreeErrorf(node.Id, branch.Id, "condition must carry exactly one shape, found %d", set)
	}

	// probing against a throwaway subject exercises the same required-field
	// checks evaluation would, so malformed ops fail here instead of there
	qf := decimal.Zero
	if _, err := conditionMatches(node, branch, Subject{QF: &qf}); err != nil {
		return err
	}
	return nil
}

func knownNodeType(t tree.NodeType) bool {
	switch t {
	case tree.NodeTypeCommune, tree.NodeTypeAge, tree.NodeTypeQF, tree.NodeTypeFidelite,
		tree.NodeTypeMultiInscriptions, tree.NodeTypeStatutSocial:
		return true
	}
	return false
}

func countNodes(nodes []tree.Node) int {
	total := 0
	for _, node := range nodes {
		total++
		for _, branch := range node.Branches {
			total += countNodes(branch.Children)
		}
	}
	return total
}
