package dtree

import (
	"slices"

	"github.com/assoforge/cotiz/pkg/dtree/model/tree"
	"github.com/shopspring/decimal"
)

// conditionMatches tests one subject attribute against one branch condition.
// The shape is selected by the parent node's type; a condition missing a field
// its op requires is a MalformedTreeError, never a silent non-match.
func conditionMatches(node tree.Node, branch tree.Branch, subject Subject) (bool, error) {
	c := branch.Condition
	switch node.Type {
	case tree.NodeTypeCommune:
		if c.Commune == nil {
			return false, missingShapeError(node, branch)
		}
		return communeMatches(node, branch, *c.Commune, subject)
	case tree.NodeTypeAge:
		if c.Age == nil {
			return false, missingShapeError(node, branch)
		}
		return ageMatches(node, branch, *c.Age, subject)
	case tree.NodeTypeQF:
		if c.QF == nil {
			return false, missingShapeError(node, branch)
		}
		return qfMatches(node, branch, *c.QF, subject)
	case tree.NodeTypeFidelite:
		if c.Fidelite == nil {
			return false, missingShapeError(node, branch)
		}
		return thresholdMatches(node, branch, c.Fidelite.Op, subject.MembershipYears, c.Fidelite.Years)
	case tree.NodeTypeMultiInscriptions:
		if c.MultiInscriptions == nil {
			return false, missingShapeError(node, branch)
		}
		return thresholdMatches(node, branch, c.MultiInscriptions.Op, subject.HouseholdCount, c.MultiInscriptions.Count)
	case tree.NodeTypeStatutSocial:
		if c.StatutSocial == nil {
			return false, missingShapeError(node, branch)
		}
		return statutSocialMatches(*c.StatutSocial, subject), nil
	}
	return false, newMalformedTreeErrorf(node.Id, branch.Id, "unknown node type %s", node.Type)
}

func missingShapeError(node tree.Node, branch tree.Branch) error {
	return newMalformedTreeErrorf(node.Id, branch.Id, "condition shape does not match node type %s", node.Type)
}

func communeMatches(node tree.Node, branch tree.Branch, c tree.CommuneCondition, subject Subject) (bool, error) {
	switch c.Scope {
	case tree.CommuneScopeCatchall:
		return true, nil
	case tree.CommuneScopeCommunity, tree.CommuneScopeExplicitList:
		return slices.Contains(c.Ids, subject.ResidenceId), nil
	}
	return false, newMalformedTreeErrorf(node.Id, branch.Id, "unknown commune scope %q", c.Scope)
}

func ageMatches(node tree.Node, branch tree.Branch, c tree.AgeCondition, subject Subject) (bool, error) {
	if c.Op == tree.OpBetween {
		if c.Min == nil || c.Max == nil {
			return false, newMalformedTreeErrorf(node.Id, branch.Id, "age condition op=between requires min and max")
		}
		return subject.Age >= *c.Min && subject.Age <= *c.Max, nil
	}
	if c.Value == nil {
		return false, newMalformedTreeErrorf(node.Id, branch.Id, "age condition op=%s requires a value", c.Op)
	}
	return compareInt(node, branch, c.Op, subject.Age, *c.Value)
}

func qfMatches(node tree.Node, branch tree.Branch, c tree.QFCondition, subject Subject) (bool, error) {
	if c.Op == tree.OpIsNull {
		return subject.QF == nil, nil
	}
	// a subject without an index can only take the is_null branch
	if subject.QF == nil {
		return false, nil
	}
	if c.Op == tree.OpBetween {
		if c.Min == nil || c.Max == nil {
			return false, newMalformedTreeErrorf(node.Id, branch.Id, "qf condition op=between requires min and max")
		}
		return subject.QF.GreaterThanOrEqual(*c.Min) && subject.QF.LessThanOrEqual(*c.Max), nil
	}
	if c.Value == nil {
		return false, newMalformedTreeErrorf(node.Id, branch.Id, "qf condition op=%s requires a value", c.Op)
	}
	return compareDecimal(node, branch, c.Op, *subject.QF, *c.Value)
}

func thresholdMatches(node tree.Node, branch tree.Branch, op tree.CompareOp, have int, want int) (bool, error) {
	switch op {
	case tree.OpGte:
		return have >= want, nil
	case tree.OpGt:
		return have > want, nil
	case tree.OpEq:
		return have == want, nil
	}
	return false, newMalformedTreeErrorf(node.Id, branch.Id, "unsupported op %q for node type %s", op, node.Type)
}

func statutSocialMatches(c tree.StatutSocialCondition, subject Subject) bool {
	member := subject.SocialStatus != nil && slices.Contains(c.Statuses, *subject.SocialStatus)
	if c.Inverse {
		return !member
	}
	return member
}

func compareInt(node tree.Node, branch tree.Branch, op tree.CompareOp, have int, want int) (bool, error) {
	switch op {
	case tree.OpLt:
		return have < want, nil
	case tree.OpLte:
		return have <= want, nil
	case tree.OpGt:
		return have > want, nil
	case tree.OpGte:
		return have >= want, nil
	case tree.OpEq:
		return have == want, nil
	}
	return false, newMalformedTreeErrorf(node.Id, branch.Id, "unsupported op %q for node type %s", op, node.Type)
}

func compareDecimal(node tree.Node, branch tree.Branch, op tree.CompareOp, have decimal.Decimal, want decimal.Decimal) (bool, error) {
	switch op {
	case tree.OpLt:
		return have.LessThan(want), nil
	case tree.OpLte:
		return have.LessThanOrEqual(want), nil
	case tree.OpGt:
		return have.GreaterThan(want), nil
	case tree.OpGte:
		return have.GreaterThanOrEqual(want), nil
	}
	return false, newMalformedTreeErrorf(node.Id, branch.Id, "unsupported op %q for node type %s", op, node.Type)
}
