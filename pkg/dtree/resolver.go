package dtree

import "github.com/assoforge/cotiz/pkg/dtree/model/tree"

// resolveBranch picks the single applicable branch of a node: branches are
// tried in declared order and the first match wins. A node whose branch set
// does not cover the subject yields a NoMatchingBranchError instead of an
// arbitrary pick.
func resolveBranch(node tree.Node, subject Subject) (*tree.Branch, error) {
	for i := range node.Branches {
		match, err := conditionMatches(node, node.Branches[i], subject)
		if err != nil {
			return nil, err
		}
		if match {
			return &node.Branches[i], nil
		}
	}
	return nil, &NoMatchingBranchError{NodeId: node.Id, NodeType: node.Type}
}
