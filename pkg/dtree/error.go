package dtree

import (
	"fmt"

	"github.com/assoforge/cotiz/pkg/dtree/model/tree"
)

// MalformedTreeError signals that a document does not satisfy the structural
// rules of its schema: an unknown node type, an empty branch list, or a
// condition whose shape does not agree with its parent node's type.
// It is raised at validation time, before any evaluation is attempted.
type MalformedTreeError struct {
	NodeId   string
	BranchId string
	Msg      string
}

func (e *MalformedTreeError) Error() string {
	loc := ""
	if e.NodeId != "" {
		loc = fmt.Sprintf(" (node=%s", e.NodeId)
		if e.BranchId != "" {
			loc += fmt.Sprintf(", branch=%s", e.BranchId)
		}
		loc += ")"
	}
	return "malformed tree" + loc + ": " + e.Msg
}

// newMalformedTreeErrorf uses fmt.Sprintf(format, a...) to format the message
func newMalformedTreeErrorf(nodeId, branchId, format string, a ...interface{}) error {
	return &MalformedTreeError{
		NodeId:   nodeId,
		BranchId: branchId,
		Msg:      fmt.Sprintf(format, a...),
	}
}

// NoMatchingBranchError signals that none of a node's branches matched the
// subject. A well-authored tree carries a catch-all branch per node, so this is
// an authoring defect: the engine fails loudly instead of guessing a branch and
// corrupting a billing computation.
type NoMatchingBranchError struct {
	NodeId   string
	NodeType tree.NodeType
}

func (e *NoMatchingBranchError) Error() string {
	return fmt.Sprintf("no branch of node %s [%s] matches the subject", e.NodeId, e.NodeType)
}

// TreeLockedError signals a mutation attempt on a locked tree. The caller can
// recover by duplicating the tree and editing the copy.
type TreeLockedError struct {
	TreeKey int64
}

func (e *TreeLockedError) Error() string {
	return fmt.Sprintf("decision tree %d is locked; duplicate it to edit", e.TreeKey)
}

type EngineError struct {
	Msg string
}

func (e *EngineError) Error() string {
	return e.Msg
}

// newEngineErrorf uses fmt.Sprintf(format, a...) to format the message
func newEngineErrorf(format string, a ...interface{}) error {
	return &EngineError{
		Msg: fmt.Sprintf(format, a...),
	}
}
