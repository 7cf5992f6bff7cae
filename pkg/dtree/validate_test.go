package dtree

import (
	"testing"

	"github.com/assoforge/cotiz/pkg/dtree/model/tree"
	"github.com/stretchr/testify/assert"
)

func Test_unknown_schema_version_is_rejected(t *testing.T) {
	doc := tree.TreeDocument{SchemaVersion: tree.CurrentSchemaVersion + 1}

	err := ValidateDocument(doc)

	var malformed *MalformedTreeError
	assert.ErrorAs(t, err, &malformed)
}

func Test_node_without_branches_is_rejected(t *testing.T) {
	doc := document(tree.Node{Id: "age", Type: tree.NodeTypeAge})

	err := ValidateDocument(doc)

	var malformed *MalformedTreeError
	assert.ErrorAs(t, err, &malformed)
	assert.Equal(t, "age", malformed.NodeId)
}

func Test_condition_union_must_carry_exactly_one_shape(t *testing.T) {
	doc := document(tree.Node{
		Id:   "age",
		Type: tree.NodeTypeAge,
		Branches: []tree.Branch{
			{
				Id:   "both",
				Code: "both",
				Condition: tree.Condition{
					Age: &tree.AgeCondition{Op: tree.OpGte, Value: intPtr(0)},
					QF:  &tree.QFCondition{Op: tree.OpIsNull},
				},
			},
		},
	})

	err := ValidateDocument(doc)

	var malformed *MalformedTreeError
	assert.ErrorAs(t, err, &malformed)
	assert.Equal(t, "both", malformed.BranchId)
}

func Test_negative_reduction_amount_is_rejected(t *testing.T) {
	doc := document(tree.Node{
		Id:   "age",
		Type: tree.NodeTypeAge,
		Branches: []tree.Branch{
			withReduction(ageCatchall("any"), fixedReduction("-5")),
		},
	})

	err := ValidateDocument(doc)

	var malformed *MalformedTreeError
	assert.ErrorAs(t, err, &malformed)
}

func Test_nesting_beyond_the_depth_limit_is_rejected(t *testing.T) {
	// given: a chain nested one level past the limit
	node := tree.Node{Id: "leaf", Type: tree.NodeTypeAge, Branches: []tree.Branch{ageCatchall("leaf")}}
	for i := 0; i < tree.MaxDepth; i++ {
		branch := ageCatchall("wrap")
		branch.Children = []tree.Node{node}
		node = tree.Node{Id: "wrap", Type: tree.NodeTypeAge, Branches: []tree.Branch{branch}}
	}

	err := ValidateDocument(document(node))

	var malformed *MalformedTreeError
	assert.ErrorAs(t, err, &malformed)
}

func Test_malformed_ops_surface_at_validation_not_evaluation(t *testing.T) {
	// a between without its max never reaches EvaluateDocument
	doc := document(tree.Node{
		Id:   "qf",
		Type: tree.NodeTypeQF,
		Branches: []tree.Branch{
			{
				Id:        "half-open",
				Code:      "half-open",
				Condition: tree.Condition{QF: &tree.QFCondition{Op: tree.OpBetween, Min: decPtr("100")}},
			},
		},
	})

	err := ValidateDocument(doc)

	var malformed *MalformedTreeError
	assert.ErrorAs(t, err, &malformed)
	assert.Equal(t, "half-open", malformed.BranchId)
}
