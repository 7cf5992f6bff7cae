package dtree

import (
	"testing"

	"github.com/assoforge/cotiz/pkg/dtree/model/tree"
	"github.com/stretchr/testify/assert"
)

func Test_bounds_max_is_always_the_base_price(t *testing.T) {
	doc := document(tree.Node{
		Id:   "age",
		Type: tree.NodeTypeAge,
		Branches: []tree.Branch{
			withReduction(ageCatchall("any"), percentageReduction("50")),
		},
	})

	bounds := DocumentBounds(doc, dec("80"))

	assert.Equal(t, "80", bounds.Max.String())
}

func Test_bounds_min_sums_the_best_reduction_per_top_level_node(t *testing.T) {
	// given: node one can yield at most 20 (10% of 200), node two at most 15
	doc := document(
		tree.Node{
			Id:   "qf",
			Type: tree.NodeTypeQF,
			Branches: []tree.Branch{
				{Id: "no-qf", Code: "no-qf", Condition: tree.Condition{QF: &tree.QFCondition{Op: tree.OpIsNull}}},
				{
					Id:        "low",
					Code:      "low",
					Condition: tree.Condition{QF: &tree.QFCondition{Op: tree.OpLte, Value: decPtr("400")}},
					Reduction: percentageReduction("10"),
				},
			},
		},
		tree.Node{
			Id:   "age",
			Type: tree.NodeTypeAge,
			Branches: []tree.Branch{
				withReduction(ageCatchall("any"), fixedReduction("15")),
			},
		},
	)

	bounds := DocumentBounds(doc, dec("200"))

	assert.Equal(t, "165", bounds.Min.String())
	assert.Equal(t, "200", bounds.Max.String())
}

func Test_bounds_count_a_branchs_children_into_its_best_case(t *testing.T) {
	// given: branch worth 10 whose child node adds up to 5 more
	doc := document(tree.Node{
		Id:   "commune",
		Type: tree.NodeTypeCommune,
		Branches: []tree.Branch{
			{
				Id:        "member",
				Code:      "member",
				Condition: tree.Condition{Commune: &tree.CommuneCondition{Scope: tree.CommuneScopeCommunity, Ids: []int64{1}}},
				Reduction: fixedReduction("10"),
				Children: []tree.Node{
					{
						Id:   "age",
						Type: tree.NodeTypeAge,
						Branches: []tree.Branch{
							withReduction(ageCatchall("any"), fixedReduction("5")),
						},
					},
				},
			},
			{Id: "out", Code: "out", Condition: tree.Condition{Commune: &tree.CommuneCondition{Scope: tree.CommuneScopeCatchall}}},
		},
	})

	bounds := DocumentBounds(doc, dec("100"))

	assert.Equal(t, "85", bounds.Min.String())
}

func Test_bounds_min_floors_at_zero(t *testing.T) {
	doc := document(tree.Node{
		Id:   "age",
		Type: tree.NodeTypeAge,
		Branches: []tree.Branch{
			withReduction(ageCatchall("any"), fixedReduction("500")),
		},
	})

	bounds := DocumentBounds(doc, dec("100"))

	assert.Equal(t, "0", bounds.Min.String())
	assert.Equal(t, "100", bounds.Max.String())
}

func Test_bounds_of_an_empty_document_collapse_to_the_base_price(t *testing.T) {
	bounds := DocumentBounds(document(), dec("42"))

	assert.Equal(t, "42", bounds.Min.String())
	assert.Equal(t, "42", bounds.Max.String())
}
