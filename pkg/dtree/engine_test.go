package dtree

import (
	"context"
	"os"
	"testing"

	"github.com/assoforge/cotiz/pkg/dtree/model/tree"
	"github.com/assoforge/cotiz/pkg/dtree/runtime"
	"github.com/assoforge/cotiz/pkg/storage/inmemory"
	"github.com/stretchr/testify/assert"
)

var tariffEngine Engine
var engineStorage *inmemory.Storage

func TestMain(m *testing.M) {
	engineStorage = inmemory.NewStorage()

	var exitCode int

	defer func() {
		os.Exit(exitCode)
	}()

	tariffEngine = NewEngine(EngineWithStorage(engineStorage))

	// Run the tests
	exitCode = m.Run()
}

func Test_tariff_rejects_a_negative_base_price(t *testing.T) {
	_, err := tariffEngine.CreateTariff(context.Background(), "bad", dec("-1"))

	assert.Error(t, err)
}

func Test_tree_is_created_lazily_unlocked_and_empty(t *testing.T) {
	// given
	tariff, err := tariffEngine.CreateTariff(context.Background(), "adult membership", dec("25"))
	assert.NoError(t, err)

	// when
	decisionTree, err := tariffEngine.CreateTree(context.Background(), tariff.Key, runtime.DisplayModeMinimum)

	// then
	assert.NoError(t, err)
	assert.False(t, decisionTree.Locked)
	assert.Equal(t, int32(1), decisionTree.Version)
	assert.Empty(t, decisionTree.Document.Nodes)

	stored := engineStorage.Tariffs[tariff.Key]
	assert.Equal(t, decisionTree.Key, stored.ActiveTreeKey)
}

func Test_a_tariff_owns_at_most_one_active_tree(t *testing.T) {
	// given
	tariff, _ := tariffEngine.CreateTariff(context.Background(), "solo", dec("25"))
	_, err := tariffEngine.CreateTree(context.Background(), tariff.Key, runtime.DisplayModeMinimum)
	assert.NoError(t, err)

	// when
	_, err = tariffEngine.CreateTree(context.Background(), tariff.Key, runtime.DisplayModeMinimum)

	// then
	assert.Error(t, err)
}

func Test_update_replaces_the_document_and_its_checksum(t *testing.T) {
	// given
	tariff, _ := tariffEngine.CreateTariff(context.Background(), "youth", dec("15"))
	created, _ := tariffEngine.CreateTree(context.Background(), tariff.Key, runtime.DisplayModeMinimum)

	doc := document(tree.Node{
		Id:       "age",
		Type:     tree.NodeTypeAge,
		Branches: []tree.Branch{withReduction(ageCatchall("any"), fixedReduction("5"))},
	})

	// when
	updated, err := tariffEngine.UpdateTreeDocument(context.Background(), created.Key, doc)

	// then
	assert.NoError(t, err)
	assert.Equal(t, 1, len(updated.Document.Nodes))
	assert.NotEqual(t, created.Checksum, updated.Checksum)
}

func Test_update_rejects_a_malformed_document(t *testing.T) {
	// given
	tariff, _ := tariffEngine.CreateTariff(context.Background(), "strict", dec("15"))
	created, _ := tariffEngine.CreateTree(context.Background(), tariff.Key, runtime.DisplayModeMinimum)

	// an AGE node carrying a commune-shaped condition
	doc := document(tree.Node{
		Id:   "age",
		Type: tree.NodeTypeAge,
		Branches: []tree.Branch{
			{Id: "b", Code: "b", Condition: tree.Condition{Commune: &tree.CommuneCondition{Scope: tree.CommuneScopeCatchall}}},
		},
	})

	// when
	_, err := tariffEngine.UpdateTreeDocument(context.Background(), created.Key, doc)

	// then
	var malformed *MalformedTreeError
	assert.ErrorAs(t, err, &malformed)
	// nothing was stored
	assert.Empty(t, engineStorage.DecisionTrees[created.Key].Document.Nodes)
}

func Test_locked_tree_refuses_mutation_and_stays_unchanged(t *testing.T) {
	// given
	tariff, _ := tariffEngine.CreateTariff(context.Background(), "frozen", dec("30"))
	created, _ := tariffEngine.CreateTree(context.Background(), tariff.Key, runtime.DisplayModeMaximum)
	doc := document(tree.Node{
		Id:       "age",
		Type:     tree.NodeTypeAge,
		Branches: []tree.Branch{withReduction(ageCatchall("any"), fixedReduction("3"))},
	})
	_, err := tariffEngine.UpdateTreeDocument(context.Background(), created.Key, doc)
	assert.NoError(t, err)
	locked, err := tariffEngine.LockTree(context.Background(), created.Key)
	assert.NoError(t, err)
	assert.True(t, locked.Locked)

	// when
	_, err = tariffEngine.UpdateTreeDocument(context.Background(), created.Key, document())

	// then
	var lockedErr *TreeLockedError
	assert.ErrorAs(t, err, &lockedErr)
	assert.Equal(t, created.Key, lockedErr.TreeKey)
	assert.Equal(t, locked, engineStorage.DecisionTrees[created.Key], "the stored tree must be bit-for-bit unchanged")

	// display mode counts as a mutation too
	_, err = tariffEngine.SetDisplayMode(context.Background(), created.Key, runtime.DisplayModeMinimum)
	assert.ErrorAs(t, err, &lockedErr)
}

func Test_locking_twice_is_a_no_op(t *testing.T) {
	tariff, _ := tariffEngine.CreateTariff(context.Background(), "idem", dec("30"))
	created, _ := tariffEngine.CreateTree(context.Background(), tariff.Key, runtime.DisplayModeMinimum)

	first, err := tariffEngine.LockTree(context.Background(), created.Key)
	assert.NoError(t, err)
	second, err := tariffEngine.LockTree(context.Background(), created.Key)
	assert.NoError(t, err)

	assert.Equal(t, first, second)
}

func Test_duplicate_requires_a_locked_original(t *testing.T) {
	tariff, _ := tariffEngine.CreateTariff(context.Background(), "draft", dec("30"))
	created, _ := tariffEngine.CreateTree(context.Background(), tariff.Key, runtime.DisplayModeMinimum)

	_, err := tariffEngine.DuplicateTree(context.Background(), created.Key)

	assert.Error(t, err)
}

func Test_duplicate_detaches_the_copy_from_the_original(t *testing.T) {
	// given: a locked tree with one node
	tariff, _ := tariffEngine.CreateTariff(context.Background(), "versioned", dec("30"))
	created, _ := tariffEngine.CreateTree(context.Background(), tariff.Key, runtime.DisplayModeMinimum)
	doc := document(tree.Node{
		Id:       "age",
		Type:     tree.NodeTypeAge,
		Branches: []tree.Branch{withReduction(ageCatchall("any"), fixedReduction("3"))},
	})
	_, _ = tariffEngine.UpdateTreeDocument(context.Background(), created.Key, doc)
	locked, _ := tariffEngine.LockTree(context.Background(), created.Key)

	// when
	duplicate, err := tariffEngine.DuplicateTree(context.Background(), created.Key)

	// then
	assert.NoError(t, err)
	assert.NotEqual(t, locked.Key, duplicate.Key)
	assert.Equal(t, locked.Version+1, duplicate.Version)
	assert.False(t, duplicate.Locked)
	assert.Equal(t, duplicate.Key, engineStorage.Tariffs[tariff.Key].ActiveTreeKey)

	// mutating the duplicate leaves the locked original untouched
	_, err = tariffEngine.UpdateTreeDocument(context.Background(), duplicate.Key, document())
	assert.NoError(t, err)
	assert.Equal(t, locked, engineStorage.DecisionTrees[locked.Key])
	assert.Equal(t, 1, len(engineStorage.DecisionTrees[locked.Key].Document.Nodes))
}

func Test_evaluate_uses_the_tariffs_active_tree(t *testing.T) {
	// given
	tariff, _ := tariffEngine.CreateTariff(context.Background(), "computed", dec("100"))
	created, _ := tariffEngine.CreateTree(context.Background(), tariff.Key, runtime.DisplayModeMinimum)
	doc := document(tree.Node{
		Id:   "age",
		Type: tree.NodeTypeAge,
		Branches: []tree.Branch{
			{
				Id:        "u18",
				Code:      "u18",
				Condition: tree.Condition{Age: &tree.AgeCondition{Op: tree.OpLt, Value: intPtr(18)}},
				Reduction: fixedReduction("20"),
			},
			ageCatchall("adult"),
		},
	})
	_, err := tariffEngine.UpdateTreeDocument(context.Background(), created.Key, doc)
	assert.NoError(t, err)

	// when
	result, err := tariffEngine.Evaluate(context.Background(), tariff.Key, Subject{Age: 16})

	// then
	assert.NoError(t, err)
	assert.Equal(t, "80", result.FinalPrice.String())

	bounds, err := tariffEngine.Bounds(context.Background(), tariff.Key)
	assert.NoError(t, err)
	assert.Equal(t, "80", bounds.Min.String())
	assert.Equal(t, "100", bounds.Max.String())
}

func Test_evaluate_without_a_tree_yields_the_base_price(t *testing.T) {
	tariff, _ := tariffEngine.CreateTariff(context.Background(), "bare", dec("12.50"))

	result, err := tariffEngine.Evaluate(context.Background(), tariff.Key, Subject{})

	assert.NoError(t, err)
	assert.Equal(t, "12.5", result.FinalPrice.String())
	assert.Empty(t, result.Trail)
}
