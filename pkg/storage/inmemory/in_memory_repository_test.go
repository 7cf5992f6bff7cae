package inmemory

import (
	"context"
	"testing"

	"github.com/assoforge/cotiz/pkg/dtree/runtime"
	"github.com/assoforge/cotiz/pkg/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func Test_missing_records_report_ErrNotFound(t *testing.T) {
	mem := NewStorage()

	_, err := mem.FindTariffByKey(context.Background(), 1)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = mem.FindDecisionTreeByKey(context.Background(), 1)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func Test_save_then_find_returns_the_same_tariff(t *testing.T) {
	// given
	mem := NewStorage()
	tariff := runtime.Tariff{Key: 7, Name: "adult", BasePrice: decimal.NewFromInt(25)}

	// when
	err := mem.SaveTariff(context.Background(), tariff)
	assert.NoError(t, err)

	// then
	found, err := mem.FindTariffByKey(context.Background(), 7)
	assert.NoError(t, err)
	assert.Equal(t, tariff, found)
}

func Test_tariffs_are_listed_in_key_order(t *testing.T) {
	mem := NewStorage()
	_ = mem.SaveTariff(context.Background(), runtime.Tariff{Key: 3, Name: "c"})
	_ = mem.SaveTariff(context.Background(), runtime.Tariff{Key: 1, Name: "a"})
	_ = mem.SaveTariff(context.Background(), runtime.Tariff{Key: 2, Name: "b"})

	tariffs, err := mem.FindTariffs(context.Background())

	assert.NoError(t, err)
	assert.Len(t, tariffs, 3)
	assert.Equal(t, int64(1), tariffs[0].Key)
	assert.Equal(t, int64(3), tariffs[2].Key)
}

func Test_trees_of_a_tariff_come_back_ordered_by_version(t *testing.T) {
	// given
	mem := NewStorage()
	_ = mem.SaveDecisionTree(context.Background(), runtime.DecisionTree{Key: 20, TariffKey: 1, Version: 2})
	_ = mem.SaveDecisionTree(context.Background(), runtime.DecisionTree{Key: 10, TariffKey: 1, Version: 1})
	_ = mem.SaveDecisionTree(context.Background(), runtime.DecisionTree{Key: 30, TariffKey: 2, Version: 1})

	// when
	trees, err := mem.FindDecisionTreesByTariffKey(context.Background(), 1)

	// then
	assert.NoError(t, err)
	assert.Len(t, trees, 2)
	assert.Equal(t, int32(1), trees[0].Version)
	assert.Equal(t, int32(2), trees[1].Version)
}

func Test_generated_ids_do_not_repeat_immediately(t *testing.T) {
	mem := NewStorage()

	seen := map[int64]bool{}
	for i := 0; i < 100; i++ {
		id := mem.GenerateId()
		assert.False(t, seen[id])
		seen[id] = true
	}
}
