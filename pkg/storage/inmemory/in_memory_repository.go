package inmemory

import (
	"context"
	"math/rand"
	"slices"

	"github.com/assoforge/cotiz/pkg/dtree/runtime"
	"github.com/assoforge/cotiz/pkg/storage"
)

// Storage keeps tariff information in memory,
// please use NewStorage to create a new object of this type.
type Storage struct {
	Tariffs       map[int64]runtime.Tariff
	DecisionTrees map[int64]runtime.DecisionTree
}

func NewStorage() *Storage {
	return &Storage{
		Tariffs:       make(map[int64]runtime.Tariff),
		DecisionTrees: make(map[int64]runtime.DecisionTree),
	}
}

func (mem *Storage) GenerateId() int64 {
	return rand.Int63()
}

var _ storage.Storage = &Storage{}

var _ storage.TariffStorageReader = &Storage{}

func (mem *Storage) FindTariffByKey(ctx context.Context, tariffKey int64) (runtime.Tariff, error) {
	res, ok := mem.Tariffs[tariffKey]
	if !ok {
		return res, storage.ErrNotFound
	}
	return res, nil
}

func (mem *Storage) FindTariffs(ctx context.Context) ([]runtime.Tariff, error) {
	res := make([]runtime.Tariff, 0, len(mem.Tariffs))
	for _, tariff := range mem.Tariffs {
		res = append(res, tariff)
	}
	slices.SortFunc(res, func(a, b runtime.Tariff) int {
		return int(a.Key - b.Key)
	})
	return res, nil
}

var _ storage.TariffStorageWriter = &Storage{}

func (mem *Storage) SaveTariff(ctx context.Context, tariff runtime.Tariff) error {
	mem.Tariffs[tariff.Key] = tariff
	return nil
}

var _ storage.DecisionTreeStorageReader = &Storage{}

func (mem *Storage) FindDecisionTreeByKey(ctx context.Context, treeKey int64) (runtime.DecisionTree, error) {
	res, ok := mem.DecisionTrees[treeKey]
	if !ok {
		return res, storage.ErrNotFound
	}
	return res, nil
}

func (mem *Storage) FindDecisionTreesByTariffKey(ctx context.Context, tariffKey int64) ([]runtime.DecisionTree, error) {
	res := make([]runtime.DecisionTree, 0)
	for _, tree := range mem.DecisionTrees {
		if tree.TariffKey != tariffKey {
			continue
		}
		res = append(res, tree)
	}
	slices.SortFunc(res, func(a, b runtime.DecisionTree) int {
		return int(a.Version - b.Version)
	})
	return res, nil
}

var _ storage.DecisionTreeStorageWriter = &Storage{}

func (mem *Storage) SaveDecisionTree(ctx context.Context, tree runtime.DecisionTree) error {
	mem.DecisionTrees[tree.Key] = tree
	return nil
}
