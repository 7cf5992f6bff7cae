package storage

import (
	"context"
	"errors"

	"github.com/assoforge/cotiz/pkg/dtree/runtime"
)

var ErrNotFound = errors.New("not found")

// Storage interface for reading and writing tariff data into a (persistent)
// state. The engine is the only writer; the back office reads through it.
//
// Methods that are expected to return exactly one match MUST return
// ErrNotFound when the result does not exist
type Storage interface {
	TariffStorageReader
	TariffStorageWriter
	DecisionTreeStorageReader
	DecisionTreeStorageWriter

	GenerateId() int64
}

type TariffStorageReader interface {
	FindTariffByKey(ctx context.Context, tariffKey int64) (runtime.Tariff, error)

	// FindTariffs returns all registered tariffs, ordered by key
	FindTariffs(ctx context.Context) ([]runtime.Tariff, error)
}

type TariffStorageWriter interface {
	// SaveTariff persists a Tariff
	// and potentially overwrites prior data stored with the given Key
	SaveTariff(ctx context.Context, tariff runtime.Tariff) error
}

type DecisionTreeStorageReader interface {
	FindDecisionTreeByKey(ctx context.Context, treeKey int64) (runtime.DecisionTree, error)

	// FindDecisionTreesByTariffKey returns zero or many trees of one tariff,
	// ordered by version number, from 1 (first) to the largest version (last);
	// locked historical versions are included
	FindDecisionTreesByTariffKey(ctx context.Context, tariffKey int64) ([]runtime.DecisionTree, error)
}

type DecisionTreeStorageWriter interface {
	// SaveDecisionTree persists a DecisionTree
	// and potentially overwrites prior data stored with the given Key
	SaveDecisionTree(ctx context.Context, tree runtime.DecisionTree) error
}
