package dtree

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/assoforge/cotiz/internal/appcontext"
	"github.com/assoforge/cotiz/internal/log"
	"github.com/assoforge/cotiz/internal/otel"
	"github.com/assoforge/cotiz/pkg/dtree/model/tree"
	"github.com/assoforge/cotiz/pkg/dtree/runtime"
	"github.com/assoforge/cotiz/pkg/storage"
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Engine owns tariffs and their decision trees: it creates them, guards the
// lock/duplicate lifecycle, and computes prices. Evaluation itself is pure;
// the engine only adds key generation and persistence around it.
type Engine struct {
	name        string
	snowflake   *snowflake.Node
	persistence storage.Storage
}

type EngineOption = func(*Engine)

// NewEngine creates a new instance of the tariff engine;
func NewEngine(options ...EngineOption) Engine {
	name := fmt.Sprintf("Tariff-Engine-%d", getGlobalSnowflakeIdGenerator().Generate().Int64())
	engine := Engine{
		name:        name,
		snowflake:   getGlobalSnowflakeIdGenerator(),
		persistence: nil,
	}

	for _, option := range options {
		option(&engine)
	}

	return engine
}

func EngineWithStorage(persistence storage.Storage) EngineOption {
	return func(engine *Engine) {
		engine.persistence = persistence
	}
}

func EngineWithName(name string) EngineOption {
	return func(engine *Engine) {
		engine.name = name
	}
}

func (engine *Engine) Name() string {
	return engine.name
}

// CreateTariff registers a membership fee with its base price.
func (engine *Engine) CreateTariff(ctx context.Context, name string, basePrice decimal.Decimal) (runtime.Tariff, error) {
	if basePrice.IsNegative() {
		return runtime.Tariff{}, newEngineErrorf("tariff base price must not be negative, got %s", basePrice)
	}
	tariff := runtime.Tariff{
		Key:       engine.generateKey(),
		Name:      name,
		BasePrice: basePrice,
	}
	if err := engine.persistence.SaveTariff(ctx, tariff); err != nil {
		return runtime.Tariff{}, err
	}
	return tariff, nil
}

func (engine *Engine) ListTariffs(ctx context.Context) ([]runtime.Tariff, error) {
	return engine.persistence.FindTariffs(ctx)
}

func (engine *Engine) GetTariff(ctx context.Context, tariffKey int64) (runtime.Tariff, error) {
	tariff, err := engine.persistence.FindTariffByKey(ctx, tariffKey)
	if err != nil {
		return runtime.Tariff{}, errors.Join(newEngineErrorf("no tariff with key=%d was found", tariffKey), err)
	}
	return tariff, nil
}

// CreateTree creates the tariff's decision tree, lazily: a tariff owns at most
// one active tree at a time, and further versions only come from Duplicate.
// The new tree starts unlocked with an empty node list.
func (engine *Engine) CreateTree(ctx context.Context, tariffKey int64, mode runtime.DisplayMode) (runtime.DecisionTree, error) {
	tariff, err := engine.GetTariff(ctx, tariffKey)
	if err != nil {
		return runtime.DecisionTree{}, err
	}
	if tariff.ActiveTreeKey != 0 {
		return runtime.DecisionTree{}, newEngineErrorf("tariff %d already has an active decision tree (%d)", tariffKey, tariff.ActiveTreeKey)
	}

	decisionTree := runtime.DecisionTree{
		Key:         engine.generateKey(),
		TariffKey:   tariffKey,
		Version:     1,
		DisplayMode: mode,
		Document: tree.TreeDocument{
			SchemaVersion: tree.CurrentSchemaVersion,
			Nodes:         []tree.Node{},
		},
	}
	decisionTree.Checksum = documentChecksum(decisionTree.Document)

	if err := engine.persistence.SaveDecisionTree(ctx, decisionTree); err != nil {
		return runtime.DecisionTree{}, err
	}
	tariff.ActiveTreeKey = decisionTree.Key
	if err := engine.persistence.SaveTariff(ctx, tariff); err != nil {
		return runtime.DecisionTree{}, err
	}
	return decisionTree, nil
}

func (engine *Engine) GetTree(ctx context.Context, treeKey int64) (runtime.DecisionTree, error) {
	decisionTree, err := engine.persistence.FindDecisionTreeByKey(ctx, treeKey)
	if err != nil {
		return runtime.DecisionTree{}, errors.Join(newEngineErrorf("no decision tree with key=%d was found", treeKey), err)
	}
	return decisionTree, nil
}

// UpdateTreeDocument replaces the document of an unlocked tree. The incoming
// document is validated first, so a malformed tree never reaches storage, and
// a locked tree is left untouched.
func (engine *Engine) UpdateTreeDocument(ctx context.Context, treeKey int64, doc tree.TreeDocument) (runtime.DecisionTree, error) {
	decisionTree, err := engine.GetTree(ctx, treeKey)
	if err != nil {
		return runtime.DecisionTree{}, err
	}
	if decisionTree.Locked {
		return runtime.DecisionTree{}, &TreeLockedError{TreeKey: treeKey}
	}
	if err := ValidateDocument(doc); err != nil {
		return runtime.DecisionTree{}, err
	}

	decisionTree.Document = doc.DeepCopy()
	decisionTree.Checksum = documentChecksum(decisionTree.Document)
	if err := engine.persistence.SaveDecisionTree(ctx, decisionTree); err != nil {
		return runtime.DecisionTree{}, err
	}
	return decisionTree, nil
}

// SetDisplayMode changes which bound the UI advertises; it counts as a
// mutation and is refused on a locked tree.
func (engine *Engine) SetDisplayMode(ctx context.Context, treeKey int64, mode runtime.DisplayMode) (runtime.DecisionTree, error) {
	decisionTree, err := engine.GetTree(ctx, treeKey)
	if err != nil {
		return runtime.DecisionTree{}, err
	}
	if decisionTree.Locked {
		return runtime.DecisionTree{}, &TreeLockedError{TreeKey: treeKey}
	}
	decisionTree.DisplayMode = mode
	if err := engine.persistence.SaveDecisionTree(ctx, decisionTree); err != nil {
		return runtime.DecisionTree{}, err
	}
	return decisionTree, nil
}

// LockTree freezes a tree forever so that prices computed from it stay
// reproducible. Locking an already locked tree is a no-op.
func (engine *Engine) LockTree(ctx context.Context, treeKey int64) (runtime.DecisionTree, error) {
	decisionTree, err := engine.GetTree(ctx, treeKey)
	if err != nil {
		return runtime.DecisionTree{}, err
	}
	if decisionTree.Locked {
		return decisionTree, nil
	}
	decisionTree.Locked = true
	if err := engine.persistence.SaveDecisionTree(ctx, decisionTree); err != nil {
		return runtime.DecisionTree{}, err
	}
	return decisionTree, nil
}

// DuplicateTree derives a new editable version from a locked tree: a deep copy
// of the document under a fresh key, one version up, which becomes the
// tariff's active tree. The locked original stays readable as a historical
// record.
func (engine *Engine) DuplicateTree(ctx context.Context, treeKey int64) (runtime.DecisionTree, error) {
	original, err := engine.GetTree(ctx, treeKey)
	if err != nil {
		return runtime.DecisionTree{}, err
	}
	if !original.Locked {
		return runtime.DecisionTree{}, newEngineErrorf("decision tree %d is not locked; only locked trees are duplicated", treeKey)
	}

	versions, err := engine.persistence.FindDecisionTreesByTariffKey(ctx, original.TariffKey)
	if err != nil {
		return runtime.DecisionTree{}, err
	}
	latest := original.Version
	for _, v := range versions {
		if v.Version > latest {
			latest = v.Version
		}
	}

	duplicate := runtime.DecisionTree{
		Key:         engine.generateKey(),
		TariffKey:   original.TariffKey,
		Version:     latest + 1,
		DisplayMode: original.DisplayMode,
		Document:    original.Document.DeepCopy(),
		Checksum:    original.Checksum,
	}
	if err := engine.persistence.SaveDecisionTree(ctx, duplicate); err != nil {
		return runtime.DecisionTree{}, err
	}

	tariff, err := engine.GetTariff(ctx, original.TariffKey)
	if err != nil {
		return runtime.DecisionTree{}, err
	}
	tariff.ActiveTreeKey = duplicate.Key
	if err := engine.persistence.SaveTariff(ctx, tariff); err != nil {
		return runtime.DecisionTree{}, err
	}
	return duplicate, nil
}

// Evaluate computes the authoritative price of a tariff for one subject,
// using the tariff's active decision tree. A tariff without a tree simply
// yields its base price with an empty trail.
func (engine *Engine) Evaluate(ctx context.Context, tariffKey int64, subject Subject) (EvaluatedTariffResult, error) {
	evaluationKey := engine.generateKey()
	ctx = appcontext.WithEvaluationKey(ctx, evaluationKey)
	start := time.Now()
	defer func() {
		if otel.EvaluationTotal != nil {
			otel.EvaluationTotal.Add(ctx, 1)
			otel.EvaluationDuration.Record(ctx, float64(time.Since(start).Microseconds())/1000)
		}
	}()

	tariff, decisionTree, err := engine.activeTree(ctx, tariffKey)
	if err != nil {
		return EvaluatedTariffResult{}, err
	}
	if decisionTree == nil {
		log.Debugf(ctx, "tariff %d has no decision tree, returning base price", tariffKey)
		return EvaluatedTariffResult{
			FinalPrice:     tariff.BasePrice,
			TotalReduction: decimal.Zero,
			Trail:          []EvaluatedStep{},
		}, nil
	}
	result, err := EvaluateDocument(decisionTree.Document, tariff.BasePrice, subject)
	if err != nil {
		return EvaluatedTariffResult{}, err
	}
	log.Debugf(ctx, "evaluated tariff %d with tree %d (version %d): %s", tariffKey, decisionTree.Key, decisionTree.Version, result.FinalPrice)
	return result, nil
}

// Bounds returns the advertised price range of a tariff, for display before
// any subject is evaluated. Never authoritative; see DocumentBounds.
func (engine *Engine) Bounds(ctx context.Context, tariffKey int64) (PriceBounds, error) {
	tariff, decisionTree, err := engine.activeTree(ctx, tariffKey)
	if err != nil {
		return PriceBounds{}, err
	}
	if decisionTree == nil {
		return PriceBounds{Min: tariff.BasePrice, Max: tariff.BasePrice}, nil
	}
	return DocumentBounds(decisionTree.Document, tariff.BasePrice), nil
}

func (engine *Engine) activeTree(ctx context.Context, tariffKey int64) (runtime.Tariff, *runtime.DecisionTree, error) {
	tariff, err := engine.GetTariff(ctx, tariffKey)
	if err != nil {
		return runtime.Tariff{}, nil, err
	}
	if tariff.ActiveTreeKey == 0 {
		return tariff, nil, nil
	}
	decisionTree, err := engine.GetTree(ctx, tariff.ActiveTreeKey)
	if err != nil {
		return runtime.Tariff{}, nil, err
	}
	return tariff, &decisionTree, nil
}

// LoadDocument parses and validates a serialized tree document.
func LoadDocument(data []byte) (tree.TreeDocument, error) {
	var doc tree.TreeDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return tree.TreeDocument{}, fmt.Errorf("failed to parse tree document: %w", err)
	}
	return doc, ValidateDocument(doc)
}

func documentChecksum(doc tree.TreeDocument) [16]byte {
	data, err := json.Marshal(doc)
	if err != nil {
		// the document model contains nothing json.Marshal can reject
		panic(err)
	}
	return md5.Sum(data)
}
