package runtime

import (
	"github.com/assoforge/cotiz/pkg/dtree/model/tree"
	"github.com/shopspring/decimal"
)

// DisplayMode controls whether the UI advertises the best-case or worst-case
// price of a tree before an actual subject is evaluated.
type DisplayMode string

const (
	DisplayModeMinimum DisplayMode = "minimum"
	DisplayModeMaximum DisplayMode = "maximum"
)

type Tariff struct {
	Key       int64           // The engines key for this tariff
	Name      string          // Display name, e.g. the membership category
	BasePrice decimal.Decimal // Membership price before any reduction, >= 0
	// ActiveTreeKey points at the tariff's single active decision tree,
	// 0 when none was created yet (trees are created lazily)
	ActiveTreeKey int64
}

type DecisionTree struct {
	Key         int64             // The engines key for this given tree with version
	TariffKey   int64             // Owning tariff
	Version     int32             // default=1, incremented on duplicate
	DisplayMode DisplayMode       //
	Locked      bool              // once true the document is immutable forever
	Document    tree.TreeDocument // the node list
	Checksum    [16]byte          // md5 of the serialized document, identifies versions
}
