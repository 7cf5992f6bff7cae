package tree

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CurrentSchemaVersion is the document schema this engine writes. Older
// versions are accepted as long as loading code knows how to read them.
const CurrentSchemaVersion = 1

// MaxDepth bounds the nesting of branch children. Real tariff trees are a
// handful of levels deep; anything beyond this is a defect, not a use case.
const MaxDepth = 32

type NodeType string

const (
	NodeTypeCommune           NodeType = "COMMUNE"
	NodeTypeAge               NodeType = "AGE"
	NodeTypeQF                NodeType = "QF"
	NodeTypeFidelite          NodeType = "FIDELITE"
	NodeTypeMultiInscriptions NodeType = "MULTI_INSCRIPTIONS"
	NodeTypeStatutSocial      NodeType = "STATUT_SOCIAL"
)

// TreeDocument is the serialized form of a decision tree: an ordered list of
// top-level criteria. It round-trips exactly through JSON.
type TreeDocument struct {
	SchemaVersion int    `json:"schema_version"`
	Nodes         []Node `json:"nodes"`
}

// Node is one evaluation criterion. Its branches are tried in declared order;
// exactly one must match any well-formed subject (totality), which the author
// guarantees by closing every node with a catch-all branch.
type Node struct {
	Id       string   `json:"id"`
	Type     NodeType `json:"type"`
	Order    int      `json:"order,omitempty"` // only meaningful for top-level nodes
	Branches []Branch `json:"branches"`
}

// Branch is one outcome of a Node. It optionally carries a reduction and a
// private sub-chain of finer criteria that runs before control rejoins the
// outer sequence.
type Branch struct {
	Id        string     `json:"id"`
	Code      string     `json:"code"`
	Label     string     `json:"label,omitempty"`
	Condition Condition  `json:"condition"`
	Reduction *Reduction `json:"reduction,omitempty"`
	Children  []Node     `json:"children,omitempty"`
}

type ReductionKind string

const (
	ReductionFixed      ReductionKind = "fixed"
	ReductionPercentage ReductionKind = "percentage"
)

// Reduction is a monetary discount: a literal amount, or a percentage of the
// tariff's base price. AccountingRef optionally links the discount to an
// accounting operation managed outside the engine.
type Reduction struct {
	Kind          ReductionKind   `json:"kind"`
	Amount        decimal.Decimal `json:"amount"`
	AccountingRef *uuid.UUID      `json:"accounting_ref,omitempty"`
}

// Condition is a discriminated union keyed by the parent Node's type: exactly
// one shape pointer is set, and it must be the one matching Node.Type.
// Validation enforces the agreement at document-load time so that evaluation
// never meets a shape it does not expect.
type Condition struct {
	Commune           *CommuneCondition           `json:"commune,omitempty"`
	Age               *AgeCondition               `json:"age,omitempty"`
	QF                *QFCondition                `json:"qf,omitempty"`
	Fidelite          *FideliteCondition          `json:"fidelite,omitempty"`
	MultiInscriptions *MultiInscriptionsCondition `json:"multi_inscriptions,omitempty"`
	StatutSocial      *StatutSocialCondition      `json:"statut_social,omitempty"`
}

type CommuneScope string

const (
	CommuneScopeCommunity    CommuneScope = "community"
	CommuneScopeExplicitList CommuneScope = "explicit_list"
	CommuneScopeCatchall     CommuneScope = "catchall"
)

// CommuneCondition matches the subject's residence. A community scope carries
// the intercommunal roster resolved by the editing UI; an explicit list is
// authored by hand; catchall matches unconditionally.
type CommuneCondition struct {
	Scope CommuneScope `json:"scope"`
	Ids   []int64      `json:"ids,omitempty"`
}

type CompareOp string

const (
	OpLt      CompareOp = "lt"
	OpLte     CompareOp = "lte"
	OpGt      CompareOp = "gt"
	OpGte     CompareOp = "gte"
	OpEq      CompareOp = "eq"
	OpBetween CompareOp = "between" // inclusive on both ends
	OpIsNull  CompareOp = "is_null" // QF only
)

type AgeCondition struct {
	Op    CompareOp `json:"op"`
	Value *int      `json:"value,omitempty"`
	Min   *int      `json:"min,omitempty"`
	Max   *int      `json:"max,omitempty"`
}

// QFCondition compares the subject's means-tested index. is_null matches a
// subject whose index is absent.
type QFCondition struct {
	Op    CompareOp        `json:"op"`
	Value *decimal.Decimal `json:"value,omitempty"`
	Min   *decimal.Decimal `json:"min,omitempty"`
	Max   *decimal.Decimal `json:"max,omitempty"`
}

type FideliteCondition struct {
	Op    CompareOp `json:"op"`
	Years int       `json:"years"`
}

type MultiInscriptionsCondition struct {
	Op    CompareOp `json:"op"`
	Count int       `json:"count"`
}

type StatutSocialCondition struct {
	Statuses []string `json:"statuses"`
	Inverse  bool     `json:"inverse,omitempty"`
}

// DeepCopy returns a detached copy of the document: no slice or pointer is
// shared with the receiver, so mutating the copy never touches the original.
func (doc TreeDocument) DeepCopy() TreeDocument {
	out := TreeDocument{
		SchemaVersion: doc.SchemaVersion,
		Nodes:         copyNodes(doc.Nodes),
	}
	return out
}

func copyNodes(nodes []Node) []Node {
	if nodes == nil {
		return nil
	}
	out := make([]Node, len(nodes))
	for i, node := range nodes {
		out[i] = Node{
			Id:       node.Id,
			Type:     node.Type,
			Order:    node.Order,
			Branches: copyBranches(node.Branches),
		}
	}
	return out
}

func copyBranches(branches []Branch) []Branch {
	if branches == nil {
		return nil
	}
	out := make([]Branch, len(branches))
	for i, branch := range branches {
		out[i] = Branch{
			Id:        branch.Id,
			Code:      branch.Code,
			Label:     branch.Label,
			Condition: branch.Condition.deepCopy(),
			Children:  copyNodes(branch.Children),
		}
		if branch.Reduction != nil {
			r := *branch.Reduction
			if branch.Reduction.AccountingRef != nil {
				ref := *branch.Reduction.AccountingRef
				r.AccountingRef = &ref
			}
			out[i].Reduction = &r
		}
	}
	return out
}

func (c Condition) deepCopy() Condition {
	out := Condition{}
	if c.Commune != nil {
		cc := *c.Commune
		cc.Ids = append([]int64(nil), c.Commune.Ids...)
		out.Commune = &cc
	}
	if c.Age != nil {
		ac := *c.Age
		ac.Value = copyIntPtr(c.Age.Value)
		ac.Min = copyIntPtr(c.Age.Min)
		ac.Max = copyIntPtr(c.Age.Max)
		out.Age = &ac
	}
	if c.QF != nil {
		qc := *c.QF
		qc.Value = copyDecimalPtr(c.QF.Value)
		qc.Min = copyDecimalPtr(c.QF.Min)
		qc.Max = copyDecimalPtr(c.QF.Max)
		out.QF = &qc
	}
	if c.Fidelite != nil {
		fc := *c.Fidelite
		out.Fidelite = &fc
	}
	if c.MultiInscriptions != nil {
		mc := *c.MultiInscriptions
		out.MultiInscriptions = &mc
	}
	if c.StatutSocial != nil {
		sc := *c.StatutSocial
		sc.Statuses = append([]string(nil), c.StatutSocial.Statuses...)
		out.StatutSocial = &sc
	}
	return out
}

func copyIntPtr(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyDecimalPtr(v *decimal.Decimal) *decimal.Decimal {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
