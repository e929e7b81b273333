// Package reporting builds the customer -> branch -> case report trees: the
// completion status tree and the TAT delay tree. Both share the tree builder
// and the per-service status lookups in this package.
package reporting

import (
	"sort"
	"time"

	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/domain/calendar"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/domain/casefile"
)

// CaseEntry is one case in a report tree.
type CaseEntry struct {
	ID             int64              `json:"id"`
	ApplicationID  string             `json:"application_id"`
	Name           string             `json:"name"`
	CreatedAt      time.Time          `json:"created_at"`
	OverallStatus  string             `json:"overall_status"`
	ServicesStatus map[string]*string `json:"services_status"`
	DueDate        *time.Time         `json:"due_date,omitempty"`
	DaysOutOfTAT   int                `json:"days_out_of_tat,omitempty"`
	// Error is set when one of the case's lookups failed; the failed
	// services carry UNRESOLVED.
	Error string `json:"error,omitempty"`

	branchID   int64
	customerID int64
}

type BranchNode struct {
	ID    int64        `json:"branch_id"`
	Name  string       `json:"branch_name"`
	Cases []*CaseEntry `json:"applications"`
}

type CustomerNode struct {
	ID       int64         `json:"customer_id"`
	UniqueID string        `json:"client_unique_id"`
	Name     string        `json:"name"`
	TATDays  string        `json:"tat_days"`
	Branches []*BranchNode `json:"branches"`
}

// Tree is a built report. Holidays is only set on delay trees.
type Tree struct {
	Customers   []*CustomerNode    `json:"customers"`
	Holidays    []calendar.Holiday `json:"holidays,omitempty"`
	GeneratedAt time.Time          `json:"generated_at"`
}

// CaseCount returns the number of case entries in t.
func (t *Tree) CaseCount() int {
	n := 0
	for _, c := range t.Customers {
		for _, b := range c.Branches {
			n += len(b.Cases)
		}
	}
	return n
}

// treeBuilder groups entries under their customer and branch.
type treeBuilder struct {
	customers map[int64]*CustomerNode
	branches  map[int64]*BranchNode
	// owner maps branch id to customer id.
	owner map[int64]int64
}

func newTreeBuilder() *treeBuilder {
	return &treeBuilder{
		customers: make(map[int64]*CustomerNode),
		branches:  make(map[int64]*BranchNode),
		owner:     make(map[int64]int64),
	}
}

func (b *treeBuilder) add(cust *casefile.Customer, br *casefile.Branch, e *CaseEntry) {
	cn, ok := b.customers[cust.ID]
	if !ok {
		cn = &CustomerNode{ID: cust.ID, UniqueID: cust.UniqueID, Name: cust.Name, TATDays: cust.TATDays}
		b.customers[cust.ID] = cn
	}
	bn, ok := b.branches[br.ID]
	if !ok {
		bn = &BranchNode{ID: br.ID, Name: br.Name}
		b.branches[br.ID] = bn
		b.owner[br.ID] = cust.ID
		cn.Branches = append(cn.Branches, bn)
	}
	if e != nil {
		e.branchID, e.customerID = br.ID, cust.ID
		bn.Cases = append(bn.Cases, e)
	}
}

// build orders everything by id and prunes branches without cases, then
// customers without branches.
func (b *treeBuilder) build() []*CustomerNode {
	out := make([]*CustomerNode, 0, len(b.customers))
	for _, cn := range b.customers {
		kept := cn.Branches[:0]
		for _, bn := range cn.Branches {
			if len(bn.Cases) == 0 {
				continue
			}
			sort.Slice(bn.Cases, func(i, j int) bool { return bn.Cases[i].ID < bn.Cases[j].ID })
			kept = append(kept, bn)
		}
		if len(kept) == 0 {
			continue
		}
		sort.Slice(kept, func(i, j int) bool { return kept[i].ID < kept[j].ID })
		cn.Branches = kept
		out = append(out, cn)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func newCaseEntry(c *casefile.Case) *CaseEntry {
	return &CaseEntry{
		ID:             c.ID,
		ApplicationID:  c.ApplicationID,
		Name:           c.Name,
		CreatedAt:      c.CreatedAt,
		OverallStatus:  c.OverallStatus,
		ServicesStatus: make(map[string]*string),
	}
}
