// Package casefile holds the read-only view of cases, branches, customers and
// services that the reporting core consumes. These records are owned by the
// intake subsystem.
package casefile

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/vanshwebstep/screeningstarnewnode-sub002/pkg/errors"
)

// Case is one verification request.
type Case struct {
	ID            int64     `json:"id"`
	ApplicationID string    `json:"application_id"`
	Name          string    `json:"name"`
	BranchID      int64     `json:"branch_id"`
	CustomerID    int64     `json:"customer_id"`
	ServiceIDs    []int64   `json:"services"`
	CreatedAt     time.Time `json:"created_at"`
	OverallStatus string    `json:"overall_status"`
	IsResolved    bool      `json:"is_resolved"`
	TATExcluded   bool      `json:"tat_excluded"`
	Deleted       bool      `json:"-"`

	// ServicesErr is set when the stored service list could not be parsed;
	// reports mark such a case instead of dropping the batch.
	ServicesErr error `json:"-"`
}

// Customer is the client organisation a case belongs to.
type Customer struct {
	ID       int64  `json:"id"`
	UniqueID string `json:"client_unique_id"`
	Name     string `json:"name"`
	// TATDays is the stored policy value, parsed lazily so one malformed
	// customer cannot fail a whole batch.
	TATDays string `json:"tat_days"`
	Deleted bool   `json:"-"`
}

// Branch is a customer office that submits cases.
type Branch struct {
	ID         int64  `json:"id"`
	CustomerID int64  `json:"customer_id"`
	Name       string `json:"name"`
}

// Service is a verification check type.
type Service struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	GroupID int64  `json:"group_id"`
}

// SplitServiceIDs parses a comma-joined service id list. Blank segments are
// skipped and order is preserved; duplicates are dropped.
func SplitServiceIDs(raw string) ([]int64, error) {
	var out []int64
	seen := make(map[int64]struct{})
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, errors.Validation("malformed service id").WithDetail(part)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

// JoinServiceIDs is the inverse of SplitServiceIDs.
func JoinServiceIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

// CaseFilter selects one page of active cases using keyset pagination.
type CaseFilter struct {
	// OnlyUnresolved restricts the page to cases whose resolved flag is false.
	OnlyUnresolved bool
	// AfterID returns cases with id > AfterID.
	AfterID int64
	// Limit caps the page size; zero means DefaultPageSize.
	Limit int
}

// DefaultPageSize is used when CaseFilter.Limit is zero.
const DefaultPageSize = 500

// Directory is the read-only lookup over intake records. Implementations
// exclude soft-deleted cases and cases of soft-deleted customers.
type Directory interface {
	// GetCase returns a NotFoundError when the case is absent or deleted.
	GetCase(ctx context.Context, id int64) (*Case, error)

	// ListCases returns one page ordered by id.
	ListCases(ctx context.Context, filter CaseFilter) ([]*Case, error)

	// GetCustomers and GetBranches return the non-deleted records among ids.
	GetCustomers(ctx context.Context, ids []int64) (map[int64]*Customer, error)
	GetBranches(ctx context.Context, ids []int64) (map[int64]*Branch, error)
}

// Each pages through every case matching filter, calling fn per page.
func Each(ctx context.Context, dir Directory, filter CaseFilter, fn func([]*Case) error) error {
	if filter.Limit <= 0 {
		filter.Limit = DefaultPageSize
	}
	for {
		page, err := dir.ListCases(ctx, filter)
		if err != nil {
			return err
		}
		if len(page) == 0 {
			return nil
		}
		if err := fn(page); err != nil {
			return err
		}
		if len(page) < filter.Limit {
			return nil
		}
		filter.AfterID = page[len(page)-1].ID
	}
}
