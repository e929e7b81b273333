package formschema

import "context"

// UpsertResult says whether Upsert created or replaced a definition.
type UpsertResult string

const (
	UpsertInserted UpsertResult = "inserted"
	UpsertUpdated  UpsertResult = "updated"
)

// Module is a service that owns a form definition.
type Module struct {
	ServiceID   int64  `json:"service_id"`
	Title       string `json:"title"`
	GroupID     int64  `json:"group_id"`
	TargetTable string `json:"db_table"`
	Heading     string `json:"heading"`
}

// Repository persists form definitions, one per service.
type Repository interface {
	// ListModules returns every service that has a form definition.
	ListModules(ctx context.Context) ([]Module, error)

	// GetByServiceID returns nil, nil when the service has no definition.
	GetByServiceID(ctx context.Context, serviceID int64) (*Schema, error)

	// FindByTargetTable returns every definition writing to table.
	FindByTargetTable(ctx context.Context, table string) ([]*Schema, error)

	// Upsert stores s.Raw for s.ServiceID.
	Upsert(ctx context.Context, s *Schema) (UpsertResult, error)
}
