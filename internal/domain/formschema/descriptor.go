package formschema

import (
	"regexp"
	"strings"

	"github.com/vanshwebstep/screeningstarnewnode-sub002/pkg/errors"
)

// MaxIdentifierLength is the PostgreSQL identifier limit (NAMEDATALEN - 1).
const MaxIdentifierLength = 63

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Canonical annexure columns created with every table.
const (
	ColumnID             = "id"
	ColumnApplicationID  = "client_application_id"
	ColumnBranchID       = "branch_id"
	ColumnCustomerID     = "customer_id"
	ColumnStatus         = "status"
	ColumnLegacyDocument = "team_management_docs"
	ColumnCreatedAt      = "created_at"
	ColumnUpdatedAt      = "updated_at"
)

// linkageColumns may not be declared as form fields; writers never set them
// through field maps.
var linkageColumns = map[string]struct{}{
	ColumnID: {}, ColumnApplicationID: {}, ColumnBranchID: {},
	ColumnCustomerID: {}, ColumnCreatedAt: {}, ColumnUpdatedAt: {},
}

// IsCanonicalColumn reports whether name is created with every annexure table.
// Columns are quoted in DDL, so "Status" is a different column from "status".
func IsCanonicalColumn(name string) bool {
	_, linkage := linkageColumns[name]
	return linkage || name == ColumnStatus || name == ColumnLegacyDocument
}

// reservedWords are SQL keywords rejected as table or column names.
var reservedWords = map[string]struct{}{
	"all": {}, "alter": {}, "and": {}, "any": {}, "as": {}, "asc": {}, "between": {},
	"by": {}, "case": {}, "cast": {}, "check": {}, "column": {}, "constraint": {},
	"create": {}, "cross": {}, "default": {}, "delete": {}, "desc": {}, "distinct": {},
	"drop": {}, "else": {}, "end": {}, "except": {}, "exists": {}, "false": {},
	"fetch": {}, "for": {}, "foreign": {}, "from": {}, "grant": {}, "group": {},
	"having": {}, "in": {}, "index": {}, "inner": {}, "insert": {}, "intersect": {},
	"into": {}, "is": {}, "join": {}, "key": {}, "left": {}, "like": {}, "limit": {},
	"not": {}, "null": {}, "offset": {}, "on": {}, "or": {}, "order": {}, "outer": {},
	"primary": {}, "references": {}, "right": {}, "select": {}, "set": {}, "table": {},
	"then": {}, "to": {}, "true": {}, "truncate": {}, "union": {}, "unique": {},
	"update": {}, "user": {}, "using": {}, "values": {}, "when": {}, "where": {}, "with": {},
}

// coreTables are owned by static migrations and can never be annexure targets.
var coreTables = map[string]struct{}{
	"cases": {}, "customers": {}, "branches": {}, "services": {}, "form_schemas": {},
	"holidays": {}, "weekend_days": {}, "schema_migrations": {},
}

// ValidateIdentifier checks that name is safe to use as a table or column name.
func ValidateIdentifier(kind, name string) error {
	switch {
	case name == "":
		return errors.Validation(kind + " name must not be empty")
	case len(name) > MaxIdentifierLength:
		return errors.Validation(kind + " name exceeds 63 characters").WithDetail(name)
	case !identifierPattern.MatchString(name):
		return errors.Validation(kind + " name contains invalid characters").WithDetail(name)
	}
	if _, ok := reservedWords[strings.ToLower(name)]; ok {
		return errors.Validation(kind + " name is a reserved word").WithDetail(name)
	}
	return nil
}

// ValidateTableName checks name as an annexure table name.
func ValidateTableName(name string) error {
	if err := ValidateIdentifier("table", name); err != nil {
		return err
	}
	if _, ok := coreTables[strings.ToLower(name)]; ok {
		return errors.Validation("table name collides with a core table").WithDetail(name)
	}
	return nil
}

// ValidateFieldName checks name as a writable annexure field.
func ValidateFieldName(name string) error {
	if err := ValidateIdentifier("field", name); err != nil {
		return err
	}
	if _, ok := linkageColumns[strings.ToLower(name)]; ok {
		return errors.Validation("field name collides with a linkage column").WithDetail(name)
	}
	return nil
}

// FieldSpec is one declared annexure field.
type FieldSpec struct {
	Name string    `json:"name"`
	Type InputType `json:"type"`
}

// AnnexureDescriptor is the validated migration request derived from a schema.
type AnnexureDescriptor struct {
	TableName string      `json:"table_name"`
	Fields    []FieldSpec `json:"fields"`
}

// Validate checks the table name, every field name and field type, and that
// no name is declared twice.
func (d AnnexureDescriptor) Validate() error {
	if err := ValidateTableName(d.TableName); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(d.Fields))
	for _, f := range d.Fields {
		if err := ValidateFieldName(f.Name); err != nil {
			return err
		}
		if _, err := ParseInputType(string(f.Type)); err != nil {
			return errors.Validation("unknown input type").WithDetail(f.Name + ": " + string(f.Type))
		}
		key := strings.ToLower(f.Name)
		if _, dup := seen[key]; dup {
			return errors.Validation("duplicate field name").WithDetail(f.Name)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// ColumnNames returns the field names that need their own column, skipping
// canonical columns that every table already has.
func (d AnnexureDescriptor) ColumnNames() []string {
	out := make([]string, 0, len(d.Fields))
	for _, f := range d.Fields {
		if IsCanonicalColumn(f.Name) {
			continue
		}
		out = append(out, f.Name)
	}
	return out
}

// FieldSpecsFor builds text FieldSpecs for ad hoc field maps, such as a
// writer supplying columns that no schema declares.
func FieldSpecsFor(names []string) []FieldSpec {
	out := make([]FieldSpec, 0, len(names))
	for _, n := range names {
		out = append(out, FieldSpec{Name: n, Type: InputText})
	}
	return out
}
