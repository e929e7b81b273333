// Package formschema models the per-service JSON form definitions that drive
// annexure table layout. Each service owns one Schema; the schema's rows of
// inputs decide which columns its target table carries.
package formschema

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/vanshwebstep/screeningstarnewnode-sub002/pkg/errors"
)

// InputType is the closed set of form input kinds.
type InputType string

const (
	InputText     InputType = "text"
	InputTextarea InputType = "textarea"
	InputNumber   InputType = "number"
	InputEmail    InputType = "email"
	InputDate     InputType = "date"
	InputSelect   InputType = "select"
	InputRadio    InputType = "radio"
	InputCheckbox InputType = "checkbox"
	InputFile     InputType = "file"
)

var knownInputTypes = map[InputType]struct{}{
	InputText: {}, InputTextarea: {}, InputNumber: {}, InputEmail: {}, InputDate: {},
	InputSelect: {}, InputRadio: {}, InputCheckbox: {}, InputFile: {},
}

// ParseInputType maps a raw type string to an InputType. Matching ignores
// case and surrounding space; unknown kinds are a ValidationError.
func ParseInputType(raw string) (InputType, error) {
	t := InputType(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := knownInputTypes[t]; !ok {
		return "", errors.Validation("unknown input type").WithDetail(raw)
	}
	return t, nil
}

// UnmarshalJSON rejects unknown input kinds.
func (t *InputType) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return errors.Validation("input type must be a string").WithCause(err)
	}
	parsed, err := ParseInputType(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// IsFile reports whether values of this input are stored file paths.
func (t InputType) IsFile() bool { return t == InputFile }

// Input is a single form field.
type Input struct {
	Name  string    `json:"name"`
	Label string    `json:"label"`
	Type  InputType `json:"type"`
}

// Row groups inputs under a display label.
type Row struct {
	Label  string  `json:"label"`
	Inputs []Input `json:"inputs"`
}

// Schema is a parsed form definition. The JSON document carries heading,
// db_table and rows; the remaining fields are registry metadata.
type Schema struct {
	TargetTable string `json:"db_table"`
	Heading     string `json:"heading"`
	Rows        []Row  `json:"rows"`

	ServiceID int64           `json:"-"`
	AuthorID  int64           `json:"-"`
	UpdatedAt time.Time       `json:"-"`
	Raw       json.RawMessage `json:"-"`
}

// Parse decodes a form definition document and validates its descriptor.
func Parse(doc []byte) (*Schema, error) {
	var s Schema
	if err := json.Unmarshal(doc, &s); err != nil {
		var ae *errors.AppError
		if errors.As(err, &ae) {
			return nil, ae
		}
		return nil, errors.Validation("form schema is not valid JSON").WithCause(err)
	}
	s.TargetTable = strings.TrimSpace(s.TargetTable)
	if _, err := s.Descriptor(); err != nil {
		return nil, err
	}
	s.Raw = append(json.RawMessage(nil), doc...)
	return &s, nil
}

// Decode reads a stored document without validating its descriptor, so
// definitions saved before a rule tightened stay readable.
func Decode(doc []byte) (*Schema, error) {
	var s Schema
	if err := json.Unmarshal(doc, &s); err != nil {
		var ae *errors.AppError
		if errors.As(err, &ae) {
			return nil, ae
		}
		return nil, errors.Validation("form schema is not valid JSON").WithCause(err)
	}
	s.TargetTable = strings.TrimSpace(s.TargetTable)
	s.Raw = append(json.RawMessage(nil), doc...)
	return &s, nil
}

// Descriptor flattens the schema into a validated AnnexureDescriptor. A name
// declared in several rows with the same type appears once; a name declared
// with conflicting types is rejected.
func (s *Schema) Descriptor() (AnnexureDescriptor, error) {
	d := AnnexureDescriptor{TableName: s.TargetTable}
	seen := make(map[string]InputType)
	for _, row := range s.Rows {
		for _, in := range row.Inputs {
			name := strings.TrimSpace(in.Name)
			if prev, ok := seen[name]; ok {
				if prev != in.Type {
					return AnnexureDescriptor{}, errors.Validation("field declared with conflicting input types").WithDetail(name)
				}
				continue
			}
			seen[name] = in.Type
			d.Fields = append(d.Fields, FieldSpec{Name: name, Type: in.Type})
		}
	}
	if err := d.Validate(); err != nil {
		return AnnexureDescriptor{}, err
	}
	return d, nil
}

// Labels maps each declared field name to its display label. The first
// declaration of a name wins.
func (s *Schema) Labels() map[string]string {
	out := make(map[string]string)
	for _, row := range s.Rows {
		for _, in := range row.Inputs {
			if _, ok := out[in.Name]; !ok {
				out[in.Name] = in.Label
			}
		}
	}
	return out
}

// FileFields returns the distinct names of file-typed inputs in declaration order.
func (s *Schema) FileFields() []string {
	var out []string
	seen := make(map[string]struct{})
	for _, row := range s.Rows {
		for _, in := range row.Inputs {
			if !in.Type.IsFile() {
				continue
			}
			if _, ok := seen[in.Name]; ok {
				continue
			}
			seen[in.Name] = struct{}{}
			out = append(out, in.Name)
		}
	}
	return out
}
