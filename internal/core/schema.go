package core

// FieldType is the declared value type of a dataset field.
type FieldType string

const (
	// FieldInteger holds whole numbers.
	FieldInteger FieldType = "integer"

	// FieldFloat holds floating point numbers.
	FieldFloat FieldType = "float"

	// FieldString holds free text.
	FieldString FieldType = "string"

	// FieldBoolean holds true or false.
	FieldBoolean FieldType = "boolean"

	// FieldTimestamp holds an RFC 3339 timestamp string.
	FieldTimestamp FieldType = "timestamp"
)

// Schema represents the field layout of a dataset.
type Schema struct {
	// Dataset is the name of the dataset.
	Dataset string `json:"dataset" yaml:"dataset"`

	// PrimaryKey is the name of the identifier field.
	PrimaryKey string `json:"primaryKey" yaml:"primary_key"`

	// Fields contains all field definitions in display order.
	Fields []Field `json:"fields" yaml:"fields"`
}

// Field represents a single field of a dataset.
type Field struct {
	// Name is the field name as it appears in records.
	Name string `json:"name" yaml:"name"`

	// Type is the declared value type.
	Type FieldType `json:"type" yaml:"type"`

	// Enum lists the only values the field may take. Empty means unrestricted.
	Enum []string `json:"enum,omitempty" yaml:"enum,omitempty"`

	// Searchable marks the field as a target of the free-text filter.
	Searchable bool `json:"searchable" yaml:"searchable"`

	// ReadOnly rejects writes to the field.
	ReadOnly bool `json:"readOnly" yaml:"read_only"`

	// Nullable indicates whether the field can hold a null value.
	Nullable bool `json:"nullable" yaml:"nullable"`
}

// Field looks up a field definition by name.
func (s *Schema) Field(name string) (*Field, bool) {
	if s == nil {
		return nil, false
	}
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			return &s.Fields[i], true
		}
	}
	return nil, false
}

// SearchableFields returns the names of the fields the filter matches against.
func (s *Schema) SearchableFields() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		if f.Searchable {
			out = append(out, f.Name)
		}
	}
	return out
}

// Allows reports whether value is inside the field's enumerated domain.
// Fields without an enumeration allow every value.
func (f *Field) Allows(value string) bool {
	if len(f.Enum) == 0 {
		return true
	}
	for _, v := range f.Enum {
		if v == value {
			return true
		}
	}
	return false
}
