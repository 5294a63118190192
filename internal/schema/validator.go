package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rzpsarthak13/gridconsole/internal/core"
	"github.com/rzpsarthak13/gridconsole/internal/errs"
)

// ErrInvalidValue is wrapped by every validation failure produced here.
var ErrInvalidValue = errors.New("invalid value")

// Validator validates single-field writes against a dataset schema.
type Validator struct {
	schema *core.Schema
	mapper *TypeMapper
}

// NewValidator creates a new validator for the given schema.
func NewValidator(schema *core.Schema) *Validator {
	return &Validator{
		schema: schema,
		mapper: NewTypeMapper(),
	}
}

// ValidateWrite checks that value may be stored in field and returns it
// converted to the field's declared type. Failures are validation errors.
func (v *Validator) ValidateWrite(field string, value any) (any, error) {
	if v.schema == nil {
		return value, nil
	}

	name := strings.TrimSpace(field)
	if name == "" {
		return nil, v.invalid("", "Invalid payload", nil)
	}

	def, ok := v.schema.Field(name)
	if !ok {
		return nil, v.invalid(name, fmt.Sprintf("Unknown field %s", name), nil)
	}

	// The primary key identifies the record and is never written.
	if name == v.schema.PrimaryKey || def.ReadOnly {
		return nil, v.invalid(name, fmt.Sprintf("Field %s is read-only", name), nil)
	}

	if value == nil {
		if !def.Nullable {
			return nil, v.invalid(name, fmt.Sprintf("Field %s cannot be null", name), nil)
		}
		return nil, nil
	}

	coerced, err := v.mapper.Coerce(value, def.Type)
	if err != nil {
		return nil, v.invalid(name, fmt.Sprintf("Invalid %s", name), err)
	}

	if len(def.Enum) > 0 {
		s, _ := coerced.(string)
		if !def.Allows(s) {
			return nil, v.invalid(name, fmt.Sprintf("Invalid %s", name), nil)
		}
	}

	return coerced, nil
}

func (v *Validator) invalid(field, msg string, cause error) error {
	if cause == nil {
		cause = ErrInvalidValue
	} else {
		cause = fmt.Errorf("%w: %w", ErrInvalidValue, cause)
	}
	return errs.Validation(msg, errs.WithField(field), errs.WithCause(cause))
}
