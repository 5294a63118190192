package grid

import (
	"strings"
	"time"
	"unicode"

	"github.com/rzpsarthak13/gridconsole/internal/core"
)

// DefaultColumnWidth is used for columns without a width.
const DefaultColumnWidth = 180

// Formatter renders a cell for display from the whole record. It must not
// modify the record; the raw value stays what sorting, filtering and
// editing see.
type Formatter func(row core.Record) string

// Column describes one grid column.
type Column struct {
	Key      string
	Header   string
	Width    int
	Editable bool
	Format   Formatter

	// Type converts the editor text before it is written. Empty writes the
	// text as is.
	Type core.FieldType
}

// Display returns the text shown for row in this column.
func (c Column) Display(row core.Record) string {
	if c.Format != nil {
		return c.Format(row)
	}
	return core.FormatValue(row[c.Key])
}

func (c Column) width() int {
	if c.Width > 0 {
		return c.Width
	}
	return DefaultColumnWidth
}

// TimestampFormatter shows an RFC 3339 field in loc using layout. Values
// that do not parse are shown unchanged.
func TimestampFormatter(key, layout string, loc *time.Location) Formatter {
	if loc == nil {
		loc = time.Local
	}
	return func(row core.Record) string {
		raw := core.FormatValue(row[key])
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return raw
		}
		return ts.In(loc).Format(layout)
	}
}

// UserColumns is the column set of the demo users dataset.
func UserColumns() []Column {
	return []Column{
		{Key: "id", Header: "ID", Width: 90},
		{Key: "name", Header: "Name", Width: 220, Editable: true},
		{Key: "email", Header: "Email", Width: 260, Editable: true},
		{Key: "role", Header: "Role", Width: 140, Editable: true},
		{Key: "status", Header: "Status", Width: 140, Editable: true},
		{Key: "createdAt", Header: "Created At", Width: 220,
			Format: TimestampFormatter("createdAt", "2006-01-02 15:04:05", nil)},
	}
}

// ColumnsFromSchema derives columns from a schema: read-only fields and the
// primary key are not editable and timestamps are shown in local time.
func ColumnsFromSchema(s *core.Schema) []Column {
	if s == nil {
		return nil
	}
	cols := make([]Column, 0, len(s.Fields))
	for _, f := range s.Fields {
		col := Column{
			Key:      f.Name,
			Header:   Humanize(f.Name),
			Editable: !f.ReadOnly && f.Name != s.PrimaryKey,
			Type:     f.Type,
		}
		switch {
		case f.Name == s.PrimaryKey:
			col.Width = 90
		case f.Type == core.FieldTimestamp:
			col.Width = 220
			col.Format = TimestampFormatter(f.Name, "2006-01-02 15:04:05", nil)
		case len(f.Enum) > 0:
			col.Width = 140
		}
		cols = append(cols, col)
	}
	return cols
}

// Humanize turns a camelCase or snake_case key into a header:
// "createdAt" becomes "Created At", "id" becomes "ID".
func Humanize(key string) string {
	if strings.EqualFold(key, "id") {
		return "ID"
	}

	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = cur[:0]
		}
	}
	for _, r := range key {
		switch {
		case r == '_' || r == '-' || r == ' ':
			flush()
		case unicode.IsUpper(r):
			flush()
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
	}
	flush()

	for i, w := range words {
		rs := []rune(w)
		rs[0] = unicode.ToUpper(rs[0])
		words[i] = string(rs)
	}
	return strings.Join(words, " ")
}
