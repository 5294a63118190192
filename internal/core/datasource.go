package core

import (
	"context"
)

// DataSource defines the contract between the data grid and whatever holds
// the authoritative records. Implementations must be stateless with respect
// to the caller: every call carries the full query.
type DataSource interface {
	// FetchPage returns the window of records selected by the query along
	// with the total number of records matching its filter.
	// The same query may be issued repeatedly and concurrently.
	FetchPage(ctx context.Context, query Query) (Page, error)

	// WriteCell persists a single field value for the given row.
	// The row must carry its identifier; other fields are informational.
	// Returns a validation error when the value is outside the field's domain
	// and a not-found error when the row no longer exists.
	WriteCell(ctx context.Context, row Record, key string, value any) error
}

// SchemaSource is implemented by data sources that can describe their fields.
type SchemaSource interface {
	// Schema returns the field layout of the dataset.
	Schema(ctx context.Context) (*Schema, error)
}
