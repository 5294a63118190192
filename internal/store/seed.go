package store

import (
	"fmt"
	"time"

	"github.com/rzpsarthak13/gridconsole/internal/core"
)

const (
	// DefaultSeedSize is the number of demo users generated by default.
	DefaultSeedSize = 250

	// SeedStep separates the creation times of consecutive seed records.
	SeedStep = 8640000 * time.Millisecond

	// ISOMillis renders timestamps with millisecond precision in UTC.
	ISOMillis = "2006-01-02T15:04:05.000Z07:00"
)

// nowFunc is replaced in tests to pin seed timestamps.
var nowFunc = time.Now

var (
	// Roles is the enumerated domain of the role field.
	Roles = []string{"admin", "editor", "viewer"}

	// Statuses is the enumerated domain of the status field.
	Statuses = []string{"active", "invited", "disabled"}
)

// UsersSchema describes the demo user dataset.
func UsersSchema() *core.Schema {
	return &core.Schema{
		Dataset:    "users",
		PrimaryKey: core.IDField,
		Fields: []core.Field{
			{Name: core.IDField, Type: core.FieldInteger, Searchable: true, ReadOnly: true},
			{Name: "name", Type: core.FieldString, Searchable: true},
			{Name: "email", Type: core.FieldString, Searchable: true},
			{Name: "role", Type: core.FieldString, Enum: Roles, Searchable: true},
			{Name: "status", Type: core.FieldString, Enum: Statuses, Searchable: true},
			{Name: "createdAt", Type: core.FieldTimestamp},
		},
	}
}

// SeedUsers generates count deterministic users with ids 1..count.
// Record i was created i*SeedStep before now, so lower ids are newer.
func SeedUsers(count int, now time.Time) []core.Record {
	if count < 0 {
		count = 0
	}
	records := make([]core.Record, 0, count)
	for i := 1; i <= count; i++ {
		records = append(records, core.Record{
			core.IDField: i,
			"name":       fmt.Sprintf("User %d", i),
			"email":      fmt.Sprintf("user%d@example.com", i),
			"role":       Roles[i%len(Roles)],
			"status":     Statuses[i%len(Statuses)],
			"createdAt":  now.Add(-time.Duration(i) * SeedStep).UTC().Format(ISOMillis),
		})
	}
	return records
}
