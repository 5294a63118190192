// Package journal records accepted cell writes as change events and drains
// them to external sinks at a controlled rate.
package journal

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/rzpsarthak13/gridconsole/internal/core"
)

// DefaultKeyPrefix prefixes every key written by the KV sink.
const DefaultKeyPrefix = "gridconsole:change"

// Translator converts change events to and from key-value pairs.
// Keys have the form {prefix}:{dataset}:{recordID}:{eventID}, so all
// changes of one record share a key prefix.
type Translator struct {
	prefix string
}

// NewTranslator creates a translator. An empty prefix selects DefaultKeyPrefix.
func NewTranslator(prefix string) *Translator {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Translator{prefix: strings.TrimSuffix(prefix, ":")}
}

// Key returns the key for an event.
func (t *Translator) Key(event *core.ChangeEvent) string {
	return fmt.Sprintf("%s:%s:%d:%s", t.prefix, event.Dataset, event.RecordID, event.ID)
}

// LatestKey returns the key holding the most recent change of one field of
// a record. It is overwritten on every change of that field.
func (t *Translator) LatestKey(event *core.ChangeEvent) string {
	return fmt.Sprintf("%s:%s:latest:%d:%s", t.prefix, event.Dataset, event.RecordID, event.Field)
}

// ToKV converts an event to its key and serialized value.
func (t *Translator) ToKV(event *core.ChangeEvent) (string, []byte, error) {
	if event == nil {
		return "", nil, fmt.Errorf("event cannot be nil")
	}
	if event.ID == "" || event.Dataset == "" {
		return "", nil, fmt.Errorf("event requires id and dataset")
	}

	data, err := json.Marshal(event)
	if err != nil {
		return "", nil, fmt.Errorf("failed to serialize event %s: %w", event.ID, err)
	}
	return t.Key(event), data, nil
}

// FromKV deserializes a stored event.
func (t *Translator) FromKV(value []byte) (*core.ChangeEvent, error) {
	if len(value) == 0 {
		return nil, fmt.Errorf("value cannot be empty")
	}

	var event core.ChangeEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return nil, fmt.Errorf("failed to deserialize event: %w", err)
	}
	return &event, nil
}
