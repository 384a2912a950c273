package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONB is a flexible JSON object column for data bags the code reads
// and writes by key. Opaque passthrough payloads use datatypes.JSON
// instead.
type JSONB map[string]interface{}

// Scan implements the sql.Scanner interface for JSONB
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("failed to scan JSONB value: %v", value)
	}

	if len(bytes) == 0 {
		*j = nil
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// Value implements the driver.Valuer interface for JSONB
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// GetString returns the string value under key, or "" when absent or
// not a string
func (j JSONB) GetString(key string) string {
	if j == nil {
		return ""
	}
	if s, ok := j[key].(string); ok {
		return s
	}
	return ""
}

// GetMap returns the nested object under key, or nil when absent or
// not an object
func (j JSONB) GetMap(key string) map[string]interface{} {
	if j == nil {
		return nil
	}
	if m, ok := j[key].(map[string]interface{}); ok {
		return m
	}
	return nil
}
