// Package repository persists room events and widget audit logs in PostgreSQL
// and MySQL. Every method runs on the transaction carried by ctx when there is one.
package repository

import (
	"database/sql"
	"encoding/json"
)

// nullStateKey maps a nil state key to NULL and keeps "" as an empty string.
func nullStateKey(stateKey *string) sql.NullString {
	if stateKey == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *stateKey, Valid: true}
}

func stateKeyFromNull(stateKey sql.NullString) *string {
	if !stateKey.Valid {
		return nil
	}
	key := stateKey.String
	return &key
}

// contentValue stores content as text so both JSONB and JSON columns accept it.
func contentValue(content json.RawMessage) string {
	if len(content) == 0 {
		return "{}"
	}
	return string(content)
}
