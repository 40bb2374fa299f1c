package models

import (
	"fmt"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// RecordIDString safely extracts the string ID from a SurrealDB RecordID.
// Returns an error if the ID is not a string type.
func RecordIDString(id surrealmodels.RecordID) (string, error) {
	s, ok := id.ID.(string)
	if !ok {
		return "", fmt.Errorf("unexpected ID type: %T (expected string)", id.ID)
	}
	return s, nil
}

// RecordIDText renders a RecordID as "table:id" for logs and reports.
// Non-string IDs (numbers, arrays) are formatted with %v.
func RecordIDText(id surrealmodels.RecordID) string {
	if s, err := RecordIDString(id); err == nil {
		return id.Table + ":" + s
	}
	return fmt.Sprintf("%s:%v", id.Table, id.ID)
}
