package models

import (
	"testing"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

func TestRecordIDString(t *testing.T) {
	id := surrealmodels.RecordID{Table: "file_orders_csv", ID: "abc123"}
	got, err := RecordIDString(id)
	if err != nil {
		t.Fatalf("RecordIDString() error = %v", err)
	}
	if got != "abc123" {
		t.Errorf("RecordIDString() = %q, want %q", got, "abc123")
	}

	if _, err := RecordIDString(surrealmodels.RecordID{Table: "t", ID: 42}); err == nil {
		t.Error("RecordIDString() with int ID should error")
	}
}

func TestRecordIDText(t *testing.T) {
	tests := []struct {
		name string
		id   surrealmodels.RecordID
		want string
	}{
		{"string id", surrealmodels.RecordID{Table: "surello_history", ID: "x1"}, "surello_history:x1"},
		{"numeric id", surrealmodels.RecordID{Table: "file_a_csv", ID: 7}, "file_a_csv:7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RecordIDText(tt.id); got != tt.want {
				t.Errorf("RecordIDText() = %q, want %q", got, tt.want)
			}
		})
	}
}
