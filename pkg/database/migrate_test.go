package database

import (
	"sort"
	"testing"
)

func TestMigrationNames(t *testing.T) {
	names, err := migrationNames()
	if err != nil {
		t.Fatalf("migrationNames() error = %v", err)
	}
	if len(names) == 0 {
		t.Fatal("no embedded migrations")
	}
	if !sort.StringsAreSorted(names) {
		t.Errorf("migrations not sorted: %v", names)
	}
	if names[0] != "001_schema.sql" {
		t.Errorf("first migration = %q, want 001_schema.sql", names[0])
	}
}
