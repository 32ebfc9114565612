package analyzer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// The repo's column list and the shipped schema drift independently; this
// pins them together without a live database.
func TestRepoColumnsExistInMigration(t *testing.T) {
	schema, err := os.ReadFile(filepath.Join("..", "..", "..", "migrations", "001_core.sql"))
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}

	table := extractCreateTable(t, string(schema), "analyzer")
	for _, col := range strings.Split(cols, ",") {
		col = strings.TrimSpace(col)
		if col == "" {
			continue
		}
		if !strings.Contains(table, col) {
			t.Errorf("column %q selected by the repo is missing from the analyzer table", col)
		}
	}
}

func extractCreateTable(t *testing.T, schema, name string) string {
	t.Helper()
	marker := "CREATE TABLE IF NOT EXISTS " + name + " ("
	start := strings.Index(schema, marker)
	if start < 0 {
		t.Fatalf("migration defines no %s table", name)
	}
	rest := schema[start:]
	end := strings.Index(rest, ");")
	if end < 0 {
		t.Fatalf("unterminated %s table definition", name)
	}
	return rest[:end]
}
