package itemtable

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadParsesEntries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "items.yaml")
	content := `
- id: 1
  name: grass
  is_ground: true
- id: 100
  name: chest
  is_container: true
  max_items: 20
`
	if err := writeFile(path, content); err != nil {
		t.Fatalf("writeFile: %v", err)
	}

	table, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	grass, ok := table.Lookup(1)
	if !ok || !grass.IsGround || grass.Name != "grass" {
		t.Fatalf("Lookup(1) = %+v, %v", grass, ok)
	}
	chest, ok := table.Lookup(100)
	if !ok || !chest.IsContainer || chest.MaxItems != 20 {
		t.Fatalf("Lookup(100) = %+v, %v", chest, ok)
	}
}

func TestLoadRejectsEmptyTable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.yaml")
	if err := writeFile(path, "[]"); err != nil {
		t.Fatalf("writeFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error loading empty item table")
	}
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}
