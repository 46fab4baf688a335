package motd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFormattedPrependsNumberAndNewline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "motd.txt")
	os.WriteFile(path, []byte("Welcome to the server."), 0o644)

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	formatted := p.Formatted()
	if !strings.Contains(formatted, "\nWelcome to the server.") {
		t.Fatalf("Formatted() = %q, missing motd text on its own line", formatted)
	}
	before, _, _ := strings.Cut(formatted, "\n")
	if before == "" {
		t.Fatalf("Formatted() = %q, missing leading number", formatted)
	}
}

func TestLoadSameTextGivesSameNumber(t *testing.T) {
	path := filepath.Join(t.TempDir(), "motd.txt")
	os.WriteFile(path, []byte("same text"), 0o644)

	p1, _ := Load(path)
	p2, _ := Load(path)
	n1, _, _ := strings.Cut(p1.Formatted(), "\n")
	n2, _, _ := strings.Cut(p2.Formatted(), "\n")
	if n1 != n2 {
		t.Fatalf("numbers differ for identical text: %q vs %q", n1, n2)
	}
}
