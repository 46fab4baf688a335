package characterstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/opentile/server/internal/accountstore"
)

func testAccounts(t *testing.T) *accountstore.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "accounts.xml")
	os.WriteFile(path, []byte(`<accounts>
  <account number="1" password="pw" premiumDays="0">
    <character name="Hero" worldName="Default" worldIp="127.0.0.1" worldPort="7172"/>
  </account>
</accounts>`), 0o644)
	accounts, err := accountstore.Load(path)
	if err != nil {
		t.Fatalf("accountstore.Load: %v", err)
	}
	return accounts
}

func TestLookupKnownCharacterReturnsDefaultStats(t *testing.T) {
	s := New(testAccounts(t))
	info, ok := s.Lookup("Hero")
	if !ok {
		t.Fatalf("Lookup(Hero) not found")
	}
	if info.SpawnPosition != defaultSpawn {
		t.Fatalf("SpawnPosition = %+v, want %+v", info.SpawnPosition, defaultSpawn)
	}
	if info.Health != defaultHealth || info.MaxHealth != defaultHealth {
		t.Fatalf("Health = %d/%d, want %d/%d", info.Health, info.MaxHealth, defaultHealth, defaultHealth)
	}
}

func TestLookupUnknownCharacterFails(t *testing.T) {
	s := New(testAccounts(t))
	if _, ok := s.Lookup("Nobody"); ok {
		t.Fatalf("Lookup(Nobody) should not be found")
	}
}
