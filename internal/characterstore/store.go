// Package characterstore adapts the account store's character list into
// the engine.CharacterLookup the world server needs to spawn a player.
//
// spec.md's accounts file only carries, per character, the world it
// belongs to (name, worldName, worldIp, worldPort) — no stats or spawn
// position column. The reference implementation never reads them from
// disk either: player_manager.cc's spawn() constructs a fresh Player
// with default stats and always spawns it at the fixed Position(222,
// 222, 7). This package reproduces that behaviour: it trusts the
// account store's character list only to decide whether a name exists,
// then hands the engine the same fixed starting stats for every
// character.
package characterstore

import (
	"github.com/opentile/server/internal/accountstore"
	"github.com/opentile/server/internal/engine"
	"github.com/opentile/server/internal/worldmodel"
)

// defaultSpawn is the reference server's hardcoded starting tile.
var defaultSpawn = worldmodel.Position{X: 222, Y: 222, Z: 7}

const (
	defaultHealth   = 150
	defaultMana     = 100
	defaultCapacity = 400
	defaultSpeed    = 220
	defaultLevel    = 1
)

// Store implements engine.CharacterLookup over an accountstore.Store.
type Store struct {
	accounts *accountstore.Store
}

func New(accounts *accountstore.Store) *Store {
	return &Store{accounts: accounts}
}

// Lookup reports whether name is a known character and, if so, its
// fixed starting CharacterInfo.
func (s *Store) Lookup(name string) (engine.CharacterInfo, bool) {
	if !s.accounts.CharacterExists(name) {
		return engine.CharacterInfo{}, false
	}
	return engine.CharacterInfo{
		SpawnPosition: defaultSpawn,
		Health:        defaultHealth,
		MaxHealth:     defaultHealth,
		Mana:          defaultMana,
		MaxMana:       defaultMana,
		Speed:         defaultSpeed,
		Capacity:      defaultCapacity,
		Level:         defaultLevel,
		MagicLevel:    0,
	}, true
}
