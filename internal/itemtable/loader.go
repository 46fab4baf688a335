// Package itemtable loads the static item-type table from disk at
// boot. Per spec.md §1 this table is an out-of-scope collaborator
// referenced only through worldmodel.ItemTypeTable; this package is
// the concrete on-disk loader the world server wires up in main,
// following the teacher's pattern of YAML-backed static game-data
// tables (internal/data in the reference repo).
package itemtable

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/opentile/server/internal/worldmodel"
)

// entry is the on-disk shape of one item-type row.
type entry struct {
	ID          uint16 `yaml:"id"`
	Name        string `yaml:"name"`
	AlwaysOnTop bool   `yaml:"always_on_top"`
	IsGround    bool   `yaml:"is_ground"`
	BlockPath   bool   `yaml:"block_path"`
	Stackable   bool   `yaml:"stackable"`
	Multitype   bool   `yaml:"multitype"`
	IsContainer bool   `yaml:"is_container"`
	MaxItems    int    `yaml:"max_items"`
}

// Load reads a YAML file of item-type rows and returns a read-only
// lookup table. An empty or missing file is a startup failure.
func Load(path string) (worldmodel.MapItemTypeTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read item table %s: %w", path, err)
	}
	var entries []entry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse item table %s: %w", path, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("item table %s: no entries", path)
	}

	table := make(worldmodel.MapItemTypeTable, len(entries))
	for _, e := range entries {
		table[worldmodel.ItemTypeID(e.ID)] = worldmodel.ItemType{
			ID:          worldmodel.ItemTypeID(e.ID),
			Name:        e.Name,
			AlwaysOnTop: e.AlwaysOnTop,
			IsGround:    e.IsGround,
			BlockPath:   e.BlockPath,
			Stackable:   e.Stackable,
			Multitype:   e.Multitype,
			IsContainer: e.IsContainer,
			MaxItems:    e.MaxItems,
		}
	}
	return table, nil
}
