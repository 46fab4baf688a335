// Package config loads the login and world servers' TOML configuration
// files. Section names mirror spec.md §6's INI layout ([server],
// [login], [world], [logger]) 1:1; TOML is kept as the file format
// since parsing itself is named an out-of-scope collaborator, and the
// teacher's own config stack already used BurntSushi/toml.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// LogLevel is one of the three levels spec.md §6 allows per module.
type LogLevel string

const (
	LogError LogLevel = "ERROR"
	LogInfo  LogLevel = "INFO"
	LogDebug LogLevel = "DEBUG"
)

// ServerConfig is the shared [server] section both binaries read.
type ServerConfig struct {
	Port int `toml:"port"`
}

// LoggerConfig is the [logger] section: one level for the binary that
// reads the file; there are no per-module level keys.
type LoggerConfig struct {
	Level LogLevel `toml:"level"`
}

// LoginConfig backs the login server's config file.
type LoginConfig struct {
	Server ServerConfig `toml:"server"`
	Login  struct {
		MOTD         string `toml:"motd"`
		AccountsFile string `toml:"accounts_file"`
	} `toml:"login"`
	Logger LoggerConfig `toml:"logger"`
}

// WorldConfig backs the world server's config file.
type WorldConfig struct {
	Server ServerConfig `toml:"server"`
	World  struct {
		MOTD      string `toml:"motd"`
		DataFile  string `toml:"data_file"`
		ItemsFile string `toml:"items_file"`
		WorldFile string `toml:"world_file"`
	} `toml:"world"`
	Logger LoggerConfig `toml:"logger"`
}

func loginDefaults() *LoginConfig {
	cfg := &LoginConfig{Server: ServerConfig{Port: 7171}, Logger: LoggerConfig{Level: LogInfo}}
	cfg.Login.MOTD = "data/motd.txt"
	cfg.Login.AccountsFile = "data/accounts.xml"
	return cfg
}

func worldDefaults() *WorldConfig {
	cfg := &WorldConfig{Server: ServerConfig{Port: 7172}, Logger: LoggerConfig{Level: LogInfo}}
	cfg.World.MOTD = "data/motd.txt"
	cfg.World.DataFile = "data/accounts.xml"
	cfg.World.ItemsFile = "data/items.yaml"
	cfg.World.WorldFile = "data/world.xml"
	return cfg
}

// LoadLogin reads and parses a login server config file, filling in
// defaults for any key missing from it.
func LoadLogin(path string) (*LoginConfig, error) {
	cfg := loginDefaults()
	if err := decode(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadWorld reads and parses a world server config file, filling in
// defaults for any key missing from it.
func LoadWorld(path string) (*WorldConfig, error) {
	cfg := worldDefaults()
	if err := decode(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(path string, into any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if _, err := toml.Decode(string(data), into); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}
