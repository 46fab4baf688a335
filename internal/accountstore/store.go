// Package accountstore implements the Account store component: a
// read-only, boot-time-loaded lookup from account number/character name
// to account and character data, matching the flat XML accounts file
// spec.md §6 defines. Passwords are plaintext, by design — these are
// legacy credentials, not something this server is free to strengthen
// (see DESIGN.md for the bcrypt-drop justification).
package accountstore

import (
	"encoding/xml"
	"errors"
	"os"
)

// Character is one playable character belonging to an account, and the
// world endpoint the login server advertises for it.
type Character struct {
	Name       string
	WorldName  string
	WorldIP    string
	WorldPort  uint16
}

// Account is one account entry: its plaintext password, premium days
// remaining, and the characters it owns.
type Account struct {
	Number      uint32
	Password    string
	PremiumDays uint16
	Characters  []Character
}

// Status mirrors the reference implementation's Account::Status enum
// (original_source/src/common/accountmanager/accountmgr.h).
type Status int

const (
	StatusNotFound Status = iota
	StatusInvalidPassword
	StatusOK
)

// Store is the in-memory account table, populated once at boot and
// never mutated afterward.
type Store struct {
	accounts           map[uint32]Account
	characterToAccount map[string]uint32
}

type xmlAccounts struct {
	XMLName  xml.Name     `xml:"accounts"`
	Accounts []xmlAccount `xml:"account"`
}

type xmlAccount struct {
	Number      uint32         `xml:"number,attr"`
	Password    string         `xml:"password,attr"`
	PremiumDays uint16         `xml:"premiumDays,attr"`
	Characters  []xmlCharacter `xml:"character"`
}

type xmlCharacter struct {
	Name      string `xml:"name,attr"`
	WorldName string `xml:"worldName,attr"`
	WorldIP   string `xml:"worldIp,attr"`
	WorldPort uint16 `xml:"worldPort,attr"`
}

// Load parses an accounts XML file into a Store.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var parsed xmlAccounts
	if err := xml.Unmarshal(data, &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Accounts) == 0 {
		return nil, errors.New("accountstore: accounts file contains no accounts")
	}

	store := &Store{
		accounts:           make(map[uint32]Account, len(parsed.Accounts)),
		characterToAccount: make(map[string]uint32),
	}
	for _, a := range parsed.Accounts {
		account := Account{
			Number:      a.Number,
			Password:    a.Password,
			PremiumDays: a.PremiumDays,
		}
		for _, c := range a.Characters {
			account.Characters = append(account.Characters, Character{
				Name:      c.Name,
				WorldName: c.WorldName,
				WorldIP:   c.WorldIP,
				WorldPort: c.WorldPort,
			})
			store.characterToAccount[c.Name] = a.Number
		}
		store.accounts[a.Number] = account
	}
	return store, nil
}

// GetAccount mirrors AccountManager::getAccount: it reports not-found
// before it ever compares a password, and invalid-password only once
// the account itself is known to exist.
func (s *Store) GetAccount(number uint32, password string) (Account, Status) {
	account, ok := s.accounts[number]
	if !ok {
		return Account{}, StatusNotFound
	}
	if account.Password != password {
		return Account{}, StatusInvalidPassword
	}
	return account, StatusOK
}

// VerifyPassword checks a character name's owning account's password,
// for the world server's own 0x0A login packet (which carries a
// character name, not an account number).
func (s *Store) VerifyPassword(characterName, password string) bool {
	number, ok := s.characterToAccount[characterName]
	if !ok {
		return false
	}
	account, ok := s.accounts[number]
	if !ok {
		return false
	}
	return account.Password == password
}

// CharacterExists reports whether name belongs to some loaded account.
func (s *Store) CharacterExists(name string) bool {
	_, ok := s.characterToAccount[name]
	return ok
}
