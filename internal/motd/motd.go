// Package motd loads the login server's message-of-the-day file. Each
// response the login protocol sends is prefixed with a MOTD number so
// a client can suppress a MOTD it has already shown the player; this
// package owns bumping that number whenever the underlying text file's
// contents change, echoing the reference login server's own MOTD
// handling.
package motd

import (
	"hash/fnv"
	"os"
	"strconv"
)

// Provider serves the current MOTD text and its number.
type Provider struct {
	number uint32
	text   string
}

// Load reads path once at boot. The MOTD number is derived from the
// text's content hash, so it only changes when the text does — no
// on-disk counter file to maintain.
func Load(path string) (*Provider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	h := fnv.New32a()
	h.Write(data)
	return &Provider{number: h.Sum32() % 10000, text: string(data)}, nil
}

// Formatted returns "<number>\n<text>", the exact bytes the login
// protocol's 0x14 response body prepends (spec.md §4.7).
func (p *Provider) Formatted() string {
	return strconv.FormatUint(uint64(p.number), 10) + "\n" + p.text
}
