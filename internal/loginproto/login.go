// Package loginproto implements the Login protocol component
// (spec.md §4.7): a one-shot challenge/response against the account
// store, run per connection on the login server's acceptor callbacks.
package loginproto

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/opentile/server/internal/accountstore"
	"github.com/opentile/server/internal/motd"
	netacceptor "github.com/opentile/server/internal/net"
	"github.com/opentile/server/internal/protocol"
)

const opLoginRequest = 0x01

const (
	opMOTD          = 0x14
	opAuthFailure   = 0x0A
	opCharacterList = 0x64
)

// Handler wires the login protocol's callbacks onto an Acceptor. The
// Acceptor is supplied after construction via BindAcceptor since the
// two are mutually referential (the Acceptor is built from this
// Handler's Callbacks).
type Handler struct {
	accounts *accountstore.Store
	motd     *motd.Provider
	log      *zap.Logger
	acceptor *netacceptor.Acceptor
}

func New(accounts *accountstore.Store, motdProvider *motd.Provider, log *zap.Logger) *Handler {
	return &Handler{accounts: accounts, motd: motdProvider, log: log}
}

// BindAcceptor must be called once, right after the Acceptor built
// from Callbacks() is constructed, before Serve runs.
func (h *Handler) BindAcceptor(a *netacceptor.Acceptor) { h.acceptor = a }

// Callbacks returns the net.Callbacks the login server's Acceptor
// should be constructed with. Every connection is one-shot: the state
// machine is Connected -> Awaiting-Login -> Closed, entirely inside
// OnPacket, with no per-connection state to track between calls.
func (h *Handler) Callbacks() netacceptor.Callbacks {
	return netacceptor.Callbacks{
		OnPacket: h.onPacket,
	}
}

func (h *Handler) onPacket(id netacceptor.ConnID, body []byte) {
	r := protocol.NewReader(body)
	op, err := r.GetU8()
	if err != nil || op != opLoginRequest {
		h.acceptor.CloseConnection(id, true)
		return
	}

	if _, err := r.GetU16(); err != nil { // clientOs
		h.acceptor.CloseConnection(id, true)
		return
	}
	if _, err := r.GetU16(); err != nil { // clientVersion
		h.acceptor.CloseConnection(id, true)
		return
	}
	if _, err := r.GetBytes(12); err != nil { // osInfo
		h.acceptor.CloseConnection(id, true)
		return
	}
	accountNumber, err := r.GetU32()
	if err != nil {
		h.acceptor.CloseConnection(id, true)
		return
	}
	password, err := r.GetString()
	if err != nil {
		h.acceptor.CloseConnection(id, true)
		return
	}

	resp := h.respond(accountNumber, password)
	h.acceptor.Send(id, resp)
	h.acceptor.CloseConnection(id, false)
}

// respond builds the full response body: the MOTD prefix is always
// present, then exactly one of the auth-failure or character-list
// sections (spec.md §4.7).
func (h *Handler) respond(accountNumber uint32, password string) []byte {
	w := protocol.NewWriter()
	w.AddU8(opMOTD)
	w.AddString(h.motd.Formatted())

	account, status := h.accounts.GetAccount(accountNumber, password)
	switch status {
	case accountstore.StatusNotFound:
		w.AddU8(opAuthFailure)
		w.AddString("Invalid account number")
	case accountstore.StatusInvalidPassword:
		w.AddU8(opAuthFailure)
		w.AddString("Invalid password")
	default:
		w.AddU8(opCharacterList)
		w.AddU8(uint8(len(account.Characters)))
		for _, c := range account.Characters {
			w.AddString(c.Name)
			w.AddString(c.WorldName)
			w.AddU32(encodeIPv4(c.WorldIP))
			w.AddU16(c.WorldPort)
		}
		w.AddU16(account.PremiumDays)
	}
	return w.Bytes()
}

// encodeIPv4 packs a dotted-quad string into the little-endian u32 the
// wire format uses (spec.md boundary scenario 1: 127.0.0.1 -> 0x0100007F).
func encodeIPv4(addr string) uint32 {
	var a, b, c, d uint8
	fmt.Sscanf(addr, "%d.%d.%d.%d", &a, &b, &c, &d)
	return uint32(a) | uint32(b)<<8 | uint32(c)<<16 | uint32(d)<<24
}
