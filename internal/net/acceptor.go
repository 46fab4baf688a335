// Package net implements the Acceptor component: it owns TCP accept,
// frame-level read/write, and per-connection buffering, and hands
// fully framed packet bodies to a protocol layer through three
// callbacks. It never interprets packet contents.
package net

import (
	"net"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/opentile/server/internal/protocol"
)

// ConnID is a monotonically increasing identifier assigned to each
// accepted connection.
type ConnID uint64

// Callbacks are invoked by the Acceptor on behalf of the protocol
// layer. OnPacket delivers one already-framed body per call; callbacks
// must not block for long, since they run on the connection's read
// goroutine.
type Callbacks struct {
	OnConnected    func(id ConnID)
	OnPacket       func(id ConnID, body []byte)
	OnDisconnected func(id ConnID)
}

// Acceptor listens on a configured TCP port and manages the set of
// live connections.
type Acceptor struct {
	listener net.Listener
	cb       Callbacks
	log      *zap.Logger

	nextID atomic.Uint64

	mu    sync.Mutex
	conns map[ConnID]*connection

	closing atomic.Bool
	wg      sync.WaitGroup
}

// NewAcceptor binds addr and returns an Acceptor ready for Serve.
func NewAcceptor(addr string, cb Callbacks, log *zap.Logger) (*Acceptor, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Acceptor{
		listener: ln,
		cb:       cb,
		log:      log,
		conns:    make(map[ConnID]*connection),
	}, nil
}

// Addr returns the bound listener address.
func (a *Acceptor) Addr() net.Addr { return a.listener.Addr() }

// Serve blocks, accepting connections until Shutdown is called. It
// returns nil after a clean Shutdown, otherwise the accept error.
func (a *Acceptor) Serve() error {
	for {
		conn, err := a.listener.Accept()
		if err != nil {
			if a.closing.Load() {
				return nil
			}
			return err
		}
		id := ConnID(a.nextID.Add(1))
		c := newConnection(id, conn, a, a.log)

		a.mu.Lock()
		a.conns[id] = c
		a.mu.Unlock()

		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			c.run()
		}()
	}
}

// Send enqueues body for delivery to id's connection, preserving FIFO
// order relative to every other Send for the same connection. Sends to
// an unknown or already-closed connection are silently dropped: the
// session has already transitioned to not-connected (spec.md §5).
func (a *Acceptor) Send(id ConnID, body []byte) {
	a.mu.Lock()
	c := a.conns[id]
	a.mu.Unlock()
	if c == nil {
		return
	}
	c.send(body)
}

// CloseConnection closes id's connection. With force=false, queued
// writes are flushed first; with force=true, they are dropped.
func (a *Acceptor) CloseConnection(id ConnID, force bool) {
	a.mu.Lock()
	c := a.conns[id]
	a.mu.Unlock()
	if c == nil {
		return
	}
	c.close(force)
}

// Shutdown stops accepting new connections, closes every live
// connection (flushing queued writes), and waits for all connection
// goroutines to exit.
func (a *Acceptor) Shutdown() {
	a.closing.Store(true)
	_ = a.listener.Close()

	a.mu.Lock()
	conns := make([]*connection, 0, len(a.conns))
	for _, c := range a.conns {
		conns = append(conns, c)
	}
	a.mu.Unlock()

	for _, c := range conns {
		c.close(false)
	}
	a.wg.Wait()
}

func (a *Acceptor) forget(id ConnID) {
	a.mu.Lock()
	delete(a.conns, id)
	a.mu.Unlock()
}

// connection owns the read/write goroutines for one accepted socket.
// Writes are serialized through outQueue so they are delivered in the
// order Send was called, matching the Acceptor's FIFO-per-connection
// contract.
type connection struct {
	id       ConnID
	conn     net.Conn
	acceptor *Acceptor
	log      *zap.Logger

	outQueue chan []byte
	closeCh  chan struct{}
	closeOnce sync.Once
	force    atomic.Bool
}

const outQueueSize = 256

func newConnection(id ConnID, conn net.Conn, a *Acceptor, log *zap.Logger) *connection {
	return &connection{
		id:       id,
		conn:     conn,
		acceptor: a,
		log:      log,
		outQueue: make(chan []byte, outQueueSize),
		closeCh:  make(chan struct{}),
	}
}

func (c *connection) run() {
	if c.acceptor.cb.OnConnected != nil {
		c.acceptor.cb.OnConnected(c.id)
	}

	var writeWG sync.WaitGroup
	writeWG.Add(1)
	go func() {
		defer writeWG.Done()
		c.writeLoop()
	}()

	c.readLoop()

	c.close(false)
	writeWG.Wait()

	c.acceptor.forget(c.id)
	if c.acceptor.cb.OnDisconnected != nil {
		c.acceptor.cb.OnDisconnected(c.id)
	}
}

func (c *connection) readLoop() {
	for {
		body, err := protocol.ReadFrame(c.conn)
		if err != nil {
			return
		}
		if c.acceptor.cb.OnPacket != nil {
			c.acceptor.cb.OnPacket(c.id, body)
		}
	}
}

func (c *connection) writeLoop() {
	defer c.conn.Close()
	for {
		select {
		case body, ok := <-c.outQueue:
			if !ok {
				return
			}
			if c.force.Load() {
				continue
			}
			if err := protocol.WriteFrame(c.conn, body); err != nil {
				return
			}
		case <-c.closeCh:
			if c.force.Load() {
				return
			}
			// Drain remaining queued writes before closing.
			for {
				select {
				case body, ok := <-c.outQueue:
					if !ok {
						return
					}
					if err := protocol.WriteFrame(c.conn, body); err != nil {
						return
					}
				default:
					return
				}
			}
		}
	}
}

func (c *connection) send(body []byte) {
	select {
	case c.outQueue <- body:
	case <-c.closeCh:
	}
}

func (c *connection) close(force bool) {
	c.closeOnce.Do(func() {
		if force {
			c.force.Store(true)
			_ = c.conn.Close()
		}
		close(c.closeCh)
	})
}
