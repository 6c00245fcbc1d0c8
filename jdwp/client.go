// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package jdwp

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

const handshakeString = "JDWP-Handshake"

// VirtualMachine command set and its commands, the bootstrap subset this
// client speaks: enough to size identifiers, read the target's version,
// and enumerate its loaded classes.
const (
	commandSetVirtualMachine uint8 = 1

	cmdVMVersion    uint8 = 1
	cmdVMAllClasses uint8 = 3
	cmdVMIDSizes    uint8 = 7
)

// pendingReply is what a waiting caller blocks on: either a reply body or
// a terminal error (protocol error code, or the connection going away).
type pendingReply struct {
	body []byte
	err  error
}

// Client is an asynchronous JDWP client. A single reader goroutine owns the
// connection's read half and demultiplexes replies by packet ID to whichever
// caller's send is waiting on them, so many goroutines can issue commands
// concurrently over the one TCP connection a JDWP target accepts.
//
// The zero value is not usable; construct one with Dial or New.
type Client struct {
	conn net.Conn
	w    *bufio.Writer
	opts *ClientOptions

	writeMu sync.Mutex
	nextID  uint32

	pendingMu sync.Mutex
	pending   map[uint32]chan pendingReply

	sizesMu   sync.RWMutex
	sizes     Sizes
	haveSizes bool

	group  *errgroup.Group
	closed atomic.Bool
}

// Dial connects to a JDWP transport at addr and performs the handshake.
func Dial(ctx context.Context, addr string) (*Client, error) {
	return DialWithOptions(ctx, addr, nil)
}

// DialWithOptions is Dial with an explicit ClientOptions.
func DialWithOptions(ctx context.Context, addr string, opts *ClientOptions) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	c, err := NewWithOptions(conn, opts)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

// New wraps an already-connected transport, performs the handshake, and
// starts the reader goroutine. The caller must call Close when done.
func New(conn net.Conn) (*Client, error) {
	return NewWithOptions(conn, nil)
}

// NewWithOptions is New with an explicit ClientOptions.
func NewWithOptions(conn net.Conn, opts *ClientOptions) (*Client, error) {
	w := bufio.NewWriter(conn)
	if opts != nil && opts.WriteBufferSize > 0 {
		w = bufio.NewWriterSize(conn, opts.WriteBufferSize)
	}

	c := &Client{
		conn:    conn,
		w:       w,
		opts:    opts,
		pending: make(map[uint32]chan pendingReply),
	}

	if err := c.handshake(); err != nil {
		return nil, err
	}

	group := new(errgroup.Group)
	group.Go(c.readLoop)
	c.group = group

	return c, nil
}

// handshake exchanges the fixed "JDWP-Handshake" string, per the JDWP spec's
// connection setup: both sides write it, then each reads back the other's.
func (c *Client) handshake() error {
	if _, err := c.conn.Write([]byte(handshakeString)); err != nil {
		return fmt.Errorf("%w: handshake write: %v", ErrIO, err)
	}

	buf := make([]byte, len(handshakeString))
	if _, err := io.ReadFull(c.conn, buf); err != nil {
		return fmt.Errorf("%w: handshake read: %v", ErrIO, err)
	}
	if string(buf) != handshakeString {
		return ErrHandshakeMismatch
	}
	return nil
}

// readLoop owns the connection's read half. It runs until the connection is
// closed, at which point it wakes every still-pending caller with a
// terminal error: Close cannot cancel a blocking Read any other way, so it
// closes the connection to force this loop to exit.
func (c *Client) readLoop() error {
	for {
		header := make([]byte, HeaderLength)
		if _, err := io.ReadFull(c.conn, header); err != nil {
			c.opts.logger().Debug("jdwp reader loop exiting", "reason", err)
			c.failAllPending(fmt.Errorf("%w: %v", ErrIO, err))
			return err
		}

		reply, err := DecodeReplyHeader(header)
		if err != nil {
			c.failAllPending(err)
			return err
		}

		bodyLen := reply.BodyLength()
		var body []byte
		if bodyLen > 0 {
			body = make([]byte, bodyLen)
			if _, err := io.ReadFull(c.conn, body); err != nil {
				c.failAllPending(fmt.Errorf("%w: %v", ErrIO, err))
				return err
			}
		}

		var replyErr error
		if reply.IsError() {
			replyErr = &ProtocolError{Command: "reply", ErrorCode: reply.ErrorCode}
			c.opts.logger().Warn("jdwp reply carried an error code", "id", reply.ID, "code", reply.ErrorCode)
		}

		c.deliver(reply.ID, pendingReply{body: body, err: replyErr})
	}
}

func (c *Client) deliver(id uint32, pr pendingReply) {
	c.pendingMu.Lock()
	ch, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.pendingMu.Unlock()

	if ok {
		ch <- pr
	}
}

func (c *Client) failAllPending(err error) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	for id, ch := range c.pending {
		ch <- pendingReply{err: err}
		delete(c.pending, id)
	}
}

// send writes a command packet and blocks for its reply, honoring ctx's
// deadline. A reply that arrives after the deadline has already removed the
// waiter is delivered to nobody and silently dropped by deliver.
func (c *Client) send(ctx context.Context, commandSet, command uint8, body []byte) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.timeout())
		defer cancel()
	}

	id := atomic.AddUint32(&c.nextID, 1)
	ch := make(chan pendingReply, 1)

	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()

	header := CommandHeader{
		Length:     uint32(HeaderLength + len(body)),
		ID:         id,
		Flags:      0,
		CommandSet: commandSet,
		Command:    command,
	}

	c.writeMu.Lock()
	_, werr := c.w.Write(header.Encode())
	if werr == nil && len(body) > 0 {
		_, werr = c.w.Write(body)
	}
	if werr == nil {
		werr = c.w.Flush()
	}
	c.writeMu.Unlock()

	if werr != nil {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return nil, fmt.Errorf("%w: %v", ErrIO, werr)
	}

	select {
	case pr := <-ch:
		return pr.body, pr.err
	case <-ctx.Done():
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return nil, ErrTimeout
	}
}

// Version requests the target VM's version information.
func (c *Client) Version(ctx context.Context) (VersionReply, error) {
	body, err := c.send(ctx, commandSetVirtualMachine, cmdVMVersion, nil)
	if err != nil {
		return VersionReply{}, err
	}
	return decodeVersionReply(body)
}

// IDSizes negotiates the widths of variable-length identifiers. Every other
// call that decodes an identifier requires this to have run first.
func (c *Client) IDSizes(ctx context.Context) (Sizes, error) {
	body, err := c.send(ctx, commandSetVirtualMachine, cmdVMIDSizes, nil)
	if err != nil {
		return Sizes{}, err
	}
	sizes, err := decodeSizes(body)
	if err != nil {
		return Sizes{}, err
	}

	c.sizesMu.Lock()
	c.sizes = sizes
	c.haveSizes = true
	c.sizesMu.Unlock()

	return sizes, nil
}

// AllClasses enumerates every class currently loaded by the target VM.
// IDSizes must have been called at least once first.
func (c *Client) AllClasses(ctx context.Context) (AllClassesReply, error) {
	sizes, err := c.negotiatedSizes()
	if err != nil {
		return AllClassesReply{}, err
	}

	body, err := c.send(ctx, commandSetVirtualMachine, cmdVMAllClasses, nil)
	if err != nil {
		return AllClassesReply{}, err
	}
	return decodeAllClassesReply(body, sizes)
}

func (c *Client) negotiatedSizes() (Sizes, error) {
	c.sizesMu.RLock()
	defer c.sizesMu.RUnlock()
	if !c.haveSizes {
		return Sizes{}, ErrIDSizesUnknown
	}
	return c.sizes, nil
}

// Close shuts down the connection and waits for the reader goroutine to
// exit, so that once Close returns no more pending waiters can be woken.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	closeErr := c.conn.Close()
	_ = c.group.Wait()
	return closeErr
}
