// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package jdwp

import (
	"errors"
	"fmt"
)

// Sentinel errors for the fixed failure conditions a Client can hit.
// Callers are expected to match against these with errors.Is.
var (
	// ErrIO wraps a transport-level read/write failure.
	ErrIO = errors.New("jdwp: i/o error")

	// ErrParse is returned when a packet's bytes do not decode into the
	// shape expected for its command or reply kind.
	ErrParse = errors.New("jdwp: parse error")

	// ErrIDSizesUnknown is returned by any call that needs the
	// variable-width identifier sizes before the client has bootstrapped
	// them via IDSizes.
	ErrIDSizesUnknown = errors.New("jdwp: identifier sizes not yet negotiated")

	// ErrIDSizesTruncated is returned when a negotiated identifier width
	// is not one of {1, 2, 4, 8}.
	ErrIDSizesTruncated = errors.New("jdwp: invalid identifier size")

	// ErrTimeout is returned when a call's deadline elapses before a
	// reply arrives.
	ErrTimeout = errors.New("jdwp: timed out waiting for reply")

	// ErrHandshakeMismatch is returned when the peer's handshake response
	// does not byte-for-byte match the expected "JDWP-Handshake" string.
	ErrHandshakeMismatch = errors.New("jdwp: handshake mismatch")

	// ErrClosed is returned by any call made after Close.
	ErrClosed = errors.New("jdwp: client closed")
)

// ProtocolError wraps a nonzero JDWP error code returned in a reply packet.
type ProtocolError struct {
	Command   string
	ErrorCode uint16
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("jdwp: %s: protocol error %d", e.Command, e.ErrorCode)
}
