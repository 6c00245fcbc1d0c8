// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package jdwp implements an asynchronous client for the Java Debug Wire
// Protocol: packet framing, the handshake, variable-width identifier
// parsing, and a connection multiplexer that lets many callers issue
// concurrent requests over one TCP connection.
package jdwp

import (
	"fmt"

	"github.com/dpago/jvmdbg/internal/binprim"
)

// HeaderLength is the fixed size of every JDWP packet header: length(4) +
// id(4) + flags(1) + command-or-error(2).
const HeaderLength = 11

// Flags is the packet header's flags byte.
type Flags uint8

// FlagReply marks a packet as a reply to a command, rather than a command
// or an event itself.
const FlagReply Flags = 0x80

// IsReply reports whether FlagReply is set.
func (f Flags) IsReply() bool { return f&FlagReply != 0 }

// CommandHeader is the 11-byte header of an outgoing command packet.
type CommandHeader struct {
	Length     uint32
	ID         uint32
	Flags      Flags
	CommandSet uint8
	Command    uint8
}

// Encode serializes h to its wire form.
func (h CommandHeader) Encode() []byte {
	b := binprim.WriteU32(nil, h.Length)
	b = binprim.WriteU32(b, h.ID)
	b = binprim.WriteU8(b, uint8(h.Flags))
	b = binprim.WriteU8(b, h.CommandSet)
	b = binprim.WriteU8(b, h.Command)
	return b
}

// ReplyHeader is the 11-byte header of an incoming reply packet.
type ReplyHeader struct {
	Length    uint32
	ID        uint32
	Flags     Flags
	ErrorCode uint16
}

// DecodeReplyHeader parses exactly HeaderLength bytes from buf.
func DecodeReplyHeader(buf []byte) (ReplyHeader, error) {
	if len(buf) < HeaderLength {
		return ReplyHeader{}, fmt.Errorf("jdwp: %w: reply header needs %d bytes, got %d", ErrParse, HeaderLength, len(buf))
	}

	length, _ := binprim.ReadU32(buf, 0)
	id, _ := binprim.ReadU32(buf, 4)
	flags, _ := binprim.ReadU8(buf, 8)
	errorCode, _ := binprim.ReadU16(buf, 9)

	return ReplyHeader{Length: length, ID: id, Flags: Flags(flags), ErrorCode: errorCode}, nil
}

// IsError reports whether the reply carries a nonzero JDWP error code.
func (h ReplyHeader) IsError() bool { return h.ErrorCode != 0 }

// BodyLength returns the number of bytes following the header, i.e. the
// amount a caller still needs to read to have the complete packet.
func (h ReplyHeader) BodyLength() int { return int(h.Length) - HeaderLength }
