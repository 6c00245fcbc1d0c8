// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package jdwp

import (
	"log/slog"
	"time"
)

// DefaultTimeout is the deadline applied to a call whose context carries
// none of its own.
const DefaultTimeout = 5 * time.Second

// ClientOptions configures a Client. The zero value is valid: every field
// defaults to its least surprising behavior.
type ClientOptions struct {
	// Timeout is the deadline applied to a call made with a context that
	// has no deadline of its own. Defaults to DefaultTimeout.
	Timeout time.Duration

	// WriteBufferSize sizes the buffered writer over the connection.
	// Defaults to bufio's standard size.
	WriteBufferSize int

	// Logger receives diagnostic events: protocol error replies, a reader
	// loop exiting. Defaults to slog.Default() when nil.
	Logger *slog.Logger
}

func (o *ClientOptions) timeout() time.Duration {
	if o != nil && o.Timeout > 0 {
		return o.Timeout
	}
	return DefaultTimeout
}

func (o *ClientOptions) logger() *slog.Logger {
	if o != nil && o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}
