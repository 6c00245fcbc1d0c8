// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package classfile

import "log/slog"

// Options configures how a batch of class files is linked. The zero value
// is a valid set of options: every field defaults to its least surprising
// behavior.
type Options struct {
	// Fast skips disassembling every method's Code attribute into
	// Instructions, leaving only the raw bytecode. Set this when a caller
	// only needs structural information (fields, methods, descriptors, the
	// super chain) and not a disassembly: the decode is never performed,
	// not performed and discarded.
	Fast bool

	// Logger receives diagnostic events for conditions that do not stop
	// linking: an attribute that failed to resolve, a superclass that had
	// to be left as a placeholder. Defaults to slog.Default() when nil.
	Logger *slog.Logger
}

func (o *Options) logger() *slog.Logger {
	if o != nil && o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}
