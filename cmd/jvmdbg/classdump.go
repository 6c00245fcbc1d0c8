// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dpago/jvmdbg/classfile"
)

func prettyPrint(v any) string {
	buf, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("json: %v", err)
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, buf, "", "\t"); err != nil {
		return string(buf)
	}
	return pretty.String()
}

func newClassdumpCmd() *cobra.Command {
	var fast bool

	cmd := &cobra.Command{
		Use:   "classdump <path.class>",
		Short: "Decode a .class file and print its structure as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]

			raw, err := classfile.DecodeFile(path)
			if err != nil {
				return fmt.Errorf("decoding %s: %w", path, err)
			}

			linked, err := classfile.LinkWithOptions([]*classfile.ClassFile{raw}, &classfile.Options{Fast: fast})
			if err != nil {
				return fmt.Errorf("linking %s: %w", path, err)
			}

			name, _ := raw.Name()
			cls, ok := linked[name]
			if !ok {
				return fmt.Errorf("classdump: %s did not resolve to a linked class", path)
			}

			fmt.Println(prettyPrint(cls))
			return nil
		},
	}

	cmd.Flags().BoolVar(&fast, "fast", false, "skip decoding the bytecode instruction stream")
	return cmd
}
