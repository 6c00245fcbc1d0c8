// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "jvmdbg",
		Short: "A Java .class file decoder and JDWP client",
		Long:  "jvmdbg decodes compiled Java class files and speaks the Java Debug Wire Protocol",
	}

	rootCmd.AddCommand(newClassdumpCmd())
	rootCmd.AddCommand(newJdwpCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
