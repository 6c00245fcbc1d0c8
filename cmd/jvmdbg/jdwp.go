// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dpago/jvmdbg/jdwp"
)

func newJdwpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jdwp",
		Short: "Speak the Java Debug Wire Protocol to a running target",
	}
	cmd.AddCommand(newJdwpConnectCmd())
	return cmd
}

func newJdwpConnectCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "connect <host:port>",
		Short: "Dial a JDWP target, negotiate sizes, and list its loaded classes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr := args[0]

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			client, err := jdwp.DialWithOptions(ctx, addr, &jdwp.ClientOptions{Timeout: timeout})
			if err != nil {
				return fmt.Errorf("connecting to %s: %w", addr, err)
			}
			defer client.Close()

			version, err := client.Version(ctx)
			if err != nil {
				return fmt.Errorf("VirtualMachine.Version: %w", err)
			}
			fmt.Printf("target: %s (%s), JDWP %d.%d\n", version.VMName, version.VMVersion, version.JDWPMajor, version.JDWPMinor)

			sizes, err := client.IDSizes(ctx)
			if err != nil {
				return fmt.Errorf("VirtualMachine.IDSizes: %w", err)
			}
			fmt.Printf("reference type id size: %d bytes\n", sizes.ReferenceTypeIDSize)

			classes, err := client.AllClasses(ctx)
			if err != nil {
				return fmt.Errorf("VirtualMachine.AllClasses: %w", err)
			}
			fmt.Printf("%d loaded classes\n", len(classes.Classes))
			for _, c := range classes.Classes {
				fmt.Printf("  %s %s (status=%v)\n", c.RefTypeTag, c.Signature, c.Status)
			}

			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", jdwp.DefaultTimeout, "deadline for the full bootstrap sequence")
	return cmd
}
