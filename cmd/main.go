// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/v8pm/v8pm"
	"github.com/v8pm/v8pm/elfhost"
	"github.com/v8pm/v8pm/liveproc"
)

var (
	targetPath string
	corePath   string
	pid        int
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "v8pm",
		Short: "Post-mortem V8 heap inspector",
		Long:  "v8pm decodes a V8 JavaScript engine's heap from a crash dump or a live Node.js process.",
	}
	rootCmd.PersistentFlags().StringVar(&targetPath, "target", "", "path to the Node.js/V8 executable carrying v8dbg_* symbols")
	rootCmd.PersistentFlags().StringVar(&corePath, "core", "", "path to a core dump to read memory from (omit for symbol-only inspection)")
	rootCmd.PersistentFlags().IntVar(&pid, "pid", 0, "pid of a live process to attach to instead of --core")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(
		versionCmd(),
		classesCmd(),
		typesCmd(),
		specialsCmd(),
		describeCmd(),
		printObjectCmd(),
		printStringCmd(),
		printFrameCmd(),
		printStackCmd(),
		walkFramesCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("v8pm 0.1.0")
		},
	}
}

// commandHost bundles whichever v8pm.OutputHost backend was selected via
// --target/--core/--pid with the closer needed to release it.
type commandHost struct {
	v8pm.OutputHost
	close func() error
}

func openHost() (*commandHost, error) {
	if targetPath == "" {
		return nil, v8pm.ErrUsage
	}

	if pid != 0 {
		h, err := liveproc.Attach(pid, targetPath, nil)
		if err != nil {
			return nil, err
		}
		return &commandHost{OutputHost: newConsoleHost(h), close: h.Detach}, nil
	}

	h, err := elfhost.Open(targetPath, corePath, nil)
	if err != nil {
		return nil, err
	}
	return &commandHost{OutputHost: newConsoleHost(h), close: h.Close}, nil
}

func loadMetadata(host v8pm.OutputHost) (*v8pm.MetadataStore, error) {
	return v8pm.Load(host, &v8pm.Options{})
}

func withCommands(fn func(*v8pm.Commands) v8pm.ExitStatus) {
	host, err := openHost()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(int(v8pm.ExitUsage))
	}
	defer host.close()

	meta, err := loadMetadata(host.OutputHost)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(int(v8pm.ExitErr))
	}

	cmds := v8pm.NewCommands(host.OutputHost, meta, v8pm.NodeExternalStringResolver{}, nil)
	os.Exit(int(fn(cmds)))
}

func classesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classes",
		Short: "List every known V8 class name",
		Run: func(cmd *cobra.Command, args []string) {
			withCommands(func(c *v8pm.Commands) v8pm.ExitStatus { return c.ListClasses() })
		},
	}
}

func typesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List the instance-type table",
		Run: func(cmd *cobra.Command, args []string) {
			withCommands(func(c *v8pm.Commands) v8pm.ExitStatus { return c.ListTypes() })
		},
	}
}

func specialsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "specials",
		Short: "List the well-known oddball addresses",
		Run: func(cmd *cobra.Command, args []string) {
			withCommands(func(c *v8pm.Commands) v8pm.ExitStatus { return c.ListSpecials() })
		},
	}
}

func describeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "describe <addr>",
		Short: "Describe the word at addr",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			addr := parseAddr(args[0])
			withCommands(func(c *v8pm.Commands) v8pm.ExitStatus { return c.DescribeType(addr) })
		},
	}
}

func printObjectCmd() *cobra.Command {
	var class string
	cmd := &cobra.Command{
		Use:   "print <addr>",
		Short: "Print the heap object at addr",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			addr := parseAddr(args[0])
			withCommands(func(c *v8pm.Commands) v8pm.ExitStatus { return c.PrintObject(addr, class) })
		},
	}
	cmd.Flags().StringVar(&class, "class", "", "print as this class instead of auto-detecting")
	return cmd
}

func printStringCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "str <addr>",
		Short: "Decode and print the V8 string at addr",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			addr := parseAddr(args[0])
			withCommands(func(c *v8pm.Commands) v8pm.ExitStatus { return c.PrintString(addr, verbose) })
		},
	}
}

func printFrameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "frame <fp>",
		Short: "Decode and print one stack frame",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			fp := parseAddr(args[0])
			withCommands(func(c *v8pm.Commands) v8pm.ExitStatus { return c.PrintFrame(fp, verbose) })
		},
	}
}

func printStackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stack",
		Short: "Print the default thread's JavaScript call stack",
		Run: func(cmd *cobra.Command, args []string) {
			withCommands(func(c *v8pm.Commands) v8pm.ExitStatus { return c.PrintStack(verbose) })
		},
	}
}

func walkFramesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "walk [thread-id]",
		Short: "Walk and print every frame of the given thread",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			tid := v8pm.DefaultThreadID
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					fmt.Fprintf(os.Stderr, "invalid thread id %q\n", args[0])
					os.Exit(int(v8pm.ExitUsage))
				}
				tid = n
			}
			withCommands(func(c *v8pm.Commands) v8pm.ExitStatus { return c.WalkFrames(tid, verbose) })
		},
	}
}

func parseAddr(s string) uint32 {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid address %q: %v\n", s, err)
		os.Exit(int(v8pm.ExitUsage))
	}
	return uint32(v)
}
