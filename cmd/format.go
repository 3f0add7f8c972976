// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/v8pm/v8pm"
)

// consoleHost adapts any v8pm.Host backend (elfhost.Host, liveproc.Host)
// into a v8pm.OutputHost by adding scratch allocation and indented
// stdout output.
type consoleHost struct {
	v8pm.Host
	indent  int
	midLine bool // the last output did not end with a newline
}

func newConsoleHost(h v8pm.Host) *consoleHost {
	return &consoleHost{Host: h}
}

// Printf implements v8pm.Printer, prefixing every line with the current
// indentation level.
func (c *consoleHost) Printf(format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	if line == "" {
		return
	}
	if c.indent > 0 {
		prefix := strings.Repeat(" ", c.indent)
		body, nl := strings.CutSuffix(line, "\n")
		body = strings.ReplaceAll(body, "\n", "\n"+prefix)
		if !c.midLine {
			body = prefix + body
		}
		if nl {
			body += "\n"
		}
		line = body
	}
	c.midLine = !strings.HasSuffix(line, "\n")
	fmt.Fprint(os.Stdout, line)
}

// IncIndent implements v8pm.Printer.
func (c *consoleHost) IncIndent(amount int) {
	c.indent += amount
}

// DecIndent implements v8pm.Printer.
func (c *consoleHost) DecIndent(amount int) {
	c.indent -= amount
	if c.indent < 0 {
		c.indent = 0
	}
}

// Alloc implements v8pm.ScratchAllocator with a plain heap allocation;
// the CLI has no pooled scratch arena to offer.
func (c *consoleHost) Alloc(size int) ([]byte, error) {
	return make([]byte, size), nil
}

// Free implements v8pm.ScratchAllocator. Nothing to release: Go's
// garbage collector reclaims the slice Alloc returned.
func (c *consoleHost) Free(buf []byte) {}
