// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package v8pm

import (
	"fmt"
	"strings"
)

// outHost wraps a *MemHost into an OutputHost for tests that exercise the
// Object Printer, Command Surface, or Frame Decoder — components that need
// Printf/IncIndent/DecIndent/Alloc/Free in addition to plain Host reads.
// Output is captured in a strings.Builder instead of going to stdout, the
// same adaptation cmd/format.go's consoleHost makes for the real CLI.
type outHost struct {
	*MemHost
	buf    strings.Builder
	indent int
}

func newOutHost(base uint32, size int) *outHost {
	return &outHost{MemHost: NewMemHost(base, size)}
}

func (o *outHost) Printf(format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	if o.indent > 0 && line != "" {
		prefix := strings.Repeat(" ", o.indent)
		body, nl := strings.CutSuffix(line, "\n")
		body = strings.ReplaceAll(body, "\n", "\n"+prefix)
		if o.buf.Len() == 0 || strings.HasSuffix(o.buf.String(), "\n") {
			body = prefix + body
		}
		if nl {
			body += "\n"
		}
		line = body
	}
	o.buf.WriteString(line)
}

func (o *outHost) IncIndent(amount int) { o.indent += amount }

func (o *outHost) DecIndent(amount int) {
	o.indent -= amount
	if o.indent < 0 {
		o.indent = 0
	}
}

func (o *outHost) Alloc(size int) ([]byte, error) { return make([]byte, size), nil }

func (o *outHost) Free(buf []byte) {}

func (o *outHost) output() string { return o.buf.String() }
