// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package v8pm

// Symbol is one global symbol discovered in the target binary.
type Symbol struct {
	Name    string
	Address uint32
	Size    uint32
}

// Host is the set of operations v8pm needs from whatever is debugging the
// target: reading its memory, looking up and iterating its symbol table,
// reading registers of one of its threads, and producing output. v8pm
// never talks to a process or a binary file directly — every concrete
// backend (elfhost, liveproc, or a test fake) implements this interface.
//
// All operations report failure through their error return; v8pm never
// panics on a bad target read — an unreadable or corrupted target is an
// expected, recoverable condition, not a programmer error.
type Host interface {
	// ReadMemory reads len(buf) bytes from the target at addr into buf.
	ReadMemory(addr uint32, buf []byte) error

	// ReadCString reads a NUL-terminated string from addr, stopping after
	// at most limit bytes of string content (the terminator is not
	// counted).
	ReadCString(addr uint32, limit int) (string, error)

	// LookupSymbol resolves a symbol by name.
	LookupSymbol(name string) (Symbol, error)

	// IterateSymbols invokes visit once per global object/function symbol.
	// Iteration stops and returns visit's error if it returns non-nil.
	IterateSymbols(visit func(Symbol) error) error

	// ReadRegister reads a named register (e.g. "ebp") of the given
	// thread/lwp id.
	ReadRegister(tid int, name string) (uint32, error)
}

// ScratchAllocator is implemented by hosts that can hand out scratch
// buffers for bounded reads, such as the line_ends FixedArray scanned
// while resolving a JS frame's line number. Hosts
// that don't need pooled scratch memory can simply allocate a Go slice;
// OutputHost embeds this alongside Host so commands.go has one thing to
// depend on.
type ScratchAllocator interface {
	Alloc(size int) ([]byte, error)
	Free(buf []byte)
}

// Printer is the output half of the Host Interface Shim: formatted
// output and indentation, exactly the mdb_printf/mdb_inc_indent/
// mdb_dec_indent trio the original C source calls directly.
type Printer interface {
	Printf(format string, args ...interface{})
	IncIndent(amount int)
	DecIndent(amount int)
}

// OutputHost is the full surface the Command Surface needs: memory/symbol/
// register access, scratch allocation, and output.
type OutputHost interface {
	Host
	ScratchAllocator
	Printer
}
