// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package v8pm

import "fmt"

// RootNames lists the oddball/root values `list-specials` reports.
var RootNames = []string{"undefined", "null", "true", "false", "NaN", "-0"}

// rootsSymbol is the well-known symbol naming the process-wide root-list
// array a variant of the original implementation reads directly, one
// pointer-sized slot per entry in RootNames, in order.
const rootsSymbol = "v8dbg_roots"

// RootTable resolves the well-known oddball addresses either by reading
// the slots at the target's v8dbg_roots symbol (when present) or, failing that,
// leaves Lookup to report ErrOffsetUnresolved — list-specials then
// degrades to "(unavailable)" per component rather than aborting
// entirely, since not every build exports the roots table.
type RootTable struct {
	host Host
	meta *MetadataStore

	base     uint32
	resolved bool
}

// NewRootTable builds a RootTable. Resolution of the base symbol is
// deferred to the first Lookup call, since not every target exports it.
func NewRootTable(host Host, meta *MetadataStore) *RootTable {
	return &RootTable{host: host, meta: meta}
}

// Lookup resolves name (one of RootNames) to its target address.
func (r *RootTable) Lookup(name string) (uint32, error) {
	idx := indexOf(RootNames, name)
	if idx < 0 {
		return 0, fmt.Errorf("%w: %s", ErrConstantMissing, name)
	}

	if !r.resolved {
		sym, err := r.host.LookupSymbol(rootsSymbol)
		if err != nil {
			return 0, fmt.Errorf("%w: %s", ErrOffsetUnresolved, rootsSymbol)
		}
		r.base = sym.Address
		r.resolved = true
	}

	slot := r.base + uint32(idx*PointerSize)
	var buf [PointerSize]byte
	if err := r.host.ReadMemory(slot, buf[:]); err != nil {
		return 0, fmt.Errorf("%w: 0x%x", ErrOutsideBoundary, slot)
	}
	return uint32(decodeLE32(buf[:])), nil
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}

// CompareOddballString implements the "undefined" detection fallback:
// resolve the root-table address once and compare by address, falling
// back to decoding Oddball.to_string and comparing the literal string
// if the roots table isn't available (or roots is nil).
func CompareOddballString(roots *RootTable, reader *HeapReader, strs *StringDecoder, addr Word, want string) bool {
	if roots != nil {
		if rootAddr, err := roots.Lookup(want); err == nil {
			return uint32(addr) == rootAddr
		}
	}

	toStringPtr, err := reader.ReadHeapPtr(uint32(addr), "Oddball", "to_string")
	if err != nil {
		return false
	}
	var sink BufSink
	sink.Reset(32)
	if err := strs.Decode(toStringPtr, false, &sink); err != nil {
		return false
	}
	return sink.String() == want
}
