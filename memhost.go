// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package v8pm

import (
	"encoding/binary"
	"fmt"
)

// MemHost is an in-memory Host backed by a flat byte buffer and a symbol
// table, standing in for a real ELF/core-dump or ptrace-live target.
// It is used by the fuzz entry points and by every component's tests,
// since this repository ships no real V8-tagged binary fixtures.
type MemHost struct {
	mem       []byte
	base      uint32
	symbols   []Symbol
	registers map[int]map[string]uint32
}

// NewMemHost allocates a MemHost with size bytes of zeroed memory
// starting at base.
func NewMemHost(base uint32, size int) *MemHost {
	return &MemHost{
		mem:       make([]byte, size),
		base:      base,
		registers: make(map[int]map[string]uint32),
	}
}

// PutUint32 writes a little-endian word at addr.
func (h *MemHost) PutUint32(addr uint32, v uint32) {
	binary.LittleEndian.PutUint32(h.mem[addr-h.base:], v)
}

// PutBytes copies b starting at addr.
func (h *MemHost) PutBytes(addr uint32, b []byte) {
	copy(h.mem[addr-h.base:], b)
}

// DefineSymbol registers a named symbol at addr, and also writes value
// into that address — v8dbg_* metadata symbols carry their payload as
// the symbol's own storage, read via ReadMemory(sym.Address, ...).
func (h *MemHost) DefineSymbol(name string, addr uint32, value int32) {
	h.symbols = append(h.symbols, Symbol{Name: name, Address: addr, Size: PointerSize})
	h.PutUint32(addr, uint32(value))
}

// SetRegister sets register name of thread tid.
func (h *MemHost) SetRegister(tid int, name string, value uint32) {
	if h.registers[tid] == nil {
		h.registers[tid] = make(map[string]uint32)
	}
	h.registers[tid][name] = value
}

// ReadMemory implements Host.
func (h *MemHost) ReadMemory(addr uint32, buf []byte) error {
	if addr < h.base || uint64(addr-h.base)+uint64(len(buf)) > uint64(len(h.mem)) {
		return fmt.Errorf("%w: 0x%x", ErrOutsideBoundary, addr)
	}
	copy(buf, h.mem[addr-h.base:])
	return nil
}

// ReadCString implements Host.
func (h *MemHost) ReadCString(addr uint32, limit int) (string, error) {
	if addr < h.base || addr-h.base >= uint32(len(h.mem)) {
		return "", fmt.Errorf("%w: 0x%x", ErrOutsideBoundary, addr)
	}
	start := addr - h.base
	end := start
	for int(end-start) < limit && int(end) < len(h.mem) && h.mem[end] != 0 {
		end++
	}
	return string(h.mem[start:end]), nil
}

// LookupSymbol implements Host.
func (h *MemHost) LookupSymbol(name string) (Symbol, error) {
	for _, s := range h.symbols {
		if s.Name == name {
			return s, nil
		}
	}
	return Symbol{}, fmt.Errorf("%w: %s", ErrConstantMissing, name)
}

// IterateSymbols implements Host.
func (h *MemHost) IterateSymbols(visit func(Symbol) error) error {
	for _, s := range h.symbols {
		if err := visit(s); err != nil {
			return err
		}
	}
	return nil
}

// ReadRegister implements Host.
func (h *MemHost) ReadRegister(tid int, name string) (uint32, error) {
	regs, ok := h.registers[tid]
	if !ok {
		return 0, fmt.Errorf("%w: thread %d", ErrConstantMissing, tid)
	}
	v, ok := regs[name]
	if !ok {
		return 0, fmt.Errorf("%w: register %s", ErrConstantMissing, name)
	}
	return v, nil
}
