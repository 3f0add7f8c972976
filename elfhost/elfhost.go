// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package elfhost implements v8pm.Host over a memory-mapped ELF
// executable paired with an optional core dump, the post-mortem target
// kind v8pm was built for.
package elfhost

import (
	"debug/elf"
	"errors"
	"fmt"
	"os"

	mmap "github.com/edsrzf/mmap-go"

	"github.com/v8pm/v8pm"
	"github.com/v8pm/v8pm/log"
)

// ErrNoLoadSegment is returned when an address falls outside every
// PT_LOAD segment of the core dump.
var ErrNoLoadSegment = errors.New("address not covered by any PT_LOAD segment")

// ErrNoRegisterSet is returned when a thread's registers weren't found
// in the core's NT_PRSTATUS notes.
var ErrNoRegisterSet = errors.New("no register set for thread")

// segment is one PT_LOAD mapping: a contiguous virtual-address range
// backed by a slice of the mmap'd core file.
type segment struct {
	vaddr uint64
	data  []byte
}

// Host reads symbols from the executable's ELF symbol table and memory
// from a core dump's PT_LOAD segments (or, for a live-process-free
// smoke test, directly from the executable's own sections).
type Host struct {
	exeFile *os.File
	exeMap  mmap.MMap
	exeELF  *elf.File

	coreFile *os.File
	coreMap  mmap.MMap
	coreELF  *elf.File

	segments []segment
	registers map[int]map[string]uint32

	logger *log.Helper
}

// Options configures Open.
type Options struct {
	// Logger receives Debug/Error records. Defaults to a filtered stdout
	// logger at LevelError, matching the rest of this module.
	Logger log.Logger
}

func (o *Options) withDefaults() *Options {
	opts := Options{}
	if o != nil {
		opts = *o
	}
	return &opts
}

// Open memory-maps execPath (the Node.js/V8 executable or shared
// library carrying the v8dbg_* symbols) and, if corePath is non-empty,
// the matching core dump. When corePath is empty, memory reads are
// served directly from the executable's own loadable sections — enough
// to exercise autoconfiguration against a binary with no live heap.
func Open(execPath, corePath string, opts *Options) (*Host, error) {
	o := opts.withDefaults()
	logger := newLogger(o)

	exeFile, err := os.Open(execPath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", execPath, err)
	}
	exeMap, err := mmap.Map(exeFile, mmap.RDONLY, 0)
	if err != nil {
		exeFile.Close()
		return nil, fmt.Errorf("mmapping %s: %w", execPath, err)
	}
	exeELF, err := elf.NewFile(toReaderAt(exeMap))
	if err != nil {
		exeMap.Unmap()
		exeFile.Close()
		return nil, fmt.Errorf("parsing ELF headers of %s: %w", execPath, err)
	}

	h := &Host{
		exeFile:   exeFile,
		exeMap:    exeMap,
		exeELF:    exeELF,
		registers: make(map[int]map[string]uint32),
		logger:    logger,
	}

	if corePath == "" {
		h.segments = segmentsFromProgHeaders(exeELF, exeMap)
		return h, nil
	}

	coreFile, err := os.Open(corePath)
	if err != nil {
		h.Close()
		return nil, fmt.Errorf("opening %s: %w", corePath, err)
	}
	coreMap, err := mmap.Map(coreFile, mmap.RDONLY, 0)
	if err != nil {
		coreFile.Close()
		h.Close()
		return nil, fmt.Errorf("mmapping %s: %w", corePath, err)
	}
	coreELF, err := elf.NewFile(toReaderAt(coreMap))
	if err != nil {
		coreMap.Unmap()
		coreFile.Close()
		h.Close()
		return nil, fmt.Errorf("parsing ELF headers of %s: %w", corePath, err)
	}

	h.coreFile = coreFile
	h.coreMap = coreMap
	h.coreELF = coreELF
	h.segments = segmentsFromProgHeaders(coreELF, coreMap)
	h.registers = registersFromNotes(coreELF)

	return h, nil
}

// Close releases the memory maps and file descriptors.
func (h *Host) Close() error {
	var firstErr error
	if h.coreMap != nil {
		if err := h.coreMap.Unmap(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if h.coreFile != nil {
		if err := h.coreFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if h.exeMap != nil {
		if err := h.exeMap.Unmap(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if h.exeFile != nil {
		if err := h.exeFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func segmentsFromProgHeaders(f *elf.File, data []byte) []segment {
	var segs []segment
	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		end := prog.Off + prog.Filesz
		if end > uint64(len(data)) {
			end = uint64(len(data))
		}
		if prog.Off >= end {
			continue
		}
		segs = append(segs, segment{vaddr: prog.Vaddr, data: data[prog.Off:end]})
	}
	return segs
}

// ReadMemory implements v8pm.Host.
func (h *Host) ReadMemory(addr uint32, buf []byte) error {
	for _, seg := range h.segments {
		if uint64(addr) < seg.vaddr {
			continue
		}
		off := uint64(addr) - seg.vaddr
		if off+uint64(len(buf)) > uint64(len(seg.data)) {
			continue
		}
		copy(buf, seg.data[off:off+uint64(len(buf))])
		return nil
	}
	h.logger.Debugf("read miss at 0x%x", addr)
	return fmt.Errorf("%w: 0x%x", ErrNoLoadSegment, addr)
}

// ReadCString implements v8pm.Host.
func (h *Host) ReadCString(addr uint32, limit int) (string, error) {
	buf := make([]byte, 0, limit)
	for len(buf) < limit {
		var b [1]byte
		if err := h.ReadMemory(addr+uint32(len(buf)), b[:]); err != nil {
			return "", err
		}
		if b[0] == 0 {
			break
		}
		buf = append(buf, b[0])
	}
	return string(buf), nil
}

// LookupSymbol implements v8pm.Host.
func (h *Host) LookupSymbol(name string) (v8pm.Symbol, error) {
	syms, err := h.exeELF.Symbols()
	if err != nil {
		return v8pm.Symbol{}, err
	}
	for _, s := range syms {
		if s.Name == name {
			return v8pm.Symbol{Name: s.Name, Address: uint32(s.Value), Size: uint32(s.Size)}, nil
		}
	}
	return v8pm.Symbol{}, fmt.Errorf("symbol not found: %s", name)
}

// IterateSymbols implements v8pm.Host.
func (h *Host) IterateSymbols(visit func(v8pm.Symbol) error) error {
	syms, err := h.exeELF.Symbols()
	if err != nil {
		return err
	}
	for _, s := range syms {
		if elf.ST_TYPE(s.Info) != elf.STT_OBJECT && elf.ST_TYPE(s.Info) != elf.STT_FUNC {
			continue
		}
		if err := visit(v8pm.Symbol{Name: s.Name, Address: uint32(s.Value), Size: uint32(s.Size)}); err != nil {
			return err
		}
	}
	return nil
}

// ReadRegister implements v8pm.Host.
func (h *Host) ReadRegister(tid int, name string) (uint32, error) {
	regs, ok := h.registers[tid]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrNoRegisterSet, tid)
	}
	v, ok := regs[name]
	if !ok {
		return 0, fmt.Errorf("register %q not captured for thread %d", name, tid)
	}
	return v, nil
}

func newLogger(o *Options) *log.Helper {
	if o.Logger != nil {
		return log.NewHelper(o.Logger)
	}
	return log.NewHelper(log.NewFilter(log.NewStdLogger(os.Stdout), log.FilterLevel(log.LevelError)))
}
