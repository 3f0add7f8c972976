// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package liveproc implements v8pm.Host over a running, ptrace-attached
// process — the live-process counterpart to elfhost's crash-dump/binary
// backend.
package liveproc

import (
	"debug/elf"
	"fmt"
	"os"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/v8pm/v8pm"
	"github.com/v8pm/v8pm/log"
)

// Host reads memory and registers of a live process via ptrace, and
// symbols from its on-disk executable image (the running binary is
// re-opened read-only purely to parse its ELF symbol table; no memory
// is read from that file handle).
type Host struct {
	pid    int
	exe    *os.File
	exeELF *elf.File
	logger *log.Helper
}

// Options configures Attach.
type Options struct {
	Logger log.Logger
}

func (o *Options) withDefaults() *Options {
	opts := Options{}
	if o != nil {
		opts = *o
	}
	return &opts
}

// Attach ptrace-attaches to pid and waits for it to stop. execPath is
// the process's own executable, read only for symbol resolution.
func Attach(pid int, execPath string, opts *Options) (*Host, error) {
	o := opts.withDefaults()
	logger := newLogger(o)

	if err := unix.PtraceAttach(pid); err != nil {
		return nil, fmt.Errorf("ptrace attach to pid %d: %w", pid, err)
	}
	var ws unix.WaitStatus
	if _, err := unix.Wait4(pid, &ws, 0, nil); err != nil {
		return nil, fmt.Errorf("waiting for pid %d to stop: %w", pid, err)
	}

	exe, err := os.Open(execPath)
	if err != nil {
		unix.PtraceDetach(pid)
		return nil, fmt.Errorf("opening %s: %w", execPath, err)
	}
	exeELF, err := elf.NewFile(exe)
	if err != nil {
		exe.Close()
		unix.PtraceDetach(pid)
		return nil, fmt.Errorf("parsing ELF headers of %s: %w", execPath, err)
	}

	return &Host{pid: pid, exe: exe, exeELF: exeELF, logger: logger}, nil
}

// Detach releases ptrace control of the target and closes the ELF
// handle, letting it continue running.
func (h *Host) Detach() error {
	h.exeELF = nil
	closeErr := h.exe.Close()
	if err := unix.PtraceDetach(h.pid); err != nil {
		return err
	}
	return closeErr
}

// ReadMemory implements v8pm.Host via PTRACE_PEEKDATA.
func (h *Host) ReadMemory(addr uint32, buf []byte) error {
	n, err := unix.PtracePeekData(h.pid, uintptr(addr), buf)
	if err != nil {
		h.logger.Debugf("ptrace peek at 0x%x failed: %v", addr, err)
		return fmt.Errorf("ptrace peek at 0x%x: %w", addr, err)
	}
	if n != len(buf) {
		return fmt.Errorf("ptrace peek at 0x%x: short read (%d of %d)", addr, n, len(buf))
	}
	return nil
}

// ReadCString implements v8pm.Host.
func (h *Host) ReadCString(addr uint32, limit int) (string, error) {
	out := make([]byte, 0, limit)
	var chunk [8]byte
	for len(out) < limit {
		want := len(chunk)
		if remaining := limit - len(out); remaining < want {
			want = remaining
		}
		if err := h.ReadMemory(addr+uint32(len(out)), chunk[:want]); err != nil {
			return "", err
		}
		for _, b := range chunk[:want] {
			if b == 0 {
				return string(out), nil
			}
			out = append(out, b)
		}
	}
	return string(out), nil
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

// i386RegGetters mirrors elfhost's view of user_regs_struct (the linux/386
// unix.PtraceRegs layout), used to pick a named field out of
// unix.PtraceGetRegs's raw struct.
var i386RegGetters = map[string]func(*unix.PtraceRegs) uint32{
	"ebx": func(r *unix.PtraceRegs) uint32 { return uint32(r.Ebx) },
	"ecx": func(r *unix.PtraceRegs) uint32 { return uint32(r.Ecx) },
	"edx": func(r *unix.PtraceRegs) uint32 { return uint32(r.Edx) },
	"esi": func(r *unix.PtraceRegs) uint32 { return uint32(r.Esi) },
	"edi": func(r *unix.PtraceRegs) uint32 { return uint32(r.Edi) },
	"ebp": func(r *unix.PtraceRegs) uint32 { return uint32(r.Ebp) },
	"eax": func(r *unix.PtraceRegs) uint32 { return uint32(r.Eax) },
	"eip": func(r *unix.PtraceRegs) uint32 { return uint32(r.Eip) },
	"esp": func(r *unix.PtraceRegs) uint32 { return uint32(r.Esp) },
}

// ReadRegister implements v8pm.Host. tid is a Linux thread id (the
// process itself, for single-threaded targets, or a /proc/<pid>/task
// entry).
func (h *Host) ReadRegister(tid int, name string) (uint32, error) {
	getter, ok := i386RegGetters[name]
	if !ok {
		return 0, fmt.Errorf("unknown register %q", name)
	}
	var regs unix.PtraceRegs
	if err := unix.PtraceGetRegs(tid, &regs); err != nil {
		return 0, fmt.Errorf("ptrace getregs on thread %d: %w", tid, err)
	}
	return getter(&regs), nil
}

// ListThreads enumerates the live thread ids of the attached process by
// reading /proc/<pid>/task, for callers that want to walk every thread's
// stack rather than just the default.
func (h *Host) ListThreads() ([]int, error) {
	entries, err := os.ReadDir(fmt.Sprintf("/proc/%d/task", h.pid))
	if err != nil {
		return nil, err
	}
	tids := make([]int, 0, len(entries))
	for _, e := range entries {
		tid, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		tids = append(tids, tid)
	}
	return tids, nil
}

func newLogger(o *Options) *log.Helper {
	if o.Logger != nil {
		return log.NewHelper(o.Logger)
	}
	return log.NewHelper(log.NewFilter(log.NewStdLogger(os.Stdout), log.FilterLevel(log.LevelError)))
}
