// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package elfhost

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"io"
)

// ntPrstatus is the ELF core-dump note type carrying a thread's general
// purpose registers (struct elf_prstatus in the Linux kernel headers).
const ntPrstatus = 1

// prstatusPidOffset/prstatusRegsOffset locate the pid and the
// user_regs_struct within a 32-bit little-endian elf_prstatus note, per
// the Linux i386 struct layout: a 12-byte pr_info block, a uint16
// pr_cursig padded to 4 bytes, the pr_sigpend and pr_sighold words, a
// pid_t pr_pid (offset 24), three more pid_t fields, two timeval pairs,
// then the registers (offset 72).
const (
	prstatusPidOffset  = 24
	prstatusRegsOffset = 72
)

// i386 user_regs_struct field order (offsets into the registers block).
var i386RegOffsets = map[string]int{
	"ebx": 0, "ecx": 4, "edx": 8, "esi": 12, "edi": 16,
	"ebp": 20, "eax": 24, "eip": 48, "esp": 60,
}

// registersFromNotes scans every PT_NOTE segment of a core dump for
// NT_PRSTATUS entries and returns each thread's captured registers,
// keyed by pid. Malformed or unrecognized notes are skipped rather than
// treated as a hard failure, since a handful of unparsed notes shouldn't
// keep the rest of the core dump's threads from being usable.
func registersFromNotes(f *elf.File) map[int]map[string]uint32 {
	out := make(map[int]map[string]uint32)
	for _, prog := range f.Progs {
		if prog.Type != elf.PT_NOTE {
			continue
		}
		r := prog.Open()
		parseNotes(r, out)
	}
	return out
}

func parseNotes(r io.Reader, out map[int]map[string]uint32) {
	var hdr [12]byte
	for {
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return
		}
		nameSz := binary.LittleEndian.Uint32(hdr[0:4])
		descSz := binary.LittleEndian.Uint32(hdr[4:8])
		typ := binary.LittleEndian.Uint32(hdr[8:12])

		name := make([]byte, align4(nameSz))
		if _, err := io.ReadFull(r, name); err != nil {
			return
		}
		desc := make([]byte, align4(descSz))
		if _, err := io.ReadFull(r, desc); err != nil {
			return
		}

		if typ == ntPrstatus && int(descSz) >= prstatusRegsOffset+64 {
			parsePrstatus(desc[:descSz], out)
		}
	}
}

func parsePrstatus(desc []byte, out map[int]map[string]uint32) {
	pid := int(binary.LittleEndian.Uint32(desc[prstatusPidOffset:]))
	regs := make(map[string]uint32, len(i386RegOffsets))
	for name, off := range i386RegOffsets {
		pos := prstatusRegsOffset + off
		if pos+4 > len(desc) {
			continue
		}
		regs[name] = binary.LittleEndian.Uint32(desc[pos:])
	}
	out[pid] = regs
}

func align4(n uint32) uint32 {
	return (n + 3) &^ 3
}

func toReaderAt(b []byte) io.ReaderAt {
	return bytes.NewReader(b)
}
