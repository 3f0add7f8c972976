// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package v8pm

import "fmt"

// DefaultThreadID is the thread walked by StackWalker when the caller
// doesn't specify one.
const DefaultThreadID = 1

// StackWalker iterates a thread's frame-pointer chain starting from its
// ebp register, stopping at the sentinel base frame (marker SMI zero).
// It never decodes a frame itself — only yields addresses.
type StackWalker struct {
	host Host
	meta *MetadataStore
	tid  int
	fp   uint32
	done bool
}

// NewStackWalker creates a walker for tid, reading its initial ebp.
func NewStackWalker(host Host, meta *MetadataStore, tid int) (*StackWalker, error) {
	ebp, err := host.ReadRegister(tid, "ebp")
	if err != nil {
		return nil, fmt.Errorf("%w: reading ebp of thread %d", err, tid)
	}
	return &StackWalker{host: host, meta: meta, tid: tid, fp: ebp}, nil
}

// Walk invokes visit once per frame pointer, innermost first, until the
// sentinel base frame is reached or visit returns an error.
func (w *StackWalker) Walk(visit func(fp uint32) error) error {
	for {
		fp, ok, err := w.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := visit(fp); err != nil {
			return err
		}
	}
}

// Next returns the next frame pointer to visit, or ok == false once the
// sentinel frame has been consumed.
func (w *StackWalker) Next() (fp uint32, ok bool, err error) {
	if w.done {
		return 0, false, nil
	}

	current := w.fp
	var markerBuf [PointerSize]byte
	markerAddr := uint32(int64(current) + int64(w.meta.OffFPMarker))
	if err := w.host.ReadMemory(markerAddr, markerBuf[:]); err != nil {
		return 0, false, fmt.Errorf("%w: 0x%x", ErrOutsideBoundary, markerAddr)
	}
	marker := Word(decodeLE32(markerBuf[:]))

	if w.meta.Tags.IsSMI(marker) && w.meta.Tags.SMIValue(marker) == 0 {
		w.done = true
		return current, true, nil
	}

	var savedBuf [PointerSize]byte
	if err := w.host.ReadMemory(current, savedBuf[:]); err != nil {
		return 0, false, fmt.Errorf("%w: 0x%x", ErrOutsideBoundary, current)
	}
	w.fp = uint32(decodeLE32(savedBuf[:]))

	return current, true, nil
}
