// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package v8pm

import (
	"fmt"

	"github.com/v8pm/v8pm/log"
)

// HeapReader reads typed fields out of the target's heap by (class, field)
// name through the Metadata Store, and reads a heap object's instance-type
// byte via its Map pointer.
type HeapReader struct {
	host   Host
	meta   *MetadataStore
	logger *log.Helper
}

// NewHeapReader returns a HeapReader over host using meta for field/offset
// lookups. A nil logger is fine; it just means soft failures go unlogged.
func NewHeapReader(host Host, meta *MetadataStore, logger *log.Helper) *HeapReader {
	if logger == nil {
		logger = log.NewHelper(nil)
	}
	return &HeapReader{host: host, meta: meta, logger: logger}
}

// HeapOffset resolves the field's C++ offset for class, adjusted once
// here by subtracting HeapObjectTag, so every caller can add it
// directly to a tagged pointer without re-deriving the untagged base.
func (r *HeapReader) HeapOffset(class, field string) (int32, error) {
	f, ok := r.meta.FindField(class, field)
	if !ok {
		return 0, fmt.Errorf("%w: %s.%s", ErrFieldNotFound, class, field)
	}
	return f.Offset - int32(r.meta.Tags.HeapObjectTag), nil
}

// ReadHeapPtr reads the raw (tagged) pointer-sized value of field on the
// instance of class at addr.
func (r *HeapReader) ReadHeapPtr(addr uint32, class, field string) (Word, error) {
	off, err := r.HeapOffset(class, field)
	if err != nil {
		return 0, err
	}
	var buf [PointerSize]byte
	target := uint32(int64(addr) + int64(off))
	if err := r.host.ReadMemory(target, buf[:]); err != nil {
		r.logger.Debugf("failed to read heap value at 0x%x: %v", target, err)
		return 0, fmt.Errorf("%w: 0x%x", ErrOutsideBoundary, target)
	}
	return Word(decodeLE32(buf[:])), nil
}

// ReadHeapSMI is like ReadHeapPtr but asserts the value is a SMI and
// returns its decoded integer value.
func (r *HeapReader) ReadHeapSMI(addr uint32, class, field string) (int32, error) {
	w, err := r.ReadHeapPtr(addr, class, field)
	if err != nil {
		return 0, err
	}
	if !r.meta.Tags.IsSMI(w) {
		r.logger.Debugf("expected SMI, got 0x%x", w)
		return 0, ErrNotSMI
	}
	return r.meta.Tags.SMIValue(w), nil
}

// ReadTypeByte reads the instance-type byte of the heap object at addr:
// the Map pointer at addr's HeapObject.map field, then the byte at
// map + Map.instance_attributes.
func (r *HeapReader) ReadTypeByte(addr uint32) (byte, error) {
	mapPtr, err := r.ReadHeapPtr(addr, "HeapObject", "map")
	if err != nil {
		return 0, err
	}
	if !r.meta.Tags.IsHeapObject(mapPtr) {
		r.logger.Debugf("heap object map is not itself a heap object")
		return 0, ErrMapNotHeapObject
	}
	// mapPtr is left tagged here on purpose: OffMapInstanceAttributes was
	// adjusted by -HeapObjectTag at Load time, so adding it to the still-
	// tagged pointer lands exactly on the field.
	var buf [1]byte
	at := uint32(mapPtr) + uint32(r.meta.OffMapInstanceAttributes)
	if err := r.host.ReadMemory(at, buf[:]); err != nil {
		r.logger.Debugf("failed to read type byte at 0x%x: %v", at, err)
		return 0, fmt.Errorf("%w: 0x%x", ErrOutsideBoundary, at)
	}
	return buf[0], nil
}
