// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package v8pm

import (
	"fmt"

	"github.com/v8pm/v8pm/log"
)

// Sink is a bounded write target for decoded string output — the Go
// analogue of the C source's manually-advanced (bufp, lenp) pair.
type Sink interface {
	// Write appends s, truncating to whatever capacity remains, and
	// returns the number of bytes actually accepted.
	Write(s string) int
	// Remaining reports how much capacity is left.
	Remaining() int
}

// BufSink is a fixed-capacity Sink backed by a byte slice.
type BufSink struct {
	buf []byte
}

// Reset (re)initializes the sink with the given capacity.
func (b *BufSink) Reset(capacity int) {
	b.buf = make([]byte, 0, capacity)
}

// Write implements Sink.
func (b *BufSink) Write(s string) int {
	room := cap(b.buf) - len(b.buf)
	if room <= 0 {
		return 0
	}
	if len(s) > room {
		s = s[:room]
	}
	b.buf = append(b.buf, s...)
	return len(s)
}

// Remaining implements Sink.
func (b *BufSink) Remaining() int {
	return cap(b.buf) - len(b.buf)
}

// String returns everything written so far.
func (b *BufSink) String() string {
	return string(b.buf)
}

// ExternalStringResolver resolves a V8 ExternalString's `resource` field
// into a backing NUL-terminated ASCII string. V8 itself leaves the
// resource's layout to the embedder; the default here is Node.js's
// convention, and an embedder of a bare V8 shell can supply its own.
type ExternalStringResolver interface {
	Resolve(host Host, resource uint32) (string, error)
}

// NodeExternalStringResolver implements the Node.js embedding
// convention: the resource object's field at offset NodeExtStrDataOffset
// holds a pointer to a NUL-terminated ASCII C string.
type NodeExternalStringResolver struct{}

// NodeExtStrDataOffset is NODE_OFF_EXTSTR_DATA from the original source:
// the byte offset, within a Node.js-backed external string's resource
// object, of the pointer to the backing character data.
const NodeExtStrDataOffset = 4

// MaxExternalStringBytes bounds the NUL-terminated read performed while
// resolving an external string's backing data.
const MaxExternalStringBytes = 256

// Resolve implements ExternalStringResolver.
func (NodeExternalStringResolver) Resolve(host Host, resource uint32) (string, error) {
	var buf [PointerSize]byte
	if err := host.ReadMemory(resource+NodeExtStrDataOffset, buf[:]); err != nil {
		return "", fmt.Errorf("%w: 0x%x", ErrOutsideBoundary, resource+NodeExtStrDataOffset)
	}
	dataAddr := uint32(decodeLE32(buf[:]))

	s, err := host.ReadCString(dataAddr, MaxExternalStringBytes)
	if err != nil {
		return "", err
	}
	if len(s) > 0 && (s[0] < 0 || s[0] > 127) {
		return "", ErrExternalStringNotASCII
	}
	return s, nil
}

// StringDecoder renders any V8 string into a Sink, handling sequential,
// concatenation-tree (cons), and externally-backed variants recursively.
type StringDecoder struct {
	reader      *HeapReader
	extResolver ExternalStringResolver
	maxDepth    int
	logger      *log.Helper
}

// NewStringDecoder builds a StringDecoder. ext may be nil, in which case
// external strings fail with ErrExternalStringUnsupported. maxDepth <= 0
// defaults to DefaultMaxConcatDepth.
func NewStringDecoder(reader *HeapReader, ext ExternalStringResolver, maxDepth int, logger *log.Helper) *StringDecoder {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxConcatDepth
	}
	if logger == nil {
		logger = log.NewHelper(nil)
	}
	return &StringDecoder{reader: reader, extResolver: ext, maxDepth: maxDepth, logger: logger}
}

// Decode renders the string at addr into sink. verbose adds inline
// annotations to the same sink: a "[depth N] " prefix per segment, a
// " (length=L, read=R)" suffix after each sequential segment, and
// "(assuming Node.js string) " before each external one. It adds no line
// breaks and does not name each segment's representation.
func (d *StringDecoder) Decode(addr Word, verbose bool, sink Sink) error {
	return d.decode(addr, verbose, sink, 0)
}

func (d *StringDecoder) decode(addr Word, verbose bool, sink Sink, depth int) error {
	if depth > d.maxDepth {
		return ErrConcatDepthExceeded
	}

	meta := d.reader.meta
	typeByte, err := d.reader.ReadTypeByte(uint32(addr))
	if err != nil {
		return err
	}

	firstNonstring := meta.Constants["FirstNonstringType"]
	if int32(typeByte) >= firstNonstring {
		sink.Write("<not a string>")
		return nil
	}

	if typeByte&byte(meta.Constants["StringEncodingMask"]) != byte(meta.Constants["AsciiStringTag"]) {
		sink.Write("<two-byte string>")
		return nil
	}

	if verbose {
		sink.Write(fmt.Sprintf("[depth %d] ", depth))
	}

	repMask := byte(meta.Constants["StringRepresentationMask"])
	switch typeByte & repMask {
	case byte(meta.Constants["SeqStringTag"]):
		return d.decodeSeq(addr, verbose, sink)
	case byte(meta.Constants["ConsStringTag"]):
		return d.decodeCons(addr, verbose, sink, depth)
	case byte(meta.Constants["ExternalStringTag"]):
		return d.decodeExternal(addr, verbose, sink)
	default:
		sink.Write("<unknown string type>")
		return ErrUnknownStringRepresentation
	}
}

func (d *StringDecoder) decodeSeq(addr Word, verbose bool, sink Sink) error {
	length, err := d.reader.ReadHeapSMI(uint32(addr), "String", "length")
	if err != nil {
		return err
	}

	room := sink.Remaining()
	truncated := false
	toRead := int(length)
	if toRead > room {
		toRead = room - len("[...]")
		if toRead < 0 {
			toRead = 0
		}
		truncated = true
	}

	if toRead > 0 {
		base := uint32(addr) + uint32(d.reader.meta.OffSeqAsciiStringChars)
		buf := make([]byte, toRead)
		if err := d.reader.host.ReadMemory(base, buf); err != nil {
			d.logger.Debugf("failed to read SeqString data: %v", err)
			return fmt.Errorf("%w: 0x%x", ErrOutsideBoundary, base)
		}
		sink.Write(string(buf))
	}
	if truncated {
		sink.Write("[...]")
	}
	if verbose {
		sink.Write(fmt.Sprintf(" (length=%d, read=%d)", length, toRead))
	}
	return nil
}

func (d *StringDecoder) decodeCons(addr Word, verbose bool, sink Sink, depth int) error {
	first, err := d.reader.ReadHeapPtr(uint32(addr), "ConsString", "first")
	if err != nil {
		return err
	}
	second, err := d.reader.ReadHeapPtr(uint32(addr), "ConsString", "second")
	if err != nil {
		return err
	}

	if err := d.decode(first, verbose, sink, depth+1); err != nil {
		return err
	}
	// Plain double recursion; maxDepth is the only guard against a
	// pathological or cyclic cons tree driving this past the goroutine
	// stack limit.
	return d.decode(second, verbose, sink, depth+1)
}

func (d *StringDecoder) decodeExternal(addr Word, verbose bool, sink Sink) error {
	if d.extResolver == nil {
		return ErrExternalStringUnsupported
	}
	if verbose {
		sink.Write("(assuming Node.js string) ")
	}
	resource, err := d.reader.ReadHeapPtr(uint32(addr), "ExternalString", "resource")
	if err != nil {
		return err
	}
	s, err := d.extResolver.Resolve(d.reader.host, uint32(resource))
	if err != nil {
		return err
	}
	sink.Write(s)
	return nil
}
