// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package v8pm

import "fmt"

// FrameKind classifies a stack frame by how its fp+fp_context and
// fp+fp_marker slots decode.
type FrameKind int

const (
	// FrameJavaScript is a JavaScript-executing frame: no marker SMI at
	// fp+fp_marker, decoded via JSFunction/SharedFunctionInfo/Script.
	FrameJavaScript FrameKind = iota
	// FrameArgumentsAdaptor is identified by an SMI at fp+fp_context.
	FrameArgumentsAdaptor
	// FrameMarked covers every other marker-identified kind (EntryFrame,
	// ExitFrame, InternalFrame, OptimizedFrame, ...) looked up by name
	// from the frame-type enum table.
	FrameMarked
)

// Frame is the decoded result of one frame pointer.
type Frame struct {
	FP uint32

	Kind     FrameKind
	MarkName string // set for FrameArgumentsAdaptor/FrameMarked

	// JavaScript-frame fields, set only when Kind == FrameJavaScript.
	FunctionAddr uint32
	Name         string
	ScriptName   string
	Line         string // rendered line location, e.g. "line 3" or "position out of range"
}

// FrameDecoder decodes one stack frame pointer at a time.
type FrameDecoder struct {
	host    Host
	meta    *MetadataStore
	reader  *HeapReader
	strs    *StringDecoder
	scratch ScratchAllocator
	roots   *RootTable
}

// NewFrameDecoder builds a FrameDecoder. roots may be nil, in which case
// the "undefined" line_ends check falls back straight to string
// comparison against the Oddball's own to_string field.
func NewFrameDecoder(host Host, meta *MetadataStore, reader *HeapReader, strs *StringDecoder, scratch ScratchAllocator, roots *RootTable) *FrameDecoder {
	return &FrameDecoder{host: host, meta: meta, reader: reader, strs: strs, scratch: scratch, roots: roots}
}

// Decode identifies and, for JavaScript frames, fully decodes the frame at fp.
func (d *FrameDecoder) Decode(fp uint32) (Frame, error) {
	f := Frame{FP: fp}

	contextWord, err := d.readWordAt(fp, d.meta.OffFPContext)
	if err != nil {
		return Frame{}, err
	}
	if d.meta.Tags.IsSMI(contextWord) {
		f.Kind = FrameArgumentsAdaptor
		f.MarkName = d.meta.FrameType.Lookup(d.meta.Tags.SMIValue(contextWord), "ArgumentsAdaptorFrame")
		return f, nil
	}

	markerWord, err := d.readWordAt(fp, d.meta.OffFPMarker)
	if err != nil {
		return Frame{}, err
	}
	if d.meta.Tags.IsSMI(markerWord) {
		f.Kind = FrameMarked
		f.MarkName = d.meta.FrameType.Lookup(d.meta.Tags.SMIValue(markerWord), "<unknown frame type>")
		return f, nil
	}

	f.Kind = FrameJavaScript
	return d.decodeJS(f)
}

func (d *FrameDecoder) decodeJS(f Frame) (Frame, error) {
	funcWord, err := d.readWordAt(f.FP, d.meta.OffFPFunction)
	if err != nil {
		return Frame{}, err
	}
	if !d.meta.Tags.IsHeapObject(funcWord) {
		return Frame{}, ErrNotHeapObject
	}
	f.FunctionAddr = uint32(funcWord)

	shared, err := d.reader.ReadHeapPtr(f.FunctionAddr, "JSFunction", "shared")
	if err != nil {
		return Frame{}, err
	}

	f.Name = d.functionName(uint32(shared))

	scriptPtr, err := d.reader.ReadHeapPtr(uint32(shared), "SharedFunctionInfo", "script")
	if err != nil {
		return Frame{}, err
	}

	var nameSink BufSink
	nameSink.Reset(256)
	if namePtr, err := d.reader.ReadHeapPtr(uint32(scriptPtr), "Script", "name"); err == nil {
		if d.strs.Decode(namePtr, false, &nameSink) == nil {
			f.ScriptName = nameSink.String()
		}
	}
	if f.ScriptName == "" {
		f.ScriptName = "<unknown script>"
	}

	tokenPos, err := d.reader.ReadHeapPtr(uint32(shared), "SharedFunctionInfo", "function_token_position")
	if err != nil {
		return Frame{}, err
	}
	lineEnds, err := d.reader.ReadHeapPtr(uint32(scriptPtr), "Script", "line_ends")
	if err != nil {
		return Frame{}, err
	}

	f.Line, err = d.lineNumber(lineEnds, tokenPos)
	if err != nil {
		return Frame{}, err
	}
	return f, nil
}

func (d *FrameDecoder) functionName(shared uint32) string {
	var sink BufSink
	sink.Reset(256)
	if namePtr, err := d.reader.ReadHeapPtr(shared, "SharedFunctionInfo", "name"); err == nil {
		if d.strs.Decode(namePtr, false, &sink) == nil && sink.String() != "" {
			return sink.String()
		}
	}

	sink.Reset(256)
	if inferredPtr, err := d.reader.ReadHeapPtr(shared, "SharedFunctionInfo", "inferred_name"); err == nil {
		if d.strs.Decode(inferredPtr, false, &sink) == nil && sink.String() != "" {
			return fmt.Sprintf("<anonymous> (as %s)", sink.String())
		}
	}
	return "<anonymous>"
}

// lineNumber binary-searches the Script's line_ends FixedArray for the
// line containing tokenPos, with the "undefined" oddball short-circuit
// for scripts V8 hasn't computed line information for yet.
func (d *FrameDecoder) lineNumber(lineEnds Word, tokenPos Word) (string, error) {
	if CompareOddballString(d.roots, d.reader, d.strs, lineEnds, "undefined") {
		return fmt.Sprintf("position %d", int32(tokenPos)), nil
	}

	// length lives on FixedArrayBase, the common ancestor of FixedArray
	// and the other fixed-length array kinds; FixedArray itself only
	// adds the element storage (data/elements).
	length, err := d.reader.ReadHeapSMI(uint32(lineEnds), "FixedArrayBase", "length")
	if err != nil {
		return "", err
	}
	if length <= 0 {
		return "position out of range", nil
	}

	bufSize := int(length) * PointerSize
	buf, err := d.scratch.Alloc(bufSize)
	if err != nil {
		return "", err
	}
	defer d.scratch.Free(buf)

	base := uint32(lineEnds) + uint32(d.meta.OffFixedArrayData)
	if err := d.host.ReadMemory(base, buf); err != nil {
		return "", fmt.Errorf("%w: 0x%x", ErrOutsideBoundary, base)
	}

	data := make([]int32, length)
	for i := range data {
		data[i] = decodeLE32(buf[i*PointerSize : i*PointerSize+PointerSize])
	}

	tok := int32(tokenPos)
	if tok > data[len(data)-1] {
		return "position out of range", nil
	}
	if tok <= data[0] {
		return "line 1", nil
	}

	lo, hi := 1, len(data)-1
	for lo < hi {
		mid := (lo + hi) / 2
		if tok <= data[mid] {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return fmt.Sprintf("line %d", lo+1), nil
}

func (d *FrameDecoder) readWordAt(fp uint32, offset int32) (Word, error) {
	var buf [PointerSize]byte
	addr := uint32(int64(fp) + int64(offset))
	if err := d.host.ReadMemory(addr, buf[:]); err != nil {
		return 0, fmt.Errorf("%w: 0x%x", ErrOutsideBoundary, addr)
	}
	return Word(decodeLE32(buf[:])), nil
}
