// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package v8pm

import "testing"

func TestFrameDecoderArgumentsAdaptor(t *testing.T) {
	h := baseMemHost()
	meta, err := Load(h, nil)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	meta.FrameType.Append(7, "ArgumentsAdaptorFrame")

	reader := NewHeapReader(h, meta, nil)
	strs := NewStringDecoder(reader, nil, DefaultMaxConcatDepth, nil)
	dec := NewFrameDecoder(h, meta, reader, strs, &outHost{MemHost: h}, nil)

	fp := uint32(0x8000)
	h.PutUint32(fp+uint32(meta.OffFPContext), uint32(7<<1)) // SMI(7)

	f, err := dec.Decode(fp)
	if err != nil {
		t.Fatalf("Decode(arguments adaptor) failed: %v", err)
	}
	if f.Kind != FrameArgumentsAdaptor {
		t.Errorf("Kind = %v, want FrameArgumentsAdaptor", f.Kind)
	}
	if f.MarkName != "ArgumentsAdaptorFrame" {
		t.Errorf("MarkName = %q, want ArgumentsAdaptorFrame", f.MarkName)
	}
}

func TestFrameDecoderMarked(t *testing.T) {
	h := baseMemHost()
	meta, err := Load(h, nil)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	meta.FrameType.Append(3, "ExitFrame")

	reader := NewHeapReader(h, meta, nil)
	strs := NewStringDecoder(reader, nil, DefaultMaxConcatDepth, nil)
	dec := NewFrameDecoder(h, meta, reader, strs, &outHost{MemHost: h}, nil)

	fp := uint32(0x8100)
	h.PutUint32(fp+uint32(meta.OffFPContext), 0x9000+fuzzHeapTag) // not a SMI
	h.PutUint32(fp+uint32(meta.OffFPMarker), uint32(3<<1))        // SMI(3)

	f, err := dec.Decode(fp)
	if err != nil {
		t.Fatalf("Decode(marked frame) failed: %v", err)
	}
	if f.Kind != FrameMarked {
		t.Errorf("Kind = %v, want FrameMarked", f.Kind)
	}
	if f.MarkName != "ExitFrame" {
		t.Errorf("MarkName = %q, want ExitFrame", f.MarkName)
	}
}

// jsFrameFixture lays out a full JSFunction/SharedFunctionInfo/Script chain
// so decodeJS and lineNumber can be exercised end to end.
func jsFrameFixture(t *testing.T) (*MemHost, *MetadataStore, *FrameDecoder, uint32) {
	t.Helper()
	h := baseMemHost()
	meta, err := Load(h, nil)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	str := meta.classFindCreate("String")
	str.Fields = append(str.Fields, Field{Name: "length", Offset: fuzzHeapTag + 4})
	jsFunc := meta.classFindCreate("JSFunction")
	jsFunc.Fields = append(jsFunc.Fields, Field{Name: "shared", Offset: fuzzHeapTag + 0})
	shared := meta.classFindCreate("SharedFunctionInfo")
	shared.Fields = append(shared.Fields,
		Field{Name: "name", Offset: fuzzHeapTag + 0},
		Field{Name: "inferred_name", Offset: fuzzHeapTag + 4},
		Field{Name: "script", Offset: fuzzHeapTag + 8},
		Field{Name: "function_token_position", Offset: fuzzHeapTag + 12})
	script := meta.classFindCreate("Script")
	script.Fields = append(script.Fields,
		Field{Name: "name", Offset: fuzzHeapTag + 0},
		Field{Name: "line_ends", Offset: fuzzHeapTag + 4})
	// length lives on FixedArrayBase; FixedArray itself only adds element
	// storage, read separately through meta.OffFixedArrayData.
	fixedArrayBase := meta.classFindCreate("FixedArrayBase")
	fixedArrayBase.Fields = append(fixedArrayBase.Fields, Field{Name: "length", Offset: fuzzHeapTag + 0})
	fixedArray := meta.classFindCreate("FixedArray")
	fixedArray.Parent = fixedArrayBase
	heapObj := meta.classFindCreate("HeapObject")
	heapObj.Fields = append(heapObj.Fields, Field{Name: "map", Offset: fuzzHeapTag + 0})
	for _, cl := range []*Class{str, jsFunc, shared, script, fixedArrayBase, fixedArray, heapObj} {
		fixupClassOffsets(cl)
	}

	reader := NewHeapReader(h, meta, nil)
	strs := NewStringDecoder(reader, nil, DefaultMaxConcatDepth, nil)
	dec := NewFrameDecoder(h, meta, reader, strs, &outHost{MemHost: h}, nil)

	// Lay out: function name "doWork", script name "/app/a.js", line_ends
	// = [10, 25, 40] (three lines), token position 13 -> line 2.
	nameAddr := uint32(0x9000)
	putAsciiString(h, meta, nameAddr, "doWork", 0x9010)
	scriptNameAddr := uint32(0x9100)
	putAsciiString(h, meta, scriptNameAddr, "/app/a.js", 0x9110)

	lineEndsAddr := uint32(0x9200)
	h.PutUint32(lineEndsAddr+fuzzHeapTag, uint32(3<<1)) // FixedArray.length SMI(3)
	base := lineEndsAddr + fuzzHeapTag + uint32(meta.OffFixedArrayData)
	h.PutUint32(base+0, 10)
	h.PutUint32(base+4, 25)
	h.PutUint32(base+8, 40)

	scriptAddr := uint32(0x9300)
	h.PutUint32(scriptAddr+fuzzHeapTag+0, scriptNameAddr+fuzzHeapTag)
	h.PutUint32(scriptAddr+fuzzHeapTag+4, lineEndsAddr+fuzzHeapTag)

	sharedAddr := uint32(0x9400)
	h.PutUint32(sharedAddr+fuzzHeapTag+0, nameAddr+fuzzHeapTag)
	h.PutUint32(sharedAddr+fuzzHeapTag+4, 0) // inferred_name unused
	h.PutUint32(sharedAddr+fuzzHeapTag+8, scriptAddr+fuzzHeapTag)
	// function_token_position is technically a Smi, but compared byte-for-
	// byte against line_ends entries without decoding it (mdb_v8.c's own
	// comment on this), so it is stored here as the same raw 13 the
	// (likewise undecoded) line_ends entries are compared against.
	h.PutUint32(sharedAddr+fuzzHeapTag+12, 13)

	funcAddr := uint32(0x9500)
	h.PutUint32(funcAddr+fuzzHeapTag+0, sharedAddr+fuzzHeapTag)

	fp := uint32(0x9600)
	h.PutUint32(fp+uint32(meta.OffFPContext), funcAddr+fuzzHeapTag) // HeapObject, not SMI
	h.PutUint32(fp+uint32(meta.OffFPMarker), funcAddr+fuzzHeapTag)  // HeapObject, not SMI
	h.PutUint32(fp+uint32(meta.OffFPFunction), funcAddr+fuzzHeapTag)

	return h, meta, dec, fp
}

// putAsciiString lays out a SeqAsciiString at addr with its own Map at
// mapAddr.
func putAsciiString(h *MemHost, meta *MetadataStore, addr uint32, s string, mapAddr uint32) {
	h.PutUint32(addr+fuzzHeapTag, mapAddr+fuzzHeapTag)
	h.PutUint32(mapAddr+fuzzHeapTag+uint32(meta.OffMapInstanceAttributes), typeSeqAscii)
	h.PutUint32(addr+fuzzHeapTag+4, uint32(len(s))<<1)
	h.PutBytes(addr+fuzzHeapTag+12, []byte(s))
}

func TestFrameDecoderJavaScript(t *testing.T) {
	_, _, dec, fp := jsFrameFixture(t)

	f, err := dec.Decode(fp)
	if err != nil {
		t.Fatalf("Decode(JS frame) failed: %v", err)
	}
	if f.Kind != FrameJavaScript {
		t.Fatalf("Kind = %v, want FrameJavaScript", f.Kind)
	}
	if f.Name != "doWork" {
		t.Errorf("Name = %q, want doWork", f.Name)
	}
	if f.ScriptName != "/app/a.js" {
		t.Errorf("ScriptName = %q, want /app/a.js", f.ScriptName)
	}
	if f.Line != "line 2" {
		t.Errorf("Line = %q, want line 2 (token 13 falls in (10,25])", f.Line)
	}
}

func TestFrameDecoderLineNumberBounds(t *testing.T) {
	h, meta, dec, _ := jsFrameFixture(t)

	tests := []struct {
		tok  int32
		want string
	}{
		{5, "line 1"},
		{10, "line 1"},
		{11, "line 2"},
		{40, "line 3"},
		{41, "position out of range"},
	}

	lineEndsAddr := uint32(0x9200)
	for _, tt := range tests {
		got, err := dec.lineNumber(Word(lineEndsAddr+fuzzHeapTag), Word(tt.tok))
		if err != nil {
			t.Errorf("lineNumber(%d) failed: %v", tt.tok, err)
			continue
		}
		if got != tt.want {
			t.Errorf("lineNumber(%d) = %q, want %q", tt.tok, got, tt.want)
		}
	}
	_, _ = h, meta
}
