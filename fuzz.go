// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package v8pm

// go-fuzz entry points, following the teacher's fuzz.go convention
// (build-from-bytes + Parse, returning 0/1) but with two funcs, selected
// via `go-fuzz-build -func`, since this module has two independent
// attack surfaces: the symbol-table parser and the string decoder.

const (
	fuzzBase    = 0
	fuzzMemSize = 1 << 16
	fuzzHeapTag = 1
)

// baseMemHost returns a MemHost pre-populated with every metadata symbol
// Load requires, so fuzzing can focus on the parts data actually varies.
func baseMemHost() *MemHost {
	h := NewMemHost(fuzzBase, fuzzMemSize)

	h.DefineSymbol("v8dbg_SmiTag", 0x100, 0)
	h.DefineSymbol("v8dbg_SmiTagMask", 0x104, 1)
	h.DefineSymbol("v8dbg_SmiValueShift", 0x108, 1)
	h.DefineSymbol("v8dbg_FailureTag", 0x10c, 3)
	h.DefineSymbol("v8dbg_FailureTagMask", 0x110, 3)
	h.DefineSymbol("v8dbg_HeapObjectTag", 0x114, fuzzHeapTag)
	h.DefineSymbol("v8dbg_HeapObjectTagMask", 0x118, 3)
	h.DefineSymbol("v8dbg_off_fp_context", 0x11c, 8)
	h.DefineSymbol("v8dbg_off_fp_marker", 0x120, 4)
	h.DefineSymbol("v8dbg_off_fp_function", 0x124, 12)
	h.DefineSymbol("v8dbg_FirstNonstringType", 0x128, 0x80)
	h.DefineSymbol("v8dbg_IsNotStringMask", 0x12c, 0x80)
	h.DefineSymbol("v8dbg_StringTag", 0x130, 0)
	h.DefineSymbol("v8dbg_NotStringTag", 0x134, 0x80)
	h.DefineSymbol("v8dbg_StringEncodingMask", 0x138, 4)
	h.DefineSymbol("v8dbg_AsciiStringTag", 0x13c, 4)
	h.DefineSymbol("v8dbg_TwoByteStringTag", 0x140, 0)
	h.DefineSymbol("v8dbg_StringRepresentationMask", 0x144, 3)
	h.DefineSymbol("v8dbg_SeqStringTag", 0x148, 0)
	h.DefineSymbol("v8dbg_ConsStringTag", 0x14c, 1)
	h.DefineSymbol("v8dbg_ExternalStringTag", 0x150, 2)

	h.DefineSymbol("v8dbg_class_Map__instance_attributes__int", 0x200, fuzzHeapTag+8)
	h.DefineSymbol("v8dbg_class_SeqAsciiString__chars__char", 0x204, fuzzHeapTag+12)
	h.DefineSymbol("v8dbg_class_FixedArray__data__uintptr_t", 0x208, fuzzHeapTag+8)
	h.DefineSymbol("v8dbg_class_Oddball__to_string__String", 0x20c, fuzzHeapTag+4)

	return h
}

// FuzzAutoconfig feeds data as a stream of additional v8dbg_parent_*/
// v8dbg_class_*/v8dbg_type_*/v8dbg_frametype_* symbols layered on top of
// the required baseline, exercising the name-splitting and guard-rail
// logic of Load/autoconfigurator against malformed input.
func FuzzAutoconfig(data []byte) int {
	h := baseMemHost()

	const prefixCount = 4
	addr := uint32(0x300)
	for len(data) > 1 {
		kind := int(data[0]) % prefixCount
		n := int(data[1])
		data = data[2:]
		if n > len(data) {
			n = len(data)
		}
		name := sanitizeSymbolName(data[:n])
		data = data[n:]

		var full string
		switch kind {
		case 0:
			full = "v8dbg_parent_" + name
		case 1:
			full = "v8dbg_class_" + name
		case 2:
			full = "v8dbg_type_" + name
		default:
			full = "v8dbg_frametype_" + name
		}
		h.DefineSymbol(full, addr, int32(len(name)))
		addr += PointerSize
	}

	meta, err := Load(h, &Options{MaxClasses: 64, MaxEnumEntries: 64})
	if err != nil {
		return 0
	}
	_ = meta.ListClasses()
	return 1
}

func sanitizeSymbolName(b []byte) string {
	out := make([]byte, len(b))
	for i, c := range b {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			out[i] = c
		default:
			out[i] = '_'
		}
	}
	return string(out)
}

// FuzzStringDecode builds a minimal string-capable metadata store, lays
// out a heap object from data, and exercises StringDecoder.Decode.
func FuzzStringDecode(data []byte) int {
	if len(data) < 2 {
		return 0
	}

	h := baseMemHost()
	meta, err := Load(h, nil)
	if err != nil {
		return 0
	}

	stringClass := meta.classFindCreate("String")
	stringClass.Fields = append(stringClass.Fields, Field{Name: "length", Offset: fuzzHeapTag + 4})
	seqClass := meta.classFindCreate("SeqAsciiString")
	seqClass.Parent = stringClass
	consClass := meta.classFindCreate("ConsString")
	consClass.Parent = stringClass
	consClass.Fields = append(consClass.Fields,
		Field{Name: "first", Offset: fuzzHeapTag + 4},
		Field{Name: "second", Offset: fuzzHeapTag + 8})
	heapObjClass := meta.classFindCreate("HeapObject")
	heapObjClass.Fields = append(heapObjClass.Fields, Field{Name: "map", Offset: fuzzHeapTag + 0})
	for _, cl := range []*Class{stringClass, seqClass, consClass, heapObjClass} {
		fixupClassOffsets(cl)
	}

	objAddr := uint32(0x2000)
	mapAddr := uint32(0x2100)
	h.PutUint32(objAddr+fuzzHeapTag, mapAddr+fuzzHeapTag)
	h.PutUint32(mapAddr+fuzzHeapTag+uint32(meta.OffMapInstanceAttributes), 4) // AsciiStringTag|SeqStringTag
	h.PutUint32(objAddr+fuzzHeapTag+4, uint32(len(data))<<1)
	h.PutBytes(objAddr+fuzzHeapTag+12, data)

	reader := NewHeapReader(h, meta, nil)
	decoder := NewStringDecoder(reader, NodeExternalStringResolver{}, DefaultMaxConcatDepth, nil)

	var sink BufSink
	sink.Reset(256)
	if err := decoder.Decode(Word(objAddr+fuzzHeapTag), len(data)%2 == 0, &sink); err != nil {
		return 0
	}
	return 1
}
